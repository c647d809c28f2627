package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Action is a portable filesystem change kind. Values can be combined into masks.
type Action uint32

const (
	ActionCreate        Action = 0x01
	ActionDelete        Action = 0x02
	ActionModify        Action = 0x04
	ActionRenameOldName Action = 0x08
	ActionRenameNewName Action = 0x10

	ActionNone Action = 0
	ActionAll         = ActionCreate | ActionDelete | ActionModify | ActionRenameOldName | ActionRenameNewName
)

// declaration order drives ActionName output
var actionNames = []struct {
	Value Action
	Name  string
}{
	{ActionCreate, "FILE_CREATE"},
	{ActionDelete, "FILE_DELETE"},
	{ActionModify, "FILE_MODIFY"},
	{ActionRenameOldName, "FILE_RENAME_OLD_NAME"},
	{ActionRenameNewName, "FILE_RENAME_NEW_NAME"},
}

var actionAliases = map[string]Action{
	"create":          ActionCreate,
	"delete":          ActionDelete,
	"remove":          ActionDelete,
	"modify":          ActionModify,
	"write":           ActionModify,
	"rename_old_name": ActionRenameOldName,
	"moved_from":      ActionRenameOldName,
	"rename_new_name": ActionRenameNewName,
	"moved_to":        ActionRenameNewName,
	"all":             ActionAll,
}

// ActionName renders the flags present in the mask as space separated names.
// An empty mask renders as "NULL".
func ActionName(actions Action) string {
	names := make([]string, 0, len(actionNames))
	for _, a := range actionNames {
		if actions&a.Value != 0 {
			names = append(names, a.Name)
		}
	}

	if len(names) == 0 {
		return "NULL"
	}
	return strings.Join(names, " ")
}

func (a Action) String() string {
	return ActionName(a)
}

// Has reports whether every flag of other is set in a.
func (a Action) Has(other Action) bool {
	return other != ActionNone && a&other == other
}

// Valid reports whether a is a non-empty combination of known flags.
func (a Action) Valid() bool {
	return a != ActionNone && a&^ActionAll == 0
}

// Names returns the individual flag names present in the mask.
func (a Action) Names() []string {
	var names []string
	for _, an := range actionNames {
		if a&an.Value != 0 {
			names = append(names, an.Name)
		}
	}
	return names
}

// ParseActions builds a non-empty mask from flag names. Accepts the ActionName
// spelling ("FILE_CREATE"), short names ("create", "moved_to", "all") and
// numeric masks ("0x03", "5"). Names may also be comma separated within one
// argument.
func ParseActions(names ...string) (Action, error) {
	mask, err := ParseMask(names...)
	if err != nil {
		return ActionNone, err
	}
	if mask == ActionNone {
		return ActionNone, fmt.Errorf("%w: empty action mask", ErrInvalidArgument)
	}
	return mask, nil
}

// ParseMask is ParseActions without the non-empty check, so "0" yields ActionNone.
func ParseMask(names ...string) (Action, error) {
	var mask Action

	for _, arg := range names {
		for _, raw := range strings.Split(arg, ",") {
			name := strings.ToLower(strings.TrimSpace(raw))
			if name == "" {
				continue
			}

			if n, err := strconv.ParseUint(name, 0, 32); err == nil {
				if Action(n)&^ActionAll != 0 {
					return ActionNone, fmt.Errorf("%w: unknown action bits in %q", ErrInvalidArgument, raw)
				}
				mask |= Action(n)
				continue
			}

			name = strings.TrimPrefix(name, "file_")
			a, ok := actionAliases[name]
			if !ok {
				return ActionNone, fmt.Errorf("%w: unknown action %q", ErrInvalidArgument, raw)
			}
			mask |= a
		}
	}

	return mask, nil
}
