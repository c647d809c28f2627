//go:build linux

package inotify

import (
	"golang.org/x/sys/unix"

	"github.com/ajkula/dirmon/domain/model"
)

// IN_MASK_CREATE (Linux 4.18): fail with EEXIST instead of replacing the mask
// of an inode that is already watched. Older kernels ignore the bit.
const inMaskCreate uint32 = 0x10000000

func translate(mask uint32) (model.Action, bool) {
	switch mask &^ unix.IN_ISDIR {
	case unix.IN_CREATE:
		return model.ActionCreate, true
	case unix.IN_DELETE, unix.IN_DELETE_SELF:
		return model.ActionDelete, true
	case unix.IN_MODIFY:
		return model.ActionModify, true
	case unix.IN_MOVED_FROM:
		return model.ActionRenameOldName, true
	case unix.IN_MOVED_TO:
		return model.ActionRenameNewName, true
	}
	return model.ActionNone, false
}

func filter(actions model.Action) uint32 {
	var mask uint32

	if actions&model.ActionCreate != 0 {
		mask |= unix.IN_CREATE
	}
	if actions&model.ActionDelete != 0 {
		mask |= unix.IN_DELETE | unix.IN_DELETE_SELF
	}
	if actions&model.ActionModify != 0 {
		mask |= unix.IN_MODIFY
	}
	if actions&model.ActionRenameOldName != 0 {
		mask |= unix.IN_MOVED_FROM
	}
	if actions&model.ActionRenameNewName != 0 {
		mask |= unix.IN_MOVED_TO
	}

	return mask
}
