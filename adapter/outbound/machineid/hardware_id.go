// Package machineid names the host in streamed events when no node id is configured.
package machineid

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/denisbrodbeck/machineid"

	"github.com/ajkula/dirmon/domain/port/outbound"
)

// the raw machine id is never exposed, only a keyed hash of it
const appID = "dirmon"

type hardwareMachineID struct {
	rawID func() (string, error)
}

func NewHardwareMachineID() outbound.MachineIDService {
	return &hardwareMachineID{rawID: machineid.ID}
}

func (h *hardwareMachineID) GetMachineID() (string, error) {
	rawID, err := h.rawID()
	if err != nil {
		return "", err
	}

	mac := hmac.New(sha256.New, []byte(rawID))
	mac.Write([]byte(appID))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// staticMachineID returns a configured node id
type staticMachineID struct {
	id string
}

// NewStaticMachineID uses id as the host name
func NewStaticMachineID(id string) outbound.MachineIDService {
	return staticMachineID{id: id}
}

func (s staticMachineID) GetMachineID() (string, error) {
	return s.id, nil
}

// Resolve prefers nodeID and falls back to the hardware id
func Resolve(nodeID string) outbound.MachineIDService {
	if nodeID != "" {
		return NewStaticMachineID(nodeID)
	}
	return NewHardwareMachineID()
}
