package outbound

import (
	"github.com/ajkula/dirmon/domain/model"
)

// Discard reasons reported to MetricsRecorder
const (
	DiscardUnknownWatch = "unknown_watch"
	DiscardUnsupported  = "unsupported"
	DiscardFiltered     = "filtered"
	DiscardOverflow     = "overflow"
)

// MetricsRecorder collects event loop statistics
type MetricsRecorder interface {
	// counts a callback invocation
	EventDelivered(action model.Action)

	// counts an event dropped before dispatch
	EventDiscarded(reason string)

	// counts a started event loop
	LoopStarted()

	// counts a fatal event loop failure
	LoopFailed()

	// reports the number of registered watches
	SetActiveWatches(n int)
}

// MachineIDService identifies the host that produced an event
type MachineIDService interface {
	GetMachineID() (string, error)
}

// CryptoService covers password hashing and TLS material
type CryptoService interface {
	// returns a random salt for HashPassword
	GenerateSalt() [16]byte

	// returns the hex encoded argon2id hash of password
	HashPassword(password string, salt [16]byte) string

	// compares password against a HashPassword result in constant time
	VerifyPassword(password, hash string, salt [16]byte) bool

	// returns a PEM encoded self-signed certificate and private key for hostname
	GenerateTLSCertificate(hostname string) (certPEM, keyPEM []byte, err error)
}

// NopMetrics discards everything
type NopMetrics struct{}

func (NopMetrics) EventDelivered(model.Action) {}
func (NopMetrics) EventDiscarded(string)       {}
func (NopMetrics) LoopStarted()                {}
func (NopMetrics) LoopFailed()                 {}
func (NopMetrics) SetActiveWatches(int)        {}
