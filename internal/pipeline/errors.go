package pipeline

import (
	"errors"
)

// Error taxonomy. Every failure recorded by the pipeline wraps one of these
// so callers can match it with errors.Is.
var (
	ErrDeviceNotFound  = errors.New("device not found")
	ErrOpenFailure     = errors.New("open failure")
	ErrCapabilityQuery = errors.New("capability query failure")
	ErrStartFailure    = errors.New("start failure")
	ErrRuntime         = errors.New("runtime camera error")

	ErrSnapshotDrainTimeout = errors.New("snapshot drain timed out")
	ErrSnapshotPending      = errors.New("snapshot already pending")
	ErrNotOpen              = errors.New("no camera open")
	ErrNotCapturing         = errors.New("capture not started")
	ErrClosed               = errors.New("pipeline shut down")
)
