package pipeline

import (
	"sync/atomic"

	"github.com/bryanchriswhite/CamStreamer/internal/camera"
)

// SessionState is the lifecycle stage of a camera session.
type SessionState int32

const (
	SessionClosed SessionState = iota
	SessionOpened
	SessionCapturing
)

func (s SessionState) String() string {
	switch s {
	case SessionOpened:
		return "opened"
	case SessionCapturing:
		return "capturing"
	default:
		return "closed"
	}
}

// session binds a descriptor to an open hardware handle. Fields other than
// state are fixed once the session is published.
type session struct {
	id         string
	descriptor camera.Descriptor
	handle     camera.Handle
	capability camera.Capability
	state      atomic.Int32
}

func (s *session) State() SessionState {
	return SessionState(s.state.Load())
}

func (s *session) setState(st SessionState) {
	s.state.Store(int32(st))
}
