package pipeline

import (
	"encoding/json"
)

// State is the externally observable projection of the pipeline. With no
// open session only Error is meaningful.
type State struct {
	CameraID        string       `json:"id"`
	SessionID       string       `json:"session"`
	Status          SessionState `json:"-"`
	TextureID       int64        `json:"textureId"`
	Width           int          `json:"width"`
	Height          int          `json:"height"`
	MountAngle      int          `json:"mountAngle"`
	DisplayRotation int          `json:"rotationDisplay"`
	Error           string       `json:"error"`
}

// Open reports whether the state describes an open session.
func (s State) Open() bool {
	return s.CameraID != ""
}

// MarshalJSON emits only the error when no session is open.
func (s State) MarshalJSON() ([]byte, error) {
	if !s.Open() {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{s.Error})
	}
	type plain State
	return json.Marshal(struct {
		plain
		Status string `json:"status"`
	}{plain(s), s.Status.String()})
}

// QREvent carries one QR scan result. Empty Text means an eligible frame
// held no readable code.
type QREvent struct {
	Text string `json:"text"`
}

// State computes the current projection.
func (p *Pipeline) State() State {
	st := State{Error: p.errString()}

	s := p.sess.Load()
	if s == nil {
		return st
	}
	st.CameraID = s.descriptor.ID
	st.SessionID = s.id
	st.Status = s.State()
	st.TextureID = p.textureID.Load()
	st.MountAngle = int(s.descriptor.MountAngle)
	if g := p.geom.Load(); g != nil {
		st.Width = g.Width
		st.Height = g.Height
	}
	if p.rotation != nil {
		st.DisplayRotation = int(p.rotation.CurrentRotation())
	}
	return st
}

func (p *Pipeline) errString() string {
	p.errMu.RLock()
	defer p.errMu.RUnlock()
	if p.lastErr == nil {
		return ""
	}
	return p.lastErr.Error()
}

// LastErr returns the error behind State().Error, for errors.Is.
func (p *Pipeline) LastErr() error {
	p.errMu.RLock()
	defer p.errMu.RUnlock()
	return p.lastErr
}

func (p *Pipeline) setErr(err error) {
	p.errMu.Lock()
	p.lastErr = err
	p.errMu.Unlock()
	if err != nil {
		p.log.Error().Err(err).Msg("Camera error")
	}
}

// publish sends the fresh state to state subscribers.
func (p *Pipeline) publish() {
	p.states.Publish(p.State())
}
