package pipeline

import (
	"errors"
	"image"
	"sync"
	"sync/atomic"

	"github.com/bryanchriswhite/CamStreamer/internal/camera"
)

type fakeSurface struct {
	mu         sync.Mutex
	next       int64
	registered map[int64]TextureSource
	marks      atomic.Int64
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{registered: make(map[int64]TextureSource)}
}

func (s *fakeSurface) RegisterTexture(src TextureSource) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.registered[s.next] = src
	return s.next
}

func (s *fakeSurface) UnregisterTexture(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.registered, id)
}

func (s *fakeSurface) MarkFrameAvailable(int64) {
	s.marks.Add(1)
}

func (s *fakeSurface) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.registered)
}

type countingDecoder struct {
	calls atomic.Int64
	text  string
}

func (d *countingDecoder) Decode(image.Image) (string, bool) {
	d.calls.Add(1)
	return d.text, d.text != ""
}

// fakeManager injects failures at each step of opening a camera.
type fakeManager struct {
	cams     []camera.Descriptor
	caps     []camera.Capability
	initErr  error
	openErr  error
	capsErr  error
	startErr error

	opens   atomic.Int64
	handles []*fakeHandle
}

func (m *fakeManager) Init() error { return m.initErr }
func (m *fakeManager) Count() int  { return len(m.cams) }

func (m *fakeManager) Describe(i int) (camera.Descriptor, bool) {
	if i < 0 || i >= len(m.cams) {
		return camera.Descriptor{}, false
	}
	return m.cams[i], true
}

func (m *fakeManager) Open(string) (camera.Handle, error) {
	m.opens.Add(1)
	if m.openErr != nil {
		return nil, m.openErr
	}
	h := &fakeHandle{startErr: m.startErr}
	m.handles = append(m.handles, h)
	return h, nil
}

func (m *fakeManager) QueryCapabilities(string) ([]camera.Capability, error) {
	if m.capsErr != nil {
		return nil, m.capsErr
	}
	return m.caps, nil
}

type fakeHandle struct {
	mu       sync.Mutex
	startErr error
	running  bool
	closed   bool
	started  []camera.Capability
	onFrame  camera.FrameFunc
}

func (h *fakeHandle) StartCapture(c camera.Capability) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.startErr != nil {
		return h.startErr
	}
	h.running = true
	h.started = append(h.started, c)
	return nil
}

func (h *fakeHandle) StopCapture() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.running = false
	return nil
}

func (h *fakeHandle) CaptureInProgress() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

func (h *fakeHandle) SetFrameListener(fn camera.FrameFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onFrame = fn
}

func (h *fakeHandle) SetErrorListener(camera.ErrorFunc) {}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.running = false
	h.closed = true
	return nil
}

func (h *fakeHandle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

var errBoom = errors.New("boom")
