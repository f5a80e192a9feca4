// Package synthetic is a camera.Manager that renders test frames in
// software. It stands in for real hardware in development setups and
// tests: each camera paints colour bars, a text label and, optionally, a
// QR code carrying a configured payload.
package synthetic

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/CamStreamer/internal/camera"
	"github.com/bryanchriswhite/CamStreamer/internal/logger"
)

// Provider is the provider tag of synthetic descriptors.
const Provider = "synthetic"

// Camera describes one synthetic device.
type Camera struct {
	Descriptor   camera.Descriptor
	Capabilities []camera.Capability
	Layout       camera.Layout
}

// DefaultCameras returns a back camera streaming I420 and a front camera
// streaming NV12.
func DefaultCameras() []Camera {
	return []Camera{
		{
			Descriptor: camera.Descriptor{ID: "back-0", Name: "Synthetic Back", Provider: Provider},
			Capabilities: []camera.Capability{
				{Width: 640, Height: 480},
				{Width: 1280, Height: 720},
				{Width: 1920, Height: 1080},
			},
			Layout: camera.Planar,
		},
		{
			Descriptor: camera.Descriptor{ID: "front-1", Name: "Synthetic Front", Provider: Provider, MountAngle: 270},
			Capabilities: []camera.Capability{
				{Width: 640, Height: 480},
				{Width: 1280, Height: 720},
			},
			Layout: camera.SemiPlanar,
		},
	}
}

// Option configures a Manager.
type Option func(*Manager)

// WithFPS sets the frame rate. A rate of zero or less disables the frame
// clock; frames are then only produced by Handle.DeliverFrame.
func WithFPS(fps int) Option {
	return func(m *Manager) {
		m.fps = fps
	}
}

// WithQRPayload paints a QR code carrying payload into every frame.
func WithQRPayload(payload string) Option {
	return func(m *Manager) {
		m.qrPayload = payload
	}
}

// WithLabel toggles the text label in the top left corner.
func WithLabel(enabled bool) Option {
	return func(m *Manager) {
		m.label = enabled
	}
}

// Manager enumerates a fixed set of synthetic cameras.
type Manager struct {
	cameras   []Camera
	fps       int
	qrPayload string
	label     bool
	log       zerolog.Logger

	mu      sync.Mutex
	handles map[string]*Handle
}

// NewManager creates a manager for cameras. Nil cameras means
// DefaultCameras.
func NewManager(cameras []Camera, opts ...Option) *Manager {
	if cameras == nil {
		cameras = DefaultCameras()
	}
	m := &Manager{
		cameras: cameras,
		fps:     30,
		label:   true,
		log:     *logger.WithComponent("synthetic"),
		handles: make(map[string]*Handle),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Init validates the camera table.
func (m *Manager) Init() error {
	for _, c := range m.cameras {
		if c.Descriptor.ID == "" {
			return fmt.Errorf("synthetic camera without id")
		}
		if !c.Descriptor.MountAngle.Valid() {
			return fmt.Errorf("camera %s: invalid mount angle %d", c.Descriptor.ID, c.Descriptor.MountAngle)
		}
	}
	return nil
}

// Count returns the number of cameras.
func (m *Manager) Count() int {
	return len(m.cameras)
}

// Describe returns the descriptor at index.
func (m *Manager) Describe(index int) (camera.Descriptor, bool) {
	if index < 0 || index >= len(m.cameras) {
		return camera.Descriptor{}, false
	}
	return m.cameras[index].Descriptor, true
}

// Open returns a handle for id. Opening the same id again returns the
// handle that is already open.
func (m *Manager) Open(id string) (camera.Handle, error) {
	c, ok := m.find(id)
	if !ok {
		return nil, fmt.Errorf("camera %q not found", id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.handles[id]; ok {
		return h, nil
	}
	h := newHandle(m, c)
	m.handles[id] = h
	m.log.Debug().Str("camera_id", id).Msg("Opened synthetic camera")
	return h, nil
}

// Handle returns the open handle for id, if any.
func (m *Manager) Handle(id string) (*Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handles[id]
	return h, ok
}

// QueryCapabilities lists the resolutions of id.
func (m *Manager) QueryCapabilities(id string) ([]camera.Capability, error) {
	c, ok := m.find(id)
	if !ok {
		return nil, fmt.Errorf("camera %q not found", id)
	}
	if len(c.Capabilities) == 0 {
		return nil, fmt.Errorf("camera %q has no capabilities", id)
	}
	caps := make([]camera.Capability, len(c.Capabilities))
	copy(caps, c.Capabilities)
	return caps, nil
}

func (m *Manager) find(id string) (Camera, bool) {
	for _, c := range m.cameras {
		if c.Descriptor.ID == id {
			return c, true
		}
	}
	return Camera{}, false
}

func (m *Manager) release(id string) {
	m.mu.Lock()
	delete(m.handles, id)
	m.mu.Unlock()
}

// Handle is an opened synthetic camera.
type Handle struct {
	manager *Manager
	camera  Camera
	log     zerolog.Logger

	mu       sync.Mutex
	onFrame  camera.FrameFunc
	onError  camera.ErrorFunc
	closed   bool
	running  bool
	frames   *frameSource
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func newHandle(m *Manager, c Camera) *Handle {
	return &Handle{
		manager: m,
		camera:  c,
		log:     *logger.WithCamera("synthetic", c.Descriptor.ID),
	}
}

// StartCapture begins producing frames at c.
func (h *Handle) StartCapture(c camera.Capability) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return fmt.Errorf("camera %s is closed", h.camera.Descriptor.ID)
	}
	if h.running {
		return nil
	}
	if !h.supports(c) {
		return fmt.Errorf("camera %s does not support %s", h.camera.Descriptor.ID, c)
	}

	label := ""
	if h.manager.label {
		label = fmt.Sprintf("%s %s %s", h.camera.Descriptor.ID, c, h.camera.Layout)
	}
	frames, err := newFrameSource(c, h.camera.Layout, label, h.manager.qrPayload)
	if err != nil {
		return fmt.Errorf("failed to render test pattern: %w", err)
	}
	h.frames = frames
	h.running = true
	h.stopChan = make(chan struct{})

	if h.manager.fps > 0 {
		h.wg.Add(1)
		go h.clock(time.Second / time.Duration(h.manager.fps))
	}

	h.log.Info().Int("width", c.Width).Int("height", c.Height).Str("layout", h.camera.Layout.String()).Msg("Synthetic capture started")
	return nil
}

// StopCapture stops the frame clock and waits for the frame in flight.
func (h *Handle) StopCapture() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return nil
	}
	h.running = false
	close(h.stopChan)
	h.mu.Unlock()

	h.wg.Wait()
	h.log.Info().Msg("Synthetic capture stopped")
	return nil
}

// CaptureInProgress reports whether frames are being produced.
func (h *Handle) CaptureInProgress() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// SetFrameListener installs fn; nil detaches the listener.
func (h *Handle) SetFrameListener(fn camera.FrameFunc) {
	h.mu.Lock()
	h.onFrame = fn
	h.mu.Unlock()
}

// SetErrorListener installs fn; nil detaches the listener.
func (h *Handle) SetErrorListener(fn camera.ErrorFunc) {
	h.mu.Lock()
	h.onError = fn
	h.mu.Unlock()
}

// Close stops capture and releases the camera.
func (h *Handle) Close() error {
	if err := h.StopCapture(); err != nil {
		return err
	}
	h.mu.Lock()
	h.closed = true
	h.onFrame = nil
	h.onError = nil
	h.mu.Unlock()
	h.manager.release(h.camera.Descriptor.ID)
	return nil
}

// DeliverFrame renders one frame and hands it to the listener on the
// calling goroutine. It reports false when capture is not running.
func (h *Handle) DeliverFrame() bool {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return false
	}
	fn := h.onFrame
	frame := h.frames.next()
	h.mu.Unlock()

	if fn != nil {
		fn(frame)
	}
	return true
}

// InjectError reports err to the error listener on the calling goroutine,
// as a device fault would.
func (h *Handle) InjectError(err error) {
	h.mu.Lock()
	fn := h.onError
	h.mu.Unlock()

	if fn != nil {
		fn(err)
	}
}

func (h *Handle) clock(interval time.Duration) {
	defer h.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.mu.Lock()
	stop := h.stopChan
	h.mu.Unlock()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			h.DeliverFrame()
		}
	}
}

func (h *Handle) supports(c camera.Capability) bool {
	for _, have := range h.camera.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}
