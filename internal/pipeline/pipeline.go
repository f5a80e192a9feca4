// Package pipeline turns raw camera frames into a live RGBA display
// buffer, scans the same stream for QR codes and serves one-shot
// snapshots, while coordinating the camera lifecycle.
//
// Control operations (Open, StartCapture, Resize, StopCapture, Close, ...)
// serialize on one mutex. The frame callback runs on the camera's own
// goroutine and only reads atomics, so it never waits on a control
// operation.
package pipeline

import (
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/CamStreamer/internal/camera"
	"github.com/bryanchriswhite/CamStreamer/internal/display"
	"github.com/bryanchriswhite/CamStreamer/internal/events"
	"github.com/bryanchriswhite/CamStreamer/internal/logger"
	"github.com/bryanchriswhite/CamStreamer/internal/yuv"
)

// Decoder finds a text payload in an analysis frame.
type Decoder interface {
	Decode(img image.Image) (text string, ok bool)
}

// TextureSource is read by a Surface when it renders a registered texture.
type TextureSource interface {
	// Frame returns the latest display buffer, or nil. The image must not
	// be modified.
	Frame() *image.RGBA
}

// Surface is the renderer the display buffer is published to.
type Surface interface {
	RegisterTexture(src TextureSource) int64
	UnregisterTexture(id int64)
	MarkFrameAvailable(id int64)
}

// Pipeline is the lifecycle coordinator for one camera at a time.
type Pipeline struct {
	manager  camera.Manager
	decoder  Decoder
	rotation display.Source
	surface  Surface
	opts     Options
	log      zerolog.Logger

	// mu serializes control operations.
	mu       sync.Mutex
	viewW    int
	viewH    int
	shutdown bool

	sess      atomic.Pointer[session]
	geom      atomic.Pointer[geometry]
	display   atomic.Pointer[liveFrame]
	snap      atomic.Pointer[snapshotRequest]
	started   atomic.Bool
	qrEnabled atomic.Bool
	textureID atomic.Int64
	chroma    atomic.Int32

	liveCounter atomic.Int64
	qrCounter   atomic.Int64

	dropEvery atomic.Int64
	qrPlanar  atomic.Int64
	qrSemi    atomic.Int64

	// Scalers are only used on the camera goroutine.
	liveScaler *yuv.Scaler
	qrScaler   *yuv.Scaler
	snapScaler *yuv.Scaler

	qrWorker *qrWorker

	errMu   sync.RWMutex
	lastErr error

	states *events.Broadcaster[State]
	qrs    *events.Broadcaster[QREvent]

	cancelRotation func()
}

// New creates a pipeline. decoder, rotation and surface may be nil.
func New(manager camera.Manager, decoder Decoder, rotation display.Source, surface Surface, opts Options) *Pipeline {
	opts = opts.withDefaults()

	p := &Pipeline{
		manager:    manager,
		decoder:    decoder,
		rotation:   rotation,
		surface:    surface,
		opts:       opts,
		log:        *logger.WithComponent("pipeline"),
		liveScaler: yuv.NewScaler(opts.Filter),
		qrScaler:   yuv.NewScaler(opts.Filter),
		snapScaler: yuv.NewScaler(opts.Filter),
		states:     events.NewBroadcaster[State](0),
		qrs:        events.NewBroadcaster[QREvent](0),
	}
	p.UpdateTunables(Tunables{
		DropEvery:            opts.DropEvery,
		QRIntervalPlanar:     opts.QRIntervalPlanar,
		QRIntervalSemiPlanar: opts.QRIntervalSemiPlanar,
	})

	if opts.AsyncQR && decoder != nil {
		p.qrWorker = newQRWorker(p.decodeAndPublish)
	}

	if rotation != nil {
		p.cancelRotation = rotation.Subscribe(func(r display.Rotation) {
			p.log.Debug().Int("rotation", int(r)).Msg("Display rotation changed")
			p.publish()
		})
	}
	return p
}

// UpdateTunables applies new throttle settings. It may be called while
// frames are flowing. Zero values fall back to the defaults, as in New.
func (p *Pipeline) UpdateTunables(t Tunables) {
	t = t.withDefaults()
	p.dropEvery.Store(int64(t.DropEvery))
	p.qrPlanar.Store(int64(t.QRIntervalPlanar))
	p.qrSemi.Store(int64(t.QRIntervalSemiPlanar))
	p.log.Debug().
		Int("drop_every", t.DropEvery).
		Int("qr_planar", t.QRIntervalPlanar).
		Int("qr_semi_planar", t.QRIntervalSemiPlanar).
		Msg("Tunables updated")
}

// ListCameras enumerates the manager. It never fails.
func (p *Pipeline) ListCameras() []camera.Descriptor {
	return camera.List(p.manager)
}

// Open acquires camera id. It returns true immediately when any camera is
// already open. On failure the last error is set and false returned.
func (p *Pipeline) Open(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	ok := p.openLocked(id)
	p.publish()
	return ok
}

func (p *Pipeline) openLocked(id string) bool {
	if p.shutdown {
		p.setErr(ErrClosed)
		return false
	}
	if p.sess.Load() != nil {
		return true
	}

	s, err := p.openSession(id)
	if err != nil {
		p.setErr(err)
		return false
	}
	p.sess.Store(s)
	p.log.Info().
		Str("camera_id", id).
		Str("session", s.id).
		Str("capability", s.capability.String()).
		Int("mount_angle", int(s.descriptor.MountAngle)).
		Msg("Camera opened")
	return true
}

func (p *Pipeline) openSession(id string) (*session, error) {
	if p.manager == nil {
		return nil, fmt.Errorf("%w: no camera manager", ErrOpenFailure)
	}
	if err := p.manager.Init(); err != nil {
		return nil, fmt.Errorf("%w: init camera manager: %v", ErrOpenFailure, err)
	}

	var desc camera.Descriptor
	found := false
	for i := 0; i < p.manager.Count(); i++ {
		if d, ok := p.manager.Describe(i); ok && d.ID == id {
			desc, found = d, true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, id)
	}

	handle, err := p.manager.Open(desc.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpenFailure, desc.ID, err)
	}
	if handle == nil {
		return nil, fmt.Errorf("%w: %s: no handle", ErrOpenFailure, desc.ID)
	}

	caps, err := p.manager.QueryCapabilities(desc.ID)
	if err == nil {
		var c camera.Capability
		if c, err = p.opts.Policy.Select(caps, p.viewW, p.viewH); err == nil {
			s := &session{
				id:         uuid.NewString(),
				descriptor: desc,
				handle:     handle,
				capability: c,
			}
			s.setState(SessionOpened)
			return s, nil
		}
	}

	if cerr := handle.Close(); cerr != nil {
		p.log.Warn().Err(cerr).Str("camera_id", desc.ID).Msg("Failed to release camera")
	}
	return nil, fmt.Errorf("%w: %s: %v", ErrCapabilityQuery, desc.ID, err)
}

// Register opens id, registers the display texture and starts capture
// when a view size is already known.
func (p *Pipeline) Register(id string) State {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.surface != nil && p.textureID.Load() == 0 && !p.shutdown {
		p.textureID.Store(p.surface.RegisterTexture(p))
	}
	if p.openLocked(id) && p.viewW != 0 {
		p.startLocked(p.viewW, p.viewH)
	}
	p.publish()
	return p.State()
}

// StartCapture starts streaming and sizes the display buffer for a
// width x height view. A negative height derives it from the camera
// aspect ratio. It is a no-op while capturing.
func (p *Pipeline) StartCapture(width, height int) State {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startLocked(width, height)
	p.publish()
	return p.State()
}

func (p *Pipeline) startLocked(width, height int) {
	s := p.sess.Load()
	if s == nil {
		p.log.Warn().Msg("StartCapture without an open camera")
		return
	}
	if s.State() == SessionCapturing || s.handle.CaptureInProgress() {
		return
	}

	p.viewW, p.viewH = width, height
	p.applyGeometry(width, height, s)

	// Listeners go in first so the first frames are not lost; the started
	// flag still gates them.
	s.handle.SetFrameListener(p.onFrame)
	s.handle.SetErrorListener(func(err error) {
		go p.handleRuntimeError(s, err)
	})

	if err := s.handle.StartCapture(s.capability); err != nil {
		p.closeLocked()
		p.setErr(fmt.Errorf("%w: %s: %v", ErrStartFailure, s.descriptor.ID, err))
		return
	}

	s.setState(SessionCapturing)
	p.started.Store(true)
	g := p.geom.Load()
	p.log.Info().
		Str("camera_id", s.descriptor.ID).
		Int("width", g.Width).
		Int("height", g.Height).
		Msg("Capture started")
}

func (p *Pipeline) applyGeometry(width, height int, s *session) {
	g := fitCapture(width, height, s.descriptor.MountAngle, s.capability, p.opts.MinWorkingSize, p.opts.Margin)
	p.geom.Store(&g)
	p.display.Store(nil)
}

// Resize refits the display buffer to a new view. It is a no-op unless
// capturing and the view differs from the last one requested.
func (p *Pipeline) Resize(width, height int) State {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.sess.Load()
	if p.started.Load() && s != nil && (width != p.viewW || height != p.viewH) {
		p.viewW, p.viewH = width, height
		p.applyGeometry(width, height, s)
		ng := p.geom.Load()
		p.log.Debug().Int("width", ng.Width).Int("height", ng.Height).Msg("Display buffer resized")
		p.publish()
	}
	return p.State()
}

// StopCapture stops streaming. An armed snapshot is given a bounded time
// to finish first; when the bound elapses capture is stopped anyway and
// ErrSnapshotDrainTimeout is returned.
func (p *Pipeline) StopCapture() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.stopLocked()
	p.publish()
	return err
}

func (p *Pipeline) stopLocked() error {
	p.started.Store(false)
	err := p.drainSnapshot()

	s := p.sess.Load()
	if s == nil {
		return err
	}
	if s.handle.CaptureInProgress() {
		if serr := s.handle.StopCapture(); serr != nil {
			p.log.Warn().Err(serr).Str("camera_id", s.descriptor.ID).Msg("Failed to stop capture")
		}
	}
	s.handle.SetFrameListener(nil)
	s.handle.SetErrorListener(nil)
	if s.State() == SessionCapturing {
		s.setState(SessionOpened)
		p.log.Info().Str("camera_id", s.descriptor.ID).Msg("Capture stopped")
	}
	return err
}

// Close tears the session down, clears the error and returns the zeroed
// state.
func (p *Pipeline) Close() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closeLocked()
	p.setErr(nil)
	p.publish()
	return p.State()
}

// Unregister is Close under the name of the control surface.
func (p *Pipeline) Unregister() State {
	return p.Close()
}

func (p *Pipeline) closeLocked() {
	p.display.Store(nil)

	if id := p.textureID.Swap(0); id != 0 && p.surface != nil {
		p.surface.UnregisterTexture(id)
	}

	p.started.Store(false)
	if req := p.snap.Swap(nil); req != nil {
		req.finish(Snapshot{}, fmt.Errorf("%w: session closed", ErrNotOpen))
	}

	if s := p.sess.Swap(nil); s != nil {
		s.handle.SetFrameListener(nil)
		s.handle.SetErrorListener(nil)
		if s.handle.CaptureInProgress() {
			if err := s.handle.StopCapture(); err != nil {
				p.log.Warn().Err(err).Str("camera_id", s.descriptor.ID).Msg("Failed to stop capture")
			}
		}
		if err := s.handle.Close(); err != nil {
			p.log.Warn().Err(err).Str("camera_id", s.descriptor.ID).Msg("Failed to release camera")
		}
		s.setState(SessionClosed)
		p.log.Info().Str("camera_id", s.descriptor.ID).Str("session", s.id).Msg("Camera closed")
	}

	p.liveCounter.Store(0)
	p.qrCounter.Store(0)
	p.geom.Store(nil)
}

// handleRuntimeError runs on its own goroutine so the device goroutine
// that reported the fault is never waited on by the teardown.
func (p *Pipeline) handleRuntimeError(s *session, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sess.Load() != s {
		return
	}
	p.closeLocked()
	p.setErr(fmt.Errorf("%w: %s: %v", ErrRuntime, s.descriptor.ID, err))
	p.publish()
}

// EnableQR switches QR scanning and restarts its throttle cycle. It takes
// effect on the next frame.
func (p *Pipeline) EnableQR(enabled bool) {
	p.qrEnabled.Store(enabled)
	p.qrCounter.Store(0)
	p.log.Debug().Bool("enabled", enabled).Msg("QR search toggled")
}

// QREnabled reports whether QR scanning is on.
func (p *Pipeline) QREnabled() bool {
	return p.qrEnabled.Load()
}

// Frame returns the current display buffer, or nil. A buffer rendered
// for an older geometry is never returned.
func (p *Pipeline) Frame() *image.RGBA {
	f := p.display.Load()
	if f == nil || f.geom != p.geom.Load() {
		return nil
	}
	return f.img
}

// SubscribeState returns a channel receiving every published State.
func (p *Pipeline) SubscribeState() chan State {
	return p.states.Subscribe()
}

// UnsubscribeState removes a state listener.
func (p *Pipeline) UnsubscribeState(ch chan State) {
	p.states.Unsubscribe(ch)
}

// SubscribeQR returns a channel receiving QR scan results.
func (p *Pipeline) SubscribeQR() chan QREvent {
	return p.qrs.Subscribe()
}

// UnsubscribeQR removes a QR listener.
func (p *Pipeline) UnsubscribeQR(ch chan QREvent) {
	p.qrs.Unsubscribe(ch)
}

// QRListeners returns the number of QR listeners.
func (p *Pipeline) QRListeners() int {
	return p.qrs.Len()
}

// Shutdown closes the session and releases background resources. The
// pipeline cannot be reopened afterwards.
func (p *Pipeline) Shutdown() {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return
	}
	p.shutdown = true
	p.closeLocked()
	p.mu.Unlock()

	if p.cancelRotation != nil {
		p.cancelRotation()
	}
	if p.qrWorker != nil {
		p.qrWorker.stop()
	}
	p.states.Close()
	p.qrs.Close()
}
