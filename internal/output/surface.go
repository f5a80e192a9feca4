package output

import (
	"image"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/CamStreamer/internal/logger"
	"github.com/bryanchriswhite/CamStreamer/internal/pipeline"
)

// Compositor draws on top of a frame before it is written. It must not
// modify its argument.
type Compositor interface {
	Compose(frame *image.RGBA) *image.RGBA
}

// Surface is a texture registry that renders the active texture into an
// Output whenever a new frame is marked available. Marks that arrive
// while a frame is being rendered collapse into one.
type Surface struct {
	out      Output
	interval time.Duration
	log      zerolog.Logger

	mu       sync.Mutex
	overlay  Compositor
	nextID   int64
	textures map[int64]pipeline.TextureSource

	pending  chan int64
	stopChan chan struct{}
	wg       sync.WaitGroup
	once     sync.Once

	rendered uint64
}

// NewSurface creates a surface rendering into out.
func NewSurface(out Output, cfg Config) *Surface {
	s := &Surface{
		out:      out,
		log:      *logger.WithComponent("surface"),
		textures: make(map[int64]pipeline.TextureSource),
		pending:  make(chan int64, 1),
		stopChan: make(chan struct{}),
	}
	if cfg.MaxFPS > 0 {
		s.interval = time.Second / time.Duration(cfg.MaxFPS)
	}
	s.wg.Add(1)
	go s.renderLoop()
	return s
}

// SetOverlay installs c for every later render. nil removes it.
func (s *Surface) SetOverlay(c Compositor) {
	s.mu.Lock()
	s.overlay = c
	s.mu.Unlock()
}

// RegisterTexture adds src and returns its id. Ids start at 1.
func (s *Surface) RegisterTexture(src pipeline.TextureSource) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.textures[s.nextID] = src
	s.log.Debug().Int64("texture_id", s.nextID).Msg("Texture registered")
	return s.nextID
}

// UnregisterTexture removes a texture. Unknown ids are ignored.
func (s *Surface) UnregisterTexture(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.textures[id]; ok {
		delete(s.textures, id)
		s.log.Debug().Int64("texture_id", id).Msg("Texture unregistered")
	}
}

// MarkFrameAvailable schedules a render of texture id. It never blocks.
func (s *Surface) MarkFrameAvailable(id int64) {
	select {
	case s.pending <- id:
	default:
		// a render is already queued
	}
}

// Rendered returns the number of frames written to the output.
func (s *Surface) Rendered() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rendered
}

// Close stops the render loop.
func (s *Surface) Close() {
	s.once.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
}

func (s *Surface) renderLoop() {
	defer s.wg.Done()

	var last time.Time
	for {
		select {
		case <-s.stopChan:
			return
		case id := <-s.pending:
			if s.interval > 0 {
				if wait := s.interval - time.Since(last); wait > 0 {
					select {
					case <-s.stopChan:
						return
					case <-time.After(wait):
					}
				}
			}
			last = time.Now()
			s.render(id)
		}
	}
}

func (s *Surface) render(id int64) {
	s.mu.Lock()
	src, ok := s.textures[id]
	overlay := s.overlay
	s.mu.Unlock()
	if !ok || !s.out.IsRunning() {
		return
	}

	frame := src.Frame()
	if frame == nil {
		return
	}
	if overlay != nil {
		frame = overlay.Compose(frame)
	}
	if err := s.out.WriteFrame(frame); err != nil {
		s.log.Debug().Err(err).Msg("Failed to write frame")
		return
	}

	s.mu.Lock()
	s.rendered++
	s.mu.Unlock()
}
