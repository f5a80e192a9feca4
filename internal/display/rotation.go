// Package display reports the rotation of the display the camera preview is
// shown on, and notifies subscribers when it changes.
package display

import (
	"fmt"
	"sync"
)

// Rotation is the clockwise display rotation in degrees.
type Rotation int

const (
	Rotate0   Rotation = 0
	Rotate90  Rotation = 90
	Rotate180 Rotation = 180
	Rotate270 Rotation = 270
)

// Normalize maps any multiple of 90 degrees into [0, 360).
func Normalize(degrees int) (Rotation, error) {
	if degrees%90 != 0 {
		return Rotate0, fmt.Errorf("rotation %d is not a multiple of 90", degrees)
	}
	return Rotation(((degrees % 360) + 360) % 360), nil
}

// Source is the display-rotation collaborator consumed by the pipeline.
type Source interface {
	CurrentRotation() Rotation
	Subscribe(fn func(Rotation)) (cancel func())
}

// Provider is a Source that holds OS resources.
type Provider interface {
	Source
	Close() error
}

// notifier keeps rotation subscribers for the Source implementations.
type notifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(Rotation)
}

func (n *notifier) subscribe(fn func(Rotation)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.subs == nil {
		n.subs = make(map[int]func(Rotation))
	}
	id := n.nextID
	n.nextID++
	n.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
}

func (n *notifier) notify(r Rotation) {
	n.mu.Lock()
	fns := make([]func(Rotation), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(r)
	}
}

// Static is a Source whose rotation only changes through Set. It backs
// headless setups and tests.
type Static struct {
	mu       sync.RWMutex
	rotation Rotation
	notifier
}

// NewStatic returns a Static source fixed at r.
func NewStatic(r Rotation) *Static {
	return &Static{rotation: r}
}

// CurrentRotation returns the configured rotation.
func (s *Static) CurrentRotation() Rotation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rotation
}

// Subscribe registers fn for rotation changes.
func (s *Static) Subscribe(fn func(Rotation)) func() {
	return s.subscribe(fn)
}

// Set changes the rotation and notifies subscribers when it differs.
func (s *Static) Set(r Rotation) {
	s.mu.Lock()
	changed := s.rotation != r
	s.rotation = r
	s.mu.Unlock()

	if changed {
		s.notify(r)
	}
}

// Close is a no-op.
func (s *Static) Close() error {
	return nil
}

// Open creates the Provider named by kind: "static", "randr" or "sensor".
// static is the rotation used by the static provider.
func Open(kind string, static int) (Provider, error) {
	switch kind {
	case "", "static":
		r, err := Normalize(static)
		if err != nil {
			return nil, err
		}
		return NewStatic(r), nil
	case "randr", "x11":
		return NewRandR()
	case "sensor", "iio":
		return NewSensorProxy()
	default:
		return nil, fmt.Errorf("unknown rotation source %q", kind)
	}
}
