package overlay

import (
	"fmt"
	"image"
	"sync"

	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/CamStreamer/internal/logger"
)

// Manager handles overlay widgets and rendering. Widgets are drawn in the
// order they were added.
type Manager struct {
	widgets []Widget
	mu      sync.RWMutex
	enabled bool
	log     zerolog.Logger
}

// NewManager creates a new overlay manager
func NewManager() *Manager {
	return &Manager{
		enabled: true,
		log:     *logger.WithComponent("overlay"),
	}
}

// AddWidget adds a widget on top of the existing ones
func (m *Manager) AddWidget(widget Widget) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range m.widgets {
		if w.ID() == widget.ID() {
			return fmt.Errorf("widget with ID %s already exists", widget.ID())
		}
	}

	m.widgets = append(m.widgets, widget)
	m.log.Info().Str("widget", widget.ID()).Str("type", widget.Type()).Msg("Added widget")
	return nil
}

// RemoveWidget removes a widget from the overlay
func (m *Manager) RemoveWidget(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, w := range m.widgets {
		if w.ID() == id {
			m.widgets = append(m.widgets[:i], m.widgets[i+1:]...)
			m.log.Info().Str("widget", id).Msg("Removed widget")
			return nil
		}
	}
	return fmt.Errorf("widget with ID %s not found", id)
}

// GetWidget retrieves a widget by ID
func (m *Manager) GetWidget(id string) (Widget, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, w := range m.widgets {
		if w.ID() == id {
			return w, true
		}
	}
	return nil, false
}

// SetEnabled enables or disables the entire overlay
func (m *Manager) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = enabled
}

// IsEnabled returns whether the overlay draws anything
func (m *Manager) IsEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled && len(m.widgets) > 0
}

// Render draws all enabled widgets onto img
func (m *Manager) Render(img *image.RGBA) {
	m.mu.RLock()
	if !m.enabled {
		m.mu.RUnlock()
		return
	}
	widgets := append([]Widget(nil), m.widgets...)
	m.mu.RUnlock()

	for _, widget := range widgets {
		if !widget.IsEnabled() {
			continue
		}
		if err := widget.Render(img); err != nil {
			m.log.Debug().Err(err).Str("widget", widget.ID()).Msg("Failed to render widget")
		}
	}
}

// Compose returns frame with the widgets drawn over it. frame itself is
// left untouched; when nothing would be drawn it is returned as is.
func (m *Manager) Compose(frame *image.RGBA) *image.RGBA {
	if frame == nil || !m.IsEnabled() {
		return frame
	}
	out := &image.RGBA{
		Pix:    append([]uint8(nil), frame.Pix...),
		Stride: frame.Stride,
		Rect:   frame.Rect,
	}
	m.Render(out)
	return out
}
