// Package overlay draws status widgets over preview frames before they are
// streamed. Widgets never touch the pipeline's display buffer: the Manager
// composes onto a copy.
package overlay

import (
	"image"
	"image/color"
	"image/draw"
)

// Widget represents a renderable overlay widget
type Widget interface {
	// ID returns the unique identifier for this widget instance
	ID() string

	// Type returns the widget type name
	Type() string

	// Render draws the widget onto img at its configured position
	Render(img *image.RGBA) error

	// IsEnabled returns whether the widget should be rendered
	IsEnabled() bool

	// SetEnabled sets whether the widget should be rendered
	SetEnabled(enabled bool)
}

// Anchor is the frame corner a widget position is measured from.
type Anchor int

const (
	TopLeft Anchor = iota
	TopRight
	BottomLeft
	BottomRight
)

// ParseAnchor accepts "top-left", "top-right", "bottom-left" and
// "bottom-right". Empty means TopLeft.
func ParseAnchor(s string) (Anchor, bool) {
	switch s {
	case "", "top-left":
		return TopLeft, true
	case "top-right":
		return TopRight, true
	case "bottom-left":
		return BottomLeft, true
	case "bottom-right":
		return BottomRight, true
	}
	return TopLeft, false
}

// BaseWidget provides common functionality for all widgets
type BaseWidget struct {
	id      string
	enabled bool
	anchor  Anchor
	x       int
	y       int
	opacity float64 // 0.0 to 1.0
}

// NewBaseWidget creates a new base widget
func NewBaseWidget(id string, anchor Anchor, x, y int, opacity float64) *BaseWidget {
	w := &BaseWidget{id: id, enabled: true, anchor: anchor, x: x, y: y}
	w.SetOpacity(opacity)
	return w
}

// ID returns the widget's unique identifier
func (w *BaseWidget) ID() string {
	return w.id
}

// IsEnabled returns whether the widget should be rendered
func (w *BaseWidget) IsEnabled() bool {
	return w.enabled
}

// SetEnabled sets whether the widget should be rendered
func (w *BaseWidget) SetEnabled(enabled bool) {
	w.enabled = enabled
}

// SetOpacity sets the widget's opacity (0.0 to 1.0)
func (w *BaseWidget) SetOpacity(opacity float64) {
	if opacity < 0.0 {
		opacity = 0.0
	}
	if opacity > 1.0 {
		opacity = 1.0
	}
	w.opacity = opacity
}

// place returns the top-left corner of a box of size within bounds.
func (w *BaseWidget) place(bounds image.Rectangle, size image.Point) image.Point {
	switch w.anchor {
	case TopRight:
		return image.Pt(bounds.Max.X-w.x-size.X, bounds.Min.Y+w.y)
	case BottomLeft:
		return image.Pt(bounds.Min.X+w.x, bounds.Max.Y-w.y-size.Y)
	case BottomRight:
		return image.Pt(bounds.Max.X-w.x-size.X, bounds.Max.Y-w.y-size.Y)
	default:
		return image.Pt(bounds.Min.X+w.x, bounds.Min.Y+w.y)
	}
}

// BlendImage draws src onto dst with its top-left corner at at, scaling
// src alpha by opacity. Pixels outside dst are clipped.
func BlendImage(dst *image.RGBA, src image.Image, at image.Point, opacity float64) {
	if opacity <= 0 {
		return
	}
	r := src.Bounds().Sub(src.Bounds().Min).Add(at)
	mask := image.NewUniform(color.Alpha{A: uint8(opacity*255 + 0.5)})
	draw.DrawMask(dst, r, src, src.Bounds().Min, mask, image.Point{}, draw.Over)
}

// DrawRectangle fills r with c blended at opacity
func DrawRectangle(dst *image.RGBA, r image.Rectangle, c color.Color, opacity float64) {
	if opacity <= 0 {
		return
	}
	mask := image.NewUniform(color.Alpha{A: uint8(opacity*255 + 0.5)})
	draw.DrawMask(dst, r, image.NewUniform(c), image.Point{}, mask, image.Point{}, draw.Over)
}
