package overlay

import (
	"image"
	"image/color"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// TextFunc supplies the text of a TextWidget at render time.
type TextFunc func() string

// TextWidget draws one line of text on an optional background box
type TextWidget struct {
	*BaseWidget

	mu        sync.RWMutex
	text      TextFunc
	textColor color.RGBA
	bgColor   *color.RGBA // Optional background color
	padding   int
}

// NewTextWidget creates a text widget showing fixed text.
func NewTextWidget(id, text string, anchor Anchor, x, y int) *TextWidget {
	return NewDynamicTextWidget(id, func() string { return text }, anchor, x, y)
}

// NewDynamicTextWidget creates a text widget that asks fn for its text on
// every render.
func NewDynamicTextWidget(id string, fn TextFunc, anchor Anchor, x, y int) *TextWidget {
	bg := color.RGBA{0, 0, 0, 160}
	return &TextWidget{
		BaseWidget: NewBaseWidget(id, anchor, x, y, 1.0),
		text:       fn,
		textColor:  color.RGBA{255, 255, 255, 255},
		bgColor:    &bg,
		padding:    5,
	}
}

// Type returns the widget type
func (w *TextWidget) Type() string {
	return "text"
}

// SetText replaces the text with a fixed string.
func (w *TextWidget) SetText(text string) {
	w.mu.Lock()
	w.text = func() string { return text }
	w.mu.Unlock()
}

// Text returns the text the next render would draw.
func (w *TextWidget) Text() string {
	w.mu.RLock()
	fn := w.text
	w.mu.RUnlock()
	if fn == nil {
		return ""
	}
	return fn()
}

// SetColor sets the text color
func (w *TextWidget) SetColor(c color.RGBA) {
	w.mu.Lock()
	w.textColor = c
	w.mu.Unlock()
}

// SetBackground sets the background color (nil for transparent)
func (w *TextWidget) SetBackground(c *color.RGBA) {
	w.mu.Lock()
	w.bgColor = c
	w.mu.Unlock()
}

// Render draws the text widget
func (w *TextWidget) Render(img *image.RGBA) error {
	text := w.Text()
	if !w.IsEnabled() || text == "" {
		return nil
	}

	w.mu.RLock()
	fg, bg, padding := w.textColor, w.bgColor, w.padding
	w.mu.RUnlock()

	face := basicfont.Face7x13
	metrics := face.Metrics()
	lineHeight := (metrics.Ascent + metrics.Descent).Ceil()
	textWidth := font.MeasureString(face, text).Ceil()

	size := image.Pt(textWidth+padding*2, lineHeight+padding*2)
	at := w.place(img.Bounds(), size)

	if bg != nil {
		DrawRectangle(img, image.Rectangle{Min: at, Max: at.Add(size)}, *bg, w.opacity)
	}

	textImg := image.NewRGBA(image.Rect(0, 0, textWidth, lineHeight))
	d := &font.Drawer{
		Dst:  textImg,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  fixed.Point26_6{X: 0, Y: metrics.Ascent},
	}
	d.DrawString(text)

	BlendImage(img, textImg, at.Add(image.Pt(padding, padding)), w.opacity)
	return nil
}
