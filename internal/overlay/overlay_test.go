package overlay

import (
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blank(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return img
}

// painted reports whether any pixel inside r differs from black.
func painted(img *image.RGBA, r image.Rectangle) bool {
	r = r.Intersect(img.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c := img.RGBAAt(x, y)
			if c.R != 0 || c.G != 0 || c.B != 0 {
				return true
			}
		}
	}
	return false
}

func TestParseAnchor(t *testing.T) {
	a, ok := ParseAnchor("bottom-right")
	assert.True(t, ok)
	assert.Equal(t, BottomRight, a)

	_, ok = ParseAnchor("middle")
	assert.False(t, ok)
}

func TestTextWidgetAnchors(t *testing.T) {
	tests := []struct {
		anchor  Anchor
		corner  image.Rectangle
		opposite image.Rectangle
	}{
		{TopLeft, image.Rect(0, 0, 40, 20), image.Rect(160, 80, 200, 100)},
		{BottomRight, image.Rect(160, 80, 200, 100), image.Rect(0, 0, 40, 20)},
	}

	for _, tt := range tests {
		img := blank(200, 100)
		w := NewTextWidget("label", "back-0", tt.anchor, 0, 0)
		require.NoError(t, w.Render(img))
		assert.True(t, painted(img, tt.corner), "anchor %d", tt.anchor)
		assert.False(t, painted(img, tt.opposite), "anchor %d", tt.anchor)
	}
}

func TestTextWidgetDisabledOrEmpty(t *testing.T) {
	img := blank(100, 50)

	w := NewTextWidget("label", "", TopLeft, 0, 0)
	require.NoError(t, w.Render(img))
	assert.False(t, painted(img, img.Rect))

	w.SetText("hello")
	w.SetEnabled(false)
	require.NoError(t, w.Render(img))
	assert.False(t, painted(img, img.Rect))

	w.SetEnabled(true)
	require.NoError(t, w.Render(img))
	assert.True(t, painted(img, img.Rect))
}

func TestQRWidgetHold(t *testing.T) {
	now := time.Unix(1000, 0)
	w := NewQRWidget("qr", 2*time.Second)
	w.now = func() time.Time { return now }

	assert.Empty(t, w.Text())

	w.Observe("pair:42")
	assert.Equal(t, "QR: pair:42", w.Text())

	// Empty scan results keep the last payload
	w.Observe("")
	now = now.Add(time.Second)
	assert.Equal(t, "QR: pair:42", w.Text())

	now = now.Add(2 * time.Second)
	assert.Empty(t, w.Text())
	assert.Equal(t, "qr", w.Type())
}

func TestManagerComposeLeavesFrameUntouched(t *testing.T) {
	m := NewManager()
	frame := blank(120, 60)

	// Nothing to draw yet
	assert.Same(t, frame, m.Compose(frame))

	require.NoError(t, m.AddWidget(NewTextWidget("status", "back-0 900x506", TopLeft, 4, 4)))
	assert.Error(t, m.AddWidget(NewTextWidget("status", "dup", TopLeft, 0, 0)))

	out := m.Compose(frame)
	assert.NotSame(t, frame, out)
	assert.True(t, painted(out, out.Rect))
	assert.False(t, painted(frame, frame.Rect))

	m.SetEnabled(false)
	assert.Same(t, frame, m.Compose(frame))
	m.SetEnabled(true)

	_, ok := m.GetWidget("status")
	assert.True(t, ok)
	require.NoError(t, m.RemoveWidget("status"))
	assert.Error(t, m.RemoveWidget("status"))
	assert.Same(t, frame, m.Compose(frame))
}

func TestDrawRectangleOpacity(t *testing.T) {
	img := blank(4, 4)
	DrawRectangle(img, image.Rect(0, 0, 2, 2), color.RGBA{200, 0, 0, 255}, 0.5)

	c := img.RGBAAt(0, 0)
	assert.InDelta(t, 100, int(c.R), 2)
	assert.Equal(t, uint8(0), img.RGBAAt(3, 3).R)

	DrawRectangle(img, image.Rect(2, 2, 4, 4), color.RGBA{200, 0, 0, 255}, 0)
	assert.Equal(t, uint8(0), img.RGBAAt(3, 3).R)
}
