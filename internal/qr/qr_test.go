package qr

import (
	"image"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeOnAnalysisFrame(t *testing.T) {
	code, err := Encode("camstreamer://pair/42", 300)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, code.Bounds().Dx(), 300)

	frame := image.NewRGBA(image.Rect(0, 0, 1280, 720))
	draw.Draw(frame, frame.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(frame, code.Bounds().Add(image.Pt(400, 200)), code, image.Point{}, draw.Src)

	text, ok := NewDecoder(true).Decode(frame)
	require.True(t, ok)
	assert.Equal(t, "camstreamer://pair/42", text)
}

func TestDecodeBlankFrame(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 320, 240))
	draw.Draw(frame, frame.Bounds(), image.White, image.Point{}, draw.Src)

	text, ok := NewDecoder(false).Decode(frame)
	assert.False(t, ok)
	assert.Empty(t, text)
}
