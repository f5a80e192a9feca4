package snapshot

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.SetRGBA(x, y, color.RGBA{uint8(x * 4), uint8(y * 5), 128, 255})
		}
	}
	return img
}

func TestEncoders(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"", "jpeg"},
		{"jpeg", "jpeg"},
		{"png", "png"},
	}

	for _, tt := range tests {
		t.Run(tt.want+"/"+tt.format, func(t *testing.T) {
			enc, err := New(tt.format, 0)
			require.NoError(t, err)

			text, err := enc(testImage())
			require.NoError(t, err)
			require.NotEmpty(t, text)

			img, format, err := Decode(text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, format)
			assert.Equal(t, image.Rect(0, 0, 64, 48), img.Bounds())
		})
	}
}

func TestEncoderErrors(t *testing.T) {
	_, err := New("gif", 90)
	assert.Error(t, err)

	_, err = JPEG(90)(nil)
	assert.Error(t, err)

	_, _, err = Decode("not base64!")
	assert.Error(t, err)
}
