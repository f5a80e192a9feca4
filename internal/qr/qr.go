// Package qr wraps gozxing for QR detection on analysis frames and for
// rendering QR payloads into synthetic test frames.
package qr

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/CamStreamer/internal/logger"
)

// Decoder finds a QR payload in an image.
type Decoder struct {
	reader gozxing.Reader
	hints  map[gozxing.DecodeHintType]interface{}
	log    zerolog.Logger
}

// NewDecoder returns a QR-only decoder. tryHarder trades speed for
// accuracy on noisy frames.
func NewDecoder(tryHarder bool) *Decoder {
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_POSSIBLE_FORMATS: []gozxing.BarcodeFormat{gozxing.BarcodeFormat_QR_CODE},
	}
	if tryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}
	return &Decoder{
		reader: qrcode.NewQRCodeReader(),
		hints:  hints,
		log:    *logger.WithComponent("qr"),
	}
}

// Decode returns the payload and true when img contains a readable code.
// A frame without a code is not an error.
func (d *Decoder) Decode(img image.Image) (string, bool) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		d.log.Debug().Err(err).Msg("Failed to binarize frame")
		return "", false
	}

	result, err := d.reader.Decode(bmp, d.hints)
	if err != nil {
		return "", false
	}

	text := result.GetText()
	if text == "" {
		return "", false
	}
	d.log.Debug().Str("text", text).Msg("QR code detected")
	return text, true
}

// Encode renders text as a black on white QR code of at least size x size
// pixels.
func Encode(text string, size int) (*image.Gray, error) {
	m, err := qrcode.NewQRCodeWriter().Encode(text, gozxing.BarcodeFormat_QR_CODE, size, size, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}

	w, h := m.GetWidth(), m.GetHeight()
	img := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if m.Get(x, y) {
				img.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
	return img, nil
}
