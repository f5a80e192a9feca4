// Package snapshot encodes still frames into transport-safe text.
package snapshot

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
)

// DefaultQuality is the JPEG quality used when none is configured.
const DefaultQuality = 90

// Encoder turns a finished snapshot image into text that can travel over
// JSON or a websocket.
type Encoder func(img *image.RGBA) (string, error)

// JPEG returns an Encoder producing base64 (standard alphabet) JPEG data.
func JPEG(quality int) Encoder {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return func(img *image.RGBA) (string, error) {
		if img == nil {
			return "", fmt.Errorf("nil snapshot image")
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return "", fmt.Errorf("failed to encode JPEG: %w", err)
		}
		return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
	}
}

// PNG returns an Encoder producing base64 PNG data. It is lossless and
// considerably larger than JPEG.
func PNG() Encoder {
	return func(img *image.RGBA) (string, error) {
		if img == nil {
			return "", fmt.Errorf("nil snapshot image")
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return "", fmt.Errorf("failed to encode PNG: %w", err)
		}
		return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
	}
}

// New picks an Encoder by format name ("jpeg" or "png").
func New(format string, quality int) (Encoder, error) {
	switch format {
	case "", "jpeg", "jpg":
		return JPEG(quality), nil
	case "png":
		return PNG(), nil
	default:
		return nil, fmt.Errorf("unknown snapshot format %q", format)
	}
}

// Decode reverses an Encoder's output. It is used by the CLI to write
// snapshots to disk.
func Decode(text string) (image.Image, string, error) {
	raw, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, "", fmt.Errorf("invalid base64 snapshot: %w", err)
	}
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return img, format, nil
}

// Bytes returns the raw encoded image bytes of an Encoder's output.
func Bytes(text string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 snapshot: %w", err)
	}
	return raw, nil
}
