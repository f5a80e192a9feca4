package yuv

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Rotate returns src rotated clockwise by degrees (0, 90, 180 or 270) and,
// when mirror is set, flipped horizontally after the rotation. src is
// returned unchanged when there is nothing to do.
func Rotate(src *image.RGBA, degrees int, mirror bool) (*image.RGBA, error) {
	degrees = ((degrees % 360) + 360) % 360
	if degrees == 0 && !mirror {
		return src, nil
	}

	w := float64(src.Rect.Dx())
	h := float64(src.Rect.Dy())

	var s2d f64.Aff3
	var dw, dh int
	switch degrees {
	case 0:
		s2d = f64.Aff3{1, 0, 0, 0, 1, 0}
		dw, dh = src.Rect.Dx(), src.Rect.Dy()
	case 90:
		s2d = f64.Aff3{0, -1, h, 1, 0, 0}
		dw, dh = src.Rect.Dy(), src.Rect.Dx()
	case 180:
		s2d = f64.Aff3{-1, 0, w, 0, -1, h}
		dw, dh = src.Rect.Dx(), src.Rect.Dy()
	case 270:
		s2d = f64.Aff3{0, 1, 0, -1, 0, w}
		dw, dh = src.Rect.Dy(), src.Rect.Dx()
	default:
		return nil, fmt.Errorf("yuv: unsupported rotation %d", degrees)
	}

	if mirror {
		s2d = f64.Aff3{-s2d[0], -s2d[1], float64(dw) - s2d[2], s2d[3], s2d[4], s2d[5]}
	}

	// The matrix maps from src's origin, so translate a sub-image first.
	if src.Rect.Min != (image.Point{}) {
		s2d[2] -= s2d[0]*float64(src.Rect.Min.X) + s2d[1]*float64(src.Rect.Min.Y)
		s2d[5] -= s2d[3]*float64(src.Rect.Min.X) + s2d[4]*float64(src.Rect.Min.Y)
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.NearestNeighbor.Transform(dst, s2d, src, src.Rect, draw.Src, nil)
	return dst, nil
}
