// Package yuv scales raw I420/NV12 sensor frames and converts them to RGBA.
//
// Luma and chroma planes are scaled independently so the 2x2 chroma
// subsampling is preserved: a WxH target gets a ceil(W/2) x ceil(H/2)
// chroma plane. Interleaved NV12 chroma is scaled as pairs so U and V
// samples never mix.
package yuv

import (
	"fmt"
	"image"

	"github.com/bryanchriswhite/CamStreamer/internal/camera"
)

// Filter selects the plane resampling kernel.
type Filter int

const (
	// Nearest samples the closest source pixel.
	Nearest Filter = iota
	// Bilinear interpolates between the four closest source pixels.
	Bilinear
)

// ParseFilter accepts "nearest" and "bilinear". Empty means Nearest.
func ParseFilter(s string) (Filter, error) {
	switch s {
	case "", "nearest":
		return Nearest, nil
	case "bilinear":
		return Bilinear, nil
	default:
		return Nearest, fmt.Errorf("unknown scale filter %q", s)
	}
}

// I420 is a tightly packed planar frame owned by a Scaler.
type I420 struct {
	Width, Height int
	Y, U, V       []byte
}

// ChromaStride is the row length of U and V.
func (p *I420) ChromaStride() int {
	return (p.Width + 1) / 2
}

// NV12 is a tightly packed semi-planar frame owned by a Scaler.
type NV12 struct {
	Width, Height int
	Y, UV         []byte
}

// ChromaStride is the row length of UV in bytes.
func (p *NV12) ChromaStride() int {
	return ((p.Width + 1) / 2) * 2
}

// Scaler resamples frames into reusable planes. The planes returned by
// ScaleI420 and ScaleNV12 are overwritten by the next call, so a Scaler
// must only be used from one goroutine.
type Scaler struct {
	Filter Filter

	i420 I420
	nv12 NV12
}

// NewScaler returns a Scaler using filter.
func NewScaler(filter Filter) *Scaler {
	return &Scaler{Filter: filter}
}

// ScaleI420 scales a Planar frame to width x height.
func (s *Scaler) ScaleI420(f *camera.FrameBuffer, width, height int) (*I420, error) {
	if err := checkTarget(f, camera.Planar, width, height); err != nil {
		return nil, err
	}

	cw, ch := (width+1)/2, (height+1)/2
	scw, sch := f.ChromaSize()
	p := &s.i420
	p.Width, p.Height = width, height
	p.Y = grow(p.Y, width*height)
	p.U = grow(p.U, cw*ch)
	p.V = grow(p.V, cw*ch)

	s.plane(f.Y, f.StrideY, f.Width, f.Height, p.Y, width, width, height, 1)
	s.plane(f.U, f.StrideUV, scw, sch, p.U, cw, cw, ch, 1)
	s.plane(f.V, f.StrideUV, scw, sch, p.V, cw, cw, ch, 1)
	return p, nil
}

// ScaleNV12 scales a SemiPlanar frame to width x height.
func (s *Scaler) ScaleNV12(f *camera.FrameBuffer, width, height int) (*NV12, error) {
	if err := checkTarget(f, camera.SemiPlanar, width, height); err != nil {
		return nil, err
	}

	cw, ch := (width+1)/2, (height+1)/2
	scw, sch := f.ChromaSize()
	p := &s.nv12
	p.Width, p.Height = width, height
	p.Y = grow(p.Y, width*height)
	p.UV = grow(p.UV, cw*2*ch)

	s.plane(f.Y, f.StrideY, f.Width, f.Height, p.Y, width, width, height, 1)
	s.plane(f.UV, f.StrideUV, scw, sch, p.UV, cw*2, cw, ch, 2)
	return p, nil
}

// ToRGBA scales f to width x height and converts it into a newly
// allocated RGBA image, choosing the code path by chroma layout.
func (s *Scaler) ToRGBA(f *camera.FrameBuffer, width, height int) (*image.RGBA, error) {
	if f == nil {
		return nil, fmt.Errorf("yuv: nil frame")
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	switch f.Layout {
	case camera.Planar:
		p, err := s.ScaleI420(f, width, height)
		if err != nil {
			return nil, err
		}
		if err := I420ToRGBA(p, dst); err != nil {
			return nil, err
		}
	case camera.SemiPlanar:
		p, err := s.ScaleNV12(f, width, height)
		if err != nil {
			return nil, err
		}
		if err := NV12ToRGBA(p, dst); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("yuv: unsupported chroma layout %d", f.Layout)
	}
	return dst, nil
}

func checkTarget(f *camera.FrameBuffer, layout camera.Layout, width, height int) error {
	if err := f.Validate(); err != nil {
		return fmt.Errorf("yuv: %w", err)
	}
	if f.Layout != layout {
		return fmt.Errorf("yuv: expected %s frame, got %s", layout, f.Layout)
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("yuv: invalid target size %dx%d", width, height)
	}
	return nil
}

func grow(b []byte, n int) []byte {
	if cap(b) < n {
		return make([]byte, n)
	}
	return b[:n]
}

// plane resamples one plane of channels interleaved samples per pixel.
// Widths and heights are in pixels; strides are in bytes.
func (s *Scaler) plane(src []byte, srcStride, srcW, srcH int, dst []byte, dstStride, dstW, dstH, channels int) {
	if srcW == dstW && srcH == dstH {
		rowBytes := dstW * channels
		for y := 0; y < dstH; y++ {
			copy(dst[y*dstStride:y*dstStride+rowBytes], src[y*srcStride:y*srcStride+rowBytes])
		}
		return
	}
	if s.Filter == Bilinear {
		bilinear(src, srcStride, srcW, srcH, dst, dstStride, dstW, dstH, channels)
		return
	}
	nearest(src, srcStride, srcW, srcH, dst, dstStride, dstW, dstH, channels)
}

// nearest maps each destination pixel centre to the source pixel that
// contains it.
func nearest(src []byte, srcStride, srcW, srcH int, dst []byte, dstStride, dstW, dstH, channels int) {
	xmap := make([]int, dstW)
	for x := range xmap {
		xmap[x] = ((2*x + 1) * srcW / (2 * dstW)) * channels
	}

	prevSY := -1
	for y := 0; y < dstH; y++ {
		sy := (2*y + 1) * srcH / (2 * dstH)
		drow := dst[y*dstStride : y*dstStride+dstW*channels]
		if sy == prevSY {
			copy(drow, dst[(y-1)*dstStride:(y-1)*dstStride+dstW*channels])
			continue
		}
		prevSY = sy

		srow := src[sy*srcStride:]
		if channels == 1 {
			for x, sx := range xmap {
				drow[x] = srow[sx]
			}
			continue
		}
		for x, sx := range xmap {
			d := x * channels
			for c := 0; c < channels; c++ {
				drow[d+c] = srow[sx+c]
			}
		}
	}
}

const fracBits = 16
const fracOne = 1 << fracBits

// bilinear uses 16.16 fixed point source coordinates aligned on pixel
// centres, clamped at the plane edges.
func bilinear(src []byte, srcStride, srcW, srcH int, dst []byte, dstStride, dstW, dstH, channels int) {
	x0s := make([]int, dstW)
	x1s := make([]int, dstW)
	wxs := make([]int, dstW)
	for x := 0; x < dstW; x++ {
		fx := ((2*x+1)*srcW*fracOne)/(2*dstW) - fracOne/2
		if fx < 0 {
			fx = 0
		}
		x0 := fx >> fracBits
		x1 := x0 + 1
		if x1 >= srcW {
			x1 = srcW - 1
		}
		if x0 >= srcW {
			x0 = srcW - 1
		}
		x0s[x] = x0 * channels
		x1s[x] = x1 * channels
		wxs[x] = fx & (fracOne - 1)
	}

	for y := 0; y < dstH; y++ {
		fy := ((2*y+1)*srcH*fracOne)/(2*dstH) - fracOne/2
		if fy < 0 {
			fy = 0
		}
		y0 := fy >> fracBits
		y1 := y0 + 1
		if y1 >= srcH {
			y1 = srcH - 1
		}
		if y0 >= srcH {
			y0 = srcH - 1
		}
		wy := fy & (fracOne - 1)

		r0 := src[y0*srcStride:]
		r1 := src[y1*srcStride:]
		drow := dst[y*dstStride:]
		for x := 0; x < dstW; x++ {
			a, b, wx := x0s[x], x1s[x], wxs[x]
			for c := 0; c < channels; c++ {
				top := int(r0[a+c])*(fracOne-wx) + int(r0[b+c])*wx
				bot := int(r1[a+c])*(fracOne-wx) + int(r1[b+c])*wx
				v := (top>>8)*(fracOne-wy) + (bot>>8)*wy
				drow[x*channels+c] = byte((v + (1 << 23)) >> 24)
			}
		}
	}
}
