package synthetic

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/bryanchriswhite/CamStreamer/internal/camera"
	"github.com/bryanchriswhite/CamStreamer/internal/qr"
)

var bars = []color.RGBA{
	{235, 235, 235, 255},
	{235, 235, 16, 255},
	{16, 235, 235, 255},
	{16, 235, 16, 255},
	{235, 16, 235, 255},
	{235, 16, 16, 255},
	{16, 16, 235, 255},
	{16, 16, 16, 255},
}

const markerWidth = 16

// frameSource holds one pre-rendered frame. next only repaints the moving
// marker strip at the bottom of the luma plane.
type frameSource struct {
	frame  camera.FrameBuffer
	base   []byte
	band   int
	marker int
}

func newFrameSource(c camera.Capability, layout camera.Layout, label, payload string) (*frameSource, error) {
	img, err := renderPattern(c.Width, c.Height, label, payload)
	if err != nil {
		return nil, err
	}
	f := toFrame(img, layout)

	band := c.Height / 20
	if band < 1 {
		band = 1
	}
	s := &frameSource{frame: *f, band: band}
	s.base = make([]byte, len(f.Y))
	copy(s.base, f.Y)
	return s, nil
}

func (s *frameSource) next() *camera.FrameBuffer {
	f := &s.frame
	w, h := f.Width, f.Height
	top := h - s.band

	copy(f.Y[top*f.StrideY:], s.base[top*f.StrideY:])
	x0 := s.marker
	x1 := x0 + markerWidth
	if x1 > w {
		x1 = w
	}
	for y := top; y < h; y++ {
		row := f.Y[y*f.StrideY:]
		for x := x0; x < x1; x++ {
			row[x] = 235
		}
	}
	s.marker = (s.marker + markerWidth/2) % w
	return f
}

// renderPattern paints colour bars, the label and the QR code.
func renderPattern(w, h int, label, payload string) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	barW := (w + len(bars) - 1) / len(bars)
	for i, c := range bars {
		r := image.Rect(i*barW, 0, (i+1)*barW, h)
		draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
	}

	if payload != "" {
		size := h / 2
		if w < h {
			size = w / 2
		}
		code, err := qr.Encode(payload, size)
		if err != nil {
			return nil, err
		}
		b := code.Bounds()
		at := image.Pt((w-b.Dx())/2, (h-b.Dy())/2)
		draw.Draw(img, b.Add(at), code, b.Min, draw.Src)
	}

	if label != "" {
		drawLabel(img, label)
	}
	return img, nil
}

func drawLabel(img *image.RGBA, text string) {
	face := basicfont.Face7x13
	const padding = 5

	d := &font.Drawer{Face: face}
	width := int(d.MeasureString(text)>>6) + padding*2
	height := face.Height + padding*2
	draw.Draw(img, image.Rect(0, 0, width, height), image.NewUniform(color.RGBA{0, 0, 0, 255}), image.Point{}, draw.Src)

	d.Dst = img
	d.Src = image.NewUniform(color.RGBA{255, 255, 255, 255})
	d.Dot = fixed.Point26_6{X: fixed.I(padding), Y: fixed.I(padding + face.Ascent)}
	d.DrawString(text)
}

// toFrame converts img to tightly packed YUV 4:2:0 planes. Each chroma
// sample is taken from the top-left pixel of its 2x2 block.
func toFrame(img *image.RGBA, layout camera.Layout) *camera.FrameBuffer {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	cw, ch := (w+1)/2, (h+1)/2

	f := &camera.FrameBuffer{
		Width:   w,
		Height:  h,
		Layout:  layout,
		Y:       make([]byte, w*h),
		StrideY: w,
	}
	if layout == camera.SemiPlanar {
		f.UV = make([]byte, cw*2*ch)
		f.StrideUV = cw * 2
	} else {
		f.U = make([]byte, cw*ch)
		f.V = make([]byte, cw*ch)
		f.StrideUV = cw
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := img.RGBAAt(x, y)
			yy, cb, cr := color.RGBToYCbCr(p.R, p.G, p.B)
			f.Y[y*w+x] = yy
			if x%2 != 0 || y%2 != 0 {
				continue
			}
			if layout == camera.SemiPlanar {
				i := (y/2)*f.StrideUV + x
				f.UV[i] = cb
				f.UV[i+1] = cr
			} else {
				i := (y/2)*f.StrideUV + x/2
				f.U[i] = cb
				f.V[i] = cr
			}
		}
	}
	return f
}
