package yuv

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// I420ToRGBA converts p into dst, which must match p's size. Conversion
// uses the full-range JFIF coefficients of image/color.
func I420ToRGBA(p *I420, dst *image.RGBA) error {
	if err := checkDst(p.Width, p.Height, dst); err != nil {
		return err
	}
	src := &image.YCbCr{
		Y:              p.Y,
		Cb:             p.U,
		Cr:             p.V,
		YStride:        p.Width,
		CStride:        p.ChromaStride(),
		SubsampleRatio: image.YCbCrSubsampleRatio420,
		Rect:           image.Rect(0, 0, p.Width, p.Height),
	}
	draw.Copy(dst, dst.Rect.Min, src, src.Rect, draw.Src, nil)
	return nil
}

// NV12ToRGBA converts p into dst, which must match p's size.
func NV12ToRGBA(p *NV12, dst *image.RGBA) error {
	if err := checkDst(p.Width, p.Height, dst); err != nil {
		return err
	}
	cs := p.ChromaStride()
	for y := 0; y < p.Height; y++ {
		yrow := p.Y[y*p.Width : (y+1)*p.Width]
		crow := p.UV[(y/2)*cs:]
		drow := dst.Pix[y*dst.Stride:]
		for x, luma := range yrow {
			c := (x / 2) * 2
			r, g, b := color.YCbCrToRGB(luma, crow[c], crow[c+1])
			d := x * 4
			drow[d] = r
			drow[d+1] = g
			drow[d+2] = b
			drow[d+3] = 0xff
		}
	}
	return nil
}

func checkDst(width, height int, dst *image.RGBA) error {
	if dst == nil {
		return fmt.Errorf("yuv: nil destination")
	}
	if dst.Rect.Dx() != width || dst.Rect.Dy() != height {
		return fmt.Errorf("yuv: destination %dx%d does not match %dx%d", dst.Rect.Dx(), dst.Rect.Dy(), width, height)
	}
	return nil
}
