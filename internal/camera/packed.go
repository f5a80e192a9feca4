package camera

import (
	"fmt"
)

func roundUp(v, n int) int {
	return (v + n - 1) / n * n
}

// PackedStrides returns the row strides and plane offsets of a contiguous
// 4:2:0 buffer laid out the way GStreamer's video/x-raw does by default:
// every row is padded to a multiple of four bytes.
func PackedStrides(layout Layout, width, height int) (strideY, strideUV, offsetUV, offsetV, size int) {
	strideY = roundUp(width, 4)
	chromaH := roundUp(height, 2) / 2
	offsetUV = strideY * roundUp(height, 2)

	switch layout {
	case SemiPlanar:
		strideUV = roundUp(width, 4)
		size = offsetUV + strideUV*chromaH
		return strideY, strideUV, offsetUV, 0, size
	default:
		strideUV = roundUp(roundUp(width, 2)/2, 4)
		offsetV = offsetUV + strideUV*chromaH
		size = offsetV + strideUV*chromaH
		return strideY, strideUV, offsetUV, offsetV, size
	}
}

// PackedFrame slices data into the planes of a width x height frame. data
// is borrowed, not copied.
func PackedFrame(layout Layout, width, height int, data []byte) (*FrameBuffer, error) {
	strideY, strideUV, offsetUV, offsetV, size := PackedStrides(layout, width, height)
	if len(data) < size {
		return nil, fmt.Errorf("buffer of %d bytes too small for %s %dx%d (need %d)", len(data), layout, width, height, size)
	}

	f := &FrameBuffer{
		Width:    width,
		Height:   height,
		Layout:   layout,
		Y:        data[:offsetUV],
		StrideY:  strideY,
		StrideUV: strideUV,
	}
	switch layout {
	case Planar:
		f.U = data[offsetUV:offsetV]
		f.V = data[offsetV:size]
	case SemiPlanar:
		f.UV = data[offsetUV:size]
	default:
		return nil, fmt.Errorf("unsupported chroma layout %d", layout)
	}
	return f, f.Validate()
}
