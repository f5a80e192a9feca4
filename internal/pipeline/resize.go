package pipeline

import (
	"github.com/bryanchriswhite/CamStreamer/internal/camera"
)

// geometry is the derived display buffer size.
type geometry struct {
	Width  int
	Height int
}

// fitCapture derives the display buffer size for a requested view.
//
// A negative height is derived from the capability aspect ratio. The view
// is padded to max(minSize, v+margin) on each axis, then the native aspect
// (axes swapped for 90/270 mounts) is fitted into that box height-first,
// falling back to width-first when the width overflows.
func fitCapture(width, height int, mount camera.MountAngle, c camera.Capability, minSize, margin int) geometry {
	if c.Width <= 0 || c.Height <= 0 {
		return geometry{}
	}

	if height < 0 {
		if mount.Swapped() {
			height = (c.Width*width)/c.Height - 1
		} else {
			height = (c.Height*width)/c.Width - 1
		}
	}

	dw := pad(width, minSize, margin)
	dh := pad(height, minSize, margin)

	cw, ch := c.Width, c.Height
	if mount.Swapped() {
		cw, ch = ch, cw
	}

	g := geometry{Height: dh, Width: (cw * dh) / ch}
	if g.Width > dw {
		g.Width = dw
		g.Height = (ch * dw) / cw
	}
	return g
}

func pad(v, minSize, margin int) int {
	if v+margin < minSize {
		return minSize
	}
	return v + margin
}
