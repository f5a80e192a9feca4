package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bryanchriswhite/CamStreamer/internal/camera"
)

func TestFitCaptureScenario(t *testing.T) {
	tests := []struct {
		name  string
		w, h  int
		mount camera.MountAngle
		c     camera.Capability
		want  geometry
	}{
		{"derived height", 800, -1, 0, camera.Capability{Width: 1920, Height: 1080}, geometry{900, 506}},
		{"small view uses minimum box", 200, 100, 0, camera.Capability{Width: 1920, Height: 1080}, geometry{500, 281}},
		{"rotated mount", 400, -1, 90, camera.Capability{Width: 1920, Height: 1080}, geometry{455, 810}},
		{"height bound", 2000, 300, 0, camera.Capability{Width: 640, Height: 480}, geometry{666, 500}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fitCapture(tt.w, tt.h, tt.mount, tt.c, 500, 100))
		})
	}

	assert.Equal(t, geometry{}, fitCapture(800, 600, 0, camera.Capability{}, 500, 100))
}

func TestFitCaptureBoundsAndAspect(t *testing.T) {
	caps := []camera.Capability{
		{Width: 1920, Height: 1080},
		{Width: 640, Height: 480},
		{Width: 2592, Height: 1944},
		{Width: 720, Height: 1280},
	}
	mounts := []camera.MountAngle{0, 90, 180, 270}

	for _, c := range caps {
		for _, mount := range mounts {
			cw, ch := c.Width, c.Height
			if mount.Swapped() {
				cw, ch = ch, cw
			}
			tolerance := cw
			if ch > tolerance {
				tolerance = ch
			}

			for w := 1; w < 2400; w += 37 {
				for h := 0; h < 1800; h += 41 {
					g := fitCapture(w, h, mount, c, 500, 100)

					assert.LessOrEqual(t, g.Width, pad(w, 500, 100))
					assert.LessOrEqual(t, g.Height, pad(h, 500, 100))

					skew := cw*g.Height - ch*g.Width
					if skew < 0 {
						skew = -skew
					}
					if !assert.Less(t, skew, tolerance, "cap %s mount %d view %dx%d -> %dx%d", c, mount, w, h, g.Width, g.Height) {
						return
					}
				}
			}
		}
	}
}
