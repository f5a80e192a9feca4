package pipeline

import (
	"image"

	"github.com/bryanchriswhite/CamStreamer/internal/camera"
)

// onFrame is the camera frame listener. The frame is borrowed for the
// duration of the call only.
func (p *Pipeline) onFrame(f *camera.FrameBuffer) {
	req := p.snap.Load()
	if !p.started.Load() && req == nil {
		return
	}
	p.chroma.Store(int32(f.Layout))

	// An armed snapshot takes the whole frame.
	if req != nil {
		if req = p.snap.Swap(nil); req != nil {
			p.takeSnapshot(f, req)
			return
		}
	}
	if !p.started.Load() {
		return
	}

	if p.qrEnabled.Load() {
		p.searchQR(f)
	}

	n := p.liveCounter.Add(1)
	if n < 0 {
		p.liveCounter.Store(0)
		n = 0
	}
	if d := p.dropEvery.Load(); d > 0 && n%d == 0 {
		return
	}

	p.renderLive(f)
}

// liveFrame is a display buffer tagged with the geometry it was sized for.
type liveFrame struct {
	geom *geometry
	img  *image.RGBA
}

// renderLive converts f into a new display buffer and publishes it. On
// failure the previous buffer stays.
func (p *Pipeline) renderLive(f *camera.FrameBuffer) {
	g := p.geom.Load()
	if g == nil || g.Width <= 0 || g.Height <= 0 {
		return
	}

	img, err := p.liveScaler.ToRGBA(f, g.Width, g.Height)
	if err != nil {
		p.log.Debug().Err(err).Msg("Dropping frame")
		return
	}

	// Close or Resize may have run during the conversion.
	if p.geom.Load() != g || !p.started.Load() {
		return
	}
	p.display.Store(&liveFrame{geom: g, img: img})
	if id := p.textureID.Load(); id != 0 && p.surface != nil {
		p.surface.MarkFrameAvailable(id)
	}
}
