package commands

import (
	"fmt"

	"github.com/bryanchriswhite/CamStreamer/internal/config"
	"github.com/bryanchriswhite/CamStreamer/internal/overlay"
	"github.com/bryanchriswhite/CamStreamer/internal/pipeline"
)

// newOverlay builds the preview overlay from config. It returns nil when
// the overlay is disabled.
func newOverlay(cfg config.OverlayConfig, pipe *pipeline.Pipeline) (*overlay.Manager, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	mgr := overlay.NewManager()

	if cfg.Status {
		anchor, _ := overlay.ParseAnchor(cfg.StatusAnchor)
		status := overlay.NewDynamicTextWidget("status", func() string {
			return statusLine(pipe.State())
		}, anchor, 8, 8)
		if err := mgr.AddWidget(status); err != nil {
			return nil, err
		}
	}

	if cfg.QR {
		w := overlay.NewQRWidget("qr", cfg.QRHold)
		if err := mgr.AddWidget(w); err != nil {
			return nil, err
		}
		// The channel closes when the pipeline shuts down.
		ch := pipe.SubscribeQR()
		go func() {
			for ev := range ch {
				w.Observe(ev.Text)
			}
		}()
	}

	for _, l := range cfg.Labels {
		anchor, _ := overlay.ParseAnchor(l.Anchor)
		if err := mgr.AddWidget(overlay.NewTextWidget(l.ID, l.Text, anchor, l.X, l.Y)); err != nil {
			return nil, err
		}
	}
	return mgr, nil
}

func statusLine(st pipeline.State) string {
	if !st.Open() {
		return ""
	}
	return fmt.Sprintf("%s  %dx%d  rot %d", st.CameraID, st.Width, st.Height, st.DisplayRotation)
}
