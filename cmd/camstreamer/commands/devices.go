package commands

import (
	"fmt"

	"github.com/bryanchriswhite/CamStreamer/internal/camera"
	"github.com/bryanchriswhite/CamStreamer/internal/camera/gstreamer"
	"github.com/bryanchriswhite/CamStreamer/internal/camera/synthetic"
	"github.com/bryanchriswhite/CamStreamer/internal/config"
)

// newCameraManager builds the backend selected by cfg.
func newCameraManager(cfg *config.Config) (camera.Manager, error) {
	switch cfg.Device.Backend {
	case config.BackendSynthetic:
		cams, err := cfg.SyntheticCameras()
		if err != nil {
			return nil, err
		}
		return synthetic.NewManager(cams,
			synthetic.WithFPS(cfg.Device.Synthetic.FPS),
			synthetic.WithQRPayload(cfg.Device.Synthetic.QRPayload),
			synthetic.WithLabel(cfg.Device.Synthetic.Label),
		), nil

	case config.BackendGStreamer:
		devices := make([]gstreamer.Device, 0, len(cfg.Device.Cameras))
		for _, c := range cfg.Device.Cameras {
			d, err := c.Descriptor(gstreamer.Provider)
			if err != nil {
				return nil, fmt.Errorf("camera %s: %w", c.ID, err)
			}
			layout, err := c.ChromaLayout()
			if err != nil {
				return nil, fmt.Errorf("camera %s: %w", c.ID, err)
			}
			caps, err := config.ParseCapabilities(c.Capabilities)
			if err != nil {
				return nil, fmt.Errorf("camera %s: %w", c.ID, err)
			}
			devices = append(devices, gstreamer.Device{
				ID:           d.ID,
				Path:         c.Path,
				Name:         c.Name,
				MountAngle:   d.MountAngle,
				Layout:       layout,
				Capabilities: caps,
			})
		}
		return gstreamer.NewManager(devices, cfg.Device.Discover), nil

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Device.Backend)
	}
}
