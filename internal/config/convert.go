package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bryanchriswhite/CamStreamer/internal/camera"
	"github.com/bryanchriswhite/CamStreamer/internal/camera/synthetic"
	"github.com/bryanchriswhite/CamStreamer/internal/display"
	"github.com/bryanchriswhite/CamStreamer/internal/overlay"
	"github.com/bryanchriswhite/CamStreamer/internal/pipeline"
	"github.com/bryanchriswhite/CamStreamer/internal/snapshot"
	"github.com/bryanchriswhite/CamStreamer/internal/yuv"
)

// Backends
const (
	BackendGStreamer = "gstreamer"
	BackendSynthetic = "synthetic"
)

// Validate checks every value that is parsed later, so a bad file is
// rejected at load time instead of when a camera opens.
func (c *Config) Validate() error {
	switch c.Device.Backend {
	case BackendGStreamer, BackendSynthetic:
	default:
		return fmt.Errorf("device.backend: unknown backend %q", c.Device.Backend)
	}

	seen := make(map[string]bool)
	for i, cam := range c.Device.Cameras {
		if cam.ID == "" {
			return fmt.Errorf("device.cameras[%d]: missing id", i)
		}
		if seen[cam.ID] {
			return fmt.Errorf("device.cameras[%d]: duplicate id %q", i, cam.ID)
		}
		seen[cam.ID] = true
		if _, err := cam.Descriptor(""); err != nil {
			return fmt.Errorf("device.cameras[%d]: %w", i, err)
		}
		if _, err := cam.ChromaLayout(); err != nil {
			return fmt.Errorf("device.cameras[%d]: %w", i, err)
		}
		if _, err := ParseCapabilities(cam.Capabilities); err != nil {
			return fmt.Errorf("device.cameras[%d]: %w", i, err)
		}
	}

	if _, err := c.PipelineOptions(); err != nil {
		return err
	}
	if _, err := display.Normalize(c.Display.StaticRotation); err != nil {
		return fmt.Errorf("display.static_rotation: %w", err)
	}
	switch c.Display.Rotation {
	case "", "static", "randr", "x11", "sensor", "iio":
	default:
		return fmt.Errorf("display.rotation: unknown source %q", c.Display.Rotation)
	}

	if _, ok := overlay.ParseAnchor(c.Overlay.StatusAnchor); !ok {
		return fmt.Errorf("overlay.status_anchor: unknown anchor %q", c.Overlay.StatusAnchor)
	}
	labels := make(map[string]bool)
	for i, l := range c.Overlay.Labels {
		if l.ID == "" || labels[l.ID] {
			return fmt.Errorf("overlay.labels[%d]: missing or duplicate id", i)
		}
		labels[l.ID] = true
		if _, ok := overlay.ParseAnchor(l.Anchor); !ok {
			return fmt.Errorf("overlay.labels[%d]: unknown anchor %q", i, l.Anchor)
		}
	}
	return nil
}

// Descriptor builds the camera descriptor for provider.
func (c CameraConfig) Descriptor(provider string) (camera.Descriptor, error) {
	mount := camera.MountAngle(c.MountAngle)
	if !mount.Valid() {
		return camera.Descriptor{}, fmt.Errorf("invalid mount angle %d", c.MountAngle)
	}
	name := c.Name
	if name == "" {
		name = c.ID
	}
	return camera.Descriptor{ID: c.ID, Name: name, Provider: provider, MountAngle: mount}, nil
}

// ChromaLayout parses Layout. Empty means planar.
func (c CameraConfig) ChromaLayout() (camera.Layout, error) {
	return camera.ParseLayout(c.Layout)
}

// ParseCapability parses "WIDTHxHEIGHT".
func ParseCapability(s string) (camera.Capability, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return camera.Capability{}, fmt.Errorf("invalid capability %q, want WIDTHxHEIGHT", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return camera.Capability{}, fmt.Errorf("invalid capability %q: %w", s, err)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return camera.Capability{}, fmt.Errorf("invalid capability %q: %w", s, err)
	}
	if width <= 0 || height <= 0 {
		return camera.Capability{}, fmt.Errorf("invalid capability %q", s)
	}
	return camera.Capability{Width: width, Height: height}, nil
}

// ParseCapabilities parses every entry of list.
func ParseCapabilities(list []string) ([]camera.Capability, error) {
	caps := make([]camera.Capability, 0, len(list))
	for _, s := range list {
		c, err := ParseCapability(s)
		if err != nil {
			return nil, err
		}
		caps = append(caps, c)
	}
	return caps, nil
}

// PipelineOptions converts the pipeline and snapshot sections.
func (c *Config) PipelineOptions() (pipeline.Options, error) {
	p := c.Pipeline
	policy, err := camera.ParsePolicy(p.Policy)
	if err != nil {
		return pipeline.Options{}, fmt.Errorf("pipeline.policy: %w", err)
	}
	filter, err := yuv.ParseFilter(p.Filter)
	if err != nil {
		return pipeline.Options{}, fmt.Errorf("pipeline.filter: %w", err)
	}
	enc, err := snapshot.New(c.Snapshot.Format, c.Snapshot.Quality)
	if err != nil {
		return pipeline.Options{}, fmt.Errorf("snapshot.format: %w", err)
	}
	if p.MinWorkingSize < 0 || p.Margin < 0 {
		return pipeline.Options{}, fmt.Errorf("pipeline: min_working_size and margin must not be negative")
	}
	// A negative drop_every disables the live throttle; 1 would drop every frame.
	if p.DropEvery == 0 || p.DropEvery == 1 {
		return pipeline.Options{}, fmt.Errorf("pipeline.drop_every: %d would stall the live view, use >= 2 or negative to disable", p.DropEvery)
	}
	if p.QRIntervalPlanar <= 0 || p.QRIntervalSemiPlanar <= 0 {
		return pipeline.Options{}, fmt.Errorf("pipeline: qr intervals must be positive")
	}

	return pipeline.Options{
		DropEvery:              p.DropEvery,
		QRIntervalPlanar:       p.QRIntervalPlanar,
		QRIntervalSemiPlanar:   p.QRIntervalSemiPlanar,
		QRWidth:                p.QRWidth,
		QRHeight:               p.QRHeight,
		AsyncQR:                p.AsyncQR,
		MinWorkingSize:         p.MinWorkingSize,
		Margin:                 p.Margin,
		Policy:                 policy,
		Filter:                 filter,
		DrainTimeoutPlanar:     p.DrainTimeoutPlanar,
		DrainTimeoutSemiPlanar: p.DrainTimeoutSemiPlanar,
		Encoder:                enc,
		MirrorFront:            c.Snapshot.MirrorFront,
	}, nil
}

// Tunables returns the pipeline values that may change at runtime.
func (c *Config) Tunables() pipeline.Tunables {
	return pipeline.Tunables{
		DropEvery:            c.Pipeline.DropEvery,
		QRIntervalPlanar:     c.Pipeline.QRIntervalPlanar,
		QRIntervalSemiPlanar: c.Pipeline.QRIntervalSemiPlanar,
	}
}

// SyntheticCameras converts the camera list for the synthetic backend.
// An empty list yields synthetic.DefaultCameras.
func (c *Config) SyntheticCameras() ([]synthetic.Camera, error) {
	if len(c.Device.Cameras) == 0 {
		return synthetic.DefaultCameras(), nil
	}
	cams := make([]synthetic.Camera, 0, len(c.Device.Cameras))
	for _, cc := range c.Device.Cameras {
		d, err := cc.Descriptor(synthetic.Provider)
		if err != nil {
			return nil, err
		}
		layout, err := cc.ChromaLayout()
		if err != nil {
			return nil, err
		}
		caps, err := ParseCapabilities(cc.Capabilities)
		if err != nil {
			return nil, err
		}
		if len(caps) == 0 {
			caps = []camera.Capability{{Width: 640, Height: 480}, {Width: 1280, Height: 720}}
		}
		cams = append(cams, synthetic.Camera{Descriptor: d, Capabilities: caps, Layout: layout})
	}
	return cams, nil
}
