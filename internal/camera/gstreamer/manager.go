// Package gstreamer captures V4L2 cameras through a GStreamer pipeline:
// v4l2src -> videoconvert -> videoscale -> I420/NV12 appsink.
package gstreamer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tinyzimmer/go-gst/gst"

	"github.com/bryanchriswhite/CamStreamer/internal/camera"
	"github.com/bryanchriswhite/CamStreamer/internal/logger"
)

// Provider is the provider tag of GStreamer descriptors.
const Provider = "v4l2"

// Device configures one camera. Devices not listed are discovered under
// /dev/video* with default settings.
type Device struct {
	ID           string
	Path         string
	Name         string
	MountAngle   camera.MountAngle
	Layout       camera.Layout
	Capabilities []camera.Capability
}

var defaultCapabilities = []camera.Capability{
	{Width: 640, Height: 480},
	{Width: 1280, Height: 720},
	{Width: 1920, Height: 1080},
}

// Manager enumerates V4L2 devices.
type Manager struct {
	configured []Device
	discover   bool
	log        zerolog.Logger

	mu      sync.Mutex
	devices []Device
	inited  bool
}

// NewManager creates a manager. When discover is set, /dev/video* nodes
// not covered by devices are added with generated ids.
func NewManager(devices []Device, discover bool) *Manager {
	return &Manager{
		configured: devices,
		discover:   discover,
		log:        *logger.WithComponent("gstreamer"),
	}
}

// Init initializes GStreamer and builds the device table.
func (m *Manager) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.inited {
		return nil
	}

	gst.Init(nil)

	devices := make([]Device, 0, len(m.configured))
	known := make(map[string]bool)
	for _, d := range m.configured {
		if d.ID == "" || d.Path == "" {
			return fmt.Errorf("camera entries need an id and a device path")
		}
		if d.Layout == 0 {
			d.Layout = camera.Planar
		}
		devices = append(devices, d)
		known[d.Path] = true
	}

	if m.discover {
		paths, err := filepath.Glob("/dev/video*")
		if err != nil {
			return fmt.Errorf("failed to list video devices: %w", err)
		}
		sort.Strings(paths)
		for i, path := range paths {
			if known[path] {
				continue
			}
			devices = append(devices, Device{
				ID:     fmt.Sprintf("video-%d", i),
				Path:   path,
				Name:   deviceName(path),
				Layout: camera.Planar,
			})
		}
	}

	m.devices = devices
	m.inited = true
	m.log.Info().Int("count", len(devices)).Msg("Camera manager initialized")
	return nil
}

// Count returns the number of known devices.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.devices)
}

// Describe returns the descriptor at index.
func (m *Manager) Describe(index int) (camera.Descriptor, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if index < 0 || index >= len(m.devices) {
		return camera.Descriptor{}, false
	}
	d := m.devices[index]
	name := d.Name
	if name == "" {
		name = d.Path
	}
	return camera.Descriptor{ID: d.ID, Name: name, Provider: Provider, MountAngle: d.MountAngle}, true
}

// Open returns a handle for id. The device node is only checked here; the
// pipeline is built by StartCapture.
func (m *Manager) Open(id string) (camera.Handle, error) {
	d, ok := m.find(id)
	if !ok {
		return nil, fmt.Errorf("camera %q not found", id)
	}
	if _, err := os.Stat(d.Path); err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", d.Path, err)
	}
	return newHandle(d), nil
}

// QueryCapabilities returns the configured resolutions of id, or probes
// the device caps when none are configured.
func (m *Manager) QueryCapabilities(id string) ([]camera.Capability, error) {
	d, ok := m.find(id)
	if !ok {
		return nil, fmt.Errorf("camera %q not found", id)
	}
	if len(d.Capabilities) > 0 {
		caps := make([]camera.Capability, len(d.Capabilities))
		copy(caps, d.Capabilities)
		return caps, nil
	}

	caps, err := probeCapabilities(d.Path)
	if err != nil {
		m.log.Warn().Err(err).Str("device", d.Path).Msg("Caps probe failed, using default resolutions")
		return append([]camera.Capability(nil), defaultCapabilities...), nil
	}
	return caps, nil
}

func (m *Manager) find(id string) (Device, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.devices {
		if d.ID == id {
			return d, true
		}
	}
	return Device{}, false
}

// deviceName reads the V4L2 card name from sysfs.
func deviceName(path string) string {
	data, err := os.ReadFile(filepath.Join("/sys/class/video4linux", filepath.Base(path), "name"))
	if err != nil {
		return filepath.Base(path)
	}
	return strings.TrimSpace(string(data))
}

// probeCapabilities brings a v4l2src to READY and reads the fixed
// resolutions its src pad advertises.
func probeCapabilities(path string) ([]camera.Capability, error) {
	pipeline, err := gst.NewPipelineFromString(fmt.Sprintf("v4l2src name=src device=%s ! fakesink", path))
	if err != nil {
		return nil, fmt.Errorf("failed to create probe pipeline: %w", err)
	}
	defer pipeline.SetState(gst.StateNull)

	if err := pipeline.SetState(gst.StateReady); err != nil {
		return nil, fmt.Errorf("failed to open device: %w", err)
	}

	src, err := pipeline.GetElementByName("src")
	if err != nil {
		return nil, fmt.Errorf("failed to get v4l2src: %w", err)
	}
	pad := src.GetStaticPad("src")
	if pad == nil {
		return nil, fmt.Errorf("v4l2src has no src pad")
	}
	caps := pad.QueryCaps(nil)
	if caps == nil {
		return nil, fmt.Errorf("no caps reported")
	}

	seen := make(map[camera.Capability]bool)
	var out []camera.Capability
	for i := 0; i < caps.GetSize(); i++ {
		s := caps.GetStructureAt(i)
		if s == nil || s.Name() != "video/x-raw" {
			continue
		}
		w, err := s.GetValue("width")
		if err != nil {
			continue
		}
		h, err := s.GetValue("height")
		if err != nil {
			continue
		}
		wi, ok1 := w.(int)
		hi, ok2 := h.(int)
		if !ok1 || !ok2 {
			// ranges are skipped
			continue
		}
		c := camera.Capability{Width: wi, Height: hi}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no fixed raw resolutions advertised")
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Area() < out[j].Area() })
	return out, nil
}
