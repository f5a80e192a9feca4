package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/CamStreamer/internal/camera"
	"github.com/bryanchriswhite/CamStreamer/internal/yuv"
)

func TestNewManagerCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	m, err := NewManager(path)
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Equal(t, path, m.GetConfigPath())

	cfg := m.Get()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, BackendGStreamer, cfg.Device.Backend)
	assert.Equal(t, 3, cfg.Pipeline.DropEvery)
	assert.Equal(t, 100*time.Second, cfg.Pipeline.DrainTimeoutSemiPlanar)

	// A second manager reads back what the first wrote
	again, err := NewManager(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again.Get())
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
device:
  backend: synthetic
  cameras:
    - id: front-1
      mount_angle: 270
      layout: nv12
      capabilities: ["640x480", "1280X720"]
pipeline:
  qr_interval_planar: 10
  drain_timeout_planar: 500ms
snapshot:
  mirror_front: false
`), 0644))

	m, err := NewManager(path)
	require.NoError(t, err)
	cfg := m.Get()

	assert.Equal(t, BackendSynthetic, cfg.Device.Backend)
	assert.Equal(t, 10, cfg.Pipeline.QRIntervalPlanar)
	assert.Equal(t, 30, cfg.Pipeline.QRIntervalSemiPlanar)
	assert.Equal(t, 500*time.Millisecond, cfg.Pipeline.DrainTimeoutPlanar)
	assert.False(t, cfg.Snapshot.MirrorFront)
	assert.Equal(t, 90, cfg.Snapshot.Quality)

	cams, err := cfg.SyntheticCameras()
	require.NoError(t, err)
	require.Len(t, cams, 1)
	assert.Equal(t, camera.SemiPlanar, cams[0].Layout)
	assert.Equal(t, camera.MountAngle(270), cams[0].Descriptor.MountAngle)
	assert.Equal(t, []camera.Capability{{Width: 640, Height: 480}, {Width: 1280, Height: 720}}, cams[0].Capabilities)
}

func TestInvalidFileIsRejected(t *testing.T) {
	tests := map[string]string{
		"syntax":      "server: [",
		"backend":     "device:\n  backend: usb\n",
		"mount angle": "device:\n  cameras:\n    - id: a\n      mount_angle: 45\n",
		"duplicate":   "device:\n  cameras:\n    - id: a\n    - id: a\n",
		"capability":  "device:\n  cameras:\n    - id: a\n      capabilities: [\"wide\"]\n",
		"policy":      "pipeline:\n  policy: best\n",
		"format":      "snapshot:\n  format: gif\n",
		"rotation":    "display:\n  static_rotation: 45\n",
		"anchor":      "overlay:\n  status_anchor: middle\n",
		"label id":    "overlay:\n  labels:\n    - text: hi\n",
		"drop all":    "pipeline:\n  drop_every: 1\n",
		"drop zero":   "pipeline:\n  drop_every: 0\n",
		"qr interval": "pipeline:\n  qr_interval_semi_planar: -5\n",
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0644))
			_, err := NewManager(path)
			assert.Error(t, err)
		})
	}
}

func TestNegativeDropEveryDisablesThrottle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  drop_every: -1\n"), 0644))

	m, err := NewManager(path)
	require.NoError(t, err)
	assert.Equal(t, -1, m.Get().Tunables().DropEvery)
}

func TestGetReturnsCopy(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	cfg := m.Get()
	cfg.Device.Cameras = append(cfg.Device.Cameras, CameraConfig{ID: "x"})
	cfg.Server.Port = 1
	assert.Empty(t, m.Get().Device.Cameras)
	assert.Equal(t, 8080, m.Get().Server.Port)

	m.SetPort(9090)
	m.SetBackend(BackendSynthetic)
	assert.Equal(t, 9090, m.Get().Server.Port)
	assert.Equal(t, BackendSynthetic, m.Get().Device.Backend)
}

func TestUpdateValidatesAndSaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	m, err := NewManager(path)
	require.NoError(t, err)

	bad := m.Get()
	bad.Pipeline.Filter = "lanczos"
	assert.Error(t, m.Update(bad))

	good := m.Get()
	good.Pipeline.Filter = "bilinear"
	require.NoError(t, m.Update(good))

	reread, err := NewManager(path)
	require.NoError(t, err)
	opts, err := reread.Get().PipelineOptions()
	require.NoError(t, err)
	assert.Equal(t, yuv.Bilinear, opts.Filter)
	assert.Equal(t, camera.PolicyLargestArea, opts.Policy)
	assert.NotNil(t, opts.Encoder)
	assert.True(t, opts.MirrorFront)
}

func TestParseCapability(t *testing.T) {
	c, err := ParseCapability(" 1920x1080 ")
	require.NoError(t, err)
	assert.Equal(t, camera.Capability{Width: 1920, Height: 1080}, c)

	for _, s := range []string{"", "1920", "0x10", "ax1", "10x-1"} {
		_, err := ParseCapability(s)
		assert.Error(t, err, s)
	}
}

func TestWatchReloadsTunables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	m, err := NewManager(path)
	require.NoError(t, err)

	changes := make(chan *Config, 4)
	m.Watch(func(cfg *Config) {
		select {
		case changes <- cfg:
		default:
		}
	})

	cfg := m.Get()
	cfg.Pipeline.DropEvery = 5
	require.NoError(t, m.Update(cfg))

	select {
	case got := <-changes:
		assert.Equal(t, 5, got.Tunables().DropEvery)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after config write")
	}
}
