package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/bryanchriswhite/CamStreamer/internal/logger"
)

// Config is the on-disk configuration.
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
	Device   DeviceConfig   `json:"device" yaml:"device"`
	Pipeline PipelineConfig `json:"pipeline" yaml:"pipeline"`
	Snapshot SnapshotConfig `json:"snapshot" yaml:"snapshot"`
	Display  DisplayConfig  `json:"display" yaml:"display"`
	Overlay  OverlayConfig  `json:"overlay" yaml:"overlay"`
}

// ServerConfig controls the HTTP control surface and MJPEG stream
type ServerConfig struct {
	Port          int `json:"port" yaml:"port"`
	StreamQuality int `json:"stream_quality" yaml:"stream_quality"`
	StreamMaxFPS  int `json:"stream_max_fps" yaml:"stream_max_fps"`
}

// LoggingConfig controls zerolog output
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Pretty bool   `json:"pretty" yaml:"pretty"`
}

// DeviceConfig selects the camera backend and describes known cameras
type DeviceConfig struct {
	// Backend is "gstreamer" or "synthetic".
	Backend   string          `json:"backend" yaml:"backend"`
	Discover  bool            `json:"discover" yaml:"discover"`
	Cameras   []CameraConfig  `json:"cameras" yaml:"cameras"`
	Synthetic SyntheticConfig `json:"synthetic" yaml:"synthetic"`
}

// CameraConfig describes one camera. Capabilities are "WxH" strings.
type CameraConfig struct {
	ID           string   `json:"id" yaml:"id"`
	Path         string   `json:"path,omitempty" yaml:"path,omitempty"`
	Name         string   `json:"name,omitempty" yaml:"name,omitempty"`
	MountAngle   int      `json:"mount_angle" yaml:"mount_angle"`
	Layout       string   `json:"layout,omitempty" yaml:"layout,omitempty"`
	Capabilities []string `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
}

// SyntheticConfig drives the test-pattern backend
type SyntheticConfig struct {
	FPS       int    `json:"fps" yaml:"fps"`
	QRPayload string `json:"qr_payload" yaml:"qr_payload"`
	Label     bool   `json:"label" yaml:"label"`
}

// PipelineConfig holds frame pipeline tunables
type PipelineConfig struct {
	// DropEvery skips every Nth live frame. Negative disables the throttle.
	DropEvery              int           `json:"drop_every" yaml:"drop_every"`
	QRIntervalPlanar       int           `json:"qr_interval_planar" yaml:"qr_interval_planar"`
	QRIntervalSemiPlanar   int           `json:"qr_interval_semi_planar" yaml:"qr_interval_semi_planar"`
	QRWidth                int           `json:"qr_width" yaml:"qr_width"`
	QRHeight               int           `json:"qr_height" yaml:"qr_height"`
	QRTryHarder            bool          `json:"qr_try_harder" yaml:"qr_try_harder"`
	AsyncQR                bool          `json:"async_qr" yaml:"async_qr"`
	MinWorkingSize         int           `json:"min_working_size" yaml:"min_working_size"`
	Margin                 int           `json:"margin" yaml:"margin"`
	Policy                 string        `json:"policy" yaml:"policy"`
	Filter                 string        `json:"filter" yaml:"filter"`
	DrainTimeoutPlanar     time.Duration `json:"drain_timeout_planar" yaml:"drain_timeout_planar"`
	DrainTimeoutSemiPlanar time.Duration `json:"drain_timeout_semi_planar" yaml:"drain_timeout_semi_planar"`
}

// SnapshotConfig controls still image encoding
type SnapshotConfig struct {
	Format      string `json:"format" yaml:"format"`
	Quality     int    `json:"quality" yaml:"quality"`
	MirrorFront bool   `json:"mirror_front" yaml:"mirror_front"`
}

// DisplayConfig selects where display rotation comes from
type DisplayConfig struct {
	// Rotation is "static", "randr" or "sensor".
	Rotation       string `json:"rotation" yaml:"rotation"`
	StaticRotation int    `json:"static_rotation" yaml:"static_rotation"`
}

// OverlayConfig controls widgets drawn over the MJPEG preview
type OverlayConfig struct {
	Enabled      bool          `json:"enabled" yaml:"enabled"`
	Status       bool          `json:"status" yaml:"status"`
	StatusAnchor string        `json:"status_anchor" yaml:"status_anchor"`
	QR           bool          `json:"qr" yaml:"qr"`
	QRHold       time.Duration `json:"qr_hold" yaml:"qr_hold"`
	Labels       []LabelConfig `json:"labels" yaml:"labels"`
}

// LabelConfig is a fixed text widget
type LabelConfig struct {
	ID     string `json:"id" yaml:"id"`
	Text   string `json:"text" yaml:"text"`
	Anchor string `json:"anchor,omitempty" yaml:"anchor,omitempty"`
	X      int    `json:"x" yaml:"x"`
	Y      int    `json:"y" yaml:"y"`
}

// Defaults returns the default configuration
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          8080,
			StreamQuality: 90,
			StreamMaxFPS:  30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
		Device: DeviceConfig{
			Backend:  "gstreamer",
			Discover: true,
			Cameras:  []CameraConfig{},
			Synthetic: SyntheticConfig{
				FPS:   30,
				Label: true,
			},
		},
		Pipeline: PipelineConfig{
			DropEvery:              3,
			QRIntervalPlanar:       15,
			QRIntervalSemiPlanar:   30,
			QRWidth:                1280,
			QRHeight:               720,
			QRTryHarder:            true,
			AsyncQR:                true,
			MinWorkingSize:         500,
			Margin:                 100,
			Policy:                 "largest-area",
			Filter:                 "nearest",
			DrainTimeoutPlanar:     2 * time.Second,
			DrainTimeoutSemiPlanar: 100 * time.Second,
		},
		Snapshot: SnapshotConfig{
			Format:      "jpeg",
			Quality:     90,
			MirrorFront: true,
		},
		Display: DisplayConfig{
			Rotation: "static",
		},
		Overlay: OverlayConfig{
			Enabled:      true,
			Status:       true,
			StatusAnchor: "top-left",
			QR:           true,
			QRHold:       3 * time.Second,
			Labels:       []LabelConfig{},
		},
	}
}

// Manager handles configuration
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// DefaultPath returns $HOME/.config/camstreamer/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "camstreamer", "config.yaml"), nil
}

// NewManager creates a configuration manager. An empty configFile means
// DefaultPath. A missing file is created with defaults.
func NewManager(configFile string) (*Manager, error) {
	actualConfigPath := configFile
	if actualConfigPath == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		actualConfigPath = p
	}

	m := &Manager{
		configPath: actualConfigPath,
	}

	if err := m.load(); err != nil {
		if os.IsNotExist(err) {
			logger.WithComponent("config").Info().
				Str("path", m.configPath).
				Msg("Config file not found, creating new config")
			m.config = Defaults()
			if err := m.Save(); err != nil {
				return nil, fmt.Errorf("failed to create default config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	logger.WithComponent("config").Info().
		Str("path", m.configPath).
		Str("backend", m.config.Device.Backend).
		Int("cameras", len(m.config.Device.Cameras)).
		Msg("Config loaded")

	return m, nil
}

// load reads the configuration from disk. Keys missing from the file keep
// their default values.
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Device.Cameras == nil {
		cfg.Device.Cameras = []CameraConfig{}
	}
	if cfg.Overlay.Labels == nil {
		cfg.Overlay.Labels = []LabelConfig{}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// Reload re-reads the file. On error the previous configuration is kept.
func (m *Manager) Reload() error {
	return m.load()
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return Defaults()
	}

	cfg := *m.config
	cfg.Device.Cameras = make([]CameraConfig, len(m.config.Device.Cameras))
	for i, c := range m.config.Device.Cameras {
		c.Capabilities = append([]string(nil), c.Capabilities...)
		cfg.Device.Cameras[i] = c
	}
	cfg.Overlay.Labels = append([]LabelConfig{}, m.config.Overlay.Labels...)
	return &cfg
}

// Save saves the current configuration to disk
func (m *Manager) Save() error {
	m.mu.RLock()
	cfg := m.config
	m.mu.RUnlock()

	if cfg == nil {
		cfg = Defaults()
	}

	log := logger.WithComponent("config")
	log.Debug().Str("path", m.configPath).Msg("Saving config")

	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		log.Error().Err(err).Str("config_dir", configDir).Msg("Failed to create config directory")
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal config")
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		log.Error().Err(err).Str("path", m.configPath).Msg("Failed to write config")
		return err
	}

	log.Info().Str("path", m.configPath).Msg("Config saved successfully")
	return nil
}

// Update replaces the entire configuration and saves it
func (m *Manager) Update(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return m.Save()
}

// SetPort overrides the server port for this run without saving.
func (m *Manager) SetPort(port int) {
	m.mu.Lock()
	m.config.Server.Port = port
	m.mu.Unlock()
}

// SetLogLevel overrides the log level for this run without saving.
func (m *Manager) SetLogLevel(level string) {
	m.mu.Lock()
	m.config.Logging.Level = level
	m.mu.Unlock()
}

// SetBackend overrides the camera backend for this run without saving.
func (m *Manager) SetBackend(backend string) {
	m.mu.Lock()
	m.config.Device.Backend = backend
	m.mu.Unlock()
}

// GetConfigPath returns the path to the config file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// Watch reloads the file whenever it changes on disk and passes the new
// configuration to onChange. Invalid edits are logged and ignored.
func (m *Manager) Watch(onChange func(*Config)) {
	log := logger.WithComponent("config")

	v := viper.New()
	v.SetConfigFile(m.configPath)
	v.SetConfigType("yaml")
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		if err := m.Reload(); err != nil {
			log.Warn().Err(err).Str("path", e.Name).Msg("Ignoring invalid config change")
			return
		}
		log.Info().Str("path", e.Name).Msg("Config reloaded")
		if onChange != nil {
			onChange(m.Get())
		}
	})
	v.WatchConfig()
}
