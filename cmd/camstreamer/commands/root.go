package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bryanchriswhite/CamStreamer/internal/config"
	"github.com/bryanchriswhite/CamStreamer/internal/logger"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "camstreamer",
		Short: "CamStreamer - camera preview, QR scanning and snapshots over HTTP",
		Long: `CamStreamer drives a camera through a frame pipeline that renders a
throttled live preview, scans for QR codes and takes full resolution
snapshots.

Features:
  • V4L2 capture through GStreamer, or a synthetic test pattern
  • Live preview as an MJPEG stream
  • QR code detection pushed over WebSocket
  • Snapshots oriented for the display rotation
  • REST API for session control`,
		SilenceUsage: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/camstreamer/config.yaml)")
	rootCmd.PersistentFlags().Int("port", 0, "server port (default is 8080)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("backend", "", "camera backend (gstreamer or synthetic)")

	// Bind flags to viper
	viper.BindPFlag("server.port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("device.backend", rootCmd.PersistentFlags().Lookup("backend"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// loadConfig opens the config file, applies flag overrides and
// initializes logging.
func loadConfig() (*config.Manager, error) {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if port := viper.GetInt("server.port"); port > 0 {
		configMgr.SetPort(port)
	}
	if level := viper.GetString("logging.level"); level != "" {
		configMgr.SetLogLevel(level)
	}
	if backend := viper.GetString("device.backend"); backend != "" {
		switch backend {
		case config.BackendGStreamer, config.BackendSynthetic:
			configMgr.SetBackend(backend)
		default:
			return nil, fmt.Errorf("unknown backend %q (use %s or %s)", backend, config.BackendGStreamer, config.BackendSynthetic)
		}
	}

	cfg := configMgr.Get()
	logger.Init(cfg.Logging.Level, cfg.Logging.Pretty)
	return configMgr, nil
}
