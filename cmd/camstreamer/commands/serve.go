package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/CamStreamer/internal/api"
	"github.com/bryanchriswhite/CamStreamer/internal/config"
	"github.com/bryanchriswhite/CamStreamer/internal/display"
	"github.com/bryanchriswhite/CamStreamer/internal/logger"
	"github.com/bryanchriswhite/CamStreamer/internal/output"
	"github.com/bryanchriswhite/CamStreamer/internal/pipeline"
	"github.com/bryanchriswhite/CamStreamer/internal/qr"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the CamStreamer server",
	Long: `Start the CamStreamer HTTP server.

The server exposes the REST API for opening cameras and controlling
capture, WebSocket event streams for state and QR results, and the live
preview as an MJPEG stream.`,
	Example: `  # Start server on default port (8080)
  camstreamer serve

  # Use the synthetic test pattern instead of real cameras
  camstreamer serve --backend synthetic

  # Open a camera right away with a 1280x720 view
  camstreamer serve --camera back-0 --width 1280 --height 720

  # Start with debug logging
  camstreamer serve --log-level debug`,
	RunE: runServe,
}

var (
	serveCamera string
	serveWidth  int
	serveHeight int
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveCamera, "camera", "", "camera id to open at startup")
	serveCmd.Flags().IntVar(&serveWidth, "width", 1280, "view width used with --camera")
	serveCmd.Flags().IntVar(&serveHeight, "height", -1, "view height used with --camera (-1 keeps the camera aspect)")
}

func runServe(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := configMgr.Get()
	log := logger.WithComponent("serve")
	log.Info().
		Str("config", configMgr.GetConfigPath()).
		Str("backend", cfg.Device.Backend).
		Msg("Configuration loaded")

	manager, err := newCameraManager(cfg)
	if err != nil {
		return err
	}

	rotation, err := display.Open(cfg.Display.Rotation, cfg.Display.StaticRotation)
	if err != nil {
		return fmt.Errorf("failed to open rotation source: %w", err)
	}
	defer rotation.Close()

	mjpegOut := output.NewMJPEGOutput(output.Config{
		Quality: cfg.Server.StreamQuality,
		MaxFPS:  cfg.Server.StreamMaxFPS,
	})
	if err := mjpegOut.Start(); err != nil {
		return fmt.Errorf("failed to start MJPEG output: %w", err)
	}
	defer mjpegOut.Stop()

	surface := output.NewSurface(mjpegOut, output.Config{MaxFPS: cfg.Server.StreamMaxFPS})
	defer surface.Close()

	opts, err := cfg.PipelineOptions()
	if err != nil {
		return err
	}
	pipe := pipeline.New(manager, qr.NewDecoder(cfg.Pipeline.QRTryHarder), rotation, surface, opts)
	defer pipe.Shutdown()

	ov, err := newOverlay(cfg.Overlay, pipe)
	if err != nil {
		return fmt.Errorf("failed to build overlay: %w", err)
	}
	if ov != nil {
		surface.SetOverlay(ov)
	}

	configMgr.Watch(func(c *config.Config) {
		pipe.UpdateTunables(c.Tunables())
	})

	if serveCamera != "" {
		pipe.Register(serveCamera)
		st := pipe.StartCapture(serveWidth, serveHeight)
		if st.Status != pipeline.SessionCapturing {
			return fmt.Errorf("failed to start camera %s: %s", serveCamera, st.Error)
		}
	}

	server := api.NewServer(pipe, configMgr, mjpegOut)
	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	log.Info().
		Str("stream", fmt.Sprintf("http://localhost:%d/", cfg.Server.Port)).
		Str("api", fmt.Sprintf("http://localhost:%d/api", cfg.Server.Port)).
		Msg("CamStreamer is running, press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	log.Info().Msg("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
