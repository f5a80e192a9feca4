package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/CamStreamer/internal/display"
	"github.com/bryanchriswhite/CamStreamer/internal/pipeline"
	"github.com/bryanchriswhite/CamStreamer/internal/snapshot"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot CAMERA",
	Short: "Capture a single still image",
	Long: `Open a camera, wait for the next frame and write it to a file at the
camera's native resolution, oriented for the current display rotation.`,
	Example: `  # Write a snapshot of the back camera to snapshot.jpg
  camstreamer snapshot back-0

  # Write a PNG with a longer wait for the first frame
  camstreamer snapshot front-1 --out front.png --timeout 30s`,
	Args: cobra.ExactArgs(1),
	RunE: runSnapshot,
}

var (
	snapshotOut     string
	snapshotTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(snapshotCmd)

	snapshotCmd.Flags().StringVarP(&snapshotOut, "out", "o", "snapshot.jpg", "output file")
	snapshotCmd.Flags().DurationVar(&snapshotTimeout, "timeout", 10*time.Second, "how long to wait for a frame")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := configMgr.Get()

	manager, err := newCameraManager(cfg)
	if err != nil {
		return err
	}
	rotation, err := display.Open(cfg.Display.Rotation, cfg.Display.StaticRotation)
	if err != nil {
		return fmt.Errorf("failed to open rotation source: %w", err)
	}
	defer rotation.Close()

	opts, err := cfg.PipelineOptions()
	if err != nil {
		return err
	}
	pipe := pipeline.New(manager, nil, rotation, nil, opts)
	defer pipe.Shutdown()

	if !pipe.Open(args[0]) {
		return fmt.Errorf("failed to open camera %s: %w", args[0], pipe.LastErr())
	}
	if st := pipe.StartCapture(cfg.Pipeline.MinWorkingSize, -1); st.Status != pipeline.SessionCapturing {
		return fmt.Errorf("failed to start camera %s: %w", args[0], pipe.LastErr())
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), snapshotTimeout)
	defer cancel()
	snap, err := pipe.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot failed: %w", err)
	}
	if err := pipe.StopCapture(); err != nil {
		return err
	}

	data, err := snapshot.Bytes(snap.Image)
	if err != nil {
		return err
	}
	if err := os.WriteFile(snapshotOut, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	fmt.Printf("Wrote %dx%d snapshot %s to %s\n", snap.Width, snap.Height, snap.ID, snapshotOut)
	return nil
}
