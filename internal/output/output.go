package output

import (
	"image"
)

// Output defines the interface for frame output mechanisms. The texture
// Surface renders published display buffers into one.
type Output interface {
	// Start initializes the output mechanism
	Start() error

	// Stop cleanly shuts down the output
	Stop() error

	// WriteFrame sends a frame to the output
	WriteFrame(frame *image.RGBA) error

	// Name returns a human-readable name for this output type
	Name() string

	// IsRunning returns true if the output is currently active
	IsRunning() bool
}

// Config holds common configuration for all output types
type Config struct {
	// Quality is the JPEG quality of encoded frames.
	Quality int
	// MaxFPS caps how often frames are rendered. Zero renders every frame
	// marked available.
	MaxFPS int
}
