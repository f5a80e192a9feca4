package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// Logger is the global logger instance
	Logger zerolog.Logger
)

func init() {
	// Info level, JSON to stdout until Init is called from the CLI
	Logger = newLogger(os.Stdout)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = Logger
}

// ParseLevel maps a config/flag level name to a zerolog level.
// Unknown names fall back to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Init initializes the global logger with the specified level and output
func Init(level string, pretty bool) {
	var output io.Writer = os.Stdout
	if pretty {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}
	InitWithWriter(output, level)
}

// InitWithWriter points the global logger at w. Tests use it to capture
// log output.
func InitWithWriter(w io.Writer, level string) {
	zerolog.SetGlobalLevel(ParseLevel(level))
	Logger = newLogger(w)
	log.Logger = Logger
}

func newLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).
		With().
		Timestamp().
		Caller().
		Logger()
}

// Get returns the global logger instance
func Get() *zerolog.Logger {
	return &Logger
}

// WithComponent returns a logger with a component field set
func WithComponent(component string) *zerolog.Logger {
	l := Logger.With().Str("component", component).Logger()
	return &l
}

// WithCamera returns a component logger tagged with a camera id.
func WithCamera(component, cameraID string) *zerolog.Logger {
	l := Logger.With().
		Str("component", component).
		Str("camera_id", cameraID).
		Logger()
	return &l
}
