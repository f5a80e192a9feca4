package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/CamStreamer/internal/logger"
)

// DefaultQuality is the JPEG quality used when Config.Quality is unset.
const DefaultQuality = 90

// MJPEGOutput streams frames as Motion JPEG over HTTP so the live camera
// view can be opened in any browser.
type MJPEGOutput struct {
	config  Config
	running bool
	mu      sync.RWMutex
	log     zerolog.Logger

	// Last encoded frame, replayed to newly connected clients
	frameMu    sync.RWMutex
	lastJPEG   []byte
	lastSize   image.Point
	lastUpdate time.Time

	// Connected clients
	clientsMu sync.RWMutex
	clients   map[chan []byte]struct{}

	// Stats
	frameCount uint64
	startTime  time.Time
}

// Stats is a point in time view of the stream.
type Stats struct {
	Running    bool    `json:"running"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FPS        float64 `json:"fps"`
	Frames     uint64  `json:"frames"`
	Clients    int     `json:"clients"`
	LastUpdate string  `json:"lastUpdate,omitempty"`
	Uptime     string  `json:"uptime,omitempty"`
}

// NewMJPEGOutput creates a new MJPEG stream output
func NewMJPEGOutput(config Config) *MJPEGOutput {
	if config.Quality <= 0 || config.Quality > 100 {
		config.Quality = DefaultQuality
	}
	return &MJPEGOutput{
		config:  config,
		log:     *logger.WithComponent("mjpeg"),
		clients: make(map[chan []byte]struct{}),
	}
}

// Start initializes the MJPEG output.
// The HTTP handler is registered separately via GetHTTPHandler().
func (m *MJPEGOutput) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("MJPEG output already running")
	}

	m.running = true
	m.startTime = time.Now()
	m.frameCount = 0

	m.log.Info().Int("quality", m.config.Quality).Int("max_fps", m.config.MaxFPS).Msg("MJPEG output started")
	return nil
}

// Stop cleanly shuts down the output and disconnects every client.
func (m *MJPEGOutput) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	m.running = false

	m.clientsMu.Lock()
	for ch := range m.clients {
		close(ch)
	}
	m.clients = make(map[chan []byte]struct{})
	m.clientsMu.Unlock()

	m.log.Info().Uint64("frames", m.frameCount).Msg("MJPEG output stopped")
	return nil
}

// WriteFrame encodes frame and sends it to all connected clients
func (m *MJPEGOutput) WriteFrame(frame *image.RGBA) error {
	if !m.IsRunning() {
		return fmt.Errorf("MJPEG output not running")
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, frame, &jpeg.Options{Quality: m.config.Quality}); err != nil {
		return fmt.Errorf("failed to encode JPEG: %w", err)
	}
	jpegData := buf.Bytes()

	m.frameMu.Lock()
	m.lastJPEG = jpegData
	m.lastSize = frame.Rect.Size()
	m.lastUpdate = time.Now()
	m.frameMu.Unlock()

	m.mu.Lock()
	m.frameCount++
	m.mu.Unlock()

	m.clientsMu.RLock()
	for ch := range m.clients {
		select {
		case ch <- jpegData:
		default:
			// Client is slow, skip this frame
		}
	}
	m.clientsMu.RUnlock()

	return nil
}

// Name returns the output type name
func (m *MJPEGOutput) Name() string {
	return "MJPEG HTTP Stream"
}

// IsRunning returns true if the output is active
func (m *MJPEGOutput) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// ClientCount returns the number of connected stream clients.
func (m *MJPEGOutput) ClientCount() int {
	m.clientsMu.RLock()
	defer m.clientsMu.RUnlock()
	return len(m.clients)
}

// Stats returns the current stream statistics.
func (m *MJPEGOutput) Stats() Stats {
	m.mu.RLock()
	running := m.running
	frameCount := m.frameCount
	startTime := m.startTime
	m.mu.RUnlock()

	m.frameMu.RLock()
	lastUpdate := m.lastUpdate
	size := m.lastSize
	m.frameMu.RUnlock()

	s := Stats{
		Running: running,
		Width:   size.X,
		Height:  size.Y,
		Frames:  frameCount,
		Clients: m.ClientCount(),
	}
	if running && !startTime.IsZero() {
		elapsed := time.Since(startTime)
		if elapsed > 0 {
			s.FPS = float64(frameCount) / elapsed.Seconds()
		}
		s.Uptime = elapsed.Round(time.Second).String()
	}
	if !lastUpdate.IsZero() {
		s.LastUpdate = lastUpdate.Format(time.RFC3339Nano)
	}
	return s
}

// GetHTTPHandler returns an http.Handler for the MJPEG stream.
// Mount this at /stream or similar endpoint.
func (m *MJPEGOutput) GetHTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !m.IsRunning() {
			http.Error(w, "stream not running", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		w.Header().Set("Connection", "close")

		frameChan := make(chan []byte, 2)

		// Replay the last frame so a paused pipeline still shows an image
		m.frameMu.RLock()
		if m.lastJPEG != nil {
			frameChan <- m.lastJPEG
		}
		m.frameMu.RUnlock()

		m.clientsMu.Lock()
		m.clients[frameChan] = struct{}{}
		clientCount := len(m.clients)
		m.clientsMu.Unlock()

		m.log.Info().Int("clients", clientCount).Msg("Stream client connected")

		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}

		defer func() {
			m.clientsMu.Lock()
			delete(m.clients, frameChan)
			clientCount := len(m.clients)
			m.clientsMu.Unlock()
			m.log.Info().Int("clients", clientCount).Msg("Stream client disconnected")
		}()

		for {
			select {
			case <-r.Context().Done():
				return
			case jpegData, ok := <-frameChan:
				if !ok {
					return
				}
				if err := writePart(w, jpegData); err != nil {
					return
				}
				if f, ok := w.(http.Flusher); ok {
					f.Flush()
				}
			}
		}
	}
}

func writePart(w http.ResponseWriter, jpegData []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpegData)); err != nil {
		return err
	}
	if _, err := w.Write(jpegData); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\r\n")
	return err
}

// GetStatsHandler returns an HTTP handler that reports stream statistics
// as JSON.
func (m *MJPEGOutput) GetStatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(m.Stats())
	}
}

// GetViewerHandler returns an HTTP handler with a bare page showing the
// stream full window.
func (m *MJPEGOutput) GetViewerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(viewerHTML))
	}
}

const viewerHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>CamStreamer</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body { background: #000; overflow: hidden; }
        img { width: 100vw; height: 100vh; object-fit: contain; display: block; }
        #qr {
            position: fixed; bottom: 16px; left: 16px;
            padding: 6px 12px; border-radius: 14px;
            background: rgba(40, 40, 40, 0.9); color: #ccc;
            font: 13px system-ui, sans-serif;
        }
        #qr:empty { display: none; }
    </style>
</head>
<body>
    <img src="/stream" alt="CamStreamer live view">
    <div id="qr"></div>
    <script>
        const qr = document.getElementById('qr');
        const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/api/events/qr');
        ws.onmessage = (e) => {
            const ev = JSON.parse(e.data);
            if (ev.text) qr.textContent = ev.text;
        };
    </script>
</body>
</html>`
