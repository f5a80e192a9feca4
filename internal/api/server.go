package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/CamStreamer/internal/config"
	"github.com/bryanchriswhite/CamStreamer/internal/logger"
	"github.com/bryanchriswhite/CamStreamer/internal/output"
	"github.com/bryanchriswhite/CamStreamer/internal/pipeline"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// DefaultSnapshotTimeout bounds how long a snapshot request waits for the
// next frame.
const DefaultSnapshotTimeout = 10 * time.Second

// Server represents the HTTP API server
type Server struct {
	router    *mux.Router
	pipe      *pipeline.Pipeline
	configMgr *config.Manager
	mjpeg     *output.MJPEGOutput
	upgrader  websocket.Upgrader
	log       zerolog.Logger

	// SnapshotTimeout overrides DefaultSnapshotTimeout when set.
	SnapshotTimeout time.Duration

	// qrMu orders QR listener registration with enabling the search
	qrMu      sync.Mutex
	qrClients int

	httpServer *http.Server
}

// NewServer creates a new API server. configMgr and mjpeg may be nil.
func NewServer(pipe *pipeline.Pipeline, configMgr *config.Manager, mjpeg *output.MJPEGOutput) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		pipe:      pipe,
		configMgr: configMgr,
		mjpeg:     mjpeg,
		log:       *logger.WithComponent("api"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for development
			},
		},
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Cameras and session lifecycle
	api.HandleFunc("/cameras", s.handleListCameras).Methods("GET")
	api.HandleFunc("/camera", s.handleRegister).Methods("POST")
	api.HandleFunc("/camera", s.handleUnregister).Methods("DELETE")

	// Capture
	api.HandleFunc("/capture/start", s.handleStartCapture).Methods("POST")
	api.HandleFunc("/capture/stop", s.handleStopCapture).Methods("POST")
	api.HandleFunc("/capture/resize", s.handleResize).Methods("POST")
	api.HandleFunc("/snapshot", s.handleSnapshot).Methods("POST")

	// State and QR
	api.HandleFunc("/state", s.handleGetState).Methods("GET")
	api.HandleFunc("/qr", s.handleGetQR).Methods("GET")
	api.HandleFunc("/qr", s.handleSetQR).Methods("PUT")

	// Event streams
	api.HandleFunc("/events/state", s.handleStateStream)
	api.HandleFunc("/events/qr", s.handleQRStream)

	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	if s.mjpeg != nil {
		s.router.HandleFunc("/stream", s.mjpeg.GetHTTPHandler()).Methods("GET")
		s.router.HandleFunc("/stream/stats", s.mjpeg.GetStatsHandler()).Methods("GET")
		s.router.HandleFunc("/", s.mjpeg.GetViewerHandler()).Methods("GET")
	}
}

// Handler returns the root handler with CORS applied
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Start starts the HTTP server. It returns http.ErrServerClosed after
// Shutdown.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Str("addr", addr).Msg("Starting server")
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the HTTP server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrDeviceNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrNotOpen),
		errors.Is(err, pipeline.ErrNotCapturing),
		errors.Is(err, pipeline.ErrSnapshotPending):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrSnapshotDrainTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, pipeline.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type sizeRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func decodeSize(r *http.Request) (sizeRequest, error) {
	var req sizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, err
	}
	if req.Width <= 0 || req.Height == 0 || req.Height < -1 {
		return req, fmt.Errorf("invalid view size %dx%d", req.Width, req.Height)
	}
	return req, nil
}

// HTTP Handlers

func (s *Server) handleListCameras(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipe.ListCameras())
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Camera string `json:"camera"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Camera == "" {
		http.Error(w, "camera is required", http.StatusBadRequest)
		return
	}

	st := s.pipe.Register(req.Camera)
	if !st.Open() {
		writeJSON(w, statusFor(s.pipe.LastErr()), st)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleUnregister(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipe.Unregister())
}

func (s *Server) handleStartCapture(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSize(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !s.pipe.State().Open() {
		http.Error(w, pipeline.ErrNotOpen.Error(), http.StatusConflict)
		return
	}

	st := s.pipe.StartCapture(req.Width, req.Height)
	if st.Status != pipeline.SessionCapturing {
		writeJSON(w, statusFor(s.pipe.LastErr()), st)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleStopCapture(w http.ResponseWriter, r *http.Request) {
	if err := s.pipe.StopCapture(); err != nil {
		writeJSON(w, statusFor(err), map[string]interface{}{
			"error": err.Error(),
			"state": s.pipe.State(),
		})
		return
	}
	writeJSON(w, http.StatusOK, s.pipe.State())
}

func (s *Server) handleResize(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSize(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.pipe.Resize(req.Width, req.Height))
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	timeout := s.SnapshotTimeout
	if timeout <= 0 {
		timeout = DefaultSnapshotTimeout
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	snap, err := s.pipe.Snapshot(ctx)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	s.log.Info().Str("snapshot", snap.ID).Int("width", snap.Width).Int("height", snap.Height).Msg("Snapshot taken")
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipe.State())
}

func (s *Server) handleGetQR(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": s.pipe.QREnabled()})
}

func (s *Server) handleSetQR(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.pipe.EnableQR(req.Enabled)
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if s.configMgr == nil {
		http.Error(w, "no configuration loaded", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s.configMgr.Get())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": Version,
	})
}
