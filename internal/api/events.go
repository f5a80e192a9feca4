package api

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/bryanchriswhite/CamStreamer/internal/pipeline"
)

// readPump discards client messages and closes the returned channel once
// the connection is gone.
func readPump(conn *websocket.Conn) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return done
}

func (s *Server) handleStateStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}
	defer conn.Close()

	updates := s.pipe.SubscribeState()
	defer s.pipe.UnsubscribeState(updates)

	// Send initial state
	if err := conn.WriteJSON(s.pipe.State()); err != nil {
		s.log.Debug().Err(err).Msg("WebSocket write error")
		return
	}

	done := readPump(conn)
	for {
		select {
		case <-done:
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(st); err != nil {
				s.log.Debug().Err(err).Msg("WebSocket write error")
				return
			}
		}
	}
}

// handleQRStream forwards QR results. The first listener turns QR search
// on and the last one to leave turns it off.
func (s *Server) handleQRStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}
	defer conn.Close()

	events := s.subscribeQR()
	defer s.unsubscribeQR(events)

	done := readPump(conn)
	for {
		select {
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				s.log.Debug().Err(err).Msg("WebSocket write error")
				return
			}
		}
	}
}

func (s *Server) subscribeQR() chan pipeline.QREvent {
	s.qrMu.Lock()
	defer s.qrMu.Unlock()

	ch := s.pipe.SubscribeQR()
	s.qrClients++
	if s.qrClients == 1 {
		s.pipe.EnableQR(true)
	}
	s.log.Info().Int("listeners", s.qrClients).Msg("QR listener connected")
	return ch
}

func (s *Server) unsubscribeQR(ch chan pipeline.QREvent) {
	s.qrMu.Lock()
	defer s.qrMu.Unlock()

	s.pipe.UnsubscribeQR(ch)
	s.qrClients--
	if s.qrClients == 0 {
		s.pipe.EnableQR(false)
	}
	s.log.Info().Int("listeners", s.qrClients).Msg("QR listener disconnected")
}
