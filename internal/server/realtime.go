// ABOUTME: Websocket endpoint streaming committed table changes to clients.
// ABOUTME: Each connection subscribes to the table broker for the requested tables.
package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/2389-research/laulau/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// parseTables reads a comma-separated table list. Empty means all tables.
func parseTables(raw string) ([]models.Table, error) {
	if strings.TrimSpace(raw) == "" {
		return models.AllTables, nil
	}
	var tables []models.Table
	for _, name := range strings.Split(raw, ",") {
		t, err := models.ParseTable(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	tables, err := parseTables(r.URL.Query().Get("tables"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	events, unsubscribe := s.tables.Broker().Subscribe(tables...)
	defer unsubscribe()
	realtimeSubscribers.Inc()
	defer realtimeSubscribers.Dec()

	// The read loop only exists to notice the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			return
		case ev, ok := <-events:
			if !ok {
				// Either the server is stopping or this client fell behind; in
				// both cases it must resubscribe and reload.
				code, reason := websocket.CloseTryAgainLater, "fell behind, resubscribe"
				if s.tables.Broker().Closed() {
					code, reason = websocket.CloseGoingAway, "server shutting down"
				}
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				s.logger.Debug("realtime write failed", "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
