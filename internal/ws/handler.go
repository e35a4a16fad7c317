// Package ws streams scoring events to WebSocket clients.
package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/trustnet/trustnet-go/internal/broadcast"
	"github.com/trustnet/trustnet-go/internal/stats"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Message is the envelope of every frame sent to a client.
type Message struct {
	Type     string          `json:"type"`
	ClientID string          `json:"client_id,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// Manager serves WebSocket clients from the broadcast hub.
type Manager struct {
	hub    *broadcast.Hub
	stats  *stats.Collector
	logger *slog.Logger
	active atomic.Int64
}

// NewManager creates a manager. stats may be nil.
func NewManager(hub *broadcast.Hub, collector *stats.Collector, logger *slog.Logger) *Manager {
	return &Manager{hub: hub, stats: collector, logger: logger}
}

// Connections returns the number of connected clients.
func (m *Manager) Connections() int64 { return m.active.Load() }

// HandleWS upgrades the connection, sends a greeting and the current stats,
// then forwards events for ?kind= (default all) until the client goes away.
func (m *Manager) HandleWS(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("kind")
	if topic == "" {
		topic = broadcast.TopicAll
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Error("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	id := uuid.NewString()
	m.active.Add(1)
	defer m.active.Add(-1)
	m.logger.Debug("websocket client connected", "client_id", id, "topic", topic)

	events, cancel := m.hub.Subscribe(topic)
	defer cancel()

	if err := m.hydrate(conn, id); err != nil {
		return
	}

	// reader: handles pongs and notices disconnects; client messages are ignored
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := m.send(conn, Message{Type: ev.Type, Data: ev.Data}); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (m *Manager) hydrate(conn *websocket.Conn, id string) error {
	if err := m.send(conn, Message{Type: "connected", ClientID: id}); err != nil {
		return err
	}
	if m.stats == nil {
		return nil
	}
	data, err := json.Marshal(m.stats.Snapshot())
	if err != nil {
		return err
	}
	return m.send(conn, Message{Type: "stats", Data: data})
}

func (m *Manager) send(conn *websocket.Conn, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}
