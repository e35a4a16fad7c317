package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/trustnet/trustnet-go/internal/broadcast"
	"github.com/trustnet/trustnet-go/internal/stats"
)

const keepaliveInterval = 30 * time.Second

// StreamHandler serves live scoring events over SSE and the running totals.
type StreamHandler struct {
	hub       *broadcast.Hub
	stats     *stats.Collector
	keepalive time.Duration
}

// NewStreamHandler creates a StreamHandler.
func NewStreamHandler(hub *broadcast.Hub, collector *stats.Collector) *StreamHandler {
	return &StreamHandler{hub: hub, stats: collector, keepalive: keepaliveInterval}
}

// HandleSSE handles GET /v1/stream?kind=url. Without kind every event is
// streamed. The stream opens with a stats event.
func (sh *StreamHandler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	topic := r.URL.Query().Get("kind")
	if topic == "" {
		topic = broadcast.TopicAll
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// subscribe before hydrating so nothing published in between is lost
	ch, cancel := sh.hub.Subscribe(topic)
	defer cancel()

	if sh.stats != nil {
		data, _ := json.Marshal(sh.stats.Snapshot())
		fmt.Fprintf(w, "event: stats\ndata: %s\n\n", data)
	}
	flusher.Flush()

	keepalive := time.NewTicker(sh.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, event.Data)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

// Stats handles GET /v1/stats.
func (sh *StreamHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if sh.stats == nil {
		jsonError(w, "stats disabled", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, sh.stats.Snapshot())
}
