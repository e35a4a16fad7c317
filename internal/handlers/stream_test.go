package handlers

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustnet/trustnet-go/internal/broadcast"
	"github.com/trustnet/trustnet-go/internal/stats"
)

// readEvent reads one SSE frame, skipping comments.
func readEvent(t *testing.T, r *bufio.Reader) (event, data string) {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && event != "":
			return event, data
		}
	}
}

func TestHandleSSE(t *testing.T) {
	hub := broadcast.NewHub(discard)
	sh := NewStreamHandler(hub, stats.NewCollector())
	srv := httptest.NewServer(http.HandlerFunc(sh.HandleSSE))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "?kind=email")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	event, data := readEvent(t, r)
	assert.Equal(t, "stats", event)
	var snap stats.Snapshot
	require.NoError(t, json.Unmarshal([]byte(data), &snap))
	assert.Zero(t, snap.Total)

	// the subscription is registered before the stats frame is flushed
	require.Equal(t, 1, hub.SubscriberCount("email"))
	hub.Publish("url", broadcast.Event{Type: EventAnalysisResult, Data: []byte(`{"kind":"url"}`)})
	hub.Publish("email", broadcast.Event{Type: EventAnalysisResult, Data: []byte(`{"kind":"email"}`)})

	event, data = readEvent(t, r)
	assert.Equal(t, EventAnalysisResult, event)
	assert.JSONEq(t, `{"kind":"email"}`, data)
}

func TestHandleSSEKeepalive(t *testing.T) {
	sh := NewStreamHandler(broadcast.NewHub(discard), nil)
	sh.keepalive = 10 * time.Millisecond
	srv := httptest.NewServer(http.HandlerFunc(sh.HandleSSE))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": keepalive\n", line)
}

func TestStats(t *testing.T) {
	rec := httptest.NewRecorder()
	NewStreamHandler(broadcast.NewHub(discard), stats.NewCollector()).Stats(rec, httptest.NewRequest(http.MethodGet, "/v1/stats", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total"`)

	rec = httptest.NewRecorder()
	NewStreamHandler(broadcast.NewHub(discard), nil).Stats(rec, httptest.NewRequest(http.MethodGet, "/v1/stats", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
