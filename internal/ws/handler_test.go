package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustnet/trustnet-go/internal/broadcast"
	"github.com/trustnet/trustnet-go/internal/scoring"
	"github.com/trustnet/trustnet-go/internal/stats"
)

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHandleWS(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	hub := broadcast.NewHub(logger)
	collector := stats.NewCollector()
	collector.Record(&scoring.Result{Kind: scoring.KindURL, TrustScore: 30, RiskCategory: scoring.CategoryHighRisk})
	m := NewManager(hub, collector, logger)

	srv := httptest.NewServer(http.HandlerFunc(m.HandleWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?kind=url"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	hello := readMessage(t, conn)
	assert.Equal(t, "connected", hello.Type)
	assert.NotEmpty(t, hello.ClientID)

	st := readMessage(t, conn)
	assert.Equal(t, "stats", st.Type)
	var snap stats.Snapshot
	require.NoError(t, json.Unmarshal(st.Data, &snap))
	assert.Equal(t, int64(1), snap.Total)

	// subscribed before hydration is sent
	assert.Equal(t, 1, hub.SubscriberCount("url"))
	assert.Equal(t, int64(1), m.Connections())

	hub.Publish("email", broadcast.Event{Type: "analysis_result", Data: []byte(`{"kind":"email"}`)})
	hub.Publish("url", broadcast.Event{Type: "analysis_result", Data: []byte(`{"kind":"url"}`)})

	got := readMessage(t, conn)
	assert.Equal(t, "analysis_result", got.Type)
	assert.JSONEq(t, `{"kind":"url"}`, string(got.Data))

	conn.Close()
	require.Eventually(t, func() bool { return hub.SubscriberCount("url") == 0 }, 5*time.Second, 10*time.Millisecond)
}
