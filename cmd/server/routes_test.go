package main

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustnet/trustnet-go/internal/broadcast"
	"github.com/trustnet/trustnet-go/internal/handlers"
	"github.com/trustnet/trustnet-go/internal/model"
	"github.com/trustnet/trustnet-go/internal/ratelimit"
	"github.com/trustnet/trustnet-go/internal/scoring"
	"github.com/trustnet/trustnet-go/internal/stats"
	"github.com/trustnet/trustnet-go/internal/ws"
)

func testRouter(scorePerMinute int) http.Handler {
	logger := slog.New(slog.DiscardHandler)
	store := model.NewStore(nil, model.LoadOptions{}, logger)
	hub := broadcast.NewHub(logger)
	collector := stats.NewCollector()
	buckets := ratelimit.DefaultBuckets(scorePerMinute)

	return routes{
		score:   handlers.NewScoreHandler(scoring.New(nil, store, nil, logger), hub, collector, nil, logger),
		stream:  handlers.NewStreamHandler(hub, collector),
		models:  handlers.NewModelHandler(store, logger),
		ws:      ws.NewManager(hub, collector, logger),
		health:  handlers.Health(store, nil),
		limiter: ratelimit.New(buckets),
	}.router()
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRoutes(t *testing.T) {
	h := testRouter(100)
	tests := []struct {
		method, path, body string
		code               int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/v1/stats", "", http.StatusOK},
		{http.MethodPost, "/v1/score", `{"kind":"url","value":"https://google.com"}`, http.StatusOK},
		{http.MethodPost, "/v1/analyze/url", `{"url":"http://paypal-security-alert.com/login"}`, http.StatusOK},
		{http.MethodPost, "/v1/analyze/email", `{"subject":"hi","body":"see you soon"}`, http.StatusOK},
		{http.MethodPost, "/v1/analyze/qr-text", `{"text":"geo:37.7,-122.4"}`, http.StatusOK},
		{http.MethodPost, "/v1/analyze/url", `{"url":""}`, http.StatusBadRequest},
		{http.MethodGet, "/v1/history", "", http.StatusNotFound},
		{http.MethodGet, "/admin/model", "", http.StatusOK},
		{http.MethodPost, "/admin/model/reload", "", http.StatusServiceUnavailable},
		{http.MethodGet, "/v1/analyze/url", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := do(h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
}

func TestCORS(t *testing.T) {
	rec := do(testRouter(100), http.MethodOptions, "/v1/analyze/url", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestScoreRateLimit(t *testing.T) {
	h := testRouter(2)
	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, do(h, http.MethodPost, "/v1/analyze/qr-text", `{"text":"hello"}`).Code)
	}
	rec := do(h, http.MethodPost, "/v1/analyze/qr-text", `{"text":"hello"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// reads are not limited
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/v1/stats", "").Code)
}

func TestSSERoute(t *testing.T) {
	srv := httptest.NewServer(testRouter(100))
	defer srv.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(srv.URL + "/v1/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
}
