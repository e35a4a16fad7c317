package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustnet/trustnet-go/internal/broadcast"
	"github.com/trustnet/trustnet-go/internal/features"
	"github.com/trustnet/trustnet-go/internal/model"
	"github.com/trustnet/trustnet-go/internal/scoring"
	"github.com/trustnet/trustnet-go/internal/stats"
)

var discard = slog.New(slog.DiscardHandler)

type stubDecoder struct {
	text string
	ok   bool
}

func (d stubDecoder) Decode([]byte) (string, bool) { return d.text, d.ok }

type brokenModels struct{}

func (brokenModels) Lookup(features.Kind) (model.Predictor, bool) { return brokenPredictor{}, true }

type brokenPredictor struct{}

func (brokenPredictor) Predict(features.Vector, string) (model.Prediction, error) {
	return model.Prediction{}, fmt.Errorf("%w: missing column", model.ErrSchemaMismatch)
}

type memHistory struct {
	mu     sync.Mutex
	inputs []string
	ids    []string
}

func (h *memHistory) InsertScan(_ context.Context, input string, r *scoring.Result) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.inputs = append(h.inputs, input)
	h.ids = append(h.ids, r.ID)
	return nil
}

func (h *memHistory) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.inputs)
}

type fixture struct {
	handler *ScoreHandler
	hub     *broadcast.Hub
	stats   *stats.Collector
	history *memHistory
}

func newFixture(models scoring.Models, dec stubDecoder) *fixture {
	hub := broadcast.NewHub(discard)
	collector := stats.NewCollector()
	history := &memHistory{}
	engine := scoring.New(nil, models, dec, discard)
	return &fixture{
		handler: NewScoreHandler(engine, hub, collector, history, discard),
		hub:     hub,
		stats:   collector,
		history: history,
	}
}

func postJSON(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) scoring.Result {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var res scoring.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func TestAnalyzeURL(t *testing.T) {
	f := newFixture(nil, stubDecoder{})
	events, cancel := f.hub.Subscribe("url")
	defer cancel()

	rec := postJSON(f.handler.AnalyzeURL, `{"url":"http://paypal-security-alert.com/login"}`)
	res := decodeResult(t, rec)
	assert.Equal(t, 30.0, res.TrustScore)
	assert.Equal(t, scoring.CategoryHighRisk, res.RiskCategory)
	assert.Equal(t, scoring.SourceHeuristic, res.Source)

	select {
	case ev := <-events:
		assert.Equal(t, EventAnalysisResult, ev.Type)
		assert.Contains(t, string(ev.Data), res.ID)
	case <-time.After(time.Second):
		t.Fatal("result was not broadcast")
	}

	assert.Equal(t, int64(1), f.stats.Snapshot().Total)
	require.Eventually(t, func() bool { return f.history.len() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "http://paypal-security-alert.com/login", f.history.inputs[0])
	assert.Equal(t, res.ID, f.history.ids[0])
}

func TestScoreEndpoint(t *testing.T) {
	f := newFixture(nil, stubDecoder{})
	rec := postJSON(f.handler.Score, `{"kind":"email","subject":"URGENT","value":"Your account will be suspended immediately. Verify now to avoid closure!!!"}`)
	res := decodeResult(t, rec)
	assert.Equal(t, scoring.KindEmail, res.Kind)
	assert.Equal(t, 55.0, res.TrustScore)
	assert.Equal(t, scoring.CategorySuspicious, res.RiskCategory)
}

func TestAnalyzeEmailAcceptsText(t *testing.T) {
	f := newFixture(nil, stubDecoder{})
	res := decodeResult(t, postJSON(f.handler.AnalyzeEmail, `{"text":"Hi Sam, lunch on Thursday still works for me."}`))
	assert.Equal(t, scoring.CategorySafe, res.RiskCategory)
}

func TestAnalyzeEmailRaw(t *testing.T) {
	f := newFixture(nil, stubDecoder{})
	msg := "From: it@example.com\r\nSubject: URGENT\r\nContent-Type: text/plain\r\n\r\n" +
		"Your account will be suspended immediately. Verify now to avoid closure!!!\r\n"
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(msg))
	req.Header.Set("Content-Type", "message/rfc822")
	rec := httptest.NewRecorder()
	f.handler.AnalyzeEmailRaw(rec, req)

	res := decodeResult(t, rec)
	assert.Equal(t, scoring.KindEmail, res.Kind)
	assert.Less(t, res.TrustScore, 75.0)
}

func TestAnalyzeQRText(t *testing.T) {
	f := newFixture(nil, stubDecoder{})
	res := decodeResult(t, postJSON(f.handler.AnalyzeQRText, `{"text":"tel:+14155550100"}`))
	assert.Equal(t, scoring.KindQRText, res.Kind)
	assert.Equal(t, 80.0, res.TrustScore)
	assert.Equal(t, "tel:+14155550100", res.DecodedContent)
}

func TestAnalyzeQRImage(t *testing.T) {
	f := newFixture(nil, stubDecoder{text: "https://www.amazon.com", ok: true})
	img := []byte("png bytes")

	t.Run("multipart", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("image", "code.png")
		require.NoError(t, err)
		_, err = fw.Write(img)
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		f.handler.AnalyzeQR(rec, req)

		res := decodeResult(t, rec)
		assert.Equal(t, scoring.SourceAllowlist, res.Source)
		assert.Equal(t, "https://www.amazon.com", res.DecodedContent)
	})

	t.Run("data url", func(t *testing.T) {
		body := fmt.Sprintf(`{"image_data":"data:image/png;base64,%s"}`, base64.StdEncoding.EncodeToString(img))
		res := decodeResult(t, postJSON(f.handler.AnalyzeQR, body))
		assert.Equal(t, scoring.KindQRText, res.Kind)
	})

	t.Run("bad base64", func(t *testing.T) {
		rec := postJSON(f.handler.AnalyzeQR, `{"image_data":"%%%"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
		rec := httptest.NewRecorder()
		f.handler.AnalyzeQR(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAnalyzeQRUndecodable(t *testing.T) {
	f := newFixture(nil, stubDecoder{})
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("noise"))
	req.Header.Set("Content-Type", "image/png")
	rec := httptest.NewRecorder()
	f.handler.AnalyzeQR(rec, req)

	res := decodeResult(t, rec)
	assert.Equal(t, scoring.CategoryUnknown, res.RiskCategory)
	assert.Zero(t, res.TrustScore)
}

func TestScoreErrors(t *testing.T) {
	f := newFixture(nil, stubDecoder{})
	tests := []struct {
		name string
		h    http.HandlerFunc
		body string
		code int
		msg  string
	}{
		{"malformed json", f.handler.Score, `{"kind":`, http.StatusBadRequest, "invalid request body"},
		{"unknown kind", f.handler.Score, `{"kind":"sms","value":"hi"}`, http.StatusBadRequest, "invalid kind"},
		{"blank url", f.handler.AnalyzeURL, `{"url":"   "}`, http.StatusBadRequest, "invalid value"},
		{"blank qr text", f.handler.AnalyzeQRText, `{}`, http.StatusBadRequest, "invalid value"},
		{"oversized", f.handler.AnalyzeURL, `{"url":"` + strings.Repeat("a", maxJSONBody) + `"}`, http.StatusRequestEntityTooLarge, "too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(tt.h, tt.body)
			assert.Equal(t, tt.code, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Contains(t, body["error"], tt.msg)
		})
	}
	assert.Zero(t, f.stats.Snapshot().Total)
	assert.Zero(t, f.history.len())
}

func TestSchemaMismatchIsServerError(t *testing.T) {
	f := newFixture(brokenModels{}, stubDecoder{})
	rec := postJSON(f.handler.AnalyzeURL, `{"url":"https://example.org"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"model schema mismatch"}`, rec.Body.String())
}

func TestNilCollaborators(t *testing.T) {
	h := NewScoreHandler(scoring.New(nil, nil, stubDecoder{}, discard), nil, nil, nil, discard)
	res := decodeResult(t, postJSON(h.AnalyzeURL, `{"url":"https://google.com"}`))
	assert.Equal(t, 100.0, res.TrustScore)
}
