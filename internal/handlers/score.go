// Package handlers implements the HTTP API.
package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/trustnet/trustnet-go/internal/broadcast"
	"github.com/trustnet/trustnet-go/internal/model"
	"github.com/trustnet/trustnet-go/internal/scoring"
	"github.com/trustnet/trustnet-go/internal/stats"
)

// EventAnalysisResult is the event type carrying a scoring result.
const EventAnalysisResult = "analysis_result"

// historyTimeout bounds the background write of one scan.
const historyTimeout = 5 * time.Second

// History stores scored inputs.
type History interface {
	InsertScan(ctx context.Context, input string, r *scoring.Result) error
}

// ScoreHandler serves the scoring endpoints.
type ScoreHandler struct {
	engine  *scoring.Engine
	hub     *broadcast.Hub
	stats   *stats.Collector
	history History
	logger  *slog.Logger
}

// NewScoreHandler creates a ScoreHandler. hub, collector and history may be nil.
func NewScoreHandler(engine *scoring.Engine, hub *broadcast.Hub, collector *stats.Collector, history History, logger *slog.Logger) *ScoreHandler {
	return &ScoreHandler{engine: engine, hub: hub, stats: collector, history: history, logger: logger}
}

// Score handles POST /v1/score with a {kind, value, subject} body.
func (sh *ScoreHandler) Score(w http.ResponseWriter, r *http.Request) {
	var in scoring.Input
	if !decodeJSON(w, r, &in) {
		return
	}
	res, err := sh.engine.Score(in)
	sh.respond(w, r, in.Value, res, err)
}

// AnalyzeURL handles POST /v1/analyze/url with a {url} body.
func (sh *ScoreHandler) AnalyzeURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := sh.engine.Score(scoring.Input{Kind: scoring.KindURL, Value: req.URL})
	sh.respond(w, r, req.URL, res, err)
}

// AnalyzeEmail handles POST /v1/analyze/email with a {subject, body} body.
// "text" is accepted in place of "body".
func (sh *ScoreHandler) AnalyzeEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
		Text    string `json:"text"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	body := req.Body
	if body == "" {
		body = req.Text
	}
	res, err := sh.engine.Score(scoring.Input{Kind: scoring.KindEmail, Value: body, Subject: req.Subject})
	sh.respond(w, r, strings.TrimSpace(req.Subject+"\n"+body), res, err)
}

// AnalyzeEmailRaw handles POST /v1/analyze/email/raw with an RFC 822 message
// as the body.
func (sh *ScoreHandler) AnalyzeEmailRaw(w http.ResponseWriter, r *http.Request) {
	raw, ok := readBody(w, r)
	if !ok {
		return
	}
	res, err := sh.engine.ScoreEmailMessage(bytes.NewReader(raw))
	sh.respond(w, r, string(raw), res, err)
}

// AnalyzeQR handles POST /v1/analyze/qr. The image is a multipart "image"
// file, a JSON {image_data} base64 string (data URLs allowed) or the raw body.
func (sh *ScoreHandler) AnalyzeQR(w http.ResponseWriter, r *http.Request) {
	img, ok := sh.readImage(w, r)
	if !ok {
		return
	}
	res, err := sh.engine.ScoreQRImage(img)
	input := ""
	if res != nil {
		input = res.DecodedContent
	}
	sh.respond(w, r, input, res, err)
}

// AnalyzeQRText handles POST /v1/analyze/qr-text with a {text} body.
func (sh *ScoreHandler) AnalyzeQRText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := sh.engine.Score(scoring.Input{Kind: scoring.KindQRText, Value: req.Text})
	sh.respond(w, r, req.Text, res, err)
}

func (sh *ScoreHandler) readImage(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	ct := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(ct, "multipart/form-data"):
		r.Body = http.MaxBytesReader(w, r.Body, maxMediaBody)
		f, _, err := r.FormFile("image")
		if err != nil {
			jsonError(w, "image file is required", http.StatusBadRequest)
			return nil, false
		}
		defer f.Close()
		img, err := io.ReadAll(f)
		if err != nil {
			jsonError(w, "failed to read image", http.StatusBadRequest)
			return nil, false
		}
		return img, true
	case strings.HasPrefix(ct, "application/json"):
		r.Body = http.MaxBytesReader(w, r.Body, maxMediaBody)
		var req struct {
			ImageData string `json:"image_data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, "invalid request body", http.StatusBadRequest)
			return nil, false
		}
		img, err := decodeImageData(req.ImageData)
		if err != nil {
			jsonError(w, "image_data must be base64", http.StatusBadRequest)
			return nil, false
		}
		return img, true
	}
	return readBody(w, r)
}

// decodeImageData accepts plain base64 or a data URL.
func decodeImageData(s string) ([]byte, error) {
	if i := strings.Index(s, ";base64,"); strings.HasPrefix(s, "data:") && i >= 0 {
		s = s[i+len(";base64,"):]
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMediaBody))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			jsonError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return nil, false
		}
		jsonError(w, "failed to read request body", http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

// respond maps scoring errors to status codes and, on success, records,
// broadcasts and stores the result.
func (sh *ScoreHandler) respond(w http.ResponseWriter, r *http.Request, input string, res *scoring.Result, err error) {
	if err != nil {
		var verr *scoring.ValidationError
		switch {
		case errors.As(err, &verr):
			jsonError(w, verr.Error(), http.StatusBadRequest)
		case errors.Is(err, model.ErrSchemaMismatch):
			sh.logger.Error("model refused input", "err", err)
			jsonError(w, "model schema mismatch", http.StatusInternalServerError)
		default:
			sh.logger.Error("scoring failed", "err", err)
			jsonError(w, "scoring failed", http.StatusInternalServerError)
		}
		return
	}

	if sh.stats != nil {
		sh.stats.Record(res)
	}
	if sh.hub != nil {
		if data, err := json.Marshal(res); err == nil {
			sh.hub.Publish(string(res.Kind), broadcast.Event{Type: EventAnalysisResult, Data: data})
		}
	}
	if sh.history != nil {
		ctx := context.WithoutCancel(r.Context())
		go func() {
			ctx, cancel := context.WithTimeout(ctx, historyTimeout)
			defer cancel()
			if err := sh.history.InsertScan(ctx, input, res); err != nil {
				sh.logger.Warn("failed to store scan", "id", res.ID, "err", err)
			}
		}()
	}
	writeJSON(w, http.StatusOK, res)
}
