package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/trustnet/trustnet-go/internal/db"
	"github.com/trustnet/trustnet-go/internal/scoring"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
	defaultWindow       = 24 * time.Hour
)

// HistoryStore reads stored scans. *db.DB satisfies it.
type HistoryStore interface {
	RecentScans(ctx context.Context, kind string, limit int) ([]db.Scan, error)
	CategoryCounts(ctx context.Context, since time.Time) ([]db.CategoryCount, error)
}

// HistoryHandler serves stored scans.
type HistoryHandler struct {
	store  HistoryStore
	logger *slog.Logger
	now    func() time.Time
}

// NewHistoryHandler creates a HistoryHandler.
func NewHistoryHandler(store HistoryStore, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{store: store, logger: logger, now: time.Now}
}

// Recent handles GET /v1/history?kind=url&limit=50.
func (hh *HistoryHandler) Recent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind := q.Get("kind")
	if kind != "" && !scoring.Kind(kind).Valid() {
		jsonError(w, "unknown kind", http.StatusBadRequest)
		return
	}

	limit := defaultHistoryLimit
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			jsonError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	scans, err := hh.store.RecentScans(r.Context(), kind, limit)
	if err != nil {
		hh.logger.Error("failed to read history", "err", err)
		jsonError(w, "failed to read history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, scans)
}

// Categories handles GET /v1/history/categories?window=24h.
func (hh *HistoryHandler) Categories(w http.ResponseWriter, r *http.Request) {
	window := defaultWindow
	if s := r.URL.Query().Get("window"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			jsonError(w, "invalid window", http.StatusBadRequest)
			return
		}
		window = d
	}

	counts, err := hh.store.CategoryCounts(r.Context(), hh.now().Add(-window))
	if err != nil {
		hh.logger.Error("failed to count categories", "err", err)
		jsonError(w, "failed to read history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}
