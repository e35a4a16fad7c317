package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/trustnet/trustnet-go/internal/model"
)

const reloadTimeout = 2 * time.Minute

// ModelAdmin inspects and reloads the published model bundle. *model.Store
// satisfies it.
type ModelAdmin interface {
	Status() model.Status
	Reload(ctx context.Context) error
}

// ModelHandler serves the model administration endpoints.
type ModelHandler struct {
	models ModelAdmin
	logger *slog.Logger
}

// NewModelHandler creates a ModelHandler.
func NewModelHandler(models ModelAdmin, logger *slog.Logger) *ModelHandler {
	return &ModelHandler{models: models, logger: logger}
}

// Status handles GET /admin/model.
func (mh *ModelHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, mh.models.Status())
}

// Reload handles POST /admin/model/reload. A failed reload keeps the previous
// bundle published and answers 503 with the error and the current status.
func (mh *ModelHandler) Reload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), reloadTimeout)
	defer cancel()

	if err := mh.models.Reload(ctx); err != nil {
		mh.logger.Warn("model reload failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error":  err.Error(),
			"status": mh.models.Status(),
		})
		return
	}
	st := mh.models.Status()
	mh.logger.Info("model reloaded", "version", st.Version, "kinds", st.Kinds)
	writeJSON(w, http.StatusOK, st)
}
