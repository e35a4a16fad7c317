package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger checks a dependency. *db.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Health handles GET /health. It reports the model state and, when a
// database is configured, answers 503 while it is unreachable.
func Health(models ModelAdmin, database Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"status": "ok"}
		code := http.StatusOK
		if models != nil {
			st := models.Status()
			body["model_state"] = st.State
			if st.Version != "" {
				body["model_version"] = st.Version
			}
		}
		if database != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := database.PingContext(ctx); err != nil {
				body["status"] = "degraded"
				body["database"] = "unreachable"
				code = http.StatusServiceUnavailable
			} else {
				body["database"] = "ok"
			}
		}
		writeJSON(w, code, body)
	}
}
