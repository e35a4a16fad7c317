package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/trustnet/trustnet-go/internal/handlers"
	"github.com/trustnet/trustnet-go/internal/ratelimit"
	"github.com/trustnet/trustnet-go/internal/ws"
)

// routes collects the HTTP handlers. history is nil when no database is
// configured.
type routes struct {
	score   *handlers.ScoreHandler
	stream  *handlers.StreamHandler
	models  *handlers.ModelHandler
	history *handlers.HistoryHandler
	ws      *ws.Manager
	health  http.HandlerFunc
	limiter *ratelimit.Limiter
}

func (rt routes) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(corsMiddleware)

	r.Get("/health", rt.health)
	r.Get("/ws", rt.ws.HandleWS)

	r.Route("/v1", func(v1 chi.Router) {
		v1.Get("/stats", rt.stream.Stats)
		v1.Get("/stream", rt.stream.HandleSSE)
		if rt.history != nil {
			v1.Get("/history", rt.history.Recent)
			v1.Get("/history/categories", rt.history.Categories)
		}

		// Scoring (rate limited per client)
		v1.Group(func(s chi.Router) {
			s.Use(rt.limiter.Middleware(ratelimit.BucketScore))
			s.Post("/score", rt.score.Score)
			s.Post("/analyze/url", rt.score.AnalyzeURL)
			s.Post("/analyze/email", rt.score.AnalyzeEmail)
			s.Post("/analyze/email/raw", rt.score.AnalyzeEmailRaw)
			s.Post("/analyze/qr", rt.score.AnalyzeQR)
			s.Post("/analyze/qr-text", rt.score.AnalyzeQRText)
		})
	})

	r.Route("/admin", func(admin chi.Router) {
		admin.Use(rt.limiter.Middleware(ratelimit.BucketAdmin))
		admin.Get("/model", rt.models.Status)
		admin.Post("/model/reload", rt.models.Reload)
	})

	return r
}

// corsMiddleware allows browser clients from any origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
