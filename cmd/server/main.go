package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/trustnet/trustnet-go/internal/allowlist"
	"github.com/trustnet/trustnet-go/internal/broadcast"
	"github.com/trustnet/trustnet-go/internal/config"
	"github.com/trustnet/trustnet-go/internal/db"
	"github.com/trustnet/trustnet-go/internal/handlers"
	"github.com/trustnet/trustnet-go/internal/model"
	"github.com/trustnet/trustnet-go/internal/ratelimit"
	"github.com/trustnet/trustnet-go/internal/scoring"
	"github.com/trustnet/trustnet-go/internal/server"
	"github.com/trustnet/trustnet-go/internal/stats"
	"github.com/trustnet/trustnet-go/internal/tlsutil"
	"github.com/trustnet/trustnet-go/internal/ws"
)

const (
	shutdownTimeout    = 10 * time.Second
	limiterSweepPeriod = time.Minute
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := server.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "env", cfg.Env, "sources", cfg.Sources)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	allow := allowlist.Default()
	if cfg.AllowlistFile != "" {
		var err error
		if allow, err = allowlist.Load(cfg.AllowlistFile); err != nil {
			return fmt.Errorf("allowlist: %w", err)
		}
		logger.Info("allowlist loaded", "path", cfg.AllowlistFile, "domains", allow.Len())
	}

	// A failed initial load is logged by the store; scoring runs on
	// heuristics until a reload succeeds.
	store := model.NewStore(cfg.ModelSource(), cfg.LoadOptions(), logger)
	store.Reload(ctx)

	engine := scoring.New(allow, store, nil, logger)
	hub := broadcast.NewHub(logger)
	collector := stats.NewCollector()
	limiter := ratelimit.New(ratelimit.DefaultBuckets(cfg.RateLimitPerMinute))

	var (
		history      handlers.History
		historyStore handlers.HistoryStore
		pinger       handlers.Pinger
	)
	if cfg.DatabaseURL != "" {
		database, err := db.Connect(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer database.Close()
		history, historyStore, pinger = database, database, database
	} else {
		logger.Info("DATABASE_URL not set, scan history disabled")
	}

	rt := routes{
		score:   handlers.NewScoreHandler(engine, hub, collector, history, logger),
		stream:  handlers.NewStreamHandler(hub, collector),
		models:  handlers.NewModelHandler(store, logger),
		ws:      ws.NewManager(hub, collector, logger),
		health:  handlers.Health(store, pinger),
		limiter: limiter,
	}
	if historyStore != nil {
		rt.history = handlers.NewHistoryHandler(historyStore, logger)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      rt.router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE + WebSocket need unlimited write time
		IdleTimeout:  60 * time.Second,
	}

	reload := func(ctx context.Context, reason string) {
		logger.Info("reloading model bundle", "reason", reason)
		if err := store.Reload(ctx); err != nil {
			return
		}
		if data, err := json.Marshal(store.Status()); err == nil {
			hub.Publish(broadcast.TopicAll, broadcast.Event{Type: "model_reloaded", Data: data})
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		server.RunWithRecovery(gctx, logger, "rate-limit-sweep", func(ctx context.Context) {
			limiter.Sweep(ctx, limiterSweepPeriod)
		})
		return nil
	})
	g.Go(func() error {
		server.OnSignal(gctx, func(os.Signal) { reload(gctx, "sighup") }, syscall.SIGHUP)
		return nil
	})
	if every := cfg.Model.ReloadInterval; every > 0 {
		g.Go(func() error {
			server.RunWithRecovery(gctx, logger, "model-reload", func(ctx context.Context) {
				ticker := time.NewTicker(every)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						reload(ctx, "interval")
					}
				}
			})
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		err := serve(gctx, srv, cfg, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	return g.Wait()
}

// serve listens over ACME-managed TLS when domains are configured, plain
// HTTP otherwise.
func serve(ctx context.Context, srv *http.Server, cfg *config.Config, logger *slog.Logger) error {
	if len(cfg.TLS.Domains) == 0 {
		logger.Info("server starting", "port", cfg.Port)
		return srv.ListenAndServe()
	}
	cm, err := tlsutil.NewCertManager(tlsutil.Options{
		Domains:    cfg.TLS.Domains,
		Email:      cfg.TLS.Email,
		Production: cfg.Production(),
	}, logger)
	if err != nil {
		return err
	}
	if err := cm.Manage(ctx); err != nil {
		return err
	}
	return cm.ServeTLS(srv)
}
