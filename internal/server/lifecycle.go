// Package server holds process lifecycle helpers shared by the binaries.
package server

import (
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"time"
)

// maxRestartBackoff caps the delay between restarts of a supervised goroutine.
const maxRestartBackoff = 5 * time.Minute

// restartBackoff is 1s, 2s, 4s, ... capped at maxRestartBackoff.
func restartBackoff(attempt int) time.Duration {
	return time.Duration(math.Min(
		float64(time.Second)*math.Pow(2, float64(attempt-1)),
		float64(maxRestartBackoff),
	))
}

// RunWithRecovery runs fn in a loop, recovering from panics with exponential backoff.
// It stops when ctx is cancelled.
func RunWithRecovery(ctx context.Context, logger *slog.Logger, name string, fn func(ctx context.Context)) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			logger.Info("goroutine stopped", "name", name, "reason", "context cancelled")
			return
		}

		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("goroutine panicked",
						"name", name,
						"panic", r,
						"stack", string(debug.Stack()),
						"attempt", attempt,
					)
				}
			}()
			fn(ctx)
		}()

		if ctx.Err() != nil {
			return
		}

		attempt++
		backoff := restartBackoff(attempt)
		logger.Warn("goroutine restarting",
			"name", name,
			"attempt", attempt,
			"backoff", backoff,
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

// OnSignal calls fn each time one of sigs arrives, until ctx is cancelled.
func OnSignal(ctx context.Context, fn func(os.Signal), sigs ...os.Signal) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	defer signal.Stop(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-ch:
			fn(sig)
		}
	}
}

// ParseLevel maps a level name to a slog level. Unknown names mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// SetupLogger creates a structured slog.Logger writing to stdout. format
// "text" selects the text handler; anything else is JSON.
func SetupLogger(level, format string) *slog.Logger {
	return NewLogger(os.Stdout, level, format)
}

// NewLogger is SetupLogger with an explicit destination.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
