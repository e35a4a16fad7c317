package model

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trustnet/trustnet-go/internal/features"
)

// State is the lifecycle of the published bundle.
type State int32

const (
	StateUnloaded State = iota
	StateLoading
	StateLoaded
	StateLoadFailed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateLoadFailed:
		return "load_failed"
	}
	return "unknown"
}

// MarshalText encodes the state name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	for st := StateUnloaded; st <= StateLoadFailed; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown model state %q", b)
}

// Store publishes the current bundle. Readers never block and always see a
// complete bundle; Reload builds the next one off to the side and swaps it in.
type Store struct {
	src    Source
	opts   LoadOptions
	logger *slog.Logger

	current atomic.Pointer[Bundle]
	state   atomic.Int32

	reloadMu sync.Mutex
	lastErr  atomic.Pointer[string]
	reloads  atomic.Int64
}

// NewStore creates an unloaded store. src may be nil, in which case every
// reload fails and scoring stays heuristic-only.
func NewStore(src Source, opts LoadOptions, logger *slog.Logger) *Store {
	return &Store{src: src, opts: opts, logger: logger}
}

// Reload loads a fresh bundle from the source and publishes it. A failed
// reload keeps the previously published bundle, if any.
func (s *Store) Reload(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	prev := s.current.Load()
	s.state.Store(int32(StateLoading))
	start := time.Now()

	b, err := Load(ctx, s.src, s.opts)
	s.reloads.Add(1)
	s.setErr(err)

	if b.Len() == 0 {
		if prev != nil {
			s.state.Store(int32(StateLoaded))
			s.logger.Warn("model reload failed, keeping current bundle",
				"version", prev.Version, "source", s.sourceName(), "err", err)
			return err
		}
		s.state.Store(int32(StateLoadFailed))
		s.logger.Warn("model unavailable, scoring with heuristics only",
			"source", s.sourceName(), "err", err)
		return err
	}

	if err != nil {
		s.logger.Warn("model bundle partially loaded", "version", b.Version, "err", err)
	}
	s.current.Store(b)
	s.state.Store(int32(StateLoaded))
	s.logger.Info("model bundle loaded",
		"version", b.Version,
		"kinds", b.Kinds(),
		"source", b.Source,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return err
}

// Publish swaps in a bundle built elsewhere.
func (s *Store) Publish(b *Bundle) {
	s.current.Store(b)
	s.state.Store(int32(StateLoaded))
	s.setErr(nil)
}

// Current returns the published bundle, or nil.
func (s *Store) Current() *Bundle { return s.current.Load() }

// Lookup returns the predictor for kind from the published bundle.
func (s *Store) Lookup(kind features.Kind) (Predictor, bool) {
	a := s.current.Load().Artifact(kind)
	if a == nil {
		return nil, false
	}
	return a, true
}

// Status is a point-in-time view of the store.
type Status struct {
	State     State           `json:"state" yaml:"state"`
	Version   string          `json:"version,omitempty" yaml:"version,omitempty"`
	Kinds     []features.Kind `json:"kinds" yaml:"kinds"`
	Source    string          `json:"source" yaml:"source"`
	LoadedAt  *time.Time      `json:"loaded_at,omitempty" yaml:"loaded_at,omitempty"`
	Reloads   int64           `json:"reloads" yaml:"reloads"`
	LastError string          `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	Artifacts []Info          `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
}

// Status reports the store state and the published bundle.
func (s *Store) Status() Status {
	st := Status{
		State:   State(s.state.Load()),
		Source:  s.sourceName(),
		Kinds:   []features.Kind{},
		Reloads: s.reloads.Load(),
	}
	if e := s.lastErr.Load(); e != nil {
		st.LastError = *e
	}
	if b := s.current.Load(); b != nil {
		st.Version = b.Version
		st.Kinds = b.Kinds()
		loaded := b.LoadedAt
		st.LoadedAt = &loaded
		for _, k := range st.Kinds {
			st.Artifacts = append(st.Artifacts, b.Artifact(k).Info())
		}
	}
	return st
}

func (s *Store) setErr(err error) {
	if err == nil {
		s.lastErr.Store(nil)
		return
	}
	msg := err.Error()
	s.lastErr.Store(&msg)
}

func (s *Store) sourceName() string {
	if s.src == nil {
		return "none"
	}
	return s.src.String()
}
