package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/trustnet/trustnet-go/internal/features"
)

// ManifestName is the bundle entry point, relative to the source root.
const ManifestName = "manifest.yaml"

// DefaultVersion is assumed for manifests that do not declare one.
const DefaultVersion = "2.0.0"

// Manifest lists the component files of each artifact in a bundle.
type Manifest struct {
	Version   string                           `yaml:"version"`
	CreatedAt time.Time                        `yaml:"created_at"`
	Models    map[features.Kind]ComponentFiles `yaml:"models"`
}

// ComponentFiles names the files of one artifact. Scaler and Vectorizer are
// optional.
type ComponentFiles struct {
	Classifier   string `yaml:"classifier"`
	Scaler       string `yaml:"scaler,omitempty"`
	Vectorizer   string `yaml:"vectorizer,omitempty"`
	FeatureNames string `yaml:"feature_names"`
}

// Bundle is a set of artifacts published together.
type Bundle struct {
	Version   string
	CreatedAt time.Time
	LoadedAt  time.Time
	Source    string
	artifacts map[features.Kind]*Artifact
}

// NewBundle assembles a bundle from already validated artifacts.
func NewBundle(version string, artifacts ...*Artifact) *Bundle {
	b := &Bundle{Version: version, LoadedAt: time.Now(), artifacts: make(map[features.Kind]*Artifact)}
	for _, a := range artifacts {
		b.artifacts[a.Kind()] = a
	}
	return b
}

// Artifact returns the artifact for kind, or nil.
func (b *Bundle) Artifact(kind features.Kind) *Artifact {
	if b == nil {
		return nil
	}
	return b.artifacts[kind]
}

// Kinds lists the kinds with a loaded artifact, sorted.
func (b *Bundle) Kinds() []features.Kind {
	if b == nil {
		return nil
	}
	out := make([]features.Kind, 0, len(b.artifacts))
	for k := range b.artifacts {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len is the number of loaded artifacts.
func (b *Bundle) Len() int {
	if b == nil {
		return 0
	}
	return len(b.artifacts)
}

// LoadOptions bound the retry loop around artifact reads.
type LoadOptions struct {
	MaxRetries     uint64
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (o LoadOptions) backoff() retry.Backoff {
	initial := o.InitialBackoff
	if initial <= 0 {
		initial = 500 * time.Millisecond
	}
	b := retry.NewExponential(initial)
	if o.MaxBackoff > 0 {
		b = retry.WithCappedDuration(o.MaxBackoff, b)
	}
	return retry.WithMaxRetries(o.MaxRetries, b)
}

// Load reads the manifest and every artifact it lists. Artifacts load
// concurrently; one that fails validation is left out and its error joined
// into the returned error. The bundle is nil only when the manifest itself
// could not be read.
func Load(ctx context.Context, src Source, opts LoadOptions) (*Bundle, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: no model source configured", ErrNotFound)
	}

	raw, err := fetch(ctx, src, ManifestName, opts)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: manifest: %v", ErrCorrupt, err)
	}
	if m.Version == "" {
		m.Version = DefaultVersion
	}

	b := NewBundle(m.Version)
	b.CreatedAt = m.CreatedAt
	b.Source = src.String()

	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	for kind, files := range m.Models {
		g.Go(func() error {
			a, err := loadArtifact(ctx, src, kind, m.Version, files, opts)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s model: %w", kind, err))
				return nil
			}
			b.artifacts[kind] = a
			return nil
		})
	}
	_ = g.Wait()
	return b, errors.Join(errs...)
}

func loadArtifact(ctx context.Context, src Source, kind features.Kind, version string, files ComponentFiles, opts LoadOptions) (*Artifact, error) {
	if files.Classifier == "" {
		return nil, fmt.Errorf("%w: manifest names no classifier", ErrCorrupt)
	}

	var names []string
	if files.FeatureNames != "" {
		raw, err := fetch(ctx, src, files.FeatureNames, opts)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &names); err != nil {
			return nil, fmt.Errorf("%w: feature names: %v", ErrCorrupt, err)
		}
	}

	raw, err := fetch(ctx, src, files.Classifier, opts)
	if err != nil {
		return nil, err
	}
	c, err := decodeClassifier(raw)
	if err != nil {
		return nil, err
	}

	var scaler *StandardScaler
	if files.Scaler != "" {
		raw, err := fetch(ctx, src, files.Scaler, opts)
		if err != nil {
			return nil, err
		}
		if scaler, err = decodeScaler(raw); err != nil {
			return nil, err
		}
	}

	var vectorizer *TfidfVectorizer
	if files.Vectorizer != "" {
		raw, err := fetch(ctx, src, files.Vectorizer, opts)
		if err != nil {
			return nil, err
		}
		if vectorizer, err = decodeVectorizer(raw); err != nil {
			return nil, err
		}
	}

	return NewArtifact(kind, version, names, c, scaler, vectorizer)
}

// fetch reads one file, retrying transient source errors with backoff.
// Missing files are not retried.
func fetch(ctx context.Context, src Source, name string, opts LoadOptions) ([]byte, error) {
	var data []byte
	err := retry.Do(ctx, opts.backoff(), func(ctx context.Context) error {
		rc, err := src.Open(ctx, name)
		if errors.Is(err, ErrNotFound) {
			return err
		}
		if err != nil {
			return retry.RetryableError(err)
		}
		defer rc.Close()

		b, err := io.ReadAll(rc)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("read %s: %w", name, err))
		}
		data = b
		return nil
	})
	return data, err
}
