// Package model loads trained classifier artifacts and turns feature vectors
// into phishing probabilities. Artifacts are immutable once loaded; a reload
// publishes a complete new bundle atomically.
package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/trustnet/trustnet-go/internal/features"
)

var (
	// ErrNotFound is returned when an artifact file does not exist.
	ErrNotFound = errors.New("model artifact not found")
	// ErrCorrupt is returned when an artifact file cannot be parsed.
	ErrCorrupt = errors.New("corrupt model artifact")
	// ErrSchemaMismatch is returned when an artifact's feature layout does not
	// agree with the extractor schema or with the vector being scored.
	ErrSchemaMismatch = errors.New("feature schema mismatch")
)

// Prediction is the model verdict for one input.
type Prediction struct {
	// ProbabilityPhishing is the positive-class probability in [0,1].
	ProbabilityPhishing float64
	// Confidence is the larger class probability in [0.5,1].
	Confidence float64
	// Version of the artifact bundle that produced the prediction.
	Version string
}

// Predictor scores a feature vector. text feeds the optional vectorizer.
type Predictor interface {
	Predict(v features.Vector, text string) (Prediction, error)
}

// Artifact is a validated classifier with its preprocessing state.
type Artifact struct {
	kind         features.Kind
	version      string
	featureNames []string
	classifier   Classifier
	scaler       *StandardScaler
	vectorizer   *TfidfVectorizer
}

// NewArtifact validates the components against each other and against the
// extractor schema for kind. scaler and vectorizer may be nil.
func NewArtifact(kind features.Kind, version string, featureNames []string, c Classifier, scaler *StandardScaler, vectorizer *TfidfVectorizer) (*Artifact, error) {
	schema, ok := features.SchemaFor(kind)
	if !ok {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrSchemaMismatch, kind)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: %s artifact has no classifier", ErrCorrupt, kind)
	}

	seen := make(map[string]struct{}, len(featureNames))
	for _, name := range featureNames {
		if !schema.Has(name) {
			return nil, fmt.Errorf("%w: %s artifact expects feature %q the extractor does not produce", ErrSchemaMismatch, kind, name)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: %s artifact lists feature %q twice", ErrSchemaMismatch, kind, name)
		}
		seen[name] = struct{}{}
	}

	a := &Artifact{
		kind:         kind,
		version:      version,
		featureNames: featureNames,
		classifier:   c,
		scaler:       scaler,
		vectorizer:   vectorizer,
	}
	width := a.Width()
	if width == 0 {
		return nil, fmt.Errorf("%w: %s artifact has no inputs", ErrSchemaMismatch, kind)
	}
	if c.NumFeatures() != width {
		return nil, fmt.Errorf("%w: %s classifier expects %d inputs, artifact provides %d", ErrSchemaMismatch, kind, c.NumFeatures(), width)
	}
	if scaler != nil && scaler.Len() != width {
		return nil, fmt.Errorf("%w: %s scaler fitted on %d columns, artifact provides %d", ErrSchemaMismatch, kind, scaler.Len(), width)
	}
	return a, nil
}

// Kind returns the input kind the artifact scores.
func (a *Artifact) Kind() features.Kind { return a.kind }

// Version returns the bundle version the artifact was loaded from.
func (a *Artifact) Version() string { return a.version }

// FeatureNames returns the persisted training order.
func (a *Artifact) FeatureNames() []string {
	out := make([]string, len(a.featureNames))
	copy(out, a.featureNames)
	return out
}

// Width is the assembled input width: vectorizer columns, then named features.
func (a *Artifact) Width() int {
	w := len(a.featureNames)
	if a.vectorizer != nil {
		w += a.vectorizer.Width()
	}
	return w
}

// Info summarizes the artifact for status output.
type Info struct {
	Kind          features.Kind `json:"kind" yaml:"kind"`
	Version       string        `json:"version" yaml:"version"`
	Classifier    string        `json:"classifier" yaml:"classifier"`
	Width         int           `json:"width" yaml:"width"`
	FeatureNames  []string      `json:"feature_names" yaml:"feature_names"`
	HasScaler     bool          `json:"has_scaler" yaml:"has_scaler"`
	HasVectorizer bool          `json:"has_vectorizer" yaml:"has_vectorizer"`
}

// Info describes the artifact.
func (a *Artifact) Info() Info {
	return Info{
		Kind:          a.kind,
		Version:       a.version,
		Classifier:    a.classifier.Type(),
		Width:         a.Width(),
		FeatureNames:  a.FeatureNames(),
		HasScaler:     a.scaler != nil,
		HasVectorizer: a.vectorizer != nil,
	}
}

// Predict reorders v into the persisted training order, prepends the
// vectorized text when the artifact has a vectorizer, scales and classifies.
// A vector of the wrong kind or missing a trained feature is refused.
func (a *Artifact) Predict(v features.Vector, text string) (Prediction, error) {
	if v.Kind() != a.kind {
		return Prediction{}, fmt.Errorf("%w: %s artifact cannot score a %q vector", ErrSchemaMismatch, a.kind, v.Kind())
	}

	x := make([]float64, 0, a.Width())
	if a.vectorizer != nil {
		x = append(x, a.vectorizer.Transform(text)...)
	}
	for _, name := range a.featureNames {
		val, ok := v.Lookup(name)
		if !ok {
			return Prediction{}, fmt.Errorf("%w: vector has no %q", ErrSchemaMismatch, name)
		}
		x = append(x, val)
	}
	if len(x) != a.classifier.NumFeatures() {
		return Prediction{}, fmt.Errorf("%w: assembled %d inputs, classifier expects %d", ErrSchemaMismatch, len(x), a.classifier.NumFeatures())
	}
	if a.scaler != nil {
		x = a.scaler.Transform(x)
	}

	p := a.classifier.ProbaPositive(x)
	if math.IsNaN(p) {
		return Prediction{}, fmt.Errorf("%w: classifier produced NaN", ErrCorrupt)
	}
	p = math.Max(0, math.Min(1, p))
	return Prediction{
		ProbabilityPhishing: p,
		Confidence:          math.Max(p, 1-p),
		Version:             a.version,
	}, nil
}
