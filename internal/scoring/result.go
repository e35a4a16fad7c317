package scoring

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/trustnet/trustnet-go/internal/features"
	"github.com/trustnet/trustnet-go/internal/heuristics"
	"github.com/trustnet/trustnet-go/internal/qr"
)

// Source records which path produced the score.
type Source string

const (
	SourceAllowlist Source = "allowlist"
	SourceHeuristic Source = "heuristic"
	SourceModel     Source = "model"
	SourceQR        Source = "qr"
)

// Result is the outcome of scoring one input. TrustScore and RiskCategory
// always agree under Categorize, except for undecodable QR images which carry
// CategoryUnknown.
type Result struct {
	ID             string                   `json:"id" yaml:"id"`
	Kind           Kind                     `json:"kind" yaml:"kind"`
	TrustScore     float64                  `json:"trust_score" yaml:"trust_score"`
	RiskCategory   Category                 `json:"risk_category" yaml:"risk_category"`
	Confidence     float64                  `json:"confidence" yaml:"confidence"`
	Features       features.Vector          `json:"features" yaml:"features"`
	Explanations   []heuristics.Explanation `json:"explanations" yaml:"explanations"`
	ProcessingTime float64                  `json:"processing_time" yaml:"processing_time"`
	Timestamp      time.Time                `json:"timestamp" yaml:"timestamp"`
	Source         Source                   `json:"source" yaml:"source"`
	ModelVersion   string                   `json:"model_version,omitempty" yaml:"model_version,omitempty"`
	DecodedContent string                   `json:"decoded_content,omitempty" yaml:"decoded_content,omitempty"`
	QRContentType  qr.ContentType           `json:"qr_content_type,omitempty" yaml:"qr_content_type,omitempty"`
}

// verdict is a score before it is stamped and packaged.
type verdict struct {
	kind         Kind
	trust        float64
	confidence   float64
	category     Category
	vector       features.Vector
	explanations []heuristics.Explanation
	source       Source
	modelVersion string
}

// assemble rounds the scores, derives the category when the verdict does not
// carry one and stamps id, duration and time.
func assemble(start, now time.Time, v verdict) *Result {
	trust := round2(clamp100(v.trust))
	category := v.category
	if category == "" {
		category = Categorize(trust)
	}
	explanations := v.explanations
	if explanations == nil {
		explanations = []heuristics.Explanation{}
	}
	return &Result{
		ID:             uuid.NewString(),
		Kind:           v.kind,
		TrustScore:     trust,
		RiskCategory:   category,
		Confidence:     round2(clamp100(v.confidence)),
		Features:       v.vector,
		Explanations:   explanations,
		ProcessingTime: round2(float64(now.Sub(start).Microseconds()) / 1000),
		Timestamp:      now.UTC(),
		Source:         v.source,
		ModelVersion:   v.modelVersion,
	}
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }

func clamp100(x float64) float64 { return math.Max(0, math.Min(100, x)) }
