// Package scoring runs the trust scoring pipeline: validation, feature
// extraction, the allowlist short-circuit, heuristic and model scoring, and
// result assembly.
package scoring

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/trustnet/trustnet-go/internal/allowlist"
	"github.com/trustnet/trustnet-go/internal/features"
	"github.com/trustnet/trustnet-go/internal/heuristics"
	"github.com/trustnet/trustnet-go/internal/mailparse"
	"github.com/trustnet/trustnet-go/internal/model"
	"github.com/trustnet/trustnet-go/internal/qr"
)

// Models resolves the predictor for an input kind. *model.Store satisfies it.
type Models interface {
	Lookup(kind features.Kind) (model.Predictor, bool)
}

const (
	// AllowlistConfidence is reported for verified domains.
	AllowlistConfidence = 99.0

	heuristicBaseConfidence = 70.0
	heuristicConfidenceStep = 4.0
	heuristicMaxConfidence  = 95.0

	// Fixed verdict for QR payloads that are not links.
	qrTextTrust      = 80.0
	qrTextConfidence = 70.0
)

// Engine scores inputs. It holds no per-request state and is safe for
// concurrent use.
type Engine struct {
	allow   *allowlist.Matcher
	models  Models
	decoder qr.Decoder
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an engine. A nil matcher uses the built-in allowlist, nil models
// scores with heuristics only and a nil decoder uses ZXing.
func New(allow *allowlist.Matcher, models Models, decoder qr.Decoder, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if allow == nil {
		allow = allowlist.Default()
	}
	if decoder == nil {
		decoder = qr.NewZXing(logger)
	}
	return &Engine{allow: allow, models: models, decoder: decoder, logger: logger, now: time.Now}
}

// Score validates and scores one input. The only errors are a
// *ValidationError and a model schema mismatch for this input.
func (e *Engine) Score(in Input) (*Result, error) {
	start := e.now()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var (
		res *Result
		err error
	)
	switch in.Kind {
	case KindURL:
		res, err = e.scoreURL(start, strings.TrimSpace(in.Value))
	case KindEmail:
		res, err = e.scoreEmail(start, features.Email{Subject: in.Subject, Body: in.Value})
	case KindQRText:
		res, err = e.scoreQRText(start, strings.TrimSpace(in.Value))
	}
	if err != nil {
		return nil, err
	}
	e.logResult(res)
	return res, nil
}

// ScoreEmailMessage scores a raw RFC 822 message.
func (e *Engine) ScoreEmailMessage(r io.Reader) (*Result, error) {
	start := e.now()
	msg, err := mailparse.Parse(r)
	if err != nil {
		return nil, &ValidationError{Field: "message", Reason: err.Error()}
	}
	if strings.TrimSpace(msg.Body) == "" && strings.TrimSpace(msg.Subject) == "" {
		return nil, &ValidationError{Field: "message", Reason: "no subject or text body"}
	}
	res, err := e.scoreEmail(start, msg.Email())
	if err != nil {
		return nil, err
	}
	e.logResult(res)
	return res, nil
}

// ScoreQRImage decodes a QR code image and scores its payload. An image
// without a readable code yields the Unknown result, not an error.
func (e *Engine) ScoreQRImage(img []byte) (*Result, error) {
	start := e.now()
	if len(img) == 0 {
		return nil, &ValidationError{Field: "image", Reason: "must not be empty"}
	}
	text, ok := e.decoder.Decode(img)
	if !ok {
		res := assemble(start, e.now(), verdict{
			kind:     KindQRText,
			category: CategoryUnknown,
			explanations: []heuristics.Explanation{{
				Factor:      "undecodable",
				Impact:      heuristics.High,
				Description: "Could not decode a QR code from the image",
			}},
			source: SourceQR,
		})
		e.logResult(res)
		return res, nil
	}
	res, err := e.scoreQRText(start, text)
	if err != nil {
		return nil, err
	}
	e.logResult(res)
	return res, nil
}

func (e *Engine) scoreURL(start time.Time, raw string) (*Result, error) {
	v := features.ExtractURL(raw)
	if entry, ok := e.allow.Match(features.Hostname(raw)); ok {
		return e.allowlisted(start, v, entry), nil
	}
	vd, err := e.fuse(KindURL, v, raw)
	if err != nil {
		return nil, err
	}
	return assemble(start, e.now(), vd), nil
}

// allowlisted scores a verified domain: a small deduction per soft warning,
// never below the entry's floor.
func (e *Engine) allowlisted(start time.Time, v features.Vector, entry allowlist.Entry) *Result {
	minor := heuristics.MinorIssues(v)
	trust := math.Max(entry.TrustFloor, 100-heuristics.MinorIssuePenalty*float64(len(minor)))

	explanations := make([]heuristics.Explanation, 0, len(minor)+1)
	explanations = append(explanations, heuristics.Explanation{
		Factor:      "verified_domain",
		Impact:      heuristics.Low,
		Description: fmt.Sprintf("Verified legitimate domain (%s)", entry.Pattern),
	})
	explanations = append(explanations, minor...)

	return assemble(start, e.now(), verdict{
		kind:         KindURL,
		trust:        trust,
		confidence:   AllowlistConfidence,
		vector:       v,
		explanations: explanations,
		source:       SourceAllowlist,
	})
}

func (e *Engine) scoreEmail(start time.Time, msg features.Email) (*Result, error) {
	v := features.ExtractEmail(msg)
	vd, err := e.fuse(KindEmail, v, msg.FullText())
	if err != nil {
		return nil, err
	}
	return assemble(start, e.now(), vd), nil
}

// fuse runs the heuristic rules and, when an artifact is loaded for the kind,
// the model. The model score supersedes the heuristic risk; explanations are
// always heuristic.
func (e *Engine) fuse(kind Kind, v features.Vector, text string) (verdict, error) {
	a := heuristics.Aggregate(v)
	vd := verdict{
		kind:         kind,
		vector:       v,
		explanations: a.Explanations,
	}

	if e.models != nil {
		if p, ok := e.models.Lookup(v.Kind()); ok {
			pred, err := p.Predict(v, text)
			if err != nil {
				return verdict{}, fmt.Errorf("score %s: %w", kind, err)
			}
			vd.trust = (1 - pred.ProbabilityPhishing) * 100
			vd.confidence = pred.Confidence * 100
			vd.source = SourceModel
			vd.modelVersion = pred.Version
			return vd, nil
		}
	}

	vd.trust = (1 - a.Risk) * 100
	vd.confidence = math.Min(heuristicMaxConfidence,
		heuristicBaseConfidence+heuristicConfidenceStep*float64(len(a.Explanations)))
	vd.source = SourceHeuristic
	return vd, nil
}

// scoreQRText scores a decoded payload. Links take the URL path with an extra
// warning when they are not HTTPS; anything else gets a fixed benign verdict.
func (e *Engine) scoreQRText(start time.Time, text string) (*Result, error) {
	ct := qr.Classify(text)
	if ct.IsURL() {
		res, err := e.scoreURL(start, text)
		if err != nil {
			return nil, err
		}
		if res.Features.Get(features.HasHTTPS) == 0 {
			res.Explanations = append(res.Explanations, heuristics.Explanation{
				Factor:      "qr_insecure_link",
				Impact:      heuristics.Medium,
				Description: "QR code opens a link without HTTPS",
			})
			heuristics.SortByImpact(res.Explanations)
		}
		res.Kind = KindQRText
		res.DecodedContent = text
		res.QRContentType = ct
		return res, nil
	}

	res := assemble(start, e.now(), verdict{
		kind:       KindQRText,
		trust:      qrTextTrust,
		confidence: qrTextConfidence,
		explanations: []heuristics.Explanation{{
			Factor:      "non_url_content",
			Impact:      heuristics.Low,
			Description: fmt.Sprintf("QR code contains %s content, not a link", ct),
		}},
		source: SourceQR,
	})
	res.DecodedContent = text
	res.QRContentType = ct
	return res, nil
}

func (e *Engine) logResult(r *Result) {
	e.logger.Debug("input scored",
		"id", r.ID,
		"kind", r.Kind,
		"trust_score", r.TrustScore,
		"risk_category", r.RiskCategory,
		"source", r.Source,
		"duration_ms", r.ProcessingTime,
	)
}
