// Package heuristics turns a feature vector into an additive risk value and
// the human-readable explanations behind it.
package heuristics

import (
	"fmt"
	"math"
	"sort"

	"github.com/trustnet/trustnet-go/internal/features"
)

// Impact ranks how much an explanation contributed to the score.
type Impact int

const (
	Low Impact = iota + 1
	Medium
	High
)

func (i Impact) String() string {
	switch i {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	}
	return fmt.Sprintf("impact(%d)", int(i))
}

// MarshalText encodes the impact as its lower-case name.
func (i Impact) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

// UnmarshalText accepts "low", "medium" or "high".
func (i *Impact) UnmarshalText(b []byte) error {
	switch string(b) {
	case "low":
		*i = Low
	case "medium":
		*i = Medium
	case "high":
		*i = High
	default:
		return fmt.Errorf("unknown impact %q", b)
	}
	return nil
}

// Explanation is one reason behind a score.
type Explanation struct {
	Factor      string `json:"factor" yaml:"factor"`
	Impact      Impact `json:"impact" yaml:"impact"`
	Description string `json:"description" yaml:"description"`
}

// NoIssues is emitted when no rule fires.
var NoIssues = Explanation{
	Factor:      "no_issues",
	Impact:      Low,
	Description: "No significant risk factors detected",
}

// Assessment is the aggregated heuristic verdict for one vector.
type Assessment struct {
	// Risk is the clamped sum of fired rule weights, in [0,1].
	Risk float64
	// Fired counts rules that contributed weight.
	Fired int
	// Explanations are ordered by impact, then rule declaration order. Never empty.
	Explanations []Explanation
}

// rule is a predicate over a vector. weight returns 0 when the rule does not fire.
type rule struct {
	factor   string
	impact   Impact
	weight   func(v features.Vector) float64
	describe func(v features.Vector) string
}

// Aggregate evaluates every rule for the vector's kind independently and sums
// their weights.
func Aggregate(v features.Vector) Assessment {
	var (
		sum float64
		out []Explanation
	)
	for _, r := range rulesFor(v.Kind()) {
		w := r.weight(v)
		if w <= 0 {
			continue
		}
		sum += w
		out = append(out, Explanation{Factor: r.factor, Impact: r.impact, Description: r.describe(v)})
	}

	a := Assessment{Risk: math.Max(0, math.Min(1, sum)), Fired: len(out)}
	if len(out) == 0 {
		a.Explanations = []Explanation{NoIssues}
		return a
	}
	SortByImpact(out)
	a.Explanations = out
	return a
}

// SortByImpact orders explanations most impactful first, keeping existing
// order for ties.
func SortByImpact(e []Explanation) {
	sort.SliceStable(e, func(i, j int) bool { return e[i].Impact > e[j].Impact })
}

func rulesFor(kind features.Kind) []rule {
	switch kind {
	case features.KindURL:
		return urlRules
	case features.KindEmail:
		return emailRules
	}
	return nil
}

// RuleInfo describes a rule without evaluating it.
type RuleInfo struct {
	Factor string `json:"factor" yaml:"factor"`
	Impact Impact `json:"impact" yaml:"impact"`
}

// Rules lists the rules evaluated for kind in declaration order.
func Rules(kind features.Kind) []RuleInfo {
	rules := rulesFor(kind)
	out := make([]RuleInfo, 0, len(rules))
	for _, r := range rules {
		out = append(out, RuleInfo{Factor: r.factor, Impact: r.impact})
	}
	return out
}

func when(cond bool, w float64) float64 {
	if cond {
		return w
	}
	return 0
}

// scaled is n*per capped at limit.
func scaled(n, per, limit float64) float64 {
	return math.Min(limit, n*per)
}
