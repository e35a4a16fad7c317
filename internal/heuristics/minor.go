package heuristics

import (
	"fmt"

	f "github.com/trustnet/trustnet-go/internal/features"
)

// MinorIssuePenalty is the trust deducted per soft warning on an allowlisted URL.
const MinorIssuePenalty = 2.5

// minorRules are soft warnings for verified domains. They never make an
// allowlisted input untrusted, they only explain a small deduction.
var minorRules = []rule{
	{
		factor: "no_https",
		impact: Low,
		weight: func(v f.Vector) float64 { return when(v.Get(f.HasHTTPS) == 0, 1) },
		describe: func(f.Vector) string {
			return "Verified domain reached without HTTPS"
		},
	},
	{
		factor: "long_url",
		impact: Low,
		weight: func(v f.Vector) float64 { return when(v.Get(f.URLLength) > 150, 1) },
		describe: func(v f.Vector) string {
			return fmt.Sprintf("Very long URL on a verified domain (%d characters)", int(v.Get(f.URLLength)))
		},
	},
	{
		factor: "excessive_subdomains",
		impact: Low,
		weight: func(v f.Vector) float64 { return when(v.Get(f.SubdomainCount) > 4, 1) },
		describe: func(v f.Vector) string {
			return fmt.Sprintf("Deeply nested subdomain on a verified domain (%d levels)", int(v.Get(f.SubdomainCount)))
		},
	},
}

// MinorIssues returns the soft warnings that apply to an allowlisted URL vector.
func MinorIssues(v f.Vector) []Explanation {
	if v.Kind() != f.KindURL {
		return nil
	}
	var out []Explanation
	for _, r := range minorRules {
		if r.weight(v) > 0 {
			out = append(out, Explanation{Factor: r.factor, Impact: r.impact, Description: r.describe(v)})
		}
	}
	return out
}
