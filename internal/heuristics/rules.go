package heuristics

import (
	"fmt"

	f "github.com/trustnet/trustnet-go/internal/features"
)

// Rule weights are hand-tuned and pinned; changing one changes every score.
var urlRules = []rule{
	{
		factor: "no_https",
		impact: Medium,
		weight: func(v f.Vector) float64 { return when(v.Get(f.HasHTTPS) == 0, 0.25) },
		describe: func(f.Vector) string {
			return "Website does not use a secure HTTPS connection"
		},
	},
	{
		factor: "ip_address_host",
		impact: High,
		weight: func(v f.Vector) float64 { return when(v.Get(f.HasIP) > 0, 0.5) },
		describe: func(f.Vector) string {
			return "Uses a raw IP address instead of a domain name"
		},
	},
	{
		factor: "brand_impersonation",
		impact: High,
		weight: func(v f.Vector) float64 { return when(v.Get(f.BrandImpersonation) > 0, 0.45) },
		describe: func(v f.Vector) string {
			return fmt.Sprintf("Domain references %d well-known brand(s) it does not belong to", int(v.Get(f.BrandImpersonation)))
		},
	},
	{
		factor: "suspicious_tld",
		impact: Medium,
		weight: func(v f.Vector) float64 { return when(v.Get(f.SuspiciousTLD) > 0, 0.35) },
		describe: func(f.Vector) string {
			return "Uses a top-level domain commonly abused for phishing"
		},
	},
	{
		factor: "url_shortener",
		impact: Medium,
		weight: func(v f.Vector) float64 { return when(v.Get(f.HasShortener) > 0, 0.3) },
		describe: func(f.Vector) string {
			return "Uses a URL shortener that hides the real destination"
		},
	},
	{
		factor: "long_url",
		impact: Low,
		weight: func(v f.Vector) float64 { return when(v.Get(f.URLLength) > 100, 0.2) },
		describe: func(v f.Vector) string {
			return fmt.Sprintf("Unusually long URL (%d characters)", int(v.Get(f.URLLength)))
		},
	},
	{
		factor: "excessive_subdomains",
		impact: Medium,
		weight: func(v f.Vector) float64 { return when(v.Get(f.SubdomainCount) > 3, 0.25) },
		describe: func(v f.Vector) string {
			return fmt.Sprintf("Excessive number of subdomains (%d)", int(v.Get(f.SubdomainCount)))
		},
	},
	{
		factor: "high_digit_ratio",
		impact: Low,
		weight: func(v f.Vector) float64 { return when(v.Get(f.DigitRatio) > 0.3, 0.15) },
		describe: func(v f.Vector) string {
			return fmt.Sprintf("High proportion of digits in URL (%.0f%%)", v.Get(f.DigitRatio)*100)
		},
	},
}

var emailRules = []rule{
	{
		factor: "urgent_language",
		impact: Medium,
		weight: func(v f.Vector) float64 { return scaled(v.Get(f.UrgentWords), 0.1, 0.3) },
		describe: func(v f.Vector) string {
			return fmt.Sprintf("Uses urgent language (%d indicators)", int(v.Get(f.UrgentWords)))
		},
	},
	{
		factor: "threatening_language",
		impact: High,
		weight: func(v f.Vector) float64 { return scaled(v.Get(f.ThreatWords), 0.15, 0.4) },
		describe: func(v f.Vector) string {
			return fmt.Sprintf("Threatens account suspension or lockout (%d indicators)", int(v.Get(f.ThreatWords)))
		},
	},
	{
		factor: "financial_lure",
		impact: Medium,
		weight: func(v f.Vector) float64 { return scaled(v.Get(f.MoneyWords), 0.1, 0.3) },
		describe: func(v f.Vector) string {
			return fmt.Sprintf("Mentions money, prizes or rewards (%d indicators)", int(v.Get(f.MoneyWords)))
		},
	},
	{
		factor: "excessive_action_requests",
		impact: Medium,
		weight: func(v f.Vector) float64 { return when(v.Get(f.ActionWords) > 2, 0.25) },
		describe: func(v f.Vector) string {
			return fmt.Sprintf("Repeatedly asks the reader to act (%d requests)", int(v.Get(f.ActionWords)))
		},
	},
	{
		factor: "excessive_capitals",
		impact: Low,
		weight: func(v f.Vector) float64 { return when(v.Get(f.CapsRatio) > 0.3, 0.2) },
		describe: func(v f.Vector) string {
			return fmt.Sprintf("Excessive use of capital letters (%.0f%%)", v.Get(f.CapsRatio)*100)
		},
	},
	{
		factor: "excessive_exclamation",
		impact: Low,
		weight: func(v f.Vector) float64 { return when(v.Get(f.ExclamationCount) > 3, 0.15) },
		describe: func(v f.Vector) string {
			return fmt.Sprintf("Excessive exclamation marks (%d)", int(v.Get(f.ExclamationCount)))
		},
	},
	{
		factor: "many_links",
		impact: Medium,
		weight: func(v f.Vector) float64 { return when(v.Get(f.HasLinks) > 2, 0.25) },
		describe: func(v f.Vector) string {
			return fmt.Sprintf("Contains many links (%d)", int(v.Get(f.HasLinks)))
		},
	},
	{
		factor: "phone_numbers",
		impact: Low,
		weight: func(v f.Vector) float64 { return when(v.Get(f.HasPhoneNumbers) > 0, 0.1) },
		describe: func(v f.Vector) string {
			return fmt.Sprintf("Asks the reader to call a phone number (%d found)", int(v.Get(f.HasPhoneNumbers)))
		},
	},
}
