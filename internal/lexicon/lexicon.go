// Package lexicon holds the static keyword, TLD and domain tables shared by
// feature extraction, the heuristic rules and the allowlist.
package lexicon

import (
	"bufio"
	"embed"
	"fmt"
	"strings"
)

//go:embed data/*.txt
var data embed.FS

// EmailLabel names one of the email keyword lexicons.
type EmailLabel string

const (
	Urgent   EmailLabel = "urgent"
	Threat   EmailLabel = "threat"
	Action   EmailLabel = "action"
	Money    EmailLabel = "money"
	Security EmailLabel = "security"
)

// EmailLabels lists the email lexicons in feature order.
var EmailLabels = []EmailLabel{Urgent, Threat, Action, Money, Security}

// Tables loaded once at init. Callers must treat them as read-only.
var (
	SuspiciousURLWords []string
	Brands             []string
	BrandSuffixes      []string
	Shorteners         []string
	SuspiciousTLDs     []string
	RedirectWords      []string

	LegitimateDomains  []string
	AllowlistBrands    []string
	AllowlistBrandTLDs []string

	email = map[EmailLabel][]string{}
)

func init() {
	SuspiciousURLWords = mustLoad("suspicious_url_words.txt")
	Brands = mustLoad("brands.txt")
	BrandSuffixes = mustLoad("brand_suffixes.txt")
	Shorteners = mustLoad("shorteners.txt")
	SuspiciousTLDs = mustLoad("suspicious_tlds.txt")
	RedirectWords = mustLoad("redirect_words.txt")

	LegitimateDomains = mustLoad("legitimate_domains.txt")
	AllowlistBrands = mustLoad("allowlist_brands.txt")
	AllowlistBrandTLDs = mustLoad("allowlist_brand_tlds.txt")

	for _, label := range EmailLabels {
		email[label] = mustLoad("email_" + string(label) + ".txt")
	}
}

// Email returns the keyword list for an email lexicon label.
func Email(label EmailLabel) []string {
	return email[label]
}

// HasDomainSuffix reports whether host equals domain or is a subdomain of it.
func HasDomainSuffix(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// MatchesHost reports whether host equals, or is a subdomain of, any entry.
func MatchesHost(host string, entries []string) bool {
	for _, e := range entries {
		if HasDomainSuffix(host, e) {
			return true
		}
	}
	return false
}

// mustLoad reads a line list (one entry per line, # comments, lower-cased).
// The files are embedded, so a failure is a build defect.
func mustLoad(name string) []string {
	f, err := data.Open("data/" + name)
	if err != nil {
		panic(fmt.Sprintf("lexicon: open %s: %v", name, err))
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, strings.ToLower(line))
	}
	if err := sc.Err(); err != nil {
		panic(fmt.Sprintf("lexicon: read %s: %v", name, err))
	}
	return out
}
