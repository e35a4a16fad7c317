package lexicon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTablesLoaded(t *testing.T) {
	tables := map[string][]string{
		"suspicious_url_words": SuspiciousURLWords,
		"brands":               Brands,
		"brand_suffixes":       BrandSuffixes,
		"shorteners":           Shorteners,
		"suspicious_tlds":      SuspiciousTLDs,
		"redirect_words":       RedirectWords,
		"legitimate_domains":   LegitimateDomains,
		"allowlist_brands":     AllowlistBrands,
		"allowlist_brand_tlds": AllowlistBrandTLDs,
	}
	for name, table := range tables {
		assert.NotEmpty(t, table, name)
		for _, entry := range table {
			assert.NotContains(t, entry, "#", name)
		}
	}

	for _, label := range EmailLabels {
		assert.NotEmpty(t, Email(label), string(label))
	}
}

func TestKnownEntries(t *testing.T) {
	assert.Contains(t, SuspiciousURLWords, "login")
	assert.Contains(t, Brands, "paypal")
	assert.Contains(t, SuspiciousTLDs, ".tk")
	assert.Contains(t, LegitimateDomains, "amazon.com")
	assert.Contains(t, Email(Threat), "suspend")
	assert.Contains(t, Email(Urgent), "urgent")
}

func TestMatchesHost(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"bit.ly", true},
		{"www.bit.ly", true},
		{"t.co", true},
		{"microsoft.com", false},
		{"notbit.ly", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesHost(tt.host, Shorteners))
		})
	}
}
