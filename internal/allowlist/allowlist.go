// Package allowlist decides whether a host belongs to a verified legitimate
// domain. A match short-circuits heuristic and model scoring.
package allowlist

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"golang.org/x/net/idna"
	"gopkg.in/yaml.v3"

	"github.com/trustnet/trustnet-go/internal/lexicon"
)

// DefaultTrustFloor is the lowest trust score an allowlisted input can receive.
const DefaultTrustFloor = 95.0

// ErrInvalidEntry is returned for malformed allowlist configuration.
var ErrInvalidEntry = errors.New("invalid allowlist entry")

// Entry is one verified domain and the minimum trust score it guarantees.
type Entry struct {
	Pattern    string  `yaml:"pattern" json:"pattern"`
	TrustFloor float64 `yaml:"trust_floor" json:"trust_floor"`
}

// Matcher is immutable after construction and safe for concurrent use.
type Matcher struct {
	domains   map[string]Entry
	brands    []string
	brandTLDs []string
	floor     float64
}

// New builds a matcher from explicit entries plus "brand.<tld>" patterns.
// Entries with an empty pattern or a floor outside [0,100] are rejected.
func New(entries []Entry, brands, brandTLDs []string) (*Matcher, error) {
	m := &Matcher{
		domains:   make(map[string]Entry, len(entries)),
		brands:    brands,
		brandTLDs: brandTLDs,
		floor:     DefaultTrustFloor,
	}
	for i, e := range entries {
		host := NormalizeHost(e.Pattern)
		if host == "" {
			return nil, fmt.Errorf("%w: entry %d has an empty pattern", ErrInvalidEntry, i)
		}
		if e.TrustFloor == 0 {
			e.TrustFloor = DefaultTrustFloor
		}
		if e.TrustFloor < 0 || e.TrustFloor > 100 {
			return nil, fmt.Errorf("%w: %s trust_floor %.2f outside [0,100]", ErrInvalidEntry, host, e.TrustFloor)
		}
		e.Pattern = host
		m.domains[host] = e
	}
	return m, nil
}

// Default returns the matcher built from the embedded lexicon.
func Default() *Matcher {
	m, err := New(lexiconEntries(), lexicon.AllowlistBrands, lexicon.AllowlistBrandTLDs)
	if err != nil {
		panic(fmt.Sprintf("allowlist: embedded lexicon: %v", err))
	}
	return m
}

// Load returns the default matcher extended with entries from a YAML file:
//
//	entries:
//	  - pattern: intranet.example.com
//	    trust_floor: 97
func Load(path string) (*Matcher, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read allowlist: %w", err)
	}
	var file struct {
		Entries []Entry `yaml:"entries"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidEntry, path, err)
	}
	return New(append(lexiconEntries(), file.Entries...), lexicon.AllowlistBrands, lexicon.AllowlistBrandTLDs)
}

func lexiconEntries() []Entry {
	entries := make([]Entry, 0, len(lexicon.LegitimateDomains))
	for _, d := range lexicon.LegitimateDomains {
		entries = append(entries, Entry{Pattern: d, TrustFloor: DefaultTrustFloor})
	}
	return entries
}

// Match reports the entry covering host. Hosts are normalized first, so
// "WWW.Google.com:443" matches "google.com".
func (m *Matcher) Match(host string) (Entry, bool) {
	h := NormalizeHost(host)
	if h == "" {
		return Entry{}, false
	}
	if e, ok := m.domains[h]; ok {
		return e, true
	}
	for _, brand := range m.brands {
		if !strings.HasPrefix(h, brand+".") {
			continue
		}
		for _, tld := range m.brandTLDs {
			if h == brand+tld {
				return Entry{Pattern: h, TrustFloor: m.floor}, true
			}
		}
	}
	return Entry{}, false
}

// Len returns the number of explicit domain entries.
func (m *Matcher) Len() int { return len(m.domains) }

// NormalizeHost lower-cases host, strips a port, a trailing dot and a leading
// "www.", and converts internationalized names to their ASCII form.
func NormalizeHost(host string) string {
	h := strings.TrimSpace(host)
	if h == "" {
		return ""
	}
	if hh, _, err := net.SplitHostPort(h); err == nil {
		h = hh
	}
	h = strings.TrimSuffix(h, ".")
	if ascii, err := idna.Lookup.ToASCII(h); err == nil {
		h = ascii
	}
	h = strings.ToLower(h)
	return strings.TrimPrefix(h, "www.")
}
