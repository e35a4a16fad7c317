package features

import (
	"net"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/net/idna"

	"github.com/trustnet/trustnet-go/internal/lexicon"
)

// URL feature names.
const (
	URLLength          = "url_length"
	DomainLength       = "domain_length"
	PathLength         = "path_length"
	QueryLength        = "query_length"
	FragmentLength     = "fragment_length"
	HasHTTPS           = "has_https"
	HasIP              = "has_ip"
	HasPrivateIP       = "has_private_ip"
	HasPort            = "has_port"
	HasAtSymbol        = "has_at_symbol"
	HasDoubleSlash     = "has_double_slash"
	HasDash            = "has_dash"
	HasUnderscore      = "has_underscore"
	SubdomainCount     = "subdomain_count"
	ParameterCount     = "parameter_count"
	SuspiciousWords    = "suspicious_words"
	BrandImpersonation = "brand_impersonation"
	LookalikeBrand     = "lookalike_brand"
	IsPunycode         = "is_punycode"
	HasShortener       = "has_shortener"
	SuspiciousTLD      = "suspicious_tld"
	DigitRatio         = "digit_ratio"
	SpecialCharRatio   = "special_char_ratio"
	VowelRatio         = "vowel_ratio"
	ConsonantRatio     = "consonant_ratio"
	HasRedirect        = "has_redirect"
	HasJavascript      = "has_javascript"
	AvgTokenLength     = "avg_token_length"
	MaxTokenLength     = "max_token_length"
	URLEntropy         = "url_entropy"
	DomainEntropy      = "domain_entropy"
	PathEntropy        = "path_entropy"
)

// URLSchema is the ordered URL feature schema.
var URLSchema = newSchema(KindURL,
	URLLength, DomainLength, PathLength, QueryLength, FragmentLength,
	HasHTTPS, HasIP, HasPrivateIP, HasPort, HasAtSymbol, HasDoubleSlash,
	HasDash, HasUnderscore, SubdomainCount, ParameterCount,
	SuspiciousWords, BrandImpersonation, LookalikeBrand, IsPunycode,
	HasShortener, SuspiciousTLD,
	DigitRatio, SpecialCharRatio, VowelRatio, ConsonantRatio,
	HasRedirect, HasJavascript, AvgTokenLength, MaxTokenLength,
	URLEntropy, DomainEntropy, PathEntropy,
)

const specialChars = `!@#$%^&*()+={}[]|\:";'<>?,`

var (
	dottedQuad   = regexp.MustCompile(`^\d+\.\d+\.\d+\.\d+`)
	schemePrefix = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)
)

// urlParts is the structural decomposition of a URL. host keeps the port,
// hostname does not; both are lower-cased.
type urlParts struct {
	host     string
	hostname string
	port     string
	path     string
	query    string
	fragment string
	params   int
}

// splitURL parses raw, assuming http:// when no scheme is present. It reports
// false when no host can be recovered.
func splitURL(raw string) (urlParts, bool) {
	s := raw
	if !schemePrefix.MatchString(s) {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return urlParts{}, false
	}
	p := urlParts{
		host:     strings.ToLower(u.Host),
		hostname: strings.ToLower(u.Hostname()),
		port:     u.Port(),
		path:     u.EscapedPath(),
		query:    u.RawQuery,
		fragment: u.Fragment,
	}
	if q, err := url.ParseQuery(u.RawQuery); err == nil {
		p.params = len(q)
	}
	return p, true
}

// Hostname returns the lower-cased host of raw without port, or "" when the
// URL has no recoverable host.
func Hostname(raw string) string {
	p, ok := splitURL(strings.TrimSpace(raw))
	if !ok {
		return ""
	}
	return p.hostname
}

// ExtractURL computes the URL feature vector. Fields that depend on a parsed
// host stay zero when raw cannot be parsed.
func ExtractURL(raw string) Vector {
	raw = strings.TrimSpace(raw)
	lower := strings.ToLower(raw)
	n := len([]rune(raw))
	b := URLSchema.builder()

	b.setInt(URLLength, n)
	b.setBool(HasHTTPS, strings.HasPrefix(lower, "https"))
	b.setBool(HasAtSymbol, strings.Contains(raw, "@"))
	b.setInt(SuspiciousWords, countSubstrings(lower, lexicon.SuspiciousURLWords))
	b.set(DigitRatio, ratio(countRunes(raw, unicode.IsDigit), n))
	b.set(SpecialCharRatio, ratio(countRunes(raw, func(r rune) bool {
		return strings.ContainsRune(specialChars, r)
	}), n))
	b.setBool(HasRedirect, countSubstrings(lower, lexicon.RedirectWords) > 0)
	b.setBool(HasJavascript, strings.Contains(lower, "javascript:"))
	b.set(URLEntropy, shannonEntropy(raw))

	p, ok := splitURL(raw)
	if !ok {
		return b.vector()
	}
	host := p.hostname
	ip := net.ParseIP(host)
	isIP := ip != nil || dottedQuad.MatchString(host)

	b.setInt(DomainLength, len(p.host))
	b.setInt(PathLength, len(p.path))
	b.setInt(QueryLength, len(p.query))
	b.setInt(FragmentLength, len(p.fragment))
	b.setBool(HasIP, isIP)
	b.setBool(HasPrivateIP, ip != nil && isReserved(ip))
	b.setBool(HasPort, p.port != "" && p.port != "80" && p.port != "443")
	b.setBool(HasDoubleSlash, strings.Contains(p.path, "//"))
	b.setBool(HasDash, strings.Contains(host, "-"))
	b.setBool(HasUnderscore, strings.Contains(host, "_"))
	if labels := strings.Split(host, "."); !isIP && len(labels) > 2 {
		b.setInt(SubdomainCount, len(labels)-2)
	}
	b.setInt(ParameterCount, p.params)

	if !isIP {
		b.setInt(BrandImpersonation, brandImpersonations(host))
		b.setBool(LookalikeBrand, lookalikeBrand(host))
		b.setBool(IsPunycode, strings.HasPrefix(host, "xn--") || strings.Contains(host, ".xn--"))
		b.setBool(HasShortener, lexicon.MatchesHost(host, lexicon.Shorteners))
		b.setBool(SuspiciousTLD, hasAnySuffix(host, lexicon.SuspiciousTLDs))
	}

	hostLen := len([]rune(host))
	b.set(VowelRatio, ratio(countRunes(host, isVowel), hostLen))
	b.set(ConsonantRatio, ratio(countRunes(host, func(r rune) bool {
		return unicode.IsLetter(r) && !isVowel(r)
	}), hostLen))

	tokens := strings.FieldsFunc(host, func(r rune) bool { return r == '.' || r == '-' })
	if len(tokens) > 0 {
		total, longest := 0, 0
		for _, t := range tokens {
			total += len(t)
			longest = max(longest, len(t))
		}
		b.set(AvgTokenLength, ratio(total, len(tokens)))
		b.setInt(MaxTokenLength, longest)
	}

	b.set(DomainEntropy, shannonEntropy(host))
	b.set(PathEntropy, shannonEntropy(p.path))
	return b.vector()
}

func isVowel(r rune) bool { return strings.ContainsRune("aeiou", unicode.ToLower(r)) }

func hasAnySuffix(s string, suffixes []string) bool {
	for _, sfx := range suffixes {
		if strings.HasSuffix(s, sfx) {
			return true
		}
	}
	return false
}

// brandImpersonations counts brands named in host whose host is not the
// brand's own domain (or a subdomain of it) under a legitimate suffix.
func brandImpersonations(host string) int {
	n := 0
	for _, brand := range lexicon.Brands {
		if !strings.Contains(host, brand) {
			continue
		}
		if !ownedByBrand(host, brand) {
			n++
		}
	}
	return n
}

func ownedByBrand(host, brand string) bool {
	for _, sfx := range lexicon.BrandSuffixes {
		for _, domain := range []string{brand + sfx, brand + ".com" + sfx, brand + ".co" + sfx} {
			if lexicon.HasDomainSuffix(host, domain) {
				return true
			}
		}
	}
	return false
}

// lookalikeBrand reports a host label within a small edit distance of a
// brand name without being the brand itself, e.g. "paypa1" or "arnazon".
// Punycode labels are compared in their Unicode form.
func lookalikeBrand(host string) bool {
	if u, err := idna.Lookup.ToUnicode(host); err == nil {
		host = u
	}
	labels := strings.Split(host, ".")
	if len(labels) > 1 {
		labels = labels[:len(labels)-1]
	}
	for _, label := range labels {
		for _, brand := range lexicon.Brands {
			if label == brand {
				continue
			}
			if d := levenshtein.ComputeDistance(label, brand); d > 0 && d <= editBudget(brand) {
				return true
			}
		}
	}
	return false
}

// editBudget is the largest edit distance still treated as a lookalike.
func editBudget(s string) int {
	switch n := len(s); {
	case n <= 4:
		return 0
	case n <= 11:
		return 1
	case n <= 15:
		return 2
	default:
		return (n*15 + 99) / 100
	}
}
