package features

import (
	"math"
	"strings"
	"unicode"
)

// ratio returns n/d, or 0 when d is zero.
func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

// shannonEntropy is the base-2 Shannon entropy of the character histogram.
func shannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}
	counts := make(map[rune]int)
	total := 0
	for _, r := range s {
		counts[r]++
		total++
	}
	var h float64
	for _, c := range counts {
		p := float64(c) / float64(total)
		h -= p * math.Log2(p)
	}
	return h
}

// countRunes counts runes in s satisfying pred.
func countRunes(s string, pred func(rune) bool) int {
	n := 0
	for _, r := range s {
		if pred(r) {
			n++
		}
	}
	return n
}

// countSubstrings counts how many entries occur in s. Each entry counts once.
func countSubstrings(s string, entries []string) int {
	n := 0
	for _, e := range entries {
		if strings.Contains(s, e) {
			n++
		}
	}
	return n
}

// letterTokens splits lower-cased text into runs of letters.
func letterTokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}

// countTokenPrefixes counts lexicon entries that start at least one token, so
// "suspend" matches "suspended" but "now" does not match "known".
func countTokenPrefixes(tokens, entries []string) int {
	n := 0
	for _, e := range entries {
		for _, t := range tokens {
			if strings.HasPrefix(t, e) {
				n++
				break
			}
		}
	}
	return n
}

// syllables estimates syllables in an English word by counting vowel groups.
func syllables(word string) int {
	word = strings.ToLower(word)
	n := 0
	prevVowel := false
	for _, r := range word {
		v := strings.ContainsRune("aeiouy", r)
		if v && !prevVowel {
			n++
		}
		prevVowel = v
	}
	if strings.HasSuffix(word, "e") && n > 1 && !strings.HasSuffix(word, "le") {
		n--
	}
	if n == 0 && word != "" {
		n = 1
	}
	return n
}

// fleschReadingEase is clamped to [0,100]; empty text scores 0.
func fleschReadingEase(words []string, sentences int) float64 {
	if len(words) == 0 || sentences == 0 {
		return 0
	}
	syl := 0
	for _, w := range words {
		syl += syllables(w)
	}
	score := 206.835 -
		1.015*float64(len(words))/float64(sentences) -
		84.6*float64(syl)/float64(len(words))
	return clamp(score, 0, 100)
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
