package model

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
)

// StandardScaler standardizes each column as (x - mean) / scale.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

func decodeScaler(data []byte) (*StandardScaler, error) {
	var s StandardScaler
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: scaler: %v", ErrCorrupt, err)
	}
	if len(s.Mean) == 0 || len(s.Mean) != len(s.Scale) {
		return nil, fmt.Errorf("%w: scaler has %d means and %d scales", ErrCorrupt, len(s.Mean), len(s.Scale))
	}
	return &s, nil
}

// Len is the number of columns the scaler was fitted on.
func (s *StandardScaler) Len() int { return len(s.Mean) }

// Transform returns a standardized copy of x. Zero-variance columns are only
// centred.
func (s *StandardScaler) Transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = (v - s.Mean[i]) / scale
	}
	return out
}

// tokenPattern matches runs of two or more word characters.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// TfidfVectorizer turns text into a fixed-width TF-IDF row.
type TfidfVectorizer struct {
	Vocabulary  map[string]int `json:"vocabulary"`
	IDF         []float64      `json:"idf"`
	NgramRange  [2]int         `json:"ngram_range"`
	Lowercase   bool           `json:"lowercase"`
	SublinearTF bool           `json:"sublinear_tf"`
	Norm        string         `json:"norm"`
}

func decodeVectorizer(data []byte) (*TfidfVectorizer, error) {
	v := TfidfVectorizer{NgramRange: [2]int{1, 1}, Lowercase: true, Norm: "l2"}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: vectorizer: %v", ErrCorrupt, err)
	}
	if len(v.IDF) == 0 {
		return nil, fmt.Errorf("%w: vectorizer has no idf weights", ErrCorrupt)
	}
	if v.NgramRange[0] < 1 || v.NgramRange[1] < v.NgramRange[0] {
		return nil, fmt.Errorf("%w: invalid ngram_range %v", ErrCorrupt, v.NgramRange)
	}
	if v.Norm != "l2" && v.Norm != "" && v.Norm != "none" {
		return nil, fmt.Errorf("%w: unsupported norm %q", ErrCorrupt, v.Norm)
	}
	for term, idx := range v.Vocabulary {
		if idx < 0 || idx >= len(v.IDF) {
			return nil, fmt.Errorf("%w: term %q maps to column %d of %d", ErrCorrupt, term, idx, len(v.IDF))
		}
	}
	return &v, nil
}

// Width is the number of columns Transform produces.
func (v *TfidfVectorizer) Width() int { return len(v.IDF) }

// Transform computes the TF-IDF row for text. Unknown terms are ignored.
func (v *TfidfVectorizer) Transform(text string) []float64 {
	if v.Lowercase {
		text = strings.ToLower(text)
	}
	tokens := tokenPattern.FindAllString(text, -1)

	counts := make(map[int]float64)
	for n := v.NgramRange[0]; n <= v.NgramRange[1]; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			term := strings.Join(tokens[i:i+n], " ")
			if idx, ok := v.Vocabulary[term]; ok {
				counts[idx]++
			}
		}
	}

	row := make([]float64, len(v.IDF))
	for idx, tf := range counts {
		if v.SublinearTF {
			tf = 1 + math.Log(tf)
		}
		row[idx] = tf * v.IDF[idx]
	}
	if v.Norm == "l2" {
		var sq float64
		for _, x := range row {
			sq += x * x
		}
		if sq > 0 {
			norm := math.Sqrt(sq)
			for i := range row {
				row[i] /= norm
			}
		}
	}
	return row
}
