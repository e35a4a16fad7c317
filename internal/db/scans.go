package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/trustnet/trustnet-go/internal/heuristics"
	"github.com/trustnet/trustnet-go/internal/scoring"
)

// maxStoredInput bounds the stored copy of the scored value.
const maxStoredInput = 2048

// Scan is one stored scoring result.
type Scan struct {
	ID           string                   `json:"id"`
	Kind         string                   `json:"kind"`
	Input        string                   `json:"input"`
	TrustScore   float64                  `json:"trust_score"`
	RiskCategory string                   `json:"risk_category"`
	Confidence   float64                  `json:"confidence"`
	Source       string                   `json:"source"`
	ModelVersion string                   `json:"model_version,omitempty"`
	Explanations []heuristics.Explanation `json:"explanations"`
	CreatedAt    time.Time                `json:"created_at"`
}

// CategoryCount is the number of scans in one risk category.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// InsertScan stores a result together with the value that was scored.
func (db *DB) InsertScan(ctx context.Context, input string, r *scoring.Result) error {
	explanations, err := json.Marshal(r.Explanations)
	if err != nil {
		return fmt.Errorf("encode explanations: %w", err)
	}
	features, err := json.Marshal(r.Features)
	if err != nil {
		return fmt.Errorf("encode features: %w", err)
	}
	var modelVersion *string
	if r.ModelVersion != "" {
		modelVersion = &r.ModelVersion
	}
	_, err = db.Pool.Exec(ctx,
		`INSERT INTO scans (id, kind, input, trust_score, risk_category, confidence, source, model_version, explanations, features, processing_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		r.ID, string(r.Kind), truncate(input, maxStoredInput), r.TrustScore, string(r.RiskCategory), r.Confidence,
		string(r.Source), modelVersion, explanations, features, r.ProcessingTime, r.Timestamp)
	return err
}

// RecentScans returns the newest scans, optionally restricted to one kind.
func (db *DB) RecentScans(ctx context.Context, kind string, limit int) ([]Scan, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id::text, kind, input, trust_score, risk_category, confidence, source, model_version, explanations, created_at
		 FROM scans WHERE ($1 = '' OR kind = $1) ORDER BY created_at DESC LIMIT $2`, kind, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scans := []Scan{}
	for rows.Next() {
		var (
			s            Scan
			trust, conf  float32
			modelVersion *string
			explanations []byte
		)
		if err := rows.Scan(&s.ID, &s.Kind, &s.Input, &trust, &s.RiskCategory, &conf, &s.Source, &modelVersion, &explanations, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.TrustScore = float64(trust)
		s.Confidence = float64(conf)
		if modelVersion != nil {
			s.ModelVersion = *modelVersion
		}
		if err := json.Unmarshal(explanations, &s.Explanations); err != nil {
			return nil, fmt.Errorf("decode explanations of %s: %w", s.ID, err)
		}
		scans = append(scans, s)
	}
	return scans, rows.Err()
}

// CategoryCounts counts scans per risk category since the given time.
func (db *DB) CategoryCounts(ctx context.Context, since time.Time) ([]CategoryCount, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT risk_category, count(*) FROM scans WHERE created_at >= $1
		 GROUP BY risk_category ORDER BY count(*) DESC, risk_category`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := []CategoryCount{}
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	// keep valid UTF-8
	for maxLen > 0 && s[maxLen]&0xC0 == 0x80 {
		maxLen--
	}
	return s[:maxLen]
}
