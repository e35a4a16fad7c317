// Package stats keeps running totals of scoring results for one process.
package stats

import (
	"sync"
	"time"

	"github.com/trustnet/trustnet-go/internal/scoring"
)

// Collector aggregates results. It is created once and passed to whatever
// records or reads statistics; the zero value is not usable.
type Collector struct {
	mu         sync.Mutex
	started    time.Time
	total      int64
	trustSum   float64
	byKind     map[scoring.Kind]int64
	byCategory map[scoring.Category]int64
	bySource   map[scoring.Source]int64
	last       time.Time
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		started:    time.Now().UTC(),
		byKind:     make(map[scoring.Kind]int64),
		byCategory: make(map[scoring.Category]int64),
		bySource:   make(map[scoring.Source]int64),
	}
}

// Record adds one result.
func (c *Collector) Record(r *scoring.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total++
	c.trustSum += r.TrustScore
	c.byKind[r.Kind]++
	c.byCategory[r.RiskCategory]++
	c.bySource[r.Source]++
	c.last = r.Timestamp
}

// Snapshot is a copy of the totals at one point in time.
type Snapshot struct {
	Total          int64                      `json:"total" yaml:"total"`
	AverageTrust   float64                    `json:"average_trust" yaml:"average_trust"`
	ByKind         map[scoring.Kind]int64     `json:"by_kind" yaml:"by_kind"`
	ByCategory     map[scoring.Category]int64 `json:"by_category" yaml:"by_category"`
	BySource       map[scoring.Source]int64   `json:"by_source" yaml:"by_source"`
	StartedAt      time.Time                  `json:"started_at" yaml:"started_at"`
	LastAnalysisAt *time.Time                 `json:"last_analysis_at,omitempty" yaml:"last_analysis_at,omitempty"`
}

// Snapshot copies the current totals.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		Total:      c.total,
		ByKind:     make(map[scoring.Kind]int64, len(c.byKind)),
		ByCategory: make(map[scoring.Category]int64, len(c.byCategory)),
		BySource:   make(map[scoring.Source]int64, len(c.bySource)),
		StartedAt:  c.started,
	}
	if c.total > 0 {
		s.AverageTrust = c.trustSum / float64(c.total)
		last := c.last
		s.LastAnalysisAt = &last
	}
	for k, v := range c.byKind {
		s.ByKind[k] = v
	}
	for k, v := range c.byCategory {
		s.ByCategory[k] = v
	}
	for k, v := range c.bySource {
		s.BySource[k] = v
	}
	return s
}
