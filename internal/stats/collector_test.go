package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trustnet/trustnet-go/internal/scoring"
)

func TestCollector(t *testing.T) {
	c := NewCollector()
	empty := c.Snapshot()
	assert.Zero(t, empty.Total)
	assert.Nil(t, empty.LastAnalysisAt)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.Record(&scoring.Result{Kind: scoring.KindURL, TrustScore: 30, RiskCategory: scoring.CategoryHighRisk, Source: scoring.SourceHeuristic, Timestamp: now})
	c.Record(&scoring.Result{Kind: scoring.KindURL, TrustScore: 100, RiskCategory: scoring.CategorySafe, Source: scoring.SourceAllowlist, Timestamp: now.Add(time.Second)})
	c.Record(&scoring.Result{Kind: scoring.KindEmail, TrustScore: 55, RiskCategory: scoring.CategorySuspicious, Source: scoring.SourceModel, Timestamp: now.Add(2 * time.Second)})

	s := c.Snapshot()
	assert.Equal(t, int64(3), s.Total)
	assert.InDelta(t, 185.0/3, s.AverageTrust, 1e-9)
	assert.Equal(t, int64(2), s.ByKind[scoring.KindURL])
	assert.Equal(t, int64(1), s.ByCategory[scoring.CategorySafe])
	assert.Equal(t, int64(1), s.BySource[scoring.SourceModel])
	assert.Equal(t, now.Add(2*time.Second), *s.LastAnalysisAt)

	// snapshots are copies
	s.ByKind[scoring.KindURL] = 99
	assert.Equal(t, int64(2), c.Snapshot().ByKind[scoring.KindURL])
}

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				c.Record(&scoring.Result{Kind: scoring.KindQRText, TrustScore: 80, RiskCategory: scoring.CategorySafe})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(800), c.Snapshot().Total)
}
