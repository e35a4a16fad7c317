package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestLimiter(buckets map[string]Bucket) (*Limiter, *clock) {
	c := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := New(buckets)
	l.now = c.now
	return l, c
}

func TestAllowSlidingWindow(t *testing.T) {
	l, c := newTestLimiter(nil)
	b := Bucket{MaxRequests: 2, Window: time.Minute}

	assert.True(t, l.Allow("k", b))
	c.t = c.t.Add(30 * time.Second)
	assert.True(t, l.Allow("k", b))
	assert.False(t, l.Allow("k", b))
	assert.True(t, l.Allow("other", b))

	// the first hit leaves the window
	c.t = c.t.Add(31 * time.Second)
	assert.True(t, l.Allow("k", b))
	assert.False(t, l.Allow("k", b))
}

func TestMiddleware(t *testing.T) {
	l, _ := newTestLimiter(DefaultBuckets(2))
	h := l.Middleware(BucketScore)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/score", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, do("10.0.0.1:5000").Code)
	assert.Equal(t, http.StatusNoContent, do("10.0.0.1:5001").Code)

	rec := do("10.0.0.1:5002")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limited","retry_after_seconds":60}`, rec.Body.String())

	assert.Equal(t, http.StatusNoContent, do("10.0.0.2:5000").Code)
}

func TestDefaultBuckets(t *testing.T) {
	assert.Equal(t, 60, DefaultBuckets(0)[BucketScore].MaxRequests)
	assert.Equal(t, 120, DefaultBuckets(120)[BucketScore].MaxRequests)
}

func TestSweep(t *testing.T) {
	l, c := newTestLimiter(DefaultBuckets(10))
	l.Allow("a", Bucket{MaxRequests: 5, Window: time.Minute})
	c.t = c.t.Add(50 * time.Second)
	l.Allow("b", Bucket{MaxRequests: 5, Window: time.Minute})
	assert.Equal(t, 2, l.Keys())

	c.t = c.t.Add(20 * time.Second)
	l.sweep()
	assert.Equal(t, 1, l.Keys())
}
