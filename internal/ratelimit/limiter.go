// Package ratelimit is an in-memory sliding-window rate limiter keyed by
// client IP.
package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Bucket defines rate limit parameters.
type Bucket struct {
	MaxRequests int
	Window      time.Duration
}

// Bucket names used by the HTTP service.
const (
	BucketScore = "score"
	BucketAdmin = "admin"
)

// DefaultBuckets returns the service limits with scoring capped at perMinute
// requests per client.
func DefaultBuckets(perMinute int) map[string]Bucket {
	if perMinute <= 0 {
		perMinute = 60
	}
	return map[string]Bucket{
		BucketScore: {MaxRequests: perMinute, Window: time.Minute},
		BucketAdmin: {MaxRequests: 6, Window: time.Minute},
	}
}

var fallbackBucket = Bucket{MaxRequests: 60, Window: time.Minute}

// Limiter is an in-memory sliding-window rate limiter per key.
type Limiter struct {
	mu      sync.Mutex
	hits    map[string][]time.Time
	buckets map[string]Bucket
	now     func() time.Time
}

// New creates a limiter for the given buckets.
func New(buckets map[string]Bucket) *Limiter {
	return &Limiter{hits: make(map[string][]time.Time), buckets: buckets, now: time.Now}
}

// Allow checks if a request identified by key is within the rate limit for the
// given bucket. Returns true if allowed.
func (l *Limiter) Allow(key string, bucket Bucket) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	pruned := prune(l.hits[key], now.Add(-bucket.Window))

	if len(pruned) >= bucket.MaxRequests {
		l.hits[key] = pruned
		return false
	}

	l.hits[key] = append(pruned, now)
	return true
}

func prune(times []time.Time, cutoff time.Time) []time.Time {
	out := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

// Middleware rejects requests over the named bucket's limit with 429.
func (l *Limiter) Middleware(bucketName string) func(http.Handler) http.Handler {
	bucket, ok := l.buckets[bucketName]
	if !ok {
		bucket = fallbackBucket
	}
	retryAfter := strconv.Itoa(int(bucket.Window.Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.Allow(bucketName+":"+clientIP(r), bucket) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", retryAfter)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limited","retry_after_seconds":` + retryAfter + `}`))
		})
	}
}

// clientIP strips the port from RemoteAddr; middleware.RealIP has already
// applied any proxy headers.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// Sweep drops keys with no hits inside the longest window, every interval,
// until ctx is cancelled.
func (l *Limiter) Sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *Limiter) sweep() {
	var longest time.Duration
	for _, b := range l.buckets {
		longest = max(longest, b.Window)
	}
	longest = max(longest, fallbackBucket.Window)

	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-longest)
	for key, times := range l.hits {
		if len(prune(times, cutoff)) == 0 {
			delete(l.hits, key)
		}
	}
}

// Keys returns the number of tracked keys.
func (l *Limiter) Keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hits)
}
