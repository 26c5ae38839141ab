package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// RateLimitConfig configures RateLimit.
type RateLimitConfig struct {
	// Requests allowed per client within Window.
	Requests int
	Window   time.Duration
	// Key identifies the client. Defaults to ClientIP.
	Key func(*http.Request) string
	// Skip exempts requests from limiting, e.g. health probes.
	Skip func(*http.Request) bool
}

// window counts the requests of one client in the current and the previous
// fixed window. The previous count is weighted by how much of it still
// overlaps the sliding window.
type window struct {
	prev, curr float64
	start      time.Time
}

// Limiter is a per-key sliding window counter.
type Limiter struct {
	max    int
	size   time.Duration
	mu     sync.Mutex
	counts map[string]*window
}

// NewLimiter allows requests per key within size.
func NewLimiter(requests int, size time.Duration) *Limiter {
	return &Limiter{
		max:    requests,
		size:   size,
		counts: make(map[string]*window),
	}
}

// Allow records a request for key at now. It reports whether the request fits
// the limit, how many requests remain and when the current window resets.
func (l *Limiter) Allow(key string, now time.Time) (ok bool, remaining int, reset time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, found := l.counts[key]
	if !found {
		w = &window{start: now.Truncate(l.size)}
		l.counts[key] = w
	}
	switch elapsed := now.Sub(w.start); {
	case elapsed >= 2*l.size:
		w.prev, w.curr = 0, 0
		w.start = now.Truncate(l.size)
	case elapsed >= l.size:
		w.prev, w.curr = w.curr, 0
		w.start = w.start.Add(l.size)
	}

	overlap := 1 - float64(now.Sub(w.start))/float64(l.size)
	used := w.prev*max(overlap, 0) + w.curr
	reset = w.start.Add(l.size)
	if used >= float64(l.max) {
		return false, 0, reset
	}
	w.curr++
	return true, max(int(float64(l.max)-used-1), 0), reset
}

// Evict drops keys that have been idle for two windows.
func (l *Limiter) Evict(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	var n int
	for key, w := range l.counts {
		if now.Sub(w.start) >= 2*l.size {
			delete(l.counts, key)
			n++
		}
	}
	return n
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.counts)
}

// RateLimit rejects clients exceeding cfg.Requests per cfg.Window with 429.
// Idle clients are evicted every two windows until ctx is done.
func RateLimit(ctx context.Context, cfg RateLimitConfig) Middleware {
	if cfg.Key == nil {
		cfg.Key = ClientIP
	}
	l := NewLimiter(cfg.Requests, cfg.Window)
	go func() {
		ticker := time.NewTicker(2 * cfg.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				l.Evict(now)
			}
		}
	}()

	limit := strconv.Itoa(cfg.Requests)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Skip != nil && cfg.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			key := cfg.Key(r)
			ok, remaining, reset := l.Allow(key, time.Now())
			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			retry := math.Ceil(max(time.Until(reset), 0).Seconds())
			h.Set("Retry-After", strconv.Itoa(int(retry)))
			zctx.From(r.Context()).Debug("Rate limited", zap.String("client", key))
			writeTooManyRequests(w)
		})
	}
}

func writeTooManyRequests(w http.ResponseWriter) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(http.StatusTooManyRequests) })
		e.Field("reason", func(e *jx.Encoder) { e.Str("rate_limited") })
		e.Field("message", func(e *jx.Encoder) { e.Str("rate limit exceeded") })
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write(e.Bytes())
}

// ClientIP returns the first X-Forwarded-For hop, X-Real-IP, or the remote
// host, in that order.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
