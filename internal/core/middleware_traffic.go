package core

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"weatherproxy/internal/types"
)

// RateLimitStore abstracts the backing store for inbound rate limiting.
type RateLimitStore interface {
	// IncrementAndCheck consumes one request for key and reports whether it
	// is within the limit.
	IncrementAndCheck(ctx context.Context, key string) (RateLimitResult, error)
}

// RateLimitResult contains the outcome of a rate limit check.
type RateLimitResult struct {
	// Allowed indicates whether the request is within the rate limit.
	Allowed bool
	// Limit is the bucket size.
	Limit int
	// Remaining is the number of requests that may still be made immediately.
	Remaining int
	// ResetAt is when the bucket will be full again.
	ResetAt time.Time
}

// RateLimit enforces per-client token buckets keyed by remote IP.
//
// If no RateLimitStore is configured (e.g., during tests or when
// CLIENT_RATE_LIMIT_RPS is 0), the middleware passes through.
//
// On every request (allowed or not), the middleware sets standard rate limit
// response headers:
//   - X-RateLimit-Limit: The bucket size.
//   - X-RateLimit-Remaining: The number of requests remaining.
//   - X-RateLimit-Reset: Unix timestamp when the bucket is full again.
//
// When rate limited, the middleware also sets:
//   - Retry-After: Seconds until the next request would be admitted.
func (s *Server) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.RateLimitStore == nil {
			next.ServeHTTP(w, r)
			return
		}

		key := clientIP(r)
		result, err := s.RateLimitStore.IncrementAndCheck(r.Context(), key)
		if err != nil {
			// Fail open: a limiter fault must not block all traffic.
			s.Logger.Error("rate limit store error",
				slog.String("client_ip", key),
				slog.String("error", err.Error()),
			)
			next.ServeHTTP(w, r)
			return
		}

		setRateLimitHeaders(w, result)

		if !result.Allowed {
			s.Logger.Warn("rate limit exceeded",
				slog.String("client_ip", key),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)

			retryAfter := int(math.Ceil(time.Until(result.ResetAt).Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

			Error(w, r, types.NewAppError(types.ErrCodeRateLimit,
				"Rate limit exceeded. Please retry after the reset time.", nil))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// setRateLimitHeaders writes the standard X-RateLimit-* headers to the response.
func setRateLimitHeaders(w http.ResponseWriter, result RateLimitResult) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

// clientIP returns the host part of RemoteAddr. Forwarding headers are not
// trusted; deployments behind a proxy should rewrite RemoteAddr upstream.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// idleLimiterTTL is how long an unused client bucket is kept.
const idleLimiterTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter is an in-memory RateLimitStore holding one token bucket per
// key. Buckets idle for longer than idleLimiterTTL are evicted on access.
type IPRateLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	clients   map[string]*clientLimiter
	now       func() time.Time
	lastSweep time.Time
}

var _ RateLimitStore = (*IPRateLimiter)(nil)

// NewIPRateLimiter creates a store admitting rps requests per second per key
// with the given burst.
func NewIPRateLimiter(rps float64, burst int) *IPRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &IPRateLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		clients: make(map[string]*clientLimiter),
		now:     time.Now,
	}
}

// IncrementAndCheck implements RateLimitStore.
func (l *IPRateLimiter) IncrementAndCheck(_ context.Context, key string) (RateLimitResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	c, ok := l.clients[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now

	res := c.limiter.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return RateLimitResult{
			Allowed: false,
			Limit:   l.burst,
			ResetAt: now.Add(delay),
		}, nil
	}

	available := l.available(c.limiter, now)
	return RateLimitResult{
		Allowed:   true,
		Limit:     l.burst,
		Remaining: int(math.Floor(available + 1e-6)),
		ResetAt:   now.Add(l.refillTime(float64(l.burst) - available)),
	}, nil
}

// available reports the tokens currently in the bucket by probing how long a
// full-burst reservation would wait, then cancelling it.
func (l *IPRateLimiter) available(lim *rate.Limiter, now time.Time) float64 {
	res := lim.ReserveN(now, l.burst)
	if !res.OK() {
		return 0
	}
	wait := res.DelayFrom(now)
	res.CancelAt(now)
	return max(float64(l.burst)-wait.Seconds()*float64(l.limit), 0)
}

func (l *IPRateLimiter) refillTime(tokens float64) time.Duration {
	if tokens <= 0 || l.limit <= 0 {
		return 0
	}
	return time.Duration(tokens / float64(l.limit) * float64(time.Second))
}

func (l *IPRateLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < idleLimiterTTL {
		return
	}
	l.lastSweep = now
	for key, c := range l.clients {
		if now.Sub(c.lastSeen) > idleLimiterTTL {
			delete(l.clients, key)
		}
	}
}

// Len returns the number of tracked clients.
func (l *IPRateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}
