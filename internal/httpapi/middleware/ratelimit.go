package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/bountyvault/core/internal/kernel"
)

// RateLimiter enforces a per-client token bucket, following
// gateway/middleware/ratelimit.go's RateLimiter keyed on API key/IP.
type RateLimiter struct {
	perSecond float64
	burst     int

	mu       sync.Mutex
	visitors map[string]*rate.Limiter
}

// NewRateLimiter builds a RateLimiter allowing perMinute requests per client
// with a burst of the same size.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 120
	}
	return &RateLimiter{
		perSecond: float64(perMinute) / 60.0,
		burst:     perMinute,
		visitors:  make(map[string]*rate.Limiter),
	}
}

// Middleware rejects requests once a client exceeds its bucket with 429,
// using the same {"error","kind"} envelope as the rest of the gateway so
// kernel.RateLimitExceeded is actually observable on the wire.
func (r *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		limiter := r.limiterFor(clientID(req))
		if !limiter.Allow() {
			writeRateLimitError(w)
			return
		}
		next.ServeHTTP(w, req)
	})
}

func writeRateLimitError(w http.ResponseWriter) {
	err := kernel.NewError(kernel.RateLimitExceeded, "rate limit exceeded")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": err.Error(),
		"kind":  kernel.RateLimitExceeded.String(),
	})
}

func (r *RateLimiter) limiterFor(id string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	limiter, ok := r.visitors[id]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(r.perSecond), r.burst)
		r.visitors[id] = limiter
	}
	return limiter
}

func clientID(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get("X-API-Key")); apiKey != "" {
		return "api-key:" + apiKey
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); ip != "" {
		if comma := strings.IndexByte(ip, ','); comma > 0 {
			ip = strings.TrimSpace(ip[:comma])
		}
		if parsed := net.ParseIP(ip); parsed != nil {
			return parsed.String()
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
