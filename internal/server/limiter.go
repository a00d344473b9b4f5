package server

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/hyperjump/holokernel/internal/metrics"
)

// rateLimiter is a token bucket shared by the mutating endpoints. A zero rate disables it.
type rateLimiter struct {
	limiter *rate.Limiter
	enabled bool
}

func newRateLimiter(rps float64, burst int) *rateLimiter {
	if rps <= 0 {
		return &rateLimiter{enabled: false}
	}
	if burst <= 0 {
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}
	return &rateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		enabled: true,
	}
}

func (l *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.enabled {
			next.ServeHTTP(w, r)
			return
		}
		if !l.limiter.Allow() {
			metrics.RateLimitRequestsTotal.WithLabelValues("throttled").Inc()
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}` + "\n"))
			return
		}
		metrics.RateLimitRequestsTotal.WithLabelValues("allowed").Inc()
		next.ServeHTTP(w, r)
	})
}
