package api

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/booksy/booksy-server/internal/ratelimit"
)

// RateLimiter wraps KeyedRateLimiter for API use.
type RateLimiter = ratelimit.KeyedRateLimiter

// NewRateLimiter creates a new rate limiter.
// rate: number of requests allowed per interval
// interval: time period for rate (e.g., time.Minute)
// burst: maximum burst size
func NewRateLimiter(ratePerInterval int, interval time.Duration, burst int) *RateLimiter {
	return ratelimit.NewPer(ratePerInterval, interval, burst)
}

// rateLimitAuth is a huma middleware limiting auth attempts per client IP.
// Rejected requests get 429 with a Retry-After header in whole seconds.
func (s *Server) rateLimitAuth(ctx huma.Context, next func(huma.Context)) {
	key := clientIP(ctx.Context())
	if key == "" {
		key = hostOnly(ctx.RemoteAddr())
	}

	if !s.authRateLimiter.Allow(key) {
		wait := s.authRateLimiter.RetryAfter(key)
		seconds := max(int(math.Ceil(wait.Seconds())), 1)

		s.logger.Warn("Rate limit exceeded",
			"ip", key,
			"path", ctx.URL().Path,
		)
		ctx.SetHeader("Retry-After", strconv.Itoa(seconds))
		_ = huma.WriteErr(s.api, ctx, http.StatusTooManyRequests, "Too many requests. Please try again later.")
		return
	}

	next(ctx)
}

// getClientIP extracts the client IP from the request.
// Checks X-Forwarded-For and X-Real-IP headers before falling back to RemoteAddr.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	return hostOnly(r.RemoteAddr)
}

// hostOnly strips the port from addr, if it has one.
func hostOnly(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
