package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/clinicore/clinicore/internal/platform/auth"
)

// RateLimitConfig sets the sustained rate and burst allowance applied to
// each caller.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		BurstSize:         200,
	}
}

// Limiters for callers idle this long are dropped on the next sweep.
const limiterIdleTimeout = 10 * time.Minute

type callerLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterRegistry hands out one rate.Limiter per caller key and prunes
// limiters for callers that have gone quiet.
type limiterRegistry struct {
	mu        sync.Mutex
	callers   map[string]*callerLimiter
	rps       rate.Limit
	burst     int
	lastSweep time.Time
}

func newLimiterRegistry(cfg RateLimitConfig) *limiterRegistry {
	return &limiterRegistry{
		callers:   make(map[string]*callerLimiter),
		rps:       rate.Limit(cfg.RequestsPerSecond),
		burst:     cfg.BurstSize,
		lastSweep: time.Now(),
	}
}

func (r *limiterRegistry) get(key string) *rate.Limiter {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if now.Sub(r.lastSweep) > limiterIdleTimeout {
		for k, cl := range r.callers {
			if now.Sub(cl.lastSeen) > limiterIdleTimeout {
				delete(r.callers, k)
			}
		}
		r.lastSweep = now
	}

	cl, ok := r.callers[key]
	if !ok {
		cl = &callerLimiter{limiter: rate.NewLimiter(r.rps, r.burst)}
		r.callers[key] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

// RateLimit throttles requests per caller with a token bucket. Authenticated
// callers are keyed by user ID so one user cannot starve another behind a
// shared NAT; anonymous callers share a bucket per client IP. Rejected
// requests get 429 with a Retry-After hint.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	registry := newLimiterRegistry(cfg)
	limitHeader := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', 0, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.RealIP()
			if p := auth.PrincipalFromContext(c.Request().Context()); !p.IsAnonymous() {
				key = p.UserID.String()
			}

			limiter := registry.get(key)
			c.Response().Header().Set("X-RateLimit-Limit", limitHeader)
			if !limiter.Allow() {
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(limiter)))
				c.Response().Header().Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}

// retryAfterSeconds asks the limiter how long until the next token without
// consuming it.
func retryAfterSeconds(l *rate.Limiter) int {
	res := l.Reserve()
	delay := res.Delay()
	res.Cancel()

	secs := int(math.Ceil(delay.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}
