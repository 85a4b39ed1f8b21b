package middleware

import (
	"fmt"
	"net/http"

	"confix/internal/pkg/errors"
	"confix/internal/pkg/ratelimit"
)

// Per-caller requests per minute for each route family.
var rateLimits = map[string]int{
	"payment_webhook":  600,
	"carrier_callback": 600,
	"admin":            300,
}

type RateLimiter struct {
	limiter *ratelimit.Limiter
	limits  map[string]int
}

func NewRateLimiter(limiter *ratelimit.Limiter) *RateLimiter {
	return &RateLimiter{limiter: limiter, limits: rateLimits}
}

// WithLimit returns a copy of rl with perMinute applied to limitType.
func (rl *RateLimiter) WithLimit(limitType string, perMinute int) *RateLimiter {
	limits := make(map[string]int, len(rl.limits)+1)
	for k, v := range rl.limits {
		limits[k] = v
	}
	limits[limitType] = perMinute
	return &RateLimiter{limiter: rl.limiter, limits: limits}
}

func (rl *RateLimiter) Limit(limitType string) func(http.HandlerFunc) http.HandlerFunc {
	limit, ok := rl.limits[limitType]
	if !ok {
		limit = 100
	}

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			key := fmt.Sprintf("%s:%s", ClientIPFrom(r), limitType)

			if !rl.limiter.Allow(key, limit) {
				w.Header().Set("Retry-After", "60")
				errors.WriteError(w, http.StatusTooManyRequests, errors.ErrCodeRateLimitExceeded, "Rate limit exceeded", nil)
				return
			}

			next(w, r)
		}
	}
}
