package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/linkpulse/linkpulse/internal/constants"
	redisStorage "github.com/linkpulse/linkpulse/internal/storage/redis"
	"github.com/linkpulse/linkpulse/pkg/httputils"
)

// RedisFixedWindowLimiter enforces a simple counter per owner per fixed time
// window. It also serves as a record of "how many links this owner created".
type RedisFixedWindowLimiter struct {
	store *redisStorage.FixedWindowLimiter
	limit int64
}

func NewRedisFixedWindowLimiter(store *redisStorage.FixedWindowLimiter, limitPerMinute int) *RedisFixedWindowLimiter {
	if limitPerMinute <= 0 {
		limitPerMinute = 60
	}
	return &RedisFixedWindowLimiter{
		store: store,
		limit: int64(limitPerMinute),
	}
}

func RateLimitMiddleware(limiter *RedisFixedWindowLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rateLimitKey(r)
			ctx, cancel := context.WithTimeout(r.Context(), 200*time.Millisecond)
			defer cancel()

			count, err := limiter.store.Incr(ctx, key)
			if err != nil {
				// Fail open: do not block writes if Redis is temporarily unavailable.
				next.ServeHTTP(w, r)
				return
			}
			if count > limiter.limit {
				httputils.WriteAPIError(w, r, constants.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rateLimitKey(r *http.Request) string {
	if ownerID, ok := OwnerIDFromContext(r.Context()); ok {
		return "owner:" + ownerID
	}

	// Fallback: use client IP (best-effort).
	if ip := httputils.ClientIP(r); ip != "" {
		return "ip:" + ip
	}
	return "ip:unknown"
}
