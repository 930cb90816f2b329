package security

import (
	"fmt"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	redis *redis.Client
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{redis: redisClient}
}

// Limit enforces a fixed-window request budget per authenticated user,
// falling back to the caller IP for anonymous requests. Redis outages fail
// open.
func (r *RateLimiter) Limit(scope string, max int64, window time.Duration) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		identifier := e.RealIP()
		if e.Auth != nil {
			identifier = "user:" + e.Auth.Id
		}

		key := fmt.Sprintf("ratelimit:%s:%s", scope, identifier)
		ctx := e.Request.Context()

		count, err := r.redis.Incr(ctx, key).Result()
		if err != nil {
			return e.Next()
		}
		if count == 1 {
			r.redis.Expire(ctx, key, window)
		}
		if count > max {
			return apis.NewTooManyRequestsError("Rate limit exceeded. Please try again later.", nil)
		}

		return e.Next()
	}
}

// AntiBot rejects requests carrying known automation user agents.
func (r *RateLimiter) AntiBot() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if isSuspiciousUserAgent(e.Request.Header.Get("User-Agent")) {
			return apis.NewForbiddenError("Access denied", nil)
		}
		return e.Next()
	}
}

func isSuspiciousUserAgent(ua string) bool {
	if ua == "" {
		return true
	}

	suspicious := []string{
		"bot",
		"crawler",
		"spider",
		"scraper",
		"curl",
		"wget",
		"python",
		"java",
		"headless",
	}

	lowered := strings.ToLower(ua)
	for _, pattern := range suspicious {
		if strings.Contains(lowered, pattern) {
			return true
		}
	}
	return false
}
