package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/bruinswipes/bruinswipes-backend/pkg/clientip"
)

const (
	// RateLimitWindow is the fixed window shared by all instances.
	RateLimitWindow = 120 * time.Second
	// RateLimitMaxRequests is the maximum number of requests allowed in the window
	RateLimitMaxRequests = 120
	// RateLimitKeyPrefix is the Redis key prefix for rate limiting
	RateLimitKeyPrefix = "ratelimit:"
)

// Atomic INCR that starts the window on the first hit.
var incrExpireScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisRateLimit counts requests per client IP across every instance. Redis
// errors fail open. A nil client disables the limiter.
func RedisRateLimit(rdb *redis.Client, max int, window time.Duration, logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if rdb == nil || max <= 0 || window <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			key := RateLimitKeyPrefix + clientip.RealClientIP(r)
			count, err := incrExpireScript.Run(r.Context(), rdb, []string{key}, window.Milliseconds()).Int()
			if err != nil {
				logger.WithField("error", err.Error()).Warn("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}

			ttl, _ := rdb.PTTL(r.Context(), key).Result()
			if ttl < 0 {
				ttl = window
			}
			remaining := max - count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(max))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))

			if count > max {
				w.Header().Set("Retry-After", strconv.Itoa(int(ttl.Seconds())+1))
				writeJSONError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
