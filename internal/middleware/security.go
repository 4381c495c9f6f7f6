package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/bruinswipes/bruinswipes-backend/pkg/clientip"
)

const (
	headerXContentTypeOptions     = "X-Content-Type-Options"
	headerXFrameOptions           = "X-Frame-Options"
	headerXXSSProtection          = "X-XSS-Protection"
	headerStrictTransportSecurity = "Strict-Transport-Security"
)

// SecurityHeaders sets security-related response headers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(headerXContentTypeOptions, "nosniff")
		w.Header().Set(headerXFrameOptions, "DENY")
		w.Header().Set(headerXXSSProtection, "1; mode=block")
		w.Header().Set(headerStrictTransportSecurity, "max-age=31536000; includeSubDomains")
		next.ServeHTTP(w, r)
	})
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "fail", "message": message})
}

type limiterEntry struct {
	limiter *rate.Limiter
	lastUse time.Time
}

// KeyedLimiter keeps one token bucket per key (an IP or a user id) and
// forgets keys idle for longer than ttl.
type KeyedLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	limit   rate.Limit
	burst   int
	ttl     time.Duration
}

func NewKeyedLimiter(limit rate.Limit, burst int, ttl time.Duration) *KeyedLimiter {
	return &KeyedLimiter{
		entries: make(map[string]*limiterEntry),
		limit:   limit,
		burst:   burst,
		ttl:     ttl,
	}
}

func (l *KeyedLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = e
	}
	e.lastUse = time.Now()
	return e.limiter.Allow()
}

// Cleanup drops idle keys every interval until ctx is done.
func (l *KeyedLimiter) Cleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.sweep(time.Now())
			}
		}
	}()
}

func (l *KeyedLimiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, e := range l.entries {
		if now.Sub(e.lastUse) > l.ttl {
			delete(l.entries, key)
		}
	}
}

// Limit rejects with 429 once key's bucket is empty. key returning "" skips the limiter.
func Limit(l *KeyedLimiter, key func(r *http.Request) string, message string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k != "" && !l.Allow(k) {
				writeJSONError(w, http.StatusTooManyRequests, message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ByIP keys a limiter on the client address.
func ByIP(r *http.Request) string {
	return clientip.RealClientIP(r)
}

// ByUser keys a limiter on the signed-in user. Use after RequireSession.
func ByUser(r *http.Request) string {
	return UserID(r.Context())
}

// Limiter settings for the credential routes and message sending.
const (
	loginRateLimitEvery   = 5 * time.Second
	loginRateLimitBurst   = 5
	messageRateLimitEvery = time.Second
	messageRateLimitBurst = 10
	limiterTTL            = 30 * time.Minute
	limiterCleanup        = 5 * time.Minute
)

// NewLoginLimiter allows a short burst of sign-in attempts per IP, then one every 5s.
func NewLoginLimiter() *KeyedLimiter {
	return NewKeyedLimiter(rate.Every(loginRateLimitEvery), loginRateLimitBurst, limiterTTL)
}

// NewMessageLimiter caps how fast one user can send messages.
func NewMessageLimiter() *KeyedLimiter {
	return NewKeyedLimiter(rate.Every(messageRateLimitEvery), messageRateLimitBurst, limiterTTL)
}

// StartLimiterCleanup sweeps idle keys of every limiter until ctx is done.
func StartLimiterCleanup(ctx context.Context, limiters ...*KeyedLimiter) {
	for _, l := range limiters {
		l.Cleanup(ctx, limiterCleanup)
	}
}
