package middleware

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/diagnosis/scanlogin/internal/http/response"
	"github.com/diagnosis/scanlogin/pkg/logger"
)

// RateLimitStore counts hits per key within a fixed window.
type RateLimitStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateLimitConfig defines rate limiting parameters
type RateLimitConfig struct {
	Requests int                            // Max requests per window
	Window   time.Duration                  // Time window duration
	KeyFunc  func(r *http.Request) []string // Function to generate rate limit keys
}

// RateLimiter provides rate limiting functionality
type RateLimiter struct {
	store  RateLimitStore
	config RateLimitConfig
}

func NewRateLimiter(store RateLimitStore, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		store:  store,
		config: config,
	}
}

// Middleware returns the rate limiting middleware
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, key := range rl.config.KeyFunc(r) {
				if !rl.allow(r.Context(), key) {
					response.RateLimit(w, "Too many requests. Try again later.")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) allow(ctx context.Context, key string) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	// Hash the key for privacy
	hasher := sha256.New()
	hasher.Write([]byte(key))
	hashedKey := fmt.Sprintf("%x", hasher.Sum(nil))

	count, err := rl.store.Incr(ctx, hashedKey, rl.config.Window)
	if err != nil {
		// On store error, allow the request (fail open)
		logger.WarnContext(ctx, "Rate limit check failed", "error", err)
		return true
	}

	return count <= int64(rl.config.Requests)
}

// RedisRateLimitStore counts in Redis so the limit holds across instances.
type RedisRateLimitStore struct {
	client *redis.Client
}

func NewRedisRateLimitStore(client *redis.Client) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client}
}

func (s *RedisRateLimitStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	rkey := "scanlogin:ratelimit:" + key

	count, err := s.client.Incr(ctx, rkey).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		// First hit opens the window.
		if err := s.client.Expire(ctx, rkey, window).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

// MemoryRateLimitStore is the dev fallback when Redis is not configured.
type MemoryRateLimitStore struct {
	mu      sync.Mutex
	windows map[string]*memWindow
}

type memWindow struct {
	count    int64
	deadline time.Time
}

func NewMemoryRateLimitStore() *MemoryRateLimitStore {
	return &MemoryRateLimitStore{windows: make(map[string]*memWindow)}
}

func (s *MemoryRateLimitStore) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	wdw, ok := s.windows[key]
	if !ok || now.After(wdw.deadline) {
		wdw = &memWindow{deadline: now.Add(window)}
		s.windows[key] = wdw
	}
	wdw.count++
	return wdw.count, nil
}

// IPKeyFunc rate limits by client IP.
func IPKeyFunc(prefix string) func(r *http.Request) []string {
	return func(r *http.Request) []string {
		if ip := GetClientIP(r); ip != "" {
			return []string{prefix + ":ip:" + ip}
		}
		return nil
	}
}

// ConfirmKeyFunc rate limits confirm attempts by both client IP and ticket
// id, so a single ticket cannot be brute-forced from many addresses.
func ConfirmKeyFunc(ticketIDFromRequest func(r *http.Request) string) func(r *http.Request) []string {
	return func(r *http.Request) []string {
		keys := []string{}
		if ip := GetClientIP(r); ip != "" {
			keys = append(keys, "confirm:ip:"+ip)
		}
		if id := ticketIDFromRequest(r); id != "" {
			keys = append(keys, "confirm:ticket:"+id)
		}
		return keys
	}
}

// GetClientIP extracts the real client IP from the request
func GetClientIP(r *http.Request) string {
	// Check X-Forwarded-For header first
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Take the first IP if there are multiple
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// Fall back to RemoteAddr
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
