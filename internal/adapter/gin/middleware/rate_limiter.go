package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"users-api/internal/config"
	"users-api/pkg/logger"
)

const (
	// Idle buckets older than this are dropped from the in-memory map
	visitorTTL = 10 * time.Minute
	// Minimum interval between two sweeps of the in-memory map
	pruneInterval = time.Minute
	// Redis bucket expiry in seconds
	bucketTTLSeconds = 60
)

// tokenBucketScript refills and consumes a token bucket atomically.
// Bucket state is {last_refill, tokens}; it returns 1 when the request is allowed.
const tokenBucketScript = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local bucket = redis.call('HMGET', key, 'last_refill', 'tokens')
local last_refill = tonumber(bucket[1]) or now
local tokens = tonumber(bucket[2]) or capacity

local elapsed = math.max(0, now - last_refill)
tokens = math.min(capacity, tokens + elapsed * rate)

local allowed = 0
if tokens >= requested then
	tokens = tokens - requested
	allowed = 1
end

redis.call('HMSET', key, 'last_refill', now, 'tokens', tokens)
redis.call('EXPIRE', key, ttl)
return allowed
`

// RateLimiterConfig holds configuration for the rate limiter.
type RateLimiterConfig struct {
	Enabled           bool
	Backend           string
	RequestsPerSecond float64
	BurstCapacity     int
}

// RateLimiter limits requests per client IP, method and path with a token
// bucket. The memory backend keeps buckets in process; the redis backend
// shares them across replicas.
type RateLimiter struct {
	client *redis.Client
	config RateLimiterConfig
	log    *zap.Logger

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastPrune time.Time
	now       func() time.Time
}

// visitor holds the in-memory bucket of a single key
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter. client may be nil unless the
// redis backend is selected.
func NewRateLimiter(client *redis.Client, cfg RateLimiterConfig, log *zap.Logger) *RateLimiter {
	return &RateLimiter{
		client:   client,
		config:   cfg,
		log:      log,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

// Middleware returns a Gin middleware enforcing the limit. Denied requests
// are answered with 429.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.config.Enabled {
			c.Next()
			return
		}

		clientIP := c.ClientIP()
		key := fmt.Sprintf("ratelimit:tb:%s:%s:%s", c.Request.Method, c.Request.URL.Path, clientIP)

		allowed, err := rl.allow(c.Request.Context(), key)
		if err != nil {
			// Fail open
			logger.WithContext(c.Request.Context(), rl.log).Warn("rate limiter backend error, allowing request",
				zap.String("client_ip", clientIP),
				zap.Error(err),
			)
			c.Next()
			return
		}

		if !allowed {
			logger.WithContext(c.Request.Context(), rl.log).Warn("rate limit exceeded",
				zap.String("client_ip", clientIP),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
			)
			msg := fmt.Sprintf("Rate limit exceeded: %.2f requests/second (burst capacity: %d)",
				rl.config.RequestsPerSecond, rl.config.BurstCapacity)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": msg,
			})
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) allow(ctx context.Context, key string) (bool, error) {
	if rl.config.Backend == config.RateLimitBackendRedis {
		return rl.allowRedis(ctx, key)
	}
	return rl.allowMemory(key), nil
}

func (rl *RateLimiter) allowRedis(ctx context.Context, key string) (bool, error) {
	if rl.client == nil {
		return false, errors.New("redis rate limiter has no client")
	}

	now := float64(rl.now().UnixMicro()) / 1e6
	allowed, err := rl.client.Eval(ctx, tokenBucketScript, []string{key},
		rl.config.RequestsPerSecond,
		rl.config.BurstCapacity,
		now,
		1,
		bucketTTLSeconds,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("token bucket eval: %w", err)
	}
	return allowed == 1, nil
}

func (rl *RateLimiter) allowMemory(key string) bool {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastPrune) >= pruneInterval {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) > visitorTTL {
				delete(rl.visitors, k)
			}
		}
		rl.lastPrune = now
	}

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.BurstCapacity)}
		rl.visitors[key] = v
	}
	v.lastSeen = now

	return v.limiter.AllowN(now, 1)
}
