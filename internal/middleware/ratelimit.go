package middleware

import (
	"math"
	"strconv"
	"sync"
	"time"

	"motorhub-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// RateLimiterConfig holds a per-user token bucket.
type RateLimiterConfig struct {
	Name            string
	Rate            rate.Limit
	Burst           int
	CleanupInterval time.Duration
}

// PerMinute returns a config allowing n requests per minute with a burst of n.
func PerMinute(name string, n int) RateLimiterConfig {
	return RateLimiterConfig{
		Name:            name,
		Rate:            rate.Limit(float64(n) / 60.0),
		Burst:           n,
		CleanupInterval: 5 * time.Minute,
	}
}

// RateLimitObserver is notified of rejected requests.
type RateLimitObserver interface {
	RecordRateLimited(limiter string)
}

type userLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter keeps one limiter per signed-in user.
type RateLimiter struct {
	config   RateLimiterConfig
	observer RateLimitObserver

	mu       sync.Mutex
	limiters map[string]*userLimiter

	stopCh chan struct{}
	once   sync.Once
}

// NewRateLimiter starts a background loop evicting idle limiters; call Stop
// to end it. observer may be nil.
func NewRateLimiter(config RateLimiterConfig, observer RateLimitObserver) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	rl := &RateLimiter{
		config:   config,
		observer: observer,
		limiters: make(map[string]*userLimiter),
		stopCh:   make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stopCh) })
}

// Handler rejects requests beyond the user's budget with 429. It must run
// after RequireAuth.
func (rl *RateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := GetUserID(c)
		if userID == "" {
			return response.Unauthorized(c, "Unauthorized")
		}
		if !rl.limiter(userID).Allow() {
			log.Warn().Str("user_id", userID).Str("limiter", rl.config.Name).Msg("rate limit exceeded")
			if rl.observer != nil {
				rl.observer.RecordRateLimited(rl.config.Name)
			}
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfterSeconds(rl.config.Rate)))
			return response.Error(c, "Too many requests. Please try again later.", fiber.StatusTooManyRequests, nil)
		}
		return c.Next()
	}
}

func (rl *RateLimiter) limiter(userID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	ul, ok := rl.limiters[userID]
	if !ok {
		ul = &userLimiter{limiter: rate.NewLimiter(rl.config.Rate, rl.config.Burst)}
		rl.limiters[userID] = ul
	}
	ul.lastAccess = time.Now()
	return ul.limiter
}

func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup drops limiters idle for more than two cleanup intervals.
func (rl *RateLimiter) cleanup(now time.Time) {
	ttl := rl.config.CleanupInterval * 2
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for id, ul := range rl.limiters {
		if now.Sub(ul.lastAccess) > ttl {
			delete(rl.limiters, id)
		}
	}
}

func retryAfterSeconds(r rate.Limit) int {
	if r <= 0 {
		return 60
	}
	sec := int(math.Ceil(1.0 / float64(r)))
	if sec < 1 {
		sec = 1
	}
	return sec
}
