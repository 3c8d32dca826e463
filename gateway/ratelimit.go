package gateway

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

// SignInLimiter throttles password attempts per client IP. Limiters for
// idle clients are dropped after an hour so the map does not grow without
// bound.
type SignInLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	onReject func()
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewSignInLimiter allows perMinute requests per IP with a burst of the
// same size. onReject may be nil.
func NewSignInLimiter(perMinute int, onReject func()) *SignInLimiter {
	if perMinute <= 0 {
		perMinute = 30
	}
	l := &SignInLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		onReject: onReject,
	}
	go l.sweep()
	return l
}

// Handler is the Fiber middleware form of the limiter.
func (l *SignInLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !l.Allow(c.IP()) {
			if l.onReject != nil {
				l.onReject()
			}
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"error":   "too many sign-in attempts, slow down",
			})
		}
		return c.Next()
	}
}

func (l *SignInLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = time.Now()

	return v.limiter.Allow()
}

func (l *SignInLimiter) sweep() {
	for range time.Tick(10 * time.Minute) {
		l.mu.Lock()
		for ip, v := range l.visitors {
			if time.Since(v.lastSeen) > time.Hour {
				delete(l.visitors, ip)
			}
		}
		l.mu.Unlock()
	}
}
