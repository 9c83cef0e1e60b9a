package middleware

import (
	"context"
	"sync"
	"time"
)

// InvalidAuthRateLimiter throttles repeated failed authentication per IP.
// Successful requests never count against the limit.
type InvalidAuthRateLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	attempts map[string]*attemptInfo
}

type attemptInfo struct {
	count   int
	firstAt time.Time
}

// NewInvalidAuthRateLimiter allows limit failed attempts per IP within window.
// Expired entries are swept until ctx is canceled.
func NewInvalidAuthRateLimiter(ctx context.Context, limit int, window time.Duration) *InvalidAuthRateLimiter {
	rl := &InvalidAuthRateLimiter{
		limit:    limit,
		window:   window,
		attempts: make(map[string]*attemptInfo),
	}
	go rl.cleanup(ctx)
	return rl
}

// Allow records a failed attempt from ip and reports whether it is still
// within the limit.
func (r *InvalidAuthRateLimiter) Allow(ip string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	info, exists := r.attempts[ip]
	if !exists || now.Sub(info.firstAt) > r.window {
		r.attempts[ip] = &attemptInfo{count: 1, firstAt: now}
		return true
	}

	if info.count >= r.limit {
		return false
	}
	info.count++
	return true
}

func (r *InvalidAuthRateLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(5 * r.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.mu.Lock()
			now := time.Now()
			for ip, info := range r.attempts {
				if now.Sub(info.firstAt) > r.window {
					delete(r.attempts, ip)
				}
			}
			r.mu.Unlock()
		}
	}
}
