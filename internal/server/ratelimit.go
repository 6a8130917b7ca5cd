package server

import (
	"sync"

	"golang.org/x/time/rate"
)

// Per-session budgets are multiplied by this factor for the shared global
// bucket, so one chatty session cannot starve the rest.
const globalFactor = 10

// RateLimiter enforces a global and a per-session request rate limit using
// the token bucket algorithm via golang.org/x/time/rate.
type RateLimiter struct {
	mu       sync.Mutex
	global   *rate.Limiter
	sessions map[string]*rate.Limiter
	perSess  rate.Limit
	burst    int
}

// NewRateLimiter creates a limiter allowing rps steady requests per second
// per session with the given burst.
func NewRateLimiter(rps, burst int) *RateLimiter {
	if rps < 1 {
		rps = 1
	}
	if burst < rps {
		burst = rps
	}
	return &RateLimiter{
		global:   rate.NewLimiter(rate.Limit(rps*globalFactor), burst*globalFactor),
		sessions: make(map[string]*rate.Limiter),
		perSess:  rate.Limit(rps),
		burst:    burst,
	}
}

// Allow checks whether a request under the given session key is allowed.
func (rl *RateLimiter) Allow(key string) bool {
	if !rl.global.Allow() {
		return false
	}
	rl.mu.Lock()
	limiter, ok := rl.sessions[key]
	if !ok {
		limiter = rate.NewLimiter(rl.perSess, rl.burst)
		rl.sessions[key] = limiter
	}
	rl.mu.Unlock()
	return limiter.Allow()
}
