package server

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleClientTTL is how long an unused client limiter is kept.
const idleClientTTL = 10 * time.Minute

// RateLimiter applies a token bucket per client.
type RateLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*clientLimiter
	now     func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitError is returned when a client exceeds its request rate.
type RateLimitError struct {
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %d requests per minute, retry after %v", e.Limit, e.RetryAfter.Round(time.Second))
}

// NewRateLimiter allows requestsPerMinute per client with the given burst.
// A burst below 1 uses requestsPerMinute.
func NewRateLimiter(requestsPerMinute, burst int) *RateLimiter {
	if burst < 1 {
		burst = requestsPerMinute
	}
	return &RateLimiter{
		limit:   rate.Limit(float64(requestsPerMinute) / 60),
		burst:   burst,
		clients: make(map[string]*clientLimiter),
		now:     time.Now,
	}
}

// Allow consumes one token for clientID or returns a RateLimitError.
func (rl *RateLimiter) Allow(clientID string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.evictLocked(now)
	c, ok := rl.clients[clientID]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[clientID] = c
	}
	c.lastSeen = now

	r := c.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return &RateLimitError{Limit: int(float64(rl.limit) * 60), RetryAfter: delay}
	}
	return nil
}

// Clients returns the number of tracked clients.
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func (rl *RateLimiter) evictLocked(now time.Time) {
	for id, c := range rl.clients {
		if now.Sub(c.lastSeen) > idleClientTTL {
			delete(rl.clients, id)
		}
	}
}
