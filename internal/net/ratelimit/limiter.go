package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Limiter provides per-client rate limiting using token bucket algorithm.
// Clients that stay quiet are forgotten by Prune.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*client
	rps     float64 // Requests per second
	burst   int     // Burst capacity
	now     func() time.Time
}

type client struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// NewLimiter creates a new rate limiter with the specified RPS and burst capacity
func NewLimiter(rps float64, burst int) *Limiter {
	return &Limiter{
		clients: make(map[string]*client),
		rps:     rps,
		burst:   burst,
		now:     time.Now,
	}
}

// Allow returns true if a request from the specified client is allowed
func (l *Limiter) Allow(addr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, exists := l.clients[addr]
	if !exists {
		c = &client{bucket: rate.NewLimiter(rate.Limit(l.rps), l.burst)}
		l.clients[addr] = c
	}
	c.lastSeen = now
	return c.bucket.AllowN(now, 1)
}

// Prune forgets clients idle for longer than idle and returns how many went
func (l *Limiter) Prune(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for addr, c := range l.clients {
		if now.Sub(c.lastSeen) > idle {
			delete(l.clients, addr)
			removed++
		}
	}
	return removed
}

// Run prunes idle clients every interval until ctx is cancelled
func (l *Limiter) Run(ctx context.Context, every, idle time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Prune(idle); n > 0 {
				log.Debug().Int("pruned", n).Dur("idle", idle).Msg("Forgot idle rate limit clients")
			}
		}
	}
}

// Stats returns statistics for all tracked clients
func (l *Limiter) Stats() map[string]LimiterStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	stats := make(map[string]LimiterStats, len(l.clients))
	for addr, c := range l.clients {
		stats[addr] = LimiterStats{
			Client:          addr,
			RPS:             float64(c.bucket.Limit()),
			Burst:           c.bucket.Burst(),
			TokensAvailable: c.bucket.TokensAt(now),
			LastSeen:        c.lastSeen,
		}
	}

	return stats
}

// LimiterStats represents statistics for a single client limiter
type LimiterStats struct {
	Client          string    `json:"client"`
	RPS             float64   `json:"rps"`
	Burst           int       `json:"burst"`
	TokensAvailable float64   `json:"tokens_available"`
	LastSeen        time.Time `json:"last_seen"`
}

// IsThrottled returns true if the client has no whole token left
func (s *LimiterStats) IsThrottled() bool {
	return s.TokensAvailable < 1
}
