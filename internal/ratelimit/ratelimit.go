// Package ratelimit paces outbound provider requests.
//
// Each provider kind owns one Limiter. Waiters are released in arrival order at
// no more than the configured rate, so concurrent workers share one quota.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Provider kinds
const (
	KindSerp = "serp"
	KindCSE  = "cse"
)

// Limiter is a FIFO pacing gate for a single provider.
type Limiter struct {
	name    string
	limiter *rate.Limiter
}

// NewLimiter creates a limiter allowing rps requests per second with no burst.
// rps <= 0 disables pacing.
func NewLimiter(name string, rps float64) *Limiter {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Every(time.Duration(float64(time.Second) / rps))
	}
	return &Limiter{
		name:    name,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Name returns the provider kind the limiter gates.
func (l *Limiter) Name() string {
	return l.name
}

// Wait blocks until the caller may issue one request or ctx is done.
// Callers are admitted at least 1/rps apart.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter %s: %w", l.name, err)
	}
	return nil
}

// Interval returns the minimum spacing between admitted requests (0 when unlimited).
func (l *Limiter) Interval() time.Duration {
	limit := l.limiter.Limit()
	if limit == rate.Inf || limit <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(limit))
}

// Registry holds one limiter per provider kind.
type Registry struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
}

// NewRegistry creates a registry from a kind -> requests-per-second map.
func NewRegistry(rates map[string]float64) *Registry {
	r := &Registry{limiters: make(map[string]*Limiter, len(rates))}
	for kind, rps := range rates {
		r.limiters[kind] = NewLimiter(kind, rps)
	}
	return r
}

// For returns the limiter for kind, creating an unlimited one if none is configured.
func (r *Registry) For(kind string) *Limiter {
	r.mu.RLock()
	l, ok := r.limiters[kind]
	r.mu.RUnlock()
	if ok {
		return l
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok = r.limiters[kind]; ok {
		return l
	}
	l = NewLimiter(kind, 0)
	r.limiters[kind] = l
	return l
}
