package agent

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// Limiter bounds the number of in-flight agent HTTP calls. A single weighted
// semaphore covers all agents; parallel stages acquire one slot per agent.
type Limiter struct {
	sem *semaphore.Weighted
}

// NewLimiter creates a limiter allowing maxInFlight concurrent agent calls.
// A non-positive limit defaults to 8.
func NewLimiter(maxInFlight int) *Limiter {
	if maxInFlight <= 0 {
		maxInFlight = 8
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(maxInFlight))}
}

// Acquire blocks until a slot is available or ctx expires.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("failed to acquire agent call slot: %w", err)
	}
	return nil
}

// Release returns a slot; call it after the agent call completes.
func (l *Limiter) Release() {
	l.sem.Release(1)
}
