package db

import (
	"math/rand/v2"
	"strings"
	"time"
)

// maxBackoffExponent bounds base*2^n so the delay cannot overflow.
const maxBackoffExponent = 20

// WeeklyBucketPrefix marks time buckets that re-check on the weekly cadence.
const WeeklyBucketPrefix = "weekly"

// SchedulePolicy computes run_after values for task outcomes.
type SchedulePolicy struct {
	BackoffBase           time.Duration
	MaxAttempts           int // failure streak ceiling; 0 disables it
	RefreshInterval       time.Duration
	WeeklyRefreshInterval time.Duration

	// Jitter returns a value in [0, n). Defaults to math/rand/v2.
	Jitter func(n int64) int64
}

// DefaultSchedulePolicy returns the production defaults.
func DefaultSchedulePolicy() SchedulePolicy {
	return SchedulePolicy{
		BackoffBase:           5 * time.Minute,
		MaxAttempts:           8,
		RefreshInterval:       24 * time.Hour,
		WeeklyRefreshInterval: 7 * 24 * time.Hour,
	}
}

// Backoff returns base*2^(streak-1) + random(0, base) for the given consecutive failure count.
func (p SchedulePolicy) Backoff(streak int) time.Duration {
	base := p.BackoffBase
	if base <= 0 {
		return 0
	}
	if streak < 1 {
		streak = 1
	}
	exp := min(streak-1, maxBackoffExponent)
	delay := base * time.Duration(int64(1)<<exp)
	return delay + time.Duration(p.jitter(int64(base)))
}

// RefreshFor returns the re-check delay used when a task's result did not change.
func (p SchedulePolicy) RefreshFor(timeBucket string) time.Duration {
	if strings.HasPrefix(strings.ToLower(timeBucket), WeeklyBucketPrefix) && p.WeeklyRefreshInterval > 0 {
		return p.WeeklyRefreshInterval
	}
	return p.RefreshInterval
}

// NextRunAfterSuccess returns now when the result changed, otherwise now + refresh cadence.
func (p SchedulePolicy) NextRunAfterSuccess(now time.Time, timeBucket string, changed bool) time.Time {
	if changed {
		return now
	}
	return now.Add(p.RefreshFor(timeBucket))
}

// NextRunAfterFailure returns the retry time for a task whose failure streak is now streak.
// exhausted is true once the ceiling is reached; the task is then scheduled immediately
// but left for operator attention instead of being claimed again.
func (p SchedulePolicy) NextRunAfterFailure(now time.Time, streak int) (runAfter time.Time, exhausted bool) {
	if p.Exhausted(streak) {
		return now, true
	}
	return now.Add(p.Backoff(streak)), false
}

// Exhausted reports whether streak has reached the configured ceiling.
func (p SchedulePolicy) Exhausted(streak int) bool {
	return p.MaxAttempts > 0 && streak >= p.MaxAttempts
}

func (p SchedulePolicy) jitter(n int64) int64 {
	if n <= 0 {
		return 0
	}
	if p.Jitter != nil {
		return p.Jitter(n)
	}
	return rand.Int64N(n)
}
