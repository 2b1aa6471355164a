package retry

import (
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy delay before retry number attempt (starting at 1)
type BackoffStrategy interface {
	Next(attempt int) time.Duration
}

// BackoffOption tunes a Schedule
type BackoffOption func(*Schedule)

// WithMultiplier growth factor between attempts; ignored when <= 0
func WithMultiplier(m float64) BackoffOption {
	return func(s *Schedule) {
		if m > 0 {
			s.Factor = m
		}
	}
}

// WithMaxDelay caps every delay; ignored when <= 0
func WithMaxDelay(d time.Duration) BackoffOption {
	return func(s *Schedule) {
		if d > 0 {
			s.Max = d
		}
	}
}

// WithJitter spreads each delay uniformly by ±ratio, ratio in [0, 1]
func WithJitter(ratio float64) BackoffOption {
	return func(s *Schedule) {
		if ratio >= 0 && ratio <= 1 {
			s.Jitter = ratio
		}
	}
}

// Schedule geometric delays: Base * Factor^(attempt-1), capped at Max,
// then jittered. Factor 1 gives a constant delay.
type Schedule struct {
	Base   time.Duration
	Factor float64
	Max    time.Duration
	Jitter float64
}

func newSchedule(base time.Duration, factor float64, opts []BackoffOption) Schedule {
	s := Schedule{Base: base, Factor: factor, Max: 5 * time.Second, Jitter: 0.2}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// ExponentialBackoff doubling delays from base, 5s cap, ±20% jitter
func ExponentialBackoff(base time.Duration, opts ...BackoffOption) BackoffStrategy {
	return newSchedule(base, 2, opts)
}

// ConstantBackoff the same delay every attempt, ±20% jitter. WithMultiplier
// turns it into a geometric schedule.
func ConstantBackoff(delay time.Duration, opts ...BackoffOption) BackoffStrategy {
	s := newSchedule(delay, 1, opts)
	s.Max = max(s.Max, delay)
	return s
}

// NoBackoff retries immediately
func NoBackoff() BackoffStrategy { return Schedule{} }

func (s Schedule) Next(attempt int) time.Duration {
	if attempt <= 0 || s.Base <= 0 {
		return 0
	}
	d := float64(s.Base)
	if s.Factor > 1 {
		d *= math.Pow(s.Factor, float64(attempt-1))
	}
	if s.Max > 0 {
		d = math.Min(d, float64(s.Max))
	}
	if s.Jitter > 0 {
		d += d * s.Jitter * (2*rand.Float64() - 1)
	}
	return time.Duration(math.Max(d, 0))
}
