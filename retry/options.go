package retry

import "time"

// Config retry settings, built from Options
type Config struct {
	maxAttempts int
	backoff     BackoffStrategy
	condition   RetryCondition
	onRetry     func(attempt int, err error)
	timeout     time.Duration
}

func defaultConfig() *Config {
	return &Config{
		maxAttempts: 3,
		backoff:     ExponentialBackoff(50 * time.Millisecond),
		condition:   RetryOnLayered(),
	}
}

// Option configures one call
type Option func(*Config)

// MaxAttempts total attempts including the first
func MaxAttempts(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// Backoff sets the delay strategy
func Backoff(b BackoffStrategy) Option {
	return func(c *Config) {
		if b != nil {
			c.backoff = b
		}
	}
}

// Condition sets which errors retry
func Condition(cond RetryCondition) Option {
	return func(c *Config) {
		if cond != nil {
			c.condition = cond
		}
	}
}

// OnRetry is called before every wait
func OnRetry(f func(attempt int, err error)) Option {
	return func(c *Config) { c.onRetry = f }
}

// Timeout bounds each attempt
func Timeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.timeout = d
		}
	}
}
