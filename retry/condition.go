package retry

import (
	"context"
	"errors"

	"github.com/KOMKZ/go-yogan-assets/errcode"
)

// RetryCondition decides whether a failed attempt is worth repeating
type RetryCondition interface {
	ShouldRetry(err error, attempt int) bool
}

// ConditionFunc adapts a function
type ConditionFunc func(err error, attempt int) bool

func (f ConditionFunc) ShouldRetry(err error, attempt int) bool { return f(err, attempt) }

// AlwaysRetry retries every error
func AlwaysRetry() RetryCondition {
	return ConditionFunc(func(err error, _ int) bool { return err != nil })
}

// NeverRetry gives up after the first failure
func NeverRetry() RetryCondition {
	return ConditionFunc(func(error, int) bool { return false })
}

// RetryOnLayered retries errors whose layered code carries the retry hint.
// Context cancellation never retries.
func RetryOnLayered() RetryCondition {
	return ConditionFunc(func(err error, _ int) bool {
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		return errcode.IsRetryable(err)
	})
}

// RetryOnCondition retries when fn returns true
func RetryOnCondition(fn func(error) bool) RetryCondition {
	return ConditionFunc(func(err error, _ int) bool { return err != nil && fn(err) })
}

// Not negates cond
func Not(cond RetryCondition) RetryCondition {
	return ConditionFunc(func(err error, attempt int) bool { return !cond.ShouldRetry(err, attempt) })
}

// Or retries when any condition holds
func Or(conds ...RetryCondition) RetryCondition {
	return ConditionFunc(func(err error, attempt int) bool {
		for _, c := range conds {
			if c.ShouldRetry(err, attempt) {
				return true
			}
		}
		return false
	})
}
