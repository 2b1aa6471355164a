// Package health aggregates runtime checks of the asset subsystem.
package health

import (
	"context"
	"errors"
	"time"
)

// Status health state
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded" // still serving, with reduced fidelity
	StatusUnhealthy Status = "unhealthy"
)

// ErrDegraded wrap it to report Degraded instead of Unhealthy
var ErrDegraded = errors.New("degraded")

// Checker one health check item
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function into a named Checker
func CheckerFunc(name string, fn func(ctx context.Context) error) Checker {
	return funcChecker{name: name, fn: fn}
}

type funcChecker struct {
	name string
	fn   func(ctx context.Context) error
}

func (c funcChecker) Name() string                    { return c.name }
func (c funcChecker) Check(ctx context.Context) error { return c.fn(ctx) }

// CheckResult single check outcome
type CheckResult struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// Response aggregated outcome
type Response struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Duration  time.Duration          `json:"duration"`
	Checks    map[string]CheckResult `json:"checks"`
	Metadata  map[string]any         `json:"metadata,omitempty"`
}

// IsHealthy overall healthy
func (r *Response) IsHealthy() bool {
	return r.Status == StatusHealthy
}

// IsDegraded overall degraded
func (r *Response) IsDegraded() bool {
	return r.Status == StatusDegraded
}
