package health

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Aggregator runs every registered check concurrently under one deadline.
// Checks are keyed by name; registering a name again replaces the check.
type Aggregator struct {
	timeout time.Duration

	mu     sync.RWMutex
	order  []string
	checks map[string]Checker
	meta   map[string]any
}

// NewAggregator creates an aggregator; timeout <= 0 means 5s
func NewAggregator(timeout time.Duration) *Aggregator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Aggregator{
		timeout: timeout,
		checks:  make(map[string]Checker),
		meta:    make(map[string]any),
	}
}

// Register adds or replaces a check
func (a *Aggregator) Register(c Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, dup := a.checks[c.Name()]; !dup {
		a.order = append(a.order, c.Name())
	}
	a.checks[c.Name()] = c
}

// SetMetadata attaches a value to every response
func (a *Aggregator) SetMetadata(key string, value any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.meta[key] = value
}

// Names registered checks in registration order
func (a *Aggregator) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]string(nil), a.order...)
}

// Check runs all checks; a check still running at the deadline sees its
// context cancelled and reports whatever it returns.
func (a *Aggregator) Check(ctx context.Context) *Response {
	start := time.Now()

	a.mu.RLock()
	checks := make([]Checker, 0, len(a.order))
	for _, name := range a.order {
		checks = append(checks, a.checks[name])
	}
	meta := make(map[string]any, len(a.meta))
	for k, v := range a.meta {
		meta[k] = v
	}
	a.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	results := make([]CheckResult, len(checks))
	var g errgroup.Group
	for i, c := range checks {
		g.Go(func() error {
			results[i] = run(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	resp := &Response{
		Status:   StatusHealthy,
		Checks:   make(map[string]CheckResult, len(results)),
		Metadata: meta,
	}
	for _, r := range results {
		resp.Checks[r.Name] = r
		resp.Status = worse(resp.Status, r.Status)
	}
	resp.Timestamp = time.Now()
	resp.Duration = resp.Timestamp.Sub(start)
	return resp
}

func run(ctx context.Context, c Checker) CheckResult {
	start := time.Now()
	err := c.Check(ctx)
	r := CheckResult{Name: c.Name(), Timestamp: start, Duration: time.Since(start)}

	switch {
	case err == nil:
		r.Status, r.Message = StatusHealthy, "OK"
	case errors.Is(err, ErrDegraded):
		r.Status, r.Message, r.Error = StatusDegraded, "Degraded", err.Error()
	default:
		r.Status, r.Message, r.Error = StatusUnhealthy, "Health check failed", err.Error()
	}
	return r
}

func rank(s Status) int {
	switch s {
	case StatusUnhealthy:
		return 2
	case StatusDegraded:
		return 1
	}
	return 0
}

// worse of two states
func worse(a, b Status) Status {
	if rank(b) > rank(a) {
		return b
	}
	return a
}
