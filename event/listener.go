package event

import "context"

// Listener interface
type Listener interface {
	// Handle event
	// Return ErrStopPropagation to skip the remaining listeners without
	// reporting an error.
	Handle(ctx context.Context, event Event) error
}

// ListenerFunc functional listener adapter
type ListenerFunc func(ctx context.Context, event Event) error

// Handle implements Listener interface
func (f ListenerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}
