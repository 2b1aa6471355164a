// Package event provides an in-process observer dispatcher.
// Listener failures are isolated: a panicking or failing listener is logged
// and never prevents the remaining listeners from running.
package event

import "time"

// Event event interface
type Event interface {
	// Name event name (unique identifier, such as "quality.changed")
	Name() string
}

// BaseEvent can be embedded into specific event structs
type BaseEvent struct {
	name       string
	occurredAt time.Time
}

// NewEvent creates a base event stamped with the current time.
func NewEvent(name string) BaseEvent {
	return BaseEvent{name: name, occurredAt: time.Now()}
}

// NewEventAt creates a base event with an explicit timestamp.
func NewEventAt(name string, at time.Time) BaseEvent {
	return BaseEvent{name: name, occurredAt: at}
}

// Name returns the event name
func (e BaseEvent) Name() string {
	return e.name
}

// OccurredAt returns the event occurrence time
func (e BaseEvent) OccurredAt() time.Time {
	return e.occurredAt
}
