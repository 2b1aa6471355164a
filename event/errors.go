package event

import "errors"

// ErrStopPropagation stops event propagation (not considered an error)
var ErrStopPropagation = errors.New("stop propagation")

// ErrTooManyListeners is returned when an event already has MaxListeners subscribers.
var ErrTooManyListeners = errors.New("too many listeners for event")

// ErrDispatcherClosed is returned by Subscribe and Dispatch after Close.
var ErrDispatcherClosed = errors.New("event dispatcher closed")
