package monitor

import (
	"time"

	"github.com/KOMKZ/go-yogan-assets/event"
)

// SampleEventName dispatched on every recompute
const SampleEventName = "monitor.sample"

// Sample smoothed performance figures over the frame window
type Sample struct {
	FPS            float64       `json:"fps"`
	MinFPS         float64       `json:"min_fps"` // from the slowest frame
	AvgFrameTime   time.Duration `json:"avg_frame_time_ns"`
	MaxFrameTime   time.Duration `json:"max_frame_time_ns"`
	HeapAllocBytes uint64        `json:"heap_alloc_bytes"`
	Frames         int           `json:"frames"` // samples in the window
	At             time.Time     `json:"at"`
}

// Empty reports whether no frame was recorded yet
func (s Sample) Empty() bool { return s.Frames == 0 }

// SampleEvent carries one Sample through the dispatcher
type SampleEvent struct {
	event.BaseEvent
	Sample Sample
}

func newSampleEvent(s Sample) SampleEvent {
	return SampleEvent{BaseEvent: event.NewEventAt(SampleEventName, s.At), Sample: s}
}
