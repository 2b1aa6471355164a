package event

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KOMKZ/go-yogan-assets/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

type sampleEvent struct {
	BaseEvent
	fps float64
}

func newSample(fps float64) sampleEvent {
	return sampleEvent{BaseEvent: NewEvent("monitor.sample"), fps: fps}
}

func TestDispatcher_PriorityOrder(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()

	var order []string
	_, err := d.Subscribe("monitor.sample", ListenerFunc(func(ctx context.Context, e Event) error {
		order = append(order, "late")
		return nil
	}), WithPriority(10))
	require.NoError(t, err)
	_, err = d.Subscribe("monitor.sample", ListenerFunc(func(ctx context.Context, e Event) error {
		order = append(order, "early")
		return nil
	}), WithPriority(-1))
	require.NoError(t, err)

	require.NoError(t, d.Dispatch(context.Background(), newSample(30)))
	assert.Equal(t, []string{"early", "late"}, order)
}

func TestDispatcher_PanicIsolated(t *testing.T) {
	log, logs := logger.NewObserved("event", zapcore.DebugLevel)
	d := NewDispatcher(WithLogger(log))
	defer d.Close()

	var delivered int32
	_, _ = d.Subscribe("monitor.sample", ListenerFunc(func(ctx context.Context, e Event) error {
		panic("subscriber bug")
	}))
	_, _ = d.Subscribe("monitor.sample", ListenerFunc(func(ctx context.Context, e Event) error {
		return errors.New("subscriber failed")
	}))
	_, _ = d.Subscribe("monitor.sample", ListenerFunc(func(ctx context.Context, e Event) error {
		atomic.AddInt32(&delivered, 1)
		return nil
	}))

	var err error
	assert.NotPanics(t, func() {
		err = d.Dispatch(context.Background(), newSample(30))
	})
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&delivered))
	assert.Equal(t, int64(2), d.Failures())
	assert.Equal(t, 1, logs.FilterMessage("event listener panicked").Len())
	assert.Equal(t, 1, logs.FilterMessage("event listener failed").Len())
}

func TestDispatcher_StopPropagation(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()

	var second bool
	_, _ = d.Subscribe("x", ListenerFunc(func(ctx context.Context, e Event) error {
		return ErrStopPropagation
	}))
	_, _ = d.Subscribe("x", ListenerFunc(func(ctx context.Context, e Event) error {
		second = true
		return nil
	}), WithPriority(1))

	assert.NoError(t, d.Dispatch(context.Background(), NewEvent("x")))
	assert.False(t, second)
}

func TestDispatcher_Unsubscribe(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()

	var calls int32
	unsub, err := d.Subscribe("x", ListenerFunc(func(ctx context.Context, e Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}))
	require.NoError(t, err)

	_ = d.Dispatch(context.Background(), NewEvent("x"))
	unsub()
	_ = d.Dispatch(context.Background(), NewEvent("x"))

	assert.Equal(t, int32(1), calls)
	assert.Equal(t, 0, d.ListenerCount("x"))
}

func TestDispatcher_Once(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()

	var calls int32
	_, _ = d.Subscribe("x", ListenerFunc(func(ctx context.Context, e Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}), WithOnce())

	_ = d.Dispatch(context.Background(), NewEvent("x"))
	_ = d.Dispatch(context.Background(), NewEvent("x"))
	assert.Equal(t, int32(1), calls)
}

func TestDispatcher_MaxListeners(t *testing.T) {
	d := NewDispatcher(WithMaxListeners(2))
	defer d.Close()

	noop := ListenerFunc(func(ctx context.Context, e Event) error { return nil })
	_, err := d.Subscribe("x", noop)
	require.NoError(t, err)
	_, err = d.Subscribe("x", noop)
	require.NoError(t, err)
	_, err = d.Subscribe("x", noop)
	assert.ErrorIs(t, err, ErrTooManyListeners)
}

func TestDispatcher_AsyncListener(t *testing.T) {
	d := NewDispatcher(WithPoolSize(2))
	defer d.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	_, _ = d.Subscribe("x", ListenerFunc(func(ctx context.Context, e Event) error {
		defer wg.Done()
		return nil
	}), WithAsync())

	require.NoError(t, d.Dispatch(context.Background(), NewEvent("x")))

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("async listener never ran")
	}
}

func TestDispatcher_Closed(t *testing.T) {
	d := NewDispatcher()
	d.Close()
	d.Close()

	_, err := d.Subscribe("x", ListenerFunc(func(ctx context.Context, e Event) error { return nil }))
	assert.ErrorIs(t, err, ErrDispatcherClosed)
	assert.ErrorIs(t, d.Dispatch(context.Background(), NewEvent("x")), ErrDispatcherClosed)
}
