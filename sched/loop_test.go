package sched

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/zap/zaptest"

	"github.com/djvu-html5/djvustream/options"
)

func startLoop(t *testing.T) *Loop {
	t.Helper()

	l, err := NewLoop(options.WithLLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return l
}

func TestLoopDefer(t *testing.T) {
	t.Parallel()

	l := startLoop(t)

	var calls atomic.Int64
	l.Defer(func() { calls.Inc() })
	l.Defer(func() { calls.Inc() })

	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)
}

func TestLoopEvery(t *testing.T) {
	t.Parallel()

	l := startLoop(t)

	var ticks atomic.Int64
	l.Every(2*time.Millisecond, func() { ticks.Inc() })

	require.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, time.Millisecond)
}

func TestLoopCancel(t *testing.T) {
	t.Parallel()

	l, err := NewLoop()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestLoopDeferFromCallback(t *testing.T) {
	t.Parallel()

	l := startLoop(t)

	var order []string
	finished := make(chan struct{})
	l.Defer(func() {
		order = append(order, "first")
		l.Defer(func() {
			order = append(order, "nested")
			close(finished)
		})
	})
	l.Defer(func() { order = append(order, "second") })

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("nested callback did not run")
	}
	assert.Equal(t, []string{"first", "second", "nested"}, order)
}

func TestLoopEveryFromCallback(t *testing.T) {
	t.Parallel()

	l := startLoop(t)

	var ticks atomic.Int64
	l.Defer(func() {
		l.Every(time.Millisecond, func() { ticks.Inc() })
	})

	require.Eventually(t, func() bool { return ticks.Load() >= 2 }, time.Second, time.Millisecond)
}

func TestDuePeriodic(t *testing.T) {
	t.Parallel()

	l, err := NewLoop()
	require.NoError(t, err)

	start := time.Now()
	l.Every(10*time.Millisecond, func() {})
	l.Every(0, func() {})

	due, wait := l.duePeriodic(start)
	assert.Empty(t, due)
	assert.Positive(t, wait)

	due, wait = l.duePeriodic(start.Add(time.Hour))
	assert.Len(t, due, 2)
	assert.Equal(t, time.Millisecond, wait)
}
