// Package sched provides a single goroutine cooperative scheduler with
// periodic and deferred callbacks.
package sched

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/djvu-html5/djvustream/env"
	"github.com/djvu-html5/djvustream/options"
)

var _ env.Scheduler = (*Loop)(nil)

type periodic struct {
	period time.Duration
	next   time.Time
	fn     func()
}

// Loop runs every callback on the goroutine that called Run.
// Every and Defer are safe to call from any goroutine, including from
// within a callback.
type Loop struct {
	logger *zap.Logger

	mu       sync.Mutex
	deferred []func()
	periodic []*periodic

	wake chan struct{}
}

func NewLoop(opts ...options.LOption) (*Loop, error) {
	var o options.LoopOptions
	o.SetDefault()
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}

	return &Loop{
		logger: o.Logger,
		wake:   make(chan struct{}, 1),
	}, nil
}

// Every schedules fn to run every period, starting one period from now.
func (l *Loop) Every(period time.Duration, fn func()) {
	if period <= 0 {
		period = time.Millisecond
	}

	l.mu.Lock()
	l.periodic = append(l.periodic, &periodic{period: period, next: time.Now().Add(period), fn: fn})
	l.mu.Unlock()

	l.signal()
}

// Defer schedules fn to run on the next turn of the loop.
func (l *Loop) Defer(fn func()) {
	l.mu.Lock()
	l.deferred = append(l.deferred, fn)
	l.mu.Unlock()

	l.signal()
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run executes callbacks until ctx is done. Deferred callbacks run before
// due periodic ones.
func (l *Loop) Run(ctx context.Context) error {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		l.runDeferred()

		due, wait := l.duePeriodic(time.Now())
		for _, fn := range due {
			fn()
		}
		if len(due) > 0 {
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			l.logger.Debug("loop stopped", zap.Error(ctx.Err()))
			return ctx.Err()
		case <-l.wake:
		case <-timer.C:
		}
	}
}

// runDeferred runs the callbacks queued so far. Callbacks deferred while
// running are left for the next turn.
func (l *Loop) runDeferred() {
	l.mu.Lock()
	queue := l.deferred
	l.deferred = nil
	l.mu.Unlock()

	for _, fn := range queue {
		fn()
	}
}

// duePeriodic returns the callbacks due at now and reschedules them. If none
// is due it returns how long to wait for the next one.
func (l *Loop) duePeriodic(now time.Time) ([]func(), time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var due []func()
	wait := time.Hour
	for _, p := range l.periodic {
		if !now.Before(p.next) {
			due = append(due, p.fn)
			p.next = now.Add(p.period)
		}
		if d := p.next.Sub(now); d < wait {
			wait = d
		}
	}
	return due, wait
}
