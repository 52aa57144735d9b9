// Package schedule provides the periodic-task abstraction that drives the
// telemetry simulator. Ticker is backed by time.Ticker; Manual lets tests
// advance time explicitly.
package schedule

import (
	"context"
	"sync"
	"time"
)

// Scheduler runs a task periodically.
type Scheduler interface {
	// Every runs task once per period until stop is called or ctx is done.
	// Runs of the same schedule never overlap. stop is idempotent and, once it
	// returns, task will not run again. stop must not be called from inside task.
	Every(ctx context.Context, period time.Duration, task func()) (stop func())
}

// Ticker is the wall-clock Scheduler.
type Ticker struct{}

// NewTicker creates a wall-clock scheduler.
func NewTicker() *Ticker {
	return &Ticker{}
}

// Every implements Scheduler. A non-positive period schedules nothing.
func (Ticker) Every(ctx context.Context, period time.Duration, task func()) func() {
	if period <= 0 {
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		t := time.NewTicker(period)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				// both cases may be ready; cancellation wins
				if ctx.Err() != nil {
					return
				}
				task()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}

// Manual is a Scheduler whose ticks are fired by Advance.
type Manual struct {
	mu    sync.Mutex
	tasks []*manualTask
}

type manualTask struct {
	ctx     context.Context
	period  time.Duration
	task    func()
	stopped bool
}

// NewManual creates a scheduler that only ticks when told to.
func NewManual() *Manual {
	return &Manual{}
}

// Every implements Scheduler.
func (m *Manual) Every(ctx context.Context, period time.Duration, task func()) func() {
	mt := &manualTask{ctx: ctx, period: period, task: task}

	m.mu.Lock()
	m.tasks = append(m.tasks, mt)
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		mt.stopped = true
		m.mu.Unlock()
	}
}

// Advance fires n ticks on every live schedule, in registration order.
func (m *Manual) Advance(n int) {
	for i := 0; i < n; i++ {
		for _, mt := range m.live() {
			mt.task()
		}
	}
}

// Active returns the number of schedules that would fire on Advance.
func (m *Manual) Active() int {
	return len(m.live())
}

func (m *Manual) live() []*manualTask {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*manualTask
	for _, mt := range m.tasks {
		if mt.stopped || mt.ctx.Err() != nil || mt.period <= 0 {
			continue
		}
		out = append(out, mt)
	}
	return out
}
