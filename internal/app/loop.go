package app

import (
	"context"
	"sync"
	"time"
)

// Dispatcher runs tasks on the single logical thread that owns orchestrator state.
type Dispatcher interface {
	Post(fn func())
	After(d time.Duration, fn func())
}

// Loop is a Dispatcher backed by one goroutine. Post never blocks, so tasks may
// post further tasks and foreign callbacks can re-enter safely.
type Loop struct {
	mu      sync.Mutex
	tasks   []func()
	wake    chan struct{}
	stopped bool
}

func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) After(d time.Duration, fn func()) {
	if d <= 0 {
		l.Post(fn)
		return
	}
	time.AfterFunc(d, func() { l.Post(fn) })
}

// Run executes tasks in order until ctx is done. Pending tasks are dropped on exit.
func (l *Loop) Run(ctx context.Context) {
	defer func() {
		l.mu.Lock()
		l.stopped = true
		l.tasks = nil
		l.mu.Unlock()
	}()
	for {
		l.mu.Lock()
		batch := l.tasks
		l.tasks = nil
		l.mu.Unlock()

		for _, fn := range batch {
			fn()
		}
		if len(batch) > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-l.wake:
		}
	}
}

// Inline runs every task immediately on the calling goroutine.
type Inline struct{}

func (Inline) Post(fn func()) { fn() }

func (Inline) After(_ time.Duration, fn func()) { fn() }
