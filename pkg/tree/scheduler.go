package tree

import (
	"context"
	"sync"
)

// Scheduler runs continuations on the goroutine that owns a tree. Fetch
// completions, background parse results and post-render reopen requests
// all go through it.
type Scheduler interface {
	// Schedule queues fn. It may be called from any goroutine.
	Schedule(fn func())
	// Deferred reports whether fn runs on a later turn rather than inside
	// Schedule. Background parsing requires a deferred scheduler.
	Deferred() bool
}

type inlineScheduler struct{}

func (inlineScheduler) Schedule(fn func()) { fn() }
func (inlineScheduler) Deferred() bool     { return false }

// Inline runs every continuation immediately on the calling goroutine. It
// suits synchronous fetch strategies and tests.
var Inline Scheduler = inlineScheduler{}

// Loop is a deferred scheduler backed by an unbounded FIFO queue. The owner
// goroutine drains it with Drain, Next or RunUntil; other goroutines only
// call Schedule.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	signal chan struct{}
}

// NewLoop creates an empty loop.
func NewLoop() *Loop {
	return &Loop{signal: make(chan struct{}, 1)}
}

// Schedule appends fn and wakes a waiting Next.
func (l *Loop) Schedule(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	select {
	case l.signal <- struct{}{}:
	default:
	}
}

// Deferred always reports true.
func (l *Loop) Deferred() bool { return true }

// Len returns the number of queued continuations.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *Loop) pop() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

// Drain runs queued continuations, including ones they schedule, until the
// queue is empty. It returns how many ran.
func (l *Loop) Drain() int {
	n := 0
	for {
		fn, ok := l.pop()
		if !ok {
			return n
		}
		fn()
		n++
	}
}

// Next blocks until a continuation is available and returns it without
// running it.
func (l *Loop) Next(ctx context.Context) (func(), error) {
	for {
		if fn, ok := l.pop(); ok {
			return fn, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-l.signal:
		}
	}
}

// RunUntil runs continuations as they arrive until done reports true or
// ctx ends.
func (l *Loop) RunUntil(ctx context.Context, done func() bool) error {
	for !done() {
		fn, err := l.Next(ctx)
		if err != nil {
			return err
		}
		fn()
	}
	return nil
}
