package composite

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/matzehuels/automation/pkg/errors"
)

// Loop is the single control thread of a root. Work posted from any
// goroutine runs in posting order on whichever goroutine drains the loop:
// the Run goroutine when one is active, otherwise the owner calling Flush.
//
// The queue is unbounded so that posting from inside a running callback
// never blocks.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	done    chan struct{}
	closed  bool
	running atomic.Bool
}

// NewLoop creates a loop whose queue starts with room for size callbacks.
func NewLoop(size int) *Loop {
	if size < 0 {
		size = 0
	}
	return &Loop{
		queue: make([]func(), 0, size),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Post schedules fn. Posts after Close are dropped.
func (l *Loop) Post(fn func()) {
	l.post(fn)
}

func (l *Loop) post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Pending returns the number of queued callbacks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *Loop) take() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	q := l.queue
	l.queue = nil
	return q
}

// Flush runs queued callbacks on the calling goroutine until the queue is
// empty, including callbacks posted while flushing, and returns how many ran.
// It must not be used while Run is active.
func (l *Loop) Flush() int {
	n := 0
	for {
		q := l.take()
		if len(q) == 0 {
			return n
		}
		for _, fn := range q {
			fn()
			n++
		}
	}
}

// Run drains the loop until ctx is cancelled or the loop is closed.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return errors.New(errors.ErrCodeInternal, "loop is already running")
	}
	return l.run(ctx)
}

// Start claims the loop for a new goroutine that runs it like Run. The loop
// counts as running when Start returns, so a Do issued right after never
// executes inline. The returned channel yields Run's result.
func (l *Loop) Start(ctx context.Context) <-chan error {
	result := make(chan error, 1)
	if !l.running.CompareAndSwap(false, true) {
		result <- errors.New(errors.ErrCodeInternal, "loop is already running")
		return result
	}
	go func() { result <- l.run(ctx) }()
	return result
}

func (l *Loop) run(ctx context.Context) error {
	defer l.running.Store(false)

	for {
		l.Flush()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			l.Flush()
			return nil
		case <-l.wake:
		}
	}
}

// Running reports whether a Run goroutine owns the loop.
func (l *Loop) Running() bool { return l.running.Load() }

// Do runs fn on the control thread and waits for its result. Without an
// active Run goroutine the caller is the control thread and fn runs inline.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	if !l.Running() {
		return fn()
	}
	result := make(chan error, 1)
	if !l.post(func() { result <- fn() }) {
		return errors.New(errors.ErrCodeInternal, "loop is closed")
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work and ends Run after the queue drains. It is safe
// to call more than once.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	close(l.done)
}
