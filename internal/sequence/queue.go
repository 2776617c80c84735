// Package sequence runs updates through a handler one at a time, waiting for
// each handler to report completion before the next update begins.
//
// Handlers always run on the goroutine that owns the queue: the one calling
// Enqueue and Pump. A completion signalled from elsewhere only marks the
// queue idle and calls the wake hook; the owner then calls Pump.
package sequence

import (
	"sync"

	"github.com/otaku1603/turnnet/internal/metrics"
)

// State is the processing state of a Queue.
type State int

const (
	// Idle means no handler is running and the next Enqueue starts one.
	Idle State = iota
	// Processing means a handler has begun and not yet called done.
	Processing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Processing:
		return "processing"
	default:
		return "unknown"
	}
}

// Handler processes one update. It must call done exactly once when the
// update is finished; done may be called synchronously or later from any
// goroutine. Extra calls are ignored.
type Handler[T any] func(update T, done func())

// Option configures a Queue.
type Option func(*options)

type options struct {
	wake func()
}

// WithWake sets the hook called when an update completes outside its
// handler and more updates are waiting. It must not block; typically it
// nudges the owner's loop into calling Pump.
func WithWake(fn func()) Option {
	return func(o *options) {
		o.wake = fn
	}
}

// Queue serializes updates through a Handler. At most one handler is active
// at a time and updates begin in enqueue order.
type Queue[T any] struct {
	handler Handler[T]
	metrics *metrics.Metrics
	wake    func()

	mu      sync.Mutex
	pending []T
	state   State
	// epoch advances on every Reset and every begun update; a done from an
	// older epoch is stale.
	epoch uint64
	// running is true while some goroutine is inside the run loop.
	running bool
}

// New returns an idle queue calling handler for each update. m may be nil.
func New[T any](handler Handler[T], m *metrics.Metrics, opts ...Option) *Queue[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Queue[T]{handler: handler, metrics: m, wake: o.wake}
}

// Enqueue appends update. If the queue is idle the update begins at once on
// the calling goroutine.
func (q *Queue[T]) Enqueue(update T) {
	q.mu.Lock()
	q.pending = append(q.pending, update)
	q.mu.Unlock()

	q.Pump()
}

// Pump begins waiting updates on the calling goroutine if no handler is
// active. It returns once a handler is left processing or nothing waits.
func (q *Queue[T]) Pump() {
	q.mu.Lock()
	if q.state != Idle || q.running || len(q.pending) == 0 {
		q.mu.Unlock()
		return
	}
	q.running = true
	q.mu.Unlock()

	q.run()
}

// Reset discards every queued update and forces the queue idle. A handler
// still running may finish, but its done no longer starts the next update.
func (q *Queue[T]) Reset() {
	q.mu.Lock()
	dropped := len(q.pending)
	q.pending = nil
	q.state = Idle
	q.epoch++
	q.mu.Unlock()

	q.metrics.UpdatesDiscarded(dropped)
}

// State reports whether a handler is running.
func (q *Queue[T]) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Len returns the number of updates waiting to begin.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// run begins updates until the queue is empty or a handler completes
// asynchronously. The caller must have set q.running.
func (q *Queue[T]) run() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 || q.state != Idle {
			q.running = false
			q.mu.Unlock()
			return
		}
		update := q.pending[0]
		var zero T
		q.pending[0] = zero
		q.pending = q.pending[1:]
		q.state = Processing
		q.epoch++
		done := q.doneFunc(q.epoch)
		q.mu.Unlock()

		q.handler(update, done)

		q.mu.Lock()
		if q.state != Idle {
			// still processing: a later done wakes the owner
			q.running = false
			q.mu.Unlock()
			return
		}
		q.mu.Unlock()
	}
}

// doneFunc returns the completion callback for the update begun in epoch.
func (q *Queue[T]) doneFunc(epoch uint64) func() {
	var once sync.Once
	return func() {
		once.Do(func() { q.complete(epoch) })
	}
}

func (q *Queue[T]) complete(epoch uint64) {
	q.mu.Lock()
	if epoch != q.epoch || q.state != Processing {
		q.mu.Unlock()
		return
	}
	q.state = Idle
	q.metrics.UpdateProcessed()

	// inside the run loop the next update begins once the handler returns
	notify := !q.running && len(q.pending) > 0 && q.wake != nil
	q.mu.Unlock()

	if notify {
		q.wake()
	}
}
