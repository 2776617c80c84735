package relay

import (
	"sync"

	"github.com/otaku1603/turnnet"
	"github.com/otaku1603/turnnet/internal/metrics"
)

// Relay hands decoded envelopes from the receive goroutine to the consumer.
//
// It is an unbounded FIFO with exactly one producer (Enqueue) and one
// consumer (DrainAll). The producer never blocks on the consumer's pace.
type Relay struct {
	mu      sync.Mutex
	pending []*turnnet.Envelope
	ready   chan struct{}
	metrics *metrics.Metrics
}

// New creates an empty relay. m may be nil.
func New(m *metrics.Metrics) *Relay {
	return &Relay{
		ready:   make(chan struct{}, 1),
		metrics: m,
	}
}

// Enqueue appends env. Called only by the receive goroutine.
func (r *Relay) Enqueue(env *turnnet.Envelope) {
	r.mu.Lock()
	r.pending = append(r.pending, env)
	depth := len(r.pending)
	r.mu.Unlock()

	r.metrics.SetRelayDepth(depth)
	r.Wake()
}

// Wake signals Ready without enqueuing anything. The transport uses it when
// a lost connection leaves a signal for the consumer to collect.
func (r *Relay) Wake() {
	// coalesced; a pending wake-up already covers this one
	select {
	case r.ready <- struct{}{}:
	default:
	}
}

// DrainAll removes and returns every envelope enqueued since the previous
// drain, oldest first. It returns nil when the relay is empty.
func (r *Relay) DrainAll() []*turnnet.Envelope {
	r.mu.Lock()
	out := r.pending
	r.pending = nil
	r.mu.Unlock()

	if len(out) > 0 {
		r.metrics.SetRelayDepth(0)
	}
	return out
}

// Len returns the number of envelopes waiting.
func (r *Relay) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Ready returns a channel that receives a value after one or more Enqueue
// calls. Consumers can select on it instead of polling.
func (r *Relay) Ready() <-chan struct{} {
	return r.ready
}
