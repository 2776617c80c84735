package dispatch

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/otaku1603/turnnet"
)

// HandlerFunc receives an envelope routed by its type.
type HandlerFunc func(env *turnnet.Envelope)

// Dispatcher routes envelopes to the handlers subscribed to their type.
//
// It holds no state besides the registry. Subscribe and Unsubscribe may be
// called at any time, including from inside a handler; a handler removed
// during a dispatch is not called for the rest of that dispatch.
type Dispatcher struct {
	mu     sync.RWMutex
	subs   map[turnnet.MessageType][]*Subscription
	logger *slog.Logger
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	d       *Dispatcher
	msgType turnnet.MessageType
	fn      HandlerFunc
	active  atomic.Bool
}

// New creates an empty dispatcher. A nil logger discards output.
func New(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{
		subs:   make(map[turnnet.MessageType][]*Subscription),
		logger: logger,
	}
}

// Subscribe registers fn for envelopes of type t. Handlers of one type run
// in subscription order.
func (d *Dispatcher) Subscribe(t turnnet.MessageType, fn HandlerFunc) *Subscription {
	sub := &Subscription{d: d, msgType: t, fn: fn}
	sub.active.Store(true)

	d.mu.Lock()
	d.subs[t] = append(d.subs[t], sub)
	d.mu.Unlock()
	return sub
}

// Unsubscribe removes the handler. Calling it more than once is harmless.
func (s *Subscription) Unsubscribe() {
	if !s.active.CompareAndSwap(true, false) {
		return
	}

	d := s.d
	d.mu.Lock()
	defer d.mu.Unlock()

	list := d.subs[s.msgType]
	for i, sub := range list {
		if sub == s {
			// copy instead of in-place removal so a snapshot held by a
			// running Dispatch stays intact
			next := make([]*Subscription, 0, len(list)-1)
			next = append(next, list[:i]...)
			next = append(next, list[i+1:]...)
			if len(next) == 0 {
				delete(d.subs, s.msgType)
			} else {
				d.subs[s.msgType] = next
			}
			return
		}
	}
}

// Dispatch invokes every handler subscribed to env.Type and returns how
// many ran. Types without subscribers are ignored.
func (d *Dispatcher) Dispatch(env *turnnet.Envelope) int {
	if env == nil {
		return 0
	}

	d.mu.RLock()
	snapshot := d.subs[env.Type]
	d.mu.RUnlock()

	if len(snapshot) == 0 {
		d.logger.Debug("no subscribers", slog.String("type", env.Type.String()))
		return 0
	}

	n := 0
	for _, sub := range snapshot {
		if !sub.active.Load() {
			continue
		}
		sub.fn(env)
		n++
	}
	return n
}

// Count returns the number of handlers subscribed to t.
func (d *Dispatcher) Count(t turnnet.MessageType) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs[t])
}

// On subscribes fn to envelopes of type t whose payload is a P. Envelopes of
// that type carrying another payload are skipped.
//
// Example:
//
//	dispatch.On(d, turnnet.TypeBattleEnd, func(env *turnnet.Envelope, end *turnnet.BattleEndResponse) {
//	    showResult(end.WinnerID)
//	})
func On[P turnnet.Payload](d *Dispatcher, t turnnet.MessageType, fn func(env *turnnet.Envelope, p P)) *Subscription {
	return d.Subscribe(t, func(env *turnnet.Envelope) {
		p, ok := env.Payload.(P)
		if !ok {
			d.logger.Debug("payload type mismatch, skipped",
				slog.String("type", env.Type.String()),
				slog.Any("payload", env.Payload))
			return
		}
		fn(env, p)
	})
}
