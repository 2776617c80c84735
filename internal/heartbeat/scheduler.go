// Package heartbeat keeps a connection alive by sending a Heartbeat envelope
// on a fixed interval.
package heartbeat

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/otaku1603/turnnet"
	"github.com/otaku1603/turnnet/internal/metrics"
)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval sets the time between heartbeats.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithTokenFunc sets the source of the token stamped on each heartbeat.
func WithTokenFunc(fn func() string) Option {
	return func(s *Scheduler) {
		s.token = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// WithClock overrides the wall clock used for Heartbeat.ClientTime.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// Scheduler sends heartbeats through a Sender until stopped or a send fails.
type Scheduler struct {
	sender   turnnet.Sender
	interval time.Duration
	token    func() string
	now      func() time.Time
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a stopped scheduler.
func New(sender turnnet.Sender, opts ...Option) *Scheduler {
	s := &Scheduler{
		sender:   sender,
		interval: turnnet.DefaultHeartbeatInterval,
		token:    func() string { return "" },
		now:      time.Now,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins sending. A running scheduler is restarted, so the next
// heartbeat is a full interval away.
func (s *Scheduler) Start() {
	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go s.loop(ctx, done)
}

// Stop halts the scheduler and waits for its goroutine to exit. It may be
// called any number of times.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the heartbeat goroutine is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.beat(ctx); err != nil {
				if ctx.Err() == nil {
					s.logger.Warn("heartbeat stopped", "err", err)
				}
				return
			}
		}
	}
}

func (s *Scheduler) beat(ctx context.Context) error {
	env := &turnnet.Envelope{
		Type:    turnnet.TypeHeartbeat,
		Token:   s.token(),
		Payload: &turnnet.Heartbeat{ClientTime: s.now().UnixMilli()},
	}
	sendCtx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	if err := s.sender.Send(sendCtx, env); err != nil {
		return err
	}
	s.metrics.HeartbeatSent()
	return nil
}
