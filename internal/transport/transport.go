// Package transport implements turnnet.Transport over TCP, optionally
// wrapped in TLS or carried inside WebSocket binary messages.
package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/otaku1603/turnnet"
	"github.com/otaku1603/turnnet/internal/metrics"
	"github.com/otaku1603/turnnet/internal/protocol"
	"github.com/otaku1603/turnnet/internal/relay"
)

var _ turnnet.Transport = (*Transport)(nil)

// Option configures a Transport.
type Option func(*Transport)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Transport) {
		t.metrics = m
	}
}

// WithMaxFrameSize sets the largest accepted envelope body in bytes.
func WithMaxFrameSize(n int) Option {
	return func(t *Transport) {
		if n > 0 {
			t.maxFrameSize = n
		}
	}
}

// WithDialTimeout bounds dialing plus the TLS or WebSocket handshake.
// Zero leaves the bound to the Connect context.
func WithDialTimeout(d time.Duration) Option {
	return func(t *Transport) {
		t.dialTimeout = d
	}
}

// WithRelay sets the relay that carries envelopes to the consumer.
func WithRelay(r *relay.Relay) Option {
	return func(t *Transport) {
		t.relay = r
	}
}

// session is one established connection and its receive goroutine.
type session struct {
	id   string
	addr string
	conn net.Conn
	done chan struct{}
	// closing is set before the stream is closed so a write that is about
	// to start gives up at once.
	closing atomic.Bool
}

// lostSignal is a Disconnected signal waiting for the consumer.
type lostSignal struct {
	cause error
}

// Transport is a client connection to the game server.
type Transport struct {
	logger       *slog.Logger
	metrics      *metrics.Metrics
	relay        *relay.Relay
	maxFrameSize int
	dialTimeout  time.Duration

	mu      sync.Mutex
	state   turnnet.ConnectionState
	sess    *session
	pending *lostSignal
	abort   context.CancelFunc
	// gen advances whenever a session starts or is closed locally, so
	// Update can tell that a handler ended the session it was delivering.
	gen uint64

	// writeMu keeps frames from interleaving on the stream.
	writeMu sync.Mutex

	hmu            sync.RWMutex
	onConnected    []func()
	onDisconnected []func(cause error)
	onMessage      []func(env *turnnet.Envelope)
}

// New creates a disconnected transport.
func New(opts ...Option) *Transport {
	t := &Transport{
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxFrameSize: turnnet.MaxFrameSize,
		dialTimeout:  turnnet.DefaultDialTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.relay == nil {
		t.relay = relay.New(t.metrics)
	}
	return t
}

// Connect dials ep and starts the receive goroutine.
func (t *Transport) Connect(ctx context.Context, ep turnnet.Endpoint) error {
	// a signal owed by the previous session goes out before the new one starts
	if t.hasPending() {
		t.Update()
	}

	t.mu.Lock()
	if t.state != turnnet.Disconnected {
		t.mu.Unlock()
		return turnnet.ErrAlreadyConnected
	}
	t.state = turnnet.Connecting
	ctx, cancel := context.WithCancel(ctx)
	t.abort = cancel
	t.mu.Unlock()
	defer cancel()

	addr := ep.Addr()
	t.logger.Debug("connecting", "addr", addr, "network", networkOf(ep))

	conn, err := t.dial(ctx, ep)
	t.metrics.ConnectAttempt(err)
	if err != nil {
		t.mu.Lock()
		t.state = turnnet.Disconnected
		t.abort = nil
		t.mu.Unlock()
		t.logger.Warn("connect failed", "addr", addr, "err", err)
		return &turnnet.ConnectionError{Addr: addr, Err: err}
	}

	s := &session{
		id:   uuid.NewString(),
		addr: addr,
		conn: conn,
		done: make(chan struct{}),
	}

	t.mu.Lock()
	if t.state != turnnet.Connecting {
		// Disconnect ran while the handshake was in flight
		t.mu.Unlock()
		conn.Close()
		return &turnnet.ConnectionError{Addr: addr, Err: context.Canceled}
	}
	t.sess = s
	t.state = turnnet.Connected
	t.abort = nil
	t.gen++
	t.mu.Unlock()

	go t.receive(s)

	t.logger.Info("connected", "session", s.id, "addr", addr)
	for _, fn := range t.connectedHandlers() {
		fn()
	}
	return nil
}

// Send writes env as one frame.
func (t *Transport) Send(ctx context.Context, env *turnnet.Envelope) error {
	t.mu.Lock()
	s := t.sess
	t.mu.Unlock()
	if s == nil {
		return turnnet.ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	frame, err := protocol.MarshalFrame(env)
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	n, err := t.write(ctx, s, frame)
	t.writeMu.Unlock()

	if err != nil {
		t.metrics.SendFailed()
		t.logger.Warn("send failed", "session", s.id, "type", env.Type, "err", err)
		t.lose(s, err, "send")
		return &turnnet.SendError{Type: env.Type, Err: err}
	}
	t.metrics.FrameSent(n)
	return nil
}

// write performs a single Write bounded by ctx. Called with writeMu held.
func (t *Transport) write(ctx context.Context, s *session, frame []byte) (int, error) {
	deadline, _ := ctx.Deadline()
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return 0, err
	}
	if s.closing.Load() {
		return 0, net.ErrClosed
	}
	stop := context.AfterFunc(ctx, func() {
		s.conn.SetWriteDeadline(time.Now())
	})
	defer stop()

	return s.conn.Write(frame)
}

// closeConn unblocks any write in flight and closes the stream once that
// write has returned.
func (t *Transport) closeConn(s *session) error {
	s.closing.Store(true)
	s.conn.SetWriteDeadline(time.Now())

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return s.conn.Close()
}

// Disconnect closes the connection and raises Disconnected if a session was
// established. Envelopes received but not yet delivered are discarded.
func (t *Transport) Disconnect() error {
	t.mu.Lock()
	s := t.sess
	pending := t.pending
	abort := t.abort
	t.sess = nil
	t.pending = nil
	t.abort = nil
	t.state = turnnet.Disconnected
	if s != nil || pending != nil {
		t.gen++
	}
	t.mu.Unlock()

	if abort != nil {
		abort()
	}

	var err error
	if s != nil {
		err = t.closeConn(s)
		<-s.done
		t.metrics.Disconnected("local")
		t.logger.Info("disconnected", "session", s.id, "addr", s.addr)
	}
	if s == nil && pending == nil {
		return nil
	}

	t.relay.DrainAll()

	var cause error
	if pending != nil {
		cause = pending.cause
	}
	t.fireDisconnected(cause)

	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return err
}

// Update delivers received envelopes and then a pending Disconnected signal.
// If a handler disconnects or reconnects, the rest of the batch belongs to
// the closed session and is discarded.
func (t *Transport) Update() int {
	// read the signal before draining: everything the lost session
	// received is already in the relay at that point
	t.mu.Lock()
	pending := t.pending
	gen := t.gen
	t.mu.Unlock()

	delivered := 0
	envs := t.relay.DrainAll()
	if len(envs) > 0 {
		handlers := t.messageHandlers()
	deliver:
		for i, env := range envs {
			for _, fn := range handlers {
				if t.generation() != gen {
					t.logger.Debug("discarding envelopes of a closed session", "count", len(envs)-i)
					break deliver
				}
				fn(env)
			}
			delivered++
		}
	}

	// a handler may have delivered the signal already through Disconnect
	// or Connect
	t.mu.Lock()
	owed := pending != nil && t.pending == pending
	if owed {
		t.pending = nil
	}
	t.mu.Unlock()

	if owed {
		t.fireDisconnected(pending.cause)
	}
	return delivered
}

func (t *Transport) generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen
}

// State returns the current connection state.
func (t *Transport) State() turnnet.ConnectionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SessionID returns the identifier of the current connection, or "" when
// not connected.
func (t *Transport) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sess == nil {
		return ""
	}
	return t.sess.id
}

// Ready receives a value when Update has work to do.
func (t *Transport) Ready() <-chan struct{} {
	return t.relay.Ready()
}

// OnConnected registers fn for the Connected signal.
func (t *Transport) OnConnected(fn func()) {
	t.hmu.Lock()
	defer t.hmu.Unlock()
	t.onConnected = append(t.onConnected, fn)
}

// OnDisconnected registers fn for the Disconnected signal.
func (t *Transport) OnDisconnected(fn func(cause error)) {
	t.hmu.Lock()
	defer t.hmu.Unlock()
	t.onDisconnected = append(t.onDisconnected, fn)
}

// OnMessage registers fn for every received envelope.
func (t *Transport) OnMessage(fn func(env *turnnet.Envelope)) {
	t.hmu.Lock()
	defer t.hmu.Unlock()
	t.onMessage = append(t.onMessage, fn)
}

// receive reads frames until the stream ends or fails.
func (t *Transport) receive(s *session) {
	defer close(s.done)

	r := protocol.NewReader(s.conn, t.maxFrameSize)
	for {
		body, err := r.ReadBody()
		if err != nil {
			t.lose(s, err, "")
			return
		}

		env, err := protocol.DecodeEnvelope(body)
		if err != nil {
			t.logger.Error("dropping connection on undecodable envelope", "session", s.id, "size", len(body), "err", err)
			t.lose(s, err, "framing")
			return
		}

		t.metrics.FrameReceived(len(body))

		// once s is no longer current its signal may already be out, so
		// late envelopes are dropped rather than delivered after it
		t.mu.Lock()
		if t.sess != s {
			t.mu.Unlock()
			return
		}
		t.relay.Enqueue(env)
		t.mu.Unlock()
	}
}

// lose tears s down after a failure and leaves the Disconnected signal for
// Update. It does nothing if s is no longer the current session.
func (t *Transport) lose(s *session, err error, reason string) {
	cause := err
	if reason == "" {
		reason = "io"
		switch {
		case errors.Is(err, turnnet.ErrStreamClosed):
			reason = "truncated"
		case errors.Is(err, turnnet.ErrFraming):
			reason = "framing"
		case err == io.EOF:
			reason = "eof"
			cause = nil
		}
	}

	t.mu.Lock()
	if t.sess != s {
		t.mu.Unlock()
		return
	}
	t.sess = nil
	t.state = turnnet.Disconnected
	t.pending = &lostSignal{cause: cause}
	t.mu.Unlock()

	t.closeConn(s)
	t.metrics.Disconnected(reason)
	if cause == nil {
		t.logger.Info("connection closed by server", "session", s.id, "addr", s.addr)
	} else {
		t.logger.Warn("connection lost", "session", s.id, "addr", s.addr, "reason", reason, "err", cause)
	}
	t.relay.Wake()
}

func (t *Transport) hasPending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending != nil
}

func (t *Transport) fireDisconnected(cause error) {
	t.hmu.RLock()
	handlers := slices.Clone(t.onDisconnected)
	t.hmu.RUnlock()

	for _, fn := range handlers {
		fn(cause)
	}
}

func (t *Transport) connectedHandlers() []func() {
	t.hmu.RLock()
	defer t.hmu.RUnlock()
	return slices.Clone(t.onConnected)
}

func (t *Transport) messageHandlers() []func(*turnnet.Envelope) {
	t.hmu.RLock()
	defer t.hmu.RUnlock()
	return slices.Clone(t.onMessage)
}
