// Package client is the entry point for hosts: it assembles the transport,
// dispatcher, heartbeat and battle update queue into one Client.
package client

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/otaku1603/turnnet"
	"github.com/otaku1603/turnnet/internal/dispatch"
	"github.com/otaku1603/turnnet/internal/heartbeat"
	"github.com/otaku1603/turnnet/internal/metrics"
	"github.com/otaku1603/turnnet/internal/relay"
	"github.com/otaku1603/turnnet/internal/sequence"
	"github.com/otaku1603/turnnet/internal/transport"
)

type Dispatcher = dispatch.Dispatcher
type Subscription = dispatch.Subscription
type Metrics = metrics.Metrics

// DefaultPollInterval is how often Run calls Update when nothing arrives.
const DefaultPollInterval = 50 * time.Millisecond

// DefaultReconnectInterval is the minimum time between Reconnect attempts.
const DefaultReconnectInterval = 2 * time.Second

// Config configures a Client. Zero values select the package defaults.
type Config struct {
	Endpoint turnnet.Endpoint

	Logger  *slog.Logger
	Metrics *metrics.Metrics

	HeartbeatInterval time.Duration
	DialTimeout       time.Duration
	MaxFrameSize      int
	PollInterval      time.Duration
	ReconnectInterval time.Duration

	// Token and UserID are the initial credentials; see SetCredentials.
	Token  string
	UserID int64

	// AutoLogin sends a Login envelope carrying the token after every
	// successful connect, unless the token is missing or expired.
	AutoLogin bool
}

// Client is a connection to the game server plus the services built on it.
//
// Connect, Disconnect, Update and every registered handler belong to the
// host's consumer context. Send and the typed senders may be called from any
// goroutine.
type Client struct {
	cfg        Config
	logger     *slog.Logger
	metrics    *metrics.Metrics
	relay      *relay.Relay
	transport  *transport.Transport
	dispatcher *dispatch.Dispatcher
	heartbeat  *heartbeat.Scheduler
	updates    *sequence.Queue[*turnnet.BattleUpdateResponse]
	limiter    *rate.Limiter
	creds      credentials

	mu             sync.Mutex
	updateHandler  UpdateHandler
	reconnectTimer *time.Timer

	// reconnectDue carries a scheduled reconnect to Run.
	reconnectDue chan struct{}
}

// New creates a disconnected client.
//
// Example:
//
//	c := client.New(client.Config{
//	    Endpoint:  turnnet.Endpoint{Host: "localhost", Port: turnnet.DefaultTCPPort},
//	    Token:     token,
//	    UserID:    userID,
//	    AutoLogin: true,
//	})
//	c.OnBattleStart(func(start *turnnet.BattleStartResponse) { ... })
//	if err := c.Connect(ctx); err != nil {
//	    return err
//	}
//	return c.Run(ctx)
func New(cfg Config) *Client {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = turnnet.DefaultHeartbeatInterval
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = turnnet.DefaultDialTimeout
	}
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = turnnet.MaxFrameSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = DefaultReconnectInterval
	}

	c := &Client{
		cfg:          cfg,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		relay:        relay.New(cfg.Metrics),
		dispatcher:   dispatch.New(cfg.Logger),
		limiter:      rate.NewLimiter(rate.Every(cfg.ReconnectInterval), 1),
		reconnectDue: make(chan struct{}, 1),
	}
	c.SetCredentials(cfg.Token, cfg.UserID)

	c.transport = transport.New(
		transport.WithLogger(cfg.Logger),
		transport.WithMetrics(cfg.Metrics),
		transport.WithDialTimeout(cfg.DialTimeout),
		transport.WithMaxFrameSize(cfg.MaxFrameSize),
		transport.WithRelay(c.relay),
	)
	c.heartbeat = heartbeat.New(c.transport,
		heartbeat.WithInterval(cfg.HeartbeatInterval),
		heartbeat.WithTokenFunc(c.Token),
		heartbeat.WithLogger(cfg.Logger),
		heartbeat.WithMetrics(cfg.Metrics),
	)
	c.updates = sequence.New(c.runUpdate, cfg.Metrics, sequence.WithWake(c.relay.Wake))

	c.transport.OnConnected(c.handleConnected)
	c.transport.OnDisconnected(c.handleDisconnected)
	c.transport.OnMessage(func(env *turnnet.Envelope) {
		c.dispatcher.Dispatch(env)
	})
	c.registerBattleRoutes()

	return c
}

// Connect dials the configured endpoint.
func (c *Client) Connect(ctx context.Context) error {
	return c.transport.Connect(ctx, c.cfg.Endpoint)
}

// Disconnect closes the connection and cancels a scheduled reconnect.
// Calling it again is harmless.
func (c *Client) Disconnect() error {
	err := c.transport.Disconnect()
	c.cancelReconnect()
	return err
}

// Send writes env unchanged.
func (c *Client) Send(ctx context.Context, env *turnnet.Envelope) error {
	return c.transport.Send(ctx, env)
}

// Update delivers everything received since the last call, begins the next
// battle update if the previous one has finished, and returns the number of
// envelopes delivered.
func (c *Client) Update() int {
	n := c.transport.Update()
	c.updates.Pump()
	return n
}

// Run calls Update whenever envelopes arrive or a battle update finishes,
// and at least every PollInterval, until ctx is done. It also performs
// reconnects arranged with ScheduleReconnect. It returns ctx.Err().
func (c *Client) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.transport.Ready():
			c.Update()
		case <-ticker.C:
			c.Update()
		case <-c.reconnectDue:
			c.reconnect(ctx)
		}
	}
}

// Dispatcher returns the message dispatcher for custom subscriptions.
func (c *Client) Dispatcher() *Dispatcher {
	return c.dispatcher
}

// State returns the connection state.
func (c *Client) State() turnnet.ConnectionState {
	return c.transport.State()
}

// SessionID returns the identifier of the current connection.
func (c *Client) SessionID() string {
	return c.transport.SessionID()
}

// Metrics returns the client's collectors.
func (c *Client) Metrics() *Metrics {
	return c.metrics
}

func (c *Client) handleConnected() {
	c.heartbeat.Start()

	if !c.cfg.AutoLogin {
		return
	}
	if !c.creds.usable(time.Now()) {
		c.logger.Warn("skipping automatic login: token missing or expired", "session", c.SessionID())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.DialTimeout)
	defer cancel()
	if err := c.SendLogin(ctx, "", ""); err != nil {
		c.logger.Warn("automatic login failed", "err", err)
	}
}

func (c *Client) handleDisconnected(cause error) {
	c.heartbeat.Stop()
	c.updates.Reset()

	if cause != nil {
		c.logger.Warn("disconnected", "err", cause)
		return
	}
	c.logger.Info("disconnected")
}

// OnConnected registers fn to run after each successful Connect, after the
// heartbeat has started and the automatic login was sent.
func (c *Client) OnConnected(fn func()) {
	c.transport.OnConnected(fn)
}

// OnDisconnected registers fn to run once per lost or closed connection.
func (c *Client) OnDisconnected(fn func(cause error)) {
	c.transport.OnDisconnected(fn)
}
