package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the client metrics.
type Config struct {
	// Namespace is the metrics namespace (default: "turnnet").
	Namespace string

	// Subsystem is the metrics subsystem (default: "client").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry receives the collectors. Default: a fresh registry per
	// Metrics, so several clients can live in one process.
	Registry *prometheus.Registry
}

// Option configures the client metrics.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// Metrics holds the collectors for one client. All methods are safe on a nil
// receiver, which records nothing.
type Metrics struct {
	registry *prometheus.Registry

	connects       *prometheus.CounterVec
	disconnects    *prometheus.CounterVec
	framesSent     prometheus.Counter
	framesReceived prometheus.Counter
	bytesSent      prometheus.Counter
	bytesReceived  prometheus.Counter
	sendErrors     prometheus.Counter
	relayDepth     prometheus.Gauge
	updatesDone    prometheus.Counter
	updatesDropped prometheus.Counter
	heartbeatsSent prometheus.Counter
}

// New registers the client collectors.
func New(opts ...Option) *Metrics {
	cfg := Config{
		Namespace: "turnnet",
		Subsystem: "client",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}

	factory := promauto.With(cfg.Registry)
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: cfg.ConstLabels,
		})
	}

	return &Metrics{
		registry: cfg.Registry,
		connects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "connects_total",
			Help:        "Connection attempts by result",
			ConstLabels: cfg.ConstLabels,
		}, []string{"result"}),
		disconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "disconnects_total",
			Help:        "Lost or closed connections by reason",
			ConstLabels: cfg.ConstLabels,
		}, []string{"reason"}),
		framesSent:     counter("frames_sent_total", "Frames written to the server"),
		framesReceived: counter("frames_received_total", "Frames decoded from the server"),
		bytesSent:      counter("bytes_sent_total", "Frame bytes written, prefix included"),
		bytesReceived:  counter("bytes_received_total", "Frame body bytes read"),
		sendErrors:     counter("send_errors_total", "Failed frame writes"),
		relayDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "relay_depth",
			Help:        "Envelopes waiting for the consumer",
			ConstLabels: cfg.ConstLabels,
		}),
		updatesDone:    counter("sequential_updates_processed_total", "Sequential updates whose handler completed"),
		updatesDropped: counter("sequential_updates_discarded_total", "Queued sequential updates discarded by Reset"),
		heartbeatsSent: counter("heartbeats_sent_total", "Heartbeat envelopes sent"),
	}
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ConnectAttempt(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.connects.WithLabelValues(result).Inc()
}

// Disconnected records a torn-down connection. reason is a short label such
// as "local", "eof", "framing", "io" or "send".
func (m *Metrics) Disconnected(reason string) {
	if m == nil {
		return
	}
	m.disconnects.WithLabelValues(reason).Inc()
}

func (m *Metrics) FrameSent(bytes int) {
	if m == nil {
		return
	}
	m.framesSent.Inc()
	m.bytesSent.Add(float64(bytes))
}

func (m *Metrics) FrameReceived(bytes int) {
	if m == nil {
		return
	}
	m.framesReceived.Inc()
	m.bytesReceived.Add(float64(bytes))
}

func (m *Metrics) SendFailed() {
	if m == nil {
		return
	}
	m.sendErrors.Inc()
}

func (m *Metrics) SetRelayDepth(n int) {
	if m == nil {
		return
	}
	m.relayDepth.Set(float64(n))
}

func (m *Metrics) UpdateProcessed() {
	if m == nil {
		return
	}
	m.updatesDone.Inc()
}

func (m *Metrics) UpdatesDiscarded(n int) {
	if m == nil || n == 0 {
		return
	}
	m.updatesDropped.Add(float64(n))
}

func (m *Metrics) HeartbeatSent() {
	if m == nil {
		return
	}
	m.heartbeatsSent.Inc()
}
