package turnnet

import (
	"context"
	"crypto/tls"
	"net"
	"strconv"
)

// ConnectionState is the lifecycle state of a Transport.
type ConnectionState int32

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

// String returns the string representation of the connection state.
func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	default:
		return "Unknown"
	}
}

// TrustPolicy decides whether the server certificate presented during the TLS
// handshake is acceptable. Returning a non-nil error aborts the handshake.
//
// The policy replaces the standard library verification entirely, so a policy
// that returns nil for every state accepts any certificate. Use it only
// against development servers with self-signed certificates.
type TrustPolicy func(cs tls.ConnectionState) error

// Endpoint describes the game server to connect to.
//
// Example:
//
//	ep := turnnet.Endpoint{
//	    Host:   "game.example.com",
//	    Port:   turnnet.DefaultTCPPort,
//	    UseTLS: true,
//	    Trust:  transport.SystemRoots(),
//	}
type Endpoint struct {
	Host string
	Port int

	// UseTLS wraps the stream in TLS. Trust selects the certificate policy;
	// a nil Trust accepts any certificate and logs a warning.
	UseTLS bool
	Trust  TrustPolicy

	// ServerName overrides the TLS server name. Defaults to Host.
	ServerName string

	// Network selects the carriage: NetworkTCP (default) or NetworkWebSocket.
	Network string

	// Path is the WebSocket request path. Ignored for TCP.
	Path string
}

// Addr returns the host:port form of the endpoint.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Transport owns the connection to the game server.
//
// A Transport is driven from two execution contexts. A dedicated goroutine per
// connection runs the receive loop; the host's single consumer context calls
// Update to drain received envelopes. All signals (OnConnected, OnDisconnected,
// OnMessage) are delivered on the consumer context, never on the receive
// goroutine.
//
// Example usage:
//
//	tr := transport.New(transport.WithLogger(logger))
//	tr.OnMessage(func(env *turnnet.Envelope) {
//	    log.Printf("received %s", env.Type)
//	})
//	if err := tr.Connect(ctx, ep); err != nil {
//	    return err
//	}
//	for range ticker.C {
//	    tr.Update()
//	}
type Transport interface {
	// Connect dials the endpoint, disables send coalescing, performs the TLS
	// handshake when requested and starts the receive loop.
	//
	// The context bounds the dial and the handshake. On failure the transport
	// is Disconnected and the error is a *ConnectionError.
	Connect(ctx context.Context, ep Endpoint) error

	// Send frames and writes the envelope as a single write.
	//
	// Returns ErrNotConnected when the transport is not Connected. A write
	// failure tears the connection down and returns a *SendError. A deadline
	// on ctx becomes the write deadline.
	Send(ctx context.Context, env *Envelope) error

	// Disconnect closes the connection. It is idempotent: the Disconnected
	// signal fires once per successful Connect and never if the transport was
	// never connected.
	Disconnect() error

	// Update drains every envelope received since the previous call, raises
	// OnMessage for each in arrival order and then delivers a pending
	// Disconnected signal. It returns the number of envelopes delivered.
	Update() int

	// State returns the current connection state.
	State() ConnectionState

	// OnConnected registers a handler raised after a successful Connect.
	OnConnected(fn func())

	// OnDisconnected registers a handler raised once per lost connection.
	// cause is nil for an explicit Disconnect or an orderly close by the server.
	OnDisconnected(fn func(cause error))

	// OnMessage registers a handler raised once per decoded envelope.
	OnMessage(fn func(env *Envelope))
}

// Sender is the write half of a Transport.
type Sender interface {
	Send(ctx context.Context, env *Envelope) error
}
