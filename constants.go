package turnnet

import "time"

// Connection defaults.
const (
	// DefaultTCPPort is the game server's long-lived connection port. It is
	// distinct from the HTTP API port.
	DefaultTCPPort = 9999

	// DefaultHeartbeatInterval is how often a keep-alive is sent while connected.
	DefaultHeartbeatInterval = 5 * time.Second

	// DefaultDialTimeout bounds the TCP dial when the caller's context has no deadline.
	DefaultDialTimeout = 10 * time.Second

	// DefaultWebSocketPath is used when Endpoint.Network is NetworkWebSocket and no path is set.
	DefaultWebSocketPath = "/ws"
)

// Frame limits.
const (
	// MaxLengthPrefixBytes is the maximum number of varint groups in a length prefix.
	MaxLengthPrefixBytes = 5

	// MaxFrameSize is the default upper bound for a single frame body (4MB).
	MaxFrameSize = 4 * 1024 * 1024
)

// Network names accepted in Endpoint.Network.
const (
	NetworkTCP       = "tcp"
	NetworkWebSocket = "ws"
)

// Standard error messages
const (
	// Framing errors
	ErrMsgVarintTooLong     = "length prefix exceeds 5 groups"
	ErrMsgVarintOverflow    = "length prefix overflows 32 bits"
	ErrMsgFrameTooLarge     = "frame body exceeds maximum size"
	ErrMsgMalformedEnvelope = "malformed envelope body"
	ErrMsgPayloadMismatch   = "payload does not match message type"

	// Connection errors
	ErrMsgNotConnected       = "not connected"
	ErrMsgAlreadyConnected   = "already connected or connecting"
	ErrMsgStreamClosed       = "stream closed"
	ErrMsgUntrustedCert      = "untrusted server certificate"
	ErrMsgNegativeLength     = "length must not be negative"
	ErrMsgUnsupportedNetwork = "unsupported network"
)
