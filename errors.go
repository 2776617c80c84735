package turnnet

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is to test for them; the typed errors below
// match their sentinel through Is.
var (
	ErrFraming              = errors.New("turnnet: framing error")
	ErrStreamClosed         = errors.New("turnnet: " + ErrMsgStreamClosed)
	ErrNotConnected         = errors.New("turnnet: " + ErrMsgNotConnected)
	ErrAlreadyConnected     = errors.New("turnnet: " + ErrMsgAlreadyConnected)
	ErrNegativeLength       = errors.New("turnnet: " + ErrMsgNegativeLength)
	ErrUntrustedCertificate = errors.New("turnnet: " + ErrMsgUntrustedCert)
	ErrUnsupportedNetwork   = errors.New("turnnet: " + ErrMsgUnsupportedNetwork)
)

// FramingError reports a malformed length prefix or an envelope body that
// does not decode. The connection cannot be trusted after one.
type FramingError struct {
	Reason string
	Err    error
}

func (e *FramingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("turnnet: framing error: %s: %v", e.Reason, e.Err)
	}
	return "turnnet: framing error: " + e.Reason
}

func (e *FramingError) Unwrap() error { return e.Err }

func (e *FramingError) Is(target error) bool { return target == ErrFraming }

// StreamClosedError reports an end of stream in the middle of a frame.
type StreamClosedError struct {
	// Want and Got are the declared and received byte counts of the part
	// being read when the stream ended.
	Want int
	Got  int
	Err  error
}

func (e *StreamClosedError) Error() string {
	return fmt.Sprintf("turnnet: %s after %d of %d bytes", ErrMsgStreamClosed, e.Got, e.Want)
}

func (e *StreamClosedError) Unwrap() error { return e.Err }

func (e *StreamClosedError) Is(target error) bool { return target == ErrStreamClosed }

// ConnectionError is returned by Connect when dialing or the TLS handshake fails.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("turnnet: connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// SendError is returned by Send when writing to an established connection
// fails. The connection has been torn down by the time it is returned.
type SendError struct {
	Type MessageType
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("turnnet: send %s: %v", e.Type, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }
