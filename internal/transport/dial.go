package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"

	"github.com/gorilla/websocket"

	"github.com/otaku1603/turnnet"
)

func networkOf(ep turnnet.Endpoint) string {
	if ep.Network == "" {
		return turnnet.NetworkTCP
	}
	return ep.Network
}

// dial opens the stream for ep: TCP with Nagle disabled, then TLS or a
// WebSocket upgrade when requested.
func (t *Transport) dial(ctx context.Context, ep turnnet.Endpoint) (net.Conn, error) {
	if t.dialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.dialTimeout)
		defer cancel()
	}

	switch networkOf(ep) {
	case turnnet.NetworkTCP:
		return t.dialTCP(ctx, ep)
	case turnnet.NetworkWebSocket:
		return t.dialWebSocket(ctx, ep)
	default:
		return nil, fmt.Errorf("%w: %q", turnnet.ErrUnsupportedNetwork, ep.Network)
	}
}

func (t *Transport) dialTCP(ctx context.Context, ep turnnet.Endpoint) (net.Conn, error) {
	conn, err := t.dialNoDelay(ctx, "tcp", ep.Addr())
	if err != nil {
		return nil, err
	}
	if !ep.UseTLS {
		return conn, nil
	}

	tlsConn := tls.Client(conn, t.tlsConfig(ep))
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}

// dialNoDelay dials a TCP connection with send coalescing disabled so small
// frames leave immediately.
func (t *Transport) dialNoDelay(ctx context.Context, network, addr string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		if err := tcp.SetNoDelay(true); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

func (t *Transport) dialWebSocket(ctx context.Context, ep turnnet.Endpoint) (net.Conn, error) {
	u := url.URL{Scheme: "ws", Host: ep.Addr(), Path: ep.Path}
	if u.Path == "" {
		u.Path = turnnet.DefaultWebSocketPath
	}

	dialer := websocket.Dialer{
		NetDialContext:   t.dialNoDelay,
		HandshakeTimeout: t.dialTimeout,
	}
	if ep.UseTLS {
		u.Scheme = "wss"
		dialer.TLSClientConfig = t.tlsConfig(ep)
	}

	ws, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket upgrade %s: %s: %w", u.String(), resp.Status, err)
		}
		return nil, err
	}
	return newWSConn(ws), nil
}
