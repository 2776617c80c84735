package transport

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"io"
	"log/slog"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otaku1603/turnnet"
	"github.com/otaku1603/turnnet/internal/protocol"
)

// selfSigned creates a certificate for "localhost" that is its own root.
func selfSigned(t *testing.T) (tls.Certificate, *x509.Certificate) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "turnnet test server"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		DNSNames:              []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}, cert
}

// newTLSServer accepts TLS connections and completes their handshakes so a
// rejecting client fails fast instead of waiting for a ServerHello.
func newTLSServer(t *testing.T, cert tls.Certificate) *fakeServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &fakeServer{ln: ln, conns: make(chan net.Conn, 4)}
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			tc := tls.Server(c, cfg)
			go func() {
				if err := tc.Handshake(); err != nil {
					tc.Close()
					return
				}
				s.conns <- tc
			}()
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return s
}

func tlsEndpoint(s *fakeServer, trust turnnet.TrustPolicy) turnnet.Endpoint {
	ep := s.endpoint()
	ep.UseTLS = true
	ep.ServerName = "localhost"
	ep.Trust = trust
	return ep
}

func TestTLSAcceptAnyCertificate(t *testing.T) {
	t.Parallel()

	cert, _ := selfSigned(t)
	srv := newTLSServer(t, cert)
	tr := New()
	ev := watch(tr)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	require.NoError(t, tr.Connect(context.Background(), tlsEndpoint(srv, AcceptAnyCertificate(logger))))
	assert.Contains(t, logs.String(), "accepting server certificate without verification")
	conn := srv.accept(t)

	require.NoError(t, tr.Send(context.Background(), heartbeat(5)))
	got, err := protocol.NewReader(conn, 0).ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, heartbeat(5), got)

	_, err = protocol.WriteFrame(conn, heartbeat(6))
	require.NoError(t, err)
	pumpUntil(t, tr, func() bool { return ev.count("message:Heartbeat") == 1 })

	require.NoError(t, tr.Disconnect())
}

func TestTLSNilPolicyAcceptsAny(t *testing.T) {
	t.Parallel()

	cert, _ := selfSigned(t)
	srv := newTLSServer(t, cert)

	// both warnings go to the transport's logger
	var logs bytes.Buffer
	tr := New(WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	require.NoError(t, tr.Connect(context.Background(), tlsEndpoint(srv, nil)))
	srv.accept(t)
	assert.Contains(t, logs.String(), "no trust policy set")
	assert.Contains(t, logs.String(), "accepting server certificate without verification")
	require.NoError(t, tr.Disconnect())
}

func TestTLSPinnedRoots(t *testing.T) {
	t.Parallel()

	cert, parsed := selfSigned(t)
	srv := newTLSServer(t, cert)

	pool := x509.NewCertPool()
	pool.AddCert(parsed)

	tr := New()
	require.NoError(t, tr.Connect(context.Background(), tlsEndpoint(srv, PinnedRoots(pool))))
	srv.accept(t)
	require.NoError(t, tr.Disconnect())
}

func TestTLSPinnedRootsRejectsUnknownCA(t *testing.T) {
	t.Parallel()

	cert, _ := selfSigned(t)
	_, other := selfSigned(t)
	srv := newTLSServer(t, cert)

	pool := x509.NewCertPool()
	pool.AddCert(other)

	tr := New()
	ev := watch(tr)

	err := tr.Connect(context.Background(), tlsEndpoint(srv, PinnedRoots(pool)))
	var ce *turnnet.ConnectionError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, turnnet.ErrUntrustedCertificate)
	assert.Equal(t, turnnet.Disconnected, tr.State())
	assert.Empty(t, ev.snapshot())
}

func TestTLSSystemRootsRejectsSelfSigned(t *testing.T) {
	t.Parallel()

	cert, _ := selfSigned(t)
	srv := newTLSServer(t, cert)

	tr := New()
	err := tr.Connect(context.Background(), tlsEndpoint(srv, SystemRoots()))
	assert.ErrorIs(t, err, turnnet.ErrUntrustedCertificate)
}

func TestVerifyChainHostname(t *testing.T) {
	t.Parallel()

	_, parsed := selfSigned(t)
	pool := x509.NewCertPool()
	pool.AddCert(parsed)

	ok := tls.ConnectionState{ServerName: "localhost", PeerCertificates: []*x509.Certificate{parsed}}
	assert.NoError(t, PinnedRoots(pool)(ok))

	wrongHost := tls.ConnectionState{ServerName: "game.example.com", PeerCertificates: []*x509.Certificate{parsed}}
	assert.Error(t, PinnedRoots(pool)(wrongHost))

	assert.Error(t, PinnedRoots(pool)(tls.ConnectionState{ServerName: "localhost"}))
	assert.Error(t, PinnedRoots(nil)(ok))
	assert.NoError(t, AcceptAnyCertificate(slog.New(slog.NewTextHandler(io.Discard, nil)))(tls.ConnectionState{}))
}
