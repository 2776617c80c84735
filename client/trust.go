package client

import (
	"crypto/x509"
	"fmt"
	"log/slog"
	"os"

	"github.com/otaku1603/turnnet"
	"github.com/otaku1603/turnnet/internal/transport"
)

// AcceptAnyCertificate returns a trust policy that accepts every server
// certificate and warns on logger each time. Development only.
func AcceptAnyCertificate(logger *slog.Logger) turnnet.TrustPolicy {
	return transport.AcceptAnyCertificate(logger)
}

// SystemRoots returns a trust policy that verifies the server against the
// system trust store.
func SystemRoots() turnnet.TrustPolicy {
	return transport.SystemRoots()
}

// PinnedRoots returns a trust policy that verifies the server against pool
// only.
func PinnedRoots(pool *x509.CertPool) turnnet.TrustPolicy {
	return transport.PinnedRoots(pool)
}

// PinnedRootsFromFile loads PEM certificates from path and pins them.
func PinnedRootsFromFile(path string) (turnnet.TrustPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("no certificates found in %s", path)
	}
	return transport.PinnedRoots(pool), nil
}
