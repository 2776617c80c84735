package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"

	"github.com/otaku1603/turnnet"
)

// AcceptAnyCertificate accepts every server certificate, including
// self-signed and expired ones. It is meant for development servers only and
// logs a warning to logger on every handshake it approves; a nil logger
// means slog.Default.
func AcceptAnyCertificate(logger *slog.Logger) turnnet.TrustPolicy {
	if logger == nil {
		logger = slog.Default()
	}
	return func(cs tls.ConnectionState) error {
		subject := ""
		if len(cs.PeerCertificates) > 0 {
			subject = cs.PeerCertificates[0].Subject.String()
		}
		logger.Warn("accepting server certificate without verification",
			"server_name", cs.ServerName, "subject", subject)
		return nil
	}
}

// SystemRoots verifies the certificate chain and host name against the
// system trust store.
func SystemRoots() turnnet.TrustPolicy {
	return func(cs tls.ConnectionState) error {
		return verifyChain(cs, nil)
	}
}

// PinnedRoots verifies the certificate chain and host name against pool
// only. Use it for servers signed by a private CA.
func PinnedRoots(pool *x509.CertPool) turnnet.TrustPolicy {
	return func(cs tls.ConnectionState) error {
		if pool == nil {
			return errors.New("no pinned roots configured")
		}
		return verifyChain(cs, pool)
	}
}

// verifyChain checks the leaf against roots, or the system pool when roots
// is nil.
func verifyChain(cs tls.ConnectionState, roots *x509.CertPool) error {
	if len(cs.PeerCertificates) == 0 {
		return errors.New("server presented no certificate")
	}

	opts := x509.VerifyOptions{
		Roots:         roots,
		DNSName:       cs.ServerName,
		Intermediates: x509.NewCertPool(),
	}
	for _, cert := range cs.PeerCertificates[1:] {
		opts.Intermediates.AddCert(cert)
	}
	_, err := cs.PeerCertificates[0].Verify(opts)
	return err
}

// tlsConfig builds the client TLS configuration for ep. The standard
// verification is switched off and the trust policy runs in its place.
func (t *Transport) tlsConfig(ep turnnet.Endpoint) *tls.Config {
	policy := ep.Trust
	if policy == nil {
		t.logger.Warn("no trust policy set, accepting any server certificate", "addr", ep.Addr())
		policy = AcceptAnyCertificate(t.logger)
	}

	serverName := ep.ServerName
	if serverName == "" {
		serverName = ep.Host
	}

	return &tls.Config{
		ServerName:         serverName,
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: true,
		VerifyConnection: func(cs tls.ConnectionState) error {
			if err := policy(cs); err != nil {
				return fmt.Errorf("%w: %w", turnnet.ErrUntrustedCertificate, err)
			}
			return nil
		},
	}
}
