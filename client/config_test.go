package client

import (
	"crypto/tls"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otaku1603/turnnet"
	"github.com/otaku1603/turnnet/internal/config"
)

func baseEnv() *config.Config {
	return &config.Config{
		ServerHost:        "game.example.com",
		TCPPort:           9999,
		Network:           turnnet.NetworkTCP,
		WebSocketPath:     turnnet.DefaultWebSocketPath,
		HeartbeatInterval: time.Second,
		DialTimeout:       time.Second,
		MaxFrameSize:      1024,
		ReconnectInterval: time.Second,
	}
}

func TestConfigFromEnvPlain(t *testing.T) {
	t.Parallel()

	cfg, err := ConfigFromEnv(baseEnv(), nil)
	require.NoError(t, err)
	assert.Nil(t, cfg.Endpoint.Trust)
	assert.False(t, cfg.AutoLogin)
	assert.Equal(t, "game.example.com", cfg.Endpoint.Host)
	assert.Equal(t, 1024, cfg.MaxFrameSize)
}

func TestConfigFromEnvTLS(t *testing.T) {
	t.Parallel()

	env := baseEnv()
	env.UseTLS = true
	env.Token = "tok"

	cfg, err := ConfigFromEnv(env, nil)
	require.NoError(t, err)
	require.NotNil(t, cfg.Endpoint.Trust)
	assert.True(t, cfg.AutoLogin)
	// system roots reject a handshake without certificates
	assert.Error(t, cfg.Endpoint.Trust(tls.ConnectionState{}))

	env.TLSInsecure = true
	cfg, err = ConfigFromEnv(env, nil)
	require.NoError(t, err)
	assert.NoError(t, cfg.Endpoint.Trust(tls.ConnectionState{}))
}

func TestConfigFromEnvCAFile(t *testing.T) {
	t.Parallel()

	env := baseEnv()
	env.UseTLS = true
	env.TLSCAFile = filepath.Join(t.TempDir(), "missing.pem")
	_, err := ConfigFromEnv(env, nil)
	assert.Error(t, err)

	garbage := filepath.Join(t.TempDir(), "garbage.pem")
	require.NoError(t, os.WriteFile(garbage, []byte("not a certificate"), 0o600))
	env.TLSCAFile = garbage
	_, err = ConfigFromEnv(env, nil)
	assert.ErrorContains(t, err, "no certificates")
}
