package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otaku1603/turnnet"
)

var allKeys = []string{
	"TURN_SERVER_HOST", "TURN_TCP_PORT", "TURN_NETWORK", "TURN_WS_PATH",
	"TURN_USE_TLS", "TURN_TLS_INSECURE", "TURN_TLS_SERVER_NAME", "TURN_TLS_CA_FILE",
	"TURN_HEARTBEAT_INTERVAL", "TURN_DIAL_TIMEOUT", "TURN_MAX_FRAME_SIZE", "TURN_RECONNECT_INTERVAL",
	"TURN_TOKEN", "TURN_USER_ID", "LOG_LEVEL", "LOG_FORMAT", "METRICS_ADDR",
}

// clearEnv unsets every key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "localhost", cfg.ServerHost)
	assert.Equal(t, turnnet.DefaultTCPPort, cfg.TCPPort)
	assert.Equal(t, turnnet.NetworkTCP, cfg.Network)
	assert.Equal(t, turnnet.DefaultHeartbeatInterval, cfg.HeartbeatInterval)
	assert.Equal(t, turnnet.DefaultDialTimeout, cfg.DialTimeout)
	assert.Equal(t, turnnet.MaxFrameSize, cfg.MaxFrameSize)
	assert.False(t, cfg.UseTLS)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfigFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("TURN_SERVER_HOST", "game.example.com")
	t.Setenv("TURN_TCP_PORT", "443")
	t.Setenv("TURN_USE_TLS", "true")
	t.Setenv("TURN_NETWORK", "ws")
	t.Setenv("TURN_WS_PATH", "/battle")
	t.Setenv("TURN_HEARTBEAT_INTERVAL", "2s")
	t.Setenv("TURN_USER_ID", "42")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, turnnet.Endpoint{
		Host:    "game.example.com",
		Port:    443,
		UseTLS:  true,
		Network: turnnet.NetworkWebSocket,
		Path:    "/battle",
	}, cfg.Endpoint())
	assert.Equal(t, 2*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, int64(42), cfg.UserID)
}

func TestLoadConfigFromFile(t *testing.T) {
	clearEnv(t)
	t.Cleanup(func() {
		os.Unsetenv("TURN_TOKEN")
		os.Unsetenv("TURN_TCP_PORT")
	})

	path := filepath.Join(t.TempDir(), "client.env")
	require.NoError(t, os.WriteFile(path, []byte("TURN_TOKEN=abc\nTURN_TCP_PORT=7000\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", cfg.Token)
	assert.Equal(t, 7000, cfg.TCPPort)
}

func TestLoadConfigInvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"TURN_TCP_PORT", "nine"},
		{"TURN_USE_TLS", "maybe"},
		{"TURN_HEARTBEAT_INTERVAL", "5"},
		{"TURN_USER_ID", "x"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
			assert.ErrorContains(t, err, tt.key)
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		return &Config{
			ServerHost:        "localhost",
			TCPPort:           9999,
			Network:           "tcp",
			WebSocketPath:     "/ws",
			HeartbeatInterval: time.Second,
			DialTimeout:       time.Second,
			MaxFrameSize:      1024,
			ReconnectInterval: time.Second,
			LogLevel:          "info",
			LogFormat:         "json",
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port", func(c *Config) { c.TCPPort = 70000 }, "TURN_TCP_PORT"},
		{"network", func(c *Config) { c.Network = "udp" }, "TURN_NETWORK"},
		{"ws path", func(c *Config) { c.Network = "ws"; c.WebSocketPath = "ws" }, "TURN_WS_PATH"},
		{"tls conflict", func(c *Config) { c.TLSInsecure = true; c.TLSCAFile = "ca.pem" }, "mutually exclusive"},
		{"heartbeat", func(c *Config) { c.HeartbeatInterval = 0 }, "TURN_HEARTBEAT_INTERVAL"},
		{"frame size", func(c *Config) { c.MaxFrameSize = 0 }, "TURN_MAX_FRAME_SIZE"},
		{"log level", func(c *Config) { c.LogLevel = "verbose" }, "LOG_LEVEL"},
		{"log format", func(c *Config) { c.LogFormat = "xml" }, "LOG_FORMAT"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := valid()
			tt.mutate(c)
			assert.ErrorContains(t, c.Validate(), tt.want)
		})
	}
}
