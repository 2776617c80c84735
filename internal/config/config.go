// Package config loads client settings from the environment and an optional
// .env file.
package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/otaku1603/turnnet"
)

type Config struct {
	// Server
	ServerHost    string `env:"TURN_SERVER_HOST" default:"localhost"`
	TCPPort       int    `env:"TURN_TCP_PORT" default:"9999"`
	Network       string `env:"TURN_NETWORK" default:"tcp"`
	WebSocketPath string `env:"TURN_WS_PATH" default:"/ws"`

	// TLS
	UseTLS        bool   `env:"TURN_USE_TLS" default:"false"`
	TLSInsecure   bool   `env:"TURN_TLS_INSECURE" default:"false"`
	TLSServerName string `env:"TURN_TLS_SERVER_NAME"`
	TLSCAFile     string `env:"TURN_TLS_CA_FILE"`

	// Connection
	HeartbeatInterval time.Duration `env:"TURN_HEARTBEAT_INTERVAL" default:"5s"`
	DialTimeout       time.Duration `env:"TURN_DIAL_TIMEOUT" default:"10s"`
	MaxFrameSize      int           `env:"TURN_MAX_FRAME_SIZE" default:"4194304"`
	ReconnectInterval time.Duration `env:"TURN_RECONNECT_INTERVAL" default:"2s"`

	// Credentials
	Token  string `env:"TURN_TOKEN"`
	UserID int64  `env:"TURN_USER_ID"`

	// Observability
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`
	MetricsAddr string `env:"METRICS_ADDR"`
}

// LoadConfig reads the given .env files (".env" when none are named) into
// the process environment and then builds the configuration from it.
// Missing files are not an error; variables already set win over the files.
func LoadConfig(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	config := &Config{}

	// Server
	loadEnvString(&config.ServerHost, "TURN_SERVER_HOST", "localhost")
	if err := loadEnvInt(&config.TCPPort, "TURN_TCP_PORT", turnnet.DefaultTCPPort); err != nil {
		return nil, err
	}
	loadEnvString(&config.Network, "TURN_NETWORK", turnnet.NetworkTCP)
	loadEnvString(&config.WebSocketPath, "TURN_WS_PATH", turnnet.DefaultWebSocketPath)

	// TLS
	if err := loadEnvBool(&config.UseTLS, "TURN_USE_TLS", false); err != nil {
		return nil, err
	}
	if err := loadEnvBool(&config.TLSInsecure, "TURN_TLS_INSECURE", false); err != nil {
		return nil, err
	}
	loadEnvString(&config.TLSServerName, "TURN_TLS_SERVER_NAME", "")
	loadEnvString(&config.TLSCAFile, "TURN_TLS_CA_FILE", "")

	// Connection
	if err := loadEnvDuration(&config.HeartbeatInterval, "TURN_HEARTBEAT_INTERVAL", turnnet.DefaultHeartbeatInterval); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.DialTimeout, "TURN_DIAL_TIMEOUT", turnnet.DefaultDialTimeout); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.MaxFrameSize, "TURN_MAX_FRAME_SIZE", turnnet.MaxFrameSize); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.ReconnectInterval, "TURN_RECONNECT_INTERVAL", 2*time.Second); err != nil {
		return nil, err
	}

	// Credentials
	loadEnvString(&config.Token, "TURN_TOKEN", "")
	if err := loadEnvInt64(&config.UserID, "TURN_USER_ID", 0); err != nil {
		return nil, err
	}

	// Observability
	loadEnvString(&config.LogLevel, "LOG_LEVEL", "info")
	loadEnvString(&config.LogFormat, "LOG_FORMAT", "text")
	loadEnvString(&config.MetricsAddr, "METRICS_ADDR", "")

	return config, nil
}

func loadEnvString(target *string, key, defaultValue string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	} else {
		*target = defaultValue
	}
}

func loadEnvInt(target *int, key string, defaultValue int) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %w", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvInt64(target *int64, key string, defaultValue int64) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %w", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvBool(target *bool, key string, defaultValue bool) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value for %s: %w", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvDuration(target *time.Duration, key string, defaultValue time.Duration) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %w", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

// Validate performs validation on the loaded configuration
func (c *Config) Validate() error {
	var errs []string

	if c.ServerHost == "" {
		errs = append(errs, "TURN_SERVER_HOST must not be empty")
	}
	if c.TCPPort < 1 || c.TCPPort > 65535 {
		errs = append(errs, "TURN_TCP_PORT must be between 1 and 65535")
	}

	validNetworks := []string{turnnet.NetworkTCP, turnnet.NetworkWebSocket}
	if !slices.Contains(validNetworks, c.Network) {
		errs = append(errs, fmt.Sprintf("TURN_NETWORK must be one of: %s", strings.Join(validNetworks, ", ")))
	}
	if c.Network == turnnet.NetworkWebSocket && !strings.HasPrefix(c.WebSocketPath, "/") {
		errs = append(errs, "TURN_WS_PATH must start with /")
	}

	if c.TLSInsecure && c.TLSCAFile != "" {
		errs = append(errs, "TURN_TLS_INSECURE and TURN_TLS_CA_FILE are mutually exclusive")
	}

	if c.HeartbeatInterval <= 0 {
		errs = append(errs, "TURN_HEARTBEAT_INTERVAL must be positive")
	}
	if c.DialTimeout < 0 {
		errs = append(errs, "TURN_DIAL_TIMEOUT must not be negative")
	}
	if c.MaxFrameSize < 1 {
		errs = append(errs, "TURN_MAX_FRAME_SIZE must be positive")
	}
	if c.ReconnectInterval <= 0 {
		errs = append(errs, "TURN_RECONNECT_INTERVAL must be positive")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL must be one of: %s", strings.Join(validLogLevels, ", ")))
	}
	validLogFormats := []string{"text", "json"}
	if !slices.Contains(validLogFormats, strings.ToLower(c.LogFormat)) {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT must be one of: %s", strings.Join(validLogFormats, ", ")))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Endpoint returns the server endpoint without a trust policy; the caller
// picks one from TLSInsecure and TLSCAFile.
func (c *Config) Endpoint() turnnet.Endpoint {
	return turnnet.Endpoint{
		Host:       c.ServerHost,
		Port:       c.TCPPort,
		UseTLS:     c.UseTLS,
		ServerName: c.TLSServerName,
		Network:    c.Network,
		Path:       c.WebSocketPath,
	}
}
