package client

import (
	"log/slog"

	"github.com/otaku1603/turnnet/internal/config"
)

// ConfigFromEnv builds a Config from settings loaded by config.LoadConfig.
// Automatic login is enabled when a token is configured.
func ConfigFromEnv(env *config.Config, logger *slog.Logger) (Config, error) {
	ep := env.Endpoint()
	if ep.UseTLS {
		switch {
		case env.TLSInsecure:
			ep.Trust = AcceptAnyCertificate(logger)
		case env.TLSCAFile != "":
			policy, err := PinnedRootsFromFile(env.TLSCAFile)
			if err != nil {
				return Config{}, err
			}
			ep.Trust = policy
		default:
			ep.Trust = SystemRoots()
		}
	}

	return Config{
		Endpoint:          ep,
		Logger:            logger,
		HeartbeatInterval: env.HeartbeatInterval,
		DialTimeout:       env.DialTimeout,
		MaxFrameSize:      env.MaxFrameSize,
		ReconnectInterval: env.ReconnectInterval,
		Token:             env.Token,
		UserID:            env.UserID,
		AutoLogin:         env.Token != "",
	}, nil
}
