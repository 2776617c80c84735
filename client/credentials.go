package client

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// credentials holds the token stamped on outgoing envelopes. The token is
// inspected but never verified here; the server does that.
type credentials struct {
	mu        sync.RWMutex
	token     string
	userID    int64
	expiresAt time.Time
}

func (c *credentials) set(token string, userID int64) error {
	var expiresAt time.Time
	var parseErr error
	if token != "" {
		claims := jwt.MapClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			parseErr = err
		} else if exp, err := claims.GetExpirationTime(); err != nil {
			parseErr = err
		} else if exp != nil {
			expiresAt = exp.Time
		}
	}

	c.mu.Lock()
	c.token = token
	c.userID = userID
	c.expiresAt = expiresAt
	c.mu.Unlock()
	return parseErr
}

// usable reports whether a token is set and not past its exp claim.
func (c *credentials) usable(now time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == "" {
		return false
	}
	return c.expiresAt.IsZero() || now.Before(c.expiresAt)
}

// SetCredentials replaces the token and user id used by the senders, the
// heartbeat and the automatic login. Tokens that are not JWTs are kept but
// their expiry is unknown; the parse error is logged.
func (c *Client) SetCredentials(token string, userID int64) {
	if err := c.creds.set(token, userID); err != nil {
		c.logger.Debug("token expiry unknown", "err", err)
	}
}

// Token returns the current token.
func (c *Client) Token() string {
	c.creds.mu.RLock()
	defer c.creds.mu.RUnlock()
	return c.creds.token
}

// UserID returns the current user id.
func (c *Client) UserID() int64 {
	c.creds.mu.RLock()
	defer c.creds.mu.RUnlock()
	return c.creds.userID
}

// TokenExpiry returns the exp claim of the token, or the zero time when the
// token has none.
func (c *Client) TokenExpiry() time.Time {
	c.creds.mu.RLock()
	defer c.creds.mu.RUnlock()
	return c.creds.expiresAt
}
