package client

import (
	"context"
	"time"

	"github.com/otaku1603/turnnet"
)

// Reconnect connects again after a lost connection. Calls are paced to one
// per ReconnectInterval; a call made too early waits, bounded by ctx. The
// transport never reconnects on its own, so the host decides when to call
// this.
//
// Reconnect blocks its caller. From a handler, use ScheduleReconnect.
func (c *Client) Reconnect(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	c.logger.Info("reconnecting", "addr", c.cfg.Endpoint.Addr())
	return c.Connect(ctx)
}

// ScheduleReconnect arranges for Run to connect again once the pacing of
// ReconnectInterval allows. It returns at once, so it is safe to call from
// OnDisconnected. A failed attempt is rescheduled; calls made while an
// attempt is pending are ignored, and Disconnect cancels it.
func (c *Client) ScheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.reconnectTimer != nil {
		return
	}
	delay := c.limiter.Reserve().Delay()
	c.logger.Debug("reconnect scheduled", "delay", delay)
	c.reconnectTimer = time.AfterFunc(delay, func() {
		select {
		case c.reconnectDue <- struct{}{}:
		default:
		}
	})
}

func (c *Client) cancelReconnect() {
	c.mu.Lock()
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.mu.Unlock()

	select {
	case <-c.reconnectDue:
	default:
	}
}

// reconnect runs the scheduled attempt on the consumer.
func (c *Client) reconnect(ctx context.Context) {
	c.mu.Lock()
	if c.reconnectTimer == nil {
		// cancelled after the timer fired
		c.mu.Unlock()
		return
	}
	c.reconnectTimer = nil
	c.mu.Unlock()

	if c.State() != turnnet.Disconnected {
		return
	}
	c.logger.Info("reconnecting", "addr", c.cfg.Endpoint.Addr())
	if err := c.Connect(ctx); err != nil {
		c.logger.Warn("reconnect failed", "err", err)
		if ctx.Err() == nil {
			c.ScheduleReconnect()
		}
	}
}
