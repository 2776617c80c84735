package client

import (
	"context"

	"github.com/otaku1603/turnnet"
	"github.com/otaku1603/turnnet/internal/dispatch"
)

// UpdateHandler presents one battle update, for example by playing its
// animation, and calls done when the next update may begin.
type UpdateHandler func(update *turnnet.BattleUpdateResponse, done func())

// registerBattleRoutes installs the subscriptions the battle flow depends
// on. They run before any host subscription of the same type.
func (c *Client) registerBattleRoutes() {
	dispatch.On(c.dispatcher, turnnet.TypeBattleUpdate, func(_ *turnnet.Envelope, upd *turnnet.BattleUpdateResponse) {
		c.updates.Enqueue(upd)
	})
	dispatch.On(c.dispatcher, turnnet.TypeBattleEnd, func(_ *turnnet.Envelope, end *turnnet.BattleEndResponse) {
		if n := c.updates.Len(); n > 0 {
			c.logger.Debug("battle ended, dropping queued updates", "battle", end.BattleID, "dropped", n)
		}
		c.updates.Reset()
	})
}

// runUpdate is the handler of the battle update queue.
func (c *Client) runUpdate(upd *turnnet.BattleUpdateResponse, done func()) {
	c.mu.Lock()
	h := c.updateHandler
	c.mu.Unlock()

	if h == nil {
		done()
		return
	}
	h(upd, done)
}

// HandleBattleUpdates sets the handler for BattleUpdate messages, replacing
// any previous one. Updates are presented one at a time in arrival order; the
// next begins only after the current handler calls done. A BattleEnd or a
// lost connection discards updates that have not begun.
func (c *Client) HandleBattleUpdates(h UpdateHandler) {
	c.mu.Lock()
	c.updateHandler = h
	c.mu.Unlock()
}

// OnBattleUpdate is HandleBattleUpdates for handlers that finish before
// returning.
func (c *Client) OnBattleUpdate(fn func(update *turnnet.BattleUpdateResponse)) {
	c.HandleBattleUpdates(func(update *turnnet.BattleUpdateResponse, done func()) {
		fn(update)
		done()
	})
}

// BattleUpdatesPending returns the number of updates waiting to begin.
func (c *Client) BattleUpdatesPending() int {
	return c.updates.Len()
}

// OnLogin subscribes fn to the server's answer to a login.
func (c *Client) OnLogin(fn func(resp *turnnet.LoginResponse)) *Subscription {
	return dispatch.On(c.dispatcher, turnnet.TypeLogin, func(_ *turnnet.Envelope, resp *turnnet.LoginResponse) {
		fn(resp)
	})
}

// OnMatchSuccess subscribes fn to match notifications.
func (c *Client) OnMatchSuccess(fn func(match *turnnet.MatchSuccessResponse)) *Subscription {
	return dispatch.On(c.dispatcher, turnnet.TypeMatchSuccess, func(_ *turnnet.Envelope, match *turnnet.MatchSuccessResponse) {
		fn(match)
	})
}

// OnBattleStart subscribes fn to battle start snapshots.
func (c *Client) OnBattleStart(fn func(start *turnnet.BattleStartResponse)) *Subscription {
	return dispatch.On(c.dispatcher, turnnet.TypeBattleStart, func(_ *turnnet.Envelope, start *turnnet.BattleStartResponse) {
		fn(start)
	})
}

// OnBattleEnd subscribes fn to battle results. Queued updates have already
// been discarded when fn runs.
func (c *Client) OnBattleEnd(fn func(end *turnnet.BattleEndResponse)) *Subscription {
	return dispatch.On(c.dispatcher, turnnet.TypeBattleEnd, func(_ *turnnet.Envelope, end *turnnet.BattleEndResponse) {
		fn(end)
	})
}

// OnBattleRejoin subscribes fn to the answer to a rejoin request.
func (c *Client) OnBattleRejoin(fn func(resp *turnnet.BattleRejoinResponse)) *Subscription {
	return dispatch.On(c.dispatcher, turnnet.TypeBattleRejoinResponse, func(_ *turnnet.Envelope, resp *turnnet.BattleRejoinResponse) {
		fn(resp)
	})
}

// SendLogin authenticates the connection. With a token set, username and
// password may be empty.
func (c *Client) SendLogin(ctx context.Context, username, password string) error {
	return c.send(ctx, turnnet.TypeLogin, &turnnet.LoginRequest{Username: username, Password: password})
}

// SendMatchRequest asks the server to find an opponent.
func (c *Client) SendMatchRequest(ctx context.Context) error {
	return c.send(ctx, turnnet.TypeMatchRequest, &turnnet.MatchRequest{UserID: c.UserID()})
}

// SendBattleReady reports that the battle scene is loaded.
func (c *Client) SendBattleReady(ctx context.Context, battleID string) error {
	return c.send(ctx, turnnet.TypeBattleReady, &turnnet.BattleReadyRequest{BattleID: battleID, UserID: c.UserID()})
}

// SendBattleAction submits a turn. actionType is one of turnnet.ActionSkill,
// turnnet.ActionDefend or turnnet.ActionItem; paramID names the skill or item.
func (c *Client) SendBattleAction(ctx context.Context, battleID string, actionType, paramID int32) error {
	return c.send(ctx, turnnet.TypeBattleAction, &turnnet.BattleActionRequest{
		BattleID:   battleID,
		UserID:     c.UserID(),
		ActionType: actionType,
		ParamID:    paramID,
	})
}

// SendBattleRejoin asks to resume a battle after reconnecting.
func (c *Client) SendBattleRejoin(ctx context.Context) error {
	return c.send(ctx, turnnet.TypeBattleRejoin, &turnnet.BattleRejoinRequest{UserID: c.UserID()})
}

// SendBattleSurrender forfeits the battle.
func (c *Client) SendBattleSurrender(ctx context.Context, battleID string) error {
	return c.send(ctx, turnnet.TypeBattleSurrender, &turnnet.BattleSurrenderRequest{BattleID: battleID, UserID: c.UserID()})
}

func (c *Client) send(ctx context.Context, t turnnet.MessageType, p turnnet.Payload) error {
	return c.transport.Send(ctx, &turnnet.Envelope{Type: t, Token: c.Token(), Payload: p})
}
