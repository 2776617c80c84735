// Package turnnet is the networking layer of a turn-based battle game client.
//
// It keeps one long-lived connection to the game server, frames and decodes
// the server's messages, and hands them to game code on a single consumer
// context in the order they arrived.
//
// # Architecture
//
// Received data flows through four stages:
//
//	socket ──▶ receive goroutine ──▶ relay ──▶ Update() ──▶ dispatcher ──▶ handlers
//	          (framing + decode)    (FIFO)    (consumer)    (by MessageType)
//
// The receive goroutine never calls game code. The host drives delivery by
// calling Update (or client.Run) from its consumer loop, so every handler and
// every Connected or Disconnected signal runs on that one context.
//
// # Quick Start
//
//	import (
//	    "github.com/otaku1603/turnnet"
//	    "github.com/otaku1603/turnnet/client"
//	)
//
//	c := client.New(client.Config{
//	    Endpoint: turnnet.Endpoint{
//	        Host:   "game.example.com",
//	        Port:   turnnet.DefaultTCPPort,
//	        UseTLS: true,
//	        Trust:  client.SystemRoots(),
//	    },
//	    Token:     token,
//	    UserID:    userID,
//	    AutoLogin: true,
//	})
//
//	c.OnMatchSuccess(func(m *turnnet.MatchSuccessResponse) {
//	    c.SendBattleReady(ctx, m.BattleID)
//	})
//	c.HandleBattleUpdates(func(u *turnnet.BattleUpdateResponse, done func()) {
//	    playAnimation(u, done) // the next update waits for done
//	})
//
//	if err := c.Connect(ctx); err != nil {
//	    return err
//	}
//	return c.Run(ctx)
//
// # Protocol Format
//
// Every message is one frame:
//
//	[1-5 bytes: body length, varint][N bytes: Envelope body]
//
// The length is a base-128 varint, least significant group first, with the
// high bit of each byte as the continuation flag. It covers at most 32 bits;
// a fifth group with the continuation flag set or a value above 0x0F is a
// framing error.
//
// The body uses the protobuf wire format: field 1 is the MessageType, field 2
// the session token, and the payload sits in one field whose number depends
// on its variant. Payloads of unknown types decode into *RawPayload so a
// newer server does not break an older client.
//
// # Connection Lifecycle
//
//	Disconnected ──Connect──▶ Connecting ──ok──▶ Connected
//	      ▲                        │                 │
//	      └────────fail────────────┘                 │
//	      └──────Disconnect / EOF / error────────────┘
//
// The Disconnected signal fires exactly once per successful Connect: at once
// for an explicit Disconnect, or from the next Update after the server
// closed the stream or an error ended the session. Envelopes received before
// the loss are delivered first. If a handler disconnects, the rest of the
// batch it was delivered from is discarded. The transport never reconnects on
// its own; see client.ScheduleReconnect.
//
// # Sequential Updates
//
// Battle updates describe deltas that only make sense once the previous one
// has been shown. The client runs them through a queue that starts the next
// update only after the handler calls done. When done comes from another
// goroutine, the next update begins in the following Update, so handlers
// stay on the consumer. A BattleEnd or a lost connection discards updates
// that have not begun.
//
// # Security
//
//   - TLS certificates are checked by a TrustPolicy: SystemRoots,
//     PinnedRoots for a private CA, or AcceptAnyCertificate for development
//   - A nil policy with UseTLS accepts any certificate and logs a warning
//   - Frame bodies above MaxFrameSize are rejected before allocation
//   - Tokens are parsed only to read their expiry; the server verifies them
//
// # Thread Safety
//
// Send and the typed senders are safe from any goroutine; frames never
// interleave. Connect, Disconnect, Update and all handlers belong to the
// consumer context.
package turnnet
