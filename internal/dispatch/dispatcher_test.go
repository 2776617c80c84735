package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otaku1603/turnnet"
)

func endEnvelope(winner int64) *turnnet.Envelope {
	return &turnnet.Envelope{Type: turnnet.TypeBattleEnd, Payload: &turnnet.BattleEndResponse{WinnerID: winner}}
}

func TestDispatchFanOut(t *testing.T) {
	t.Parallel()

	d := New(nil)
	var calls []string
	d.Subscribe(turnnet.TypeBattleEnd, func(*turnnet.Envelope) { calls = append(calls, "a") })
	d.Subscribe(turnnet.TypeBattleEnd, func(*turnnet.Envelope) { calls = append(calls, "b") })
	d.Subscribe(turnnet.TypeBattleStart, func(*turnnet.Envelope) { calls = append(calls, "other") })

	n := d.Dispatch(endEnvelope(1))
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"a", "b"}, calls)
}

func TestDispatchUnknownTypeIgnored(t *testing.T) {
	t.Parallel()

	d := New(nil)
	d.Subscribe(turnnet.TypeBattleEnd, func(*turnnet.Envelope) { t.Fatal("wrong handler") })

	assert.Equal(t, 0, d.Dispatch(&turnnet.Envelope{Type: 250, Payload: &turnnet.RawPayload{Field: 60}}))
	assert.Equal(t, 0, d.Dispatch(nil))
}

func TestOnTypedPayload(t *testing.T) {
	t.Parallel()

	d := New(nil)
	var winner int64
	On(d, turnnet.TypeBattleEnd, func(_ *turnnet.Envelope, end *turnnet.BattleEndResponse) {
		winner = end.WinnerID
	})

	d.Dispatch(endEnvelope(42))
	assert.Equal(t, int64(42), winner)

	// same type, foreign payload: skipped, not panicking
	d.Dispatch(&turnnet.Envelope{Type: turnnet.TypeBattleEnd, Payload: &turnnet.RawPayload{Field: 19}})
	assert.Equal(t, int64(42), winner)
}

func TestUnsubscribe(t *testing.T) {
	t.Parallel()

	d := New(nil)
	calls := 0
	sub := d.Subscribe(turnnet.TypeBattleEnd, func(*turnnet.Envelope) { calls++ })
	require.Equal(t, 1, d.Count(turnnet.TypeBattleEnd))

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Equal(t, 0, d.Count(turnnet.TypeBattleEnd))

	d.Dispatch(endEnvelope(1))
	assert.Equal(t, 0, calls)
}

// TestSubscribeFromHandler changes the registry while a dispatch is running.
func TestSubscribeFromHandler(t *testing.T) {
	t.Parallel()

	d := New(nil)
	var calls []string

	var second *Subscription
	d.Subscribe(turnnet.TypeBattleEnd, func(*turnnet.Envelope) {
		calls = append(calls, "first")
		// removed before it gets its turn in this dispatch
		second.Unsubscribe()
		// added during the dispatch: runs from the next dispatch on
		d.Subscribe(turnnet.TypeBattleEnd, func(*turnnet.Envelope) { calls = append(calls, "late") })
	})
	second = d.Subscribe(turnnet.TypeBattleEnd, func(*turnnet.Envelope) { calls = append(calls, "second") })

	d.Dispatch(endEnvelope(1))
	assert.Equal(t, []string{"first"}, calls)

	calls = nil
	d.Dispatch(endEnvelope(1))
	assert.Equal(t, []string{"first", "late"}, calls)
}

func TestUnsubscribeSelfDuringDispatch(t *testing.T) {
	t.Parallel()

	d := New(nil)
	calls := 0
	var once *Subscription
	once = d.Subscribe(turnnet.TypeMatchSuccess, func(*turnnet.Envelope) {
		calls++
		once.Unsubscribe()
	})

	d.Dispatch(&turnnet.Envelope{Type: turnnet.TypeMatchSuccess})
	d.Dispatch(&turnnet.Envelope{Type: turnnet.TypeMatchSuccess})
	assert.Equal(t, 1, calls)
}
