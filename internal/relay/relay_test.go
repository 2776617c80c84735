package relay

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otaku1603/turnnet"
	"github.com/otaku1603/turnnet/internal/metrics"
)

func heartbeat(i int64) *turnnet.Envelope {
	return &turnnet.Envelope{Type: turnnet.TypeHeartbeat, Payload: &turnnet.Heartbeat{ClientTime: i}}
}

func TestDrainAllOrder(t *testing.T) {
	t.Parallel()

	r := New(nil)
	assert.Nil(t, r.DrainAll())

	for i := int64(0); i < 5; i++ {
		r.Enqueue(heartbeat(i))
	}
	assert.Equal(t, 5, r.Len())

	got := r.DrainAll()
	require.Len(t, got, 5)
	for i, env := range got {
		assert.Equal(t, int64(i), env.Payload.(*turnnet.Heartbeat).ClientTime)
	}
	assert.Equal(t, 0, r.Len())
	assert.Nil(t, r.DrainAll(), "drain removes what it returns")
}

// TestConcurrentProducerConsumer runs one producer goroutine against one
// draining consumer and checks FIFO order end to end.
func TestConcurrentProducerConsumer(t *testing.T) {
	t.Parallel()

	const total = 10000
	r := New(nil)

	go func() {
		for i := int64(0); i < total; i++ {
			r.Enqueue(heartbeat(i))
		}
	}()

	next := int64(0)
	deadline := time.After(5 * time.Second)
	for next < total {
		select {
		case <-r.Ready():
		case <-deadline:
			t.Fatalf("consumer stalled at %d", next)
		}
		for _, env := range r.DrainAll() {
			got := env.Payload.(*turnnet.Heartbeat).ClientTime
			if got != next {
				t.Fatalf("out of order: got %d, want %d", got, next)
			}
			next++
		}
	}
}

func TestReadyCoalesces(t *testing.T) {
	t.Parallel()

	r := New(nil)
	r.Enqueue(heartbeat(1))
	r.Enqueue(heartbeat(2))

	select {
	case <-r.Ready():
	default:
		t.Fatal("expected a ready signal")
	}
	select {
	case <-r.Ready():
		t.Fatal("ready signals should coalesce")
	default:
	}
	assert.Len(t, r.DrainAll(), 2)
}

func TestWakeWithoutEnvelope(t *testing.T) {
	t.Parallel()

	r := New(nil)
	r.Wake()

	select {
	case <-r.Ready():
	default:
		t.Fatal("expected a ready signal")
	}
	assert.Nil(t, r.DrainAll())
}

func TestRelayDepthGauge(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	r := New(m)
	r.Enqueue(heartbeat(1))
	r.Enqueue(heartbeat(2))

	depth, err := testutil.GatherAndCount(m.Registry(), "turnnet_client_relay_depth")
	require.NoError(t, err)
	assert.Equal(t, 1, depth)

	r.DrainAll()
	assert.Equal(t, 0, r.Len())
}
