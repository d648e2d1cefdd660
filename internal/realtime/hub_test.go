package realtime

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHub_BroadcastReachesAllSessions(t *testing.T) {
	hub := NewHub(zap.NewNop())

	_, ch1, leave1 := hub.Join()
	_, ch2, leave2 := hub.Join()
	defer leave1()
	defer leave2()

	require.Equal(t, 2, hub.Sessions())

	hub.Broadcast()

	select {
	case <-ch1:
	default:
		t.Fatal("first session did not receive signal")
	}
	select {
	case <-ch2:
	default:
		t.Fatal("second session did not receive signal")
	}
}

func TestHub_BroadcastNeverBlocksOnSlowReceiver(t *testing.T) {
	hub := NewHub(zap.NewNop())

	_, ch, leave := hub.Join()
	defer leave()

	// The receiver never drains; repeated broadcasts must still return.
	for i := 0; i < 10; i++ {
		hub.Broadcast()
	}

	// Exactly one pending signal survives.
	select {
	case <-ch:
	default:
		t.Fatal("expected one pending signal")
	}
	select {
	case <-ch:
		t.Fatal("expected channel to be drained after one receive")
	default:
	}
}

func TestHub_LeaveRemovesSession(t *testing.T) {
	hub := NewHub(zap.NewNop())

	_, _, leave := hub.Join()
	require.Equal(t, 1, hub.Sessions())

	leave()
	require.Equal(t, 0, hub.Sessions())

	// Broadcasting into an empty hub is a no-op.
	hub.Broadcast()
}

func TestHub_BroadcastToNobody(t *testing.T) {
	hub := NewHub(zap.NewNop())
	hub.Broadcast()
	require.Equal(t, 0, hub.Sessions())
}
