package realtime

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Hub is the process-wide broadcast group of dashboard viewer sessions.
// Signals carry no payload: receivers re-pull the aggregate views they care
// about, so the hub never becomes a second source of truth for numbers.
type Hub struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]chan struct{}
	logger   *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		sessions: make(map[uuid.UUID]chan struct{}),
		logger:   logger,
	}
}

// Join registers a viewer session and returns its signal channel together
// with a leave func. The channel is buffered with one slot: a viewer that is
// mid-fetch keeps exactly one pending signal, which is all it needs since
// every signal means the same thing ("re-fetch").
func (h *Hub) Join() (uuid.UUID, <-chan struct{}, func()) {
	id := uuid.New()
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	h.sessions[id] = ch
	count := len(h.sessions)
	h.mu.Unlock()

	h.logger.Debug("Dashboard session joined",
		zap.String("session_id", id.String()),
		zap.Int("sessions", count),
	)

	leave := func() {
		h.mu.Lock()
		delete(h.sessions, id)
		count := len(h.sessions)
		h.mu.Unlock()

		h.logger.Debug("Dashboard session left",
			zap.String("session_id", id.String()),
			zap.Int("sessions", count),
		)
	}

	return id, ch, leave
}

// Broadcast wakes every joined session. It never blocks on a slow receiver
// and never fails: delivery problems stay inside the hub.
func (h *Hub) Broadcast() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.sessions {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (h *Hub) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}
