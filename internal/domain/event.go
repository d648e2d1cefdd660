package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderChangedEvent is deliberately thin: dashboard viewers re-pull the
// aggregate views on every signal instead of trusting event payloads.
type OrderChangedEvent struct {
	OrderID    uuid.UUID   `json:"order_id"`
	Number     int64       `json:"order_number"`
	Status     OrderStatus `json:"status"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// Audit facts emitted by the lifecycle manager; a collaborator persists them.
type AuditEntry struct {
	ID         int64     `db:"id"`
	ActorID    uuid.UUID `db:"actor_id"`
	Action     string    `db:"action"`
	OrderID    uuid.UUID `db:"order_id"`
	Detail     string    `db:"detail"`
	OccurredAt time.Time `db:"occurred_at"`
}
