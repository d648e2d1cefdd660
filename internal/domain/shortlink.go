package domain

import (
	"time"

	"github.com/google/uuid"
)

type ShortLinkTarget string

const ShortLinkTargetLoyalty ShortLinkTarget = "loyalty"

// ShortLink is write-once: after creation only the expiry check reads it.
type ShortLink struct {
	Token      string          `db:"token"`
	TargetType ShortLinkTarget `db:"target_type"`
	TargetID   uuid.UUID       `db:"target_id"`
	ExpiresAt  *time.Time      `db:"expires_at"`
	CreatedAt  time.Time       `db:"created_at"`
}

func (l *ShortLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !l.ExpiresAt.After(now)
}
