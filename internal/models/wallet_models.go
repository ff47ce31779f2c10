package models

import (
	"time"

	"tipbridge/internal/money"

	"github.com/google/uuid"
)

type Wallet struct {
	ID                  uuid.UUID   `json:"id" db:"id"`
	Network             Network     `json:"network" db:"network"`
	Address             string      `json:"address" db:"address"`
	OwnerID             int64       `json:"ownerId" db:"owner_id"`
	Secret              []byte      `json:"-" db:"secret"`
	CachedBalance       money.Money `json:"cachedBalance" db:"cached_balance"`
	PendingInboundCount int         `json:"pendingInboundCount" db:"pending_inbound_count"`
	IsUpdating          bool        `json:"isUpdating" db:"-"`
	CreatedAt           time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at" db:"updated_at"`
}

type Account struct {
	ID       int64  `json:"id" db:"id"`
	Username string `json:"username" db:"username"`
}

// AccountRef names a user either by numeric id or by username.
type AccountRef struct {
	ID       int64  `json:"id,omitempty"`
	Username string `json:"username,omitempty"`
}

func (r AccountRef) IsZero() bool {
	return r.ID == 0 && r.Username == ""
}

type Alias struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Address   string    `json:"address" db:"address"`
	Network   Network   `json:"network" db:"network"`
	OwnerID   int64     `json:"ownerId" db:"owner_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
