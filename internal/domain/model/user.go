package model

import "time"

type UserStatus string

const (
	UserStatusNew     UserStatus = "new"
	UserStatusActive  UserStatus = "active"
	UserStatusBlocked UserStatus = "blocked" // set by admin only, sticky
	UserStatusExpired UserStatus = "expired"
)

type User struct {
	ID           string // UUID
	TelegramID   int64
	Locale       string // IETF-ish language code reported by the client, may be empty
	Status       UserStatus
	ExpiresAt    *time.Time // derived access snapshot
	FirstPaidAt  *time.Time // stamped once on the first confirmed payment
	RegisteredAt time.Time
}

// DeriveStatus computes the access status for a given expiry, preserving the
// sticky blocked state.
func DeriveStatus(current UserStatus, expiresAt *time.Time, now time.Time) UserStatus {
	if current == UserStatusBlocked {
		return UserStatusBlocked
	}
	if expiresAt == nil || !expiresAt.After(now) {
		return UserStatusExpired
	}
	return UserStatusActive
}
