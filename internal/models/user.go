package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID
	CreatedAt      time.Time
	Username       string
	Email          string
	DisplayName    string
	HashedPassword string

	// Sha256 hex of the currently valid refresh token.
	// Nil means the user has no active session.
	RefreshFingerprint *string
}
