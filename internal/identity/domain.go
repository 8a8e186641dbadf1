package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/nimbus-stack/nimbus/internal/shared"
)

// User represents a registered account. Email doubles as the login handle and
// is unique across all users.
type User struct {
	ID           uuid.UUID
	Email        string
	Name         string
	PasswordHash string
	Role         shared.Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal derives the request-scoped identity value for this user.
func (u *User) Principal() *shared.Principal {
	return &shared.Principal{UserID: u.ID, Email: u.Email, Role: u.Role}
}
