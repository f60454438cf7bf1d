package authn

import (
	"time"

	"github.com/google/uuid"

	"github.com/triline/triline/internal/rbac"
)

// User is the resolved principal for a single request. It is rebuilt from the
// backing store on every authenticated request, never cached, because role and
// firm assignment can change between sessions.
type User struct {
	ID       uuid.UUID
	Email    string
	Name     string
	Role     rbac.Role
	FirmID   uuid.UUID
	FirmName string
}

// Account is the persisted user record, before firm binding is verified.
type Account struct {
	ID           uuid.UUID
	Email        string
	Name         string
	Role         string
	PasswordHash string
	IsActive     bool
	FirmID       uuid.UUID
	FirmName     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
