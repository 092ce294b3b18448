package user

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies which part of the review pipeline a user acts in.
type Role string

const (
	RoleTherapist   Role = "therapist"
	RoleCoordinator Role = "coordinator"
	RoleAdmin       Role = "admin"
)

// ValidRoles lists every role the service accepts.
var ValidRoles = map[Role]bool{
	RoleTherapist:   true,
	RoleCoordinator: true,
	RoleAdmin:       true,
}

// User maps to the app_user table.
type User struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Role      Role      `db:"role" json:"role"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
