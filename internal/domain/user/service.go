package user

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Service struct {
	users Repository
}

func NewService(r Repository) *Service {
	return &Service{users: r}
}

func (s *Service) Create(ctx context.Context, u *User) error {
	if strings.TrimSpace(u.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(u.Email) == "" {
		return fmt.Errorf("email is required")
	}
	if !ValidRoles[u.Role] {
		return fmt.Errorf("invalid role: %s", u.Role)
	}
	u.Active = true
	return s.users.Create(ctx, u)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.users.GetByEmail(ctx, email)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.users.List(ctx, limit, offset)
}

func (s *Service) ListByRole(ctx context.Context, role Role, limit, offset int) ([]*User, int, error) {
	if !ValidRoles[role] {
		return nil, 0, fmt.Errorf("invalid role: %s", role)
	}
	return s.users.ListByRole(ctx, role, limit, offset)
}

// Deactivate flips a user inactive. Inactive users keep their history but can
// no longer act on proposals.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	u.Active = false
	return s.users.Update(ctx, u)
}
