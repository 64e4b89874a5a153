package repository

import (
	"context"

	"resume-hub/auth-service/internal/user/domain"
)

// Directory is the read side of the user collaborator consumed by the auth
// subsystem. Lookups return nil (not an error) when no user exists.
type Directory interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

// Writer extends Directory with user creation, used by cmd/seed and tests.
type Writer interface {
	Directory
	Create(ctx context.Context, u *domain.User) error
}
