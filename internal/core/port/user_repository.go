package port

import (
	"context"

	"github.com/anjun206/board-app/internal/core/domain"
)

// UserRepository exposes persistence behavior for users.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByNormalizedEmail matches the normalized_email column.
	GetByNormalizedEmail(ctx context.Context, email string) (*domain.User, error)
	// GetByRawEmail matches the legacy raw-cased email column.
	GetByRawEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// IncrementTokenVersion bumps the revocation counter and returns the new value.
	IncrementTokenVersion(ctx context.Context, id string) (int, error)
}
