// Package users stores user accounts.
package users

import (
	"context"

	"github.com/dmitrijs2005/walletsync/internal/server/models"
)

type Repository interface {
	// Create inserts the user and returns it with the generated id.
	// A duplicate email yields common.ErrUserExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByEmail returns the user or common.ErrNotFound.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}
