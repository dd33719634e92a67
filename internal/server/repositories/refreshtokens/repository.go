// Package refreshtokens stores server-side refresh tokens for session
// rotation.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/walletsync/internal/server/models"
)

type Repository interface {
	// Create inserts a token for the user expiring at now+validity.
	Create(ctx context.Context, userID, token string, validity time.Duration) error

	// Find returns the token row or common.ErrNotFound.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Delete removes the token. Deleting an unknown token is not an error.
	Delete(ctx context.Context, token string) error

	// DeleteExpired removes tokens that expired before now.
	DeleteExpired(ctx context.Context) error
}
