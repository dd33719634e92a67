package refreshtokens

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/walletsync/internal/common"
	"github.com/dmitrijs2005/walletsync/internal/server/models"
)

// InMemoryRepository is a map-backed Repository for tests.
type InMemoryRepository struct {
	mu     sync.Mutex
	tokens map[string]*models.RefreshToken
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{tokens: map[string]*models.RefreshToken{}}
}

func (r *InMemoryRepository) Create(ctx context.Context, userID, token string, validity time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token] = &models.RefreshToken{
		UserID:  userID,
		Token:   token,
		Expires: time.Now().Add(validity),
	}
	return nil
}

func (r *InMemoryRepository) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.tokens[token]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *rt
	return &cp, nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, token)
	return nil
}

func (r *InMemoryRepository) DeleteExpired(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for k, rt := range r.tokens {
		if rt.Expires.Before(now) {
			delete(r.tokens, k)
		}
	}
	return nil
}
