package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/walletsync/internal/common"
	"github.com/dmitrijs2005/walletsync/internal/server/auth"
	"github.com/dmitrijs2005/walletsync/internal/server/config"
	"github.com/dmitrijs2005/walletsync/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/walletsync/internal/server/repositories/users"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "test-secret"
	return cfg
}

func newUserService() *UserService {
	return NewUserServiceWithRepos(users.NewInMemoryRepository(), refreshtokens.NewInMemoryRepository(), testConfig())
}

func TestRegisterAndLogin(t *testing.T) {
	s := newUserService()
	ctx := context.Background()

	u, err := s.Register(ctx, "alice@example.com", "long enough password")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.NotContains(t, u.PasswordHash, "long enough password")

	pair, err := s.Login(ctx, "alice@example.com", "long enough password")
	require.NoError(t, err)
	assert.Equal(t, u.ID, pair.OwnerID)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	ownerID, err := auth.OwnerIDFromToken(pair.AccessToken, []byte("test-secret"))
	require.NoError(t, err)
	assert.Equal(t, u.ID, ownerID)
}

func TestRegister_Validation(t *testing.T) {
	s := newUserService()
	ctx := context.Background()

	_, err := s.Register(ctx, "not-an-email", "long enough password")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	_, err = s.Register(ctx, "bob@example.com", "short")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	s := newUserService()
	ctx := context.Background()

	_, err := s.Register(ctx, "alice@example.com", "long enough password")
	require.NoError(t, err)

	_, err = s.Register(ctx, "alice@example.com", "another password!")
	assert.ErrorIs(t, err, common.ErrUserExists)
}

func TestLogin_BadCredentials(t *testing.T) {
	s := newUserService()
	ctx := context.Background()

	_, err := s.Register(ctx, "alice@example.com", "long enough password")
	require.NoError(t, err)

	_, err = s.Login(ctx, "alice@example.com", "wrong password!!")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	// unknown user fails the same way
	_, err = s.Login(ctx, "nobody@example.com", "long enough password")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestRefreshToken_Rotates(t *testing.T) {
	s := newUserService()
	ctx := context.Background()

	_, err := s.Register(ctx, "alice@example.com", "long enough password")
	require.NoError(t, err)
	pair, err := s.Login(ctx, "alice@example.com", "long enough password")
	require.NoError(t, err)

	next, err := s.RefreshToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)
	assert.Equal(t, pair.OwnerID, next.OwnerID)

	// the rotated-out token no longer works
	_, err = s.RefreshToken(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestRefreshToken_Expired(t *testing.T) {
	cfg := testConfig()
	cfg.RefreshTokenValidityDuration = -time.Minute
	s := NewUserServiceWithRepos(users.NewInMemoryRepository(), refreshtokens.NewInMemoryRepository(), cfg)
	ctx := context.Background()

	_, err := s.Register(ctx, "alice@example.com", "long enough password")
	require.NoError(t, err)
	pair, err := s.Login(ctx, "alice@example.com", "long enough password")
	require.NoError(t, err)

	_, err = s.RefreshToken(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, common.ErrRefreshTokenExpired)
}
