// Package services contains server-side business logic.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/dmitrijs2005/walletsync/internal/common"
	"github.com/dmitrijs2005/walletsync/internal/dbx"
	"github.com/dmitrijs2005/walletsync/internal/server/auth"
	"github.com/dmitrijs2005/walletsync/internal/server/config"
	"github.com/dmitrijs2005/walletsync/internal/server/models"
	"github.com/dmitrijs2005/walletsync/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/walletsync/internal/server/repositories/users"
	"github.com/dmitrijs2005/walletsync/internal/shared"
)

const minPasswordLength = 8

// TokenPair bundles a short-lived access token and a long-lived refresh
// token, plus the owner id the pair was issued for.
type TokenPair struct {
	OwnerID      string `json:"owner_id,omitempty"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// UserService handles registration, login and refresh token rotation.
type UserService struct {
	db                           dbx.DBTX
	runTx                        func(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error
	users                        func(dbx.DBTX) users.Repository
	refreshTokens                func(dbx.DBTX) refreshtokens.Repository
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
}

func NewUserService(db *sql.DB, cfg *config.Config) *UserService {
	return &UserService{
		db: db,
		runTx: func(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
			return dbx.WithTx(ctx, db, nil, fn)
		},
		users:                        func(tx dbx.DBTX) users.Repository { return users.NewPostgresRepository(tx) },
		refreshTokens:                func(tx dbx.DBTX) refreshtokens.Repository { return refreshtokens.NewPostgresRepository(tx) },
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
	}
}

// NewUserServiceWithRepos wires explicit repositories without a database,
// for tests against the in-memory implementations.
func NewUserServiceWithRepos(u users.Repository, rt refreshtokens.Repository, cfg *config.Config) *UserService {
	return &UserService{
		runTx: func(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
			return fn(ctx, nil)
		},
		users:                        func(dbx.DBTX) users.Repository { return u },
		refreshTokens:                func(dbx.DBTX) refreshtokens.Repository { return rt },
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
	}
}

// Register creates a new account. The email must parse and the password
// must be at least eight characters.
func (s *UserService) Register(ctx context.Context, email, password string) (*models.User, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("invalid email: %w", common.ErrInvalidCredentials)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("password shorter than %d characters: %w", minPasswordLength, common.ErrInvalidCredentials)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, common.ErrInternal
	}
	user := &models.User{Email: email, PasswordHash: hash}
	return s.users(s.db).Create(ctx, user)
}

// Login verifies the credentials and mints a token pair. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, common.ErrInternal
	}
	ok, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, common.ErrInternal
	}
	if !ok {
		return nil, common.ErrInvalidCredentials
	}
	return s.generateTokenPair(ctx, user.ID, s.db)
}

// RefreshToken validates a refresh token, rotates it transactionally and
// returns a fresh pair. Expired tokens yield ErrRefreshTokenExpired.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	token, err := s.refreshTokens(s.db).Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to look up refresh token: %w", err)
	}
	if token.Expires.Before(time.Now()) {
		return nil, common.ErrRefreshTokenExpired
	}

	var pair *TokenPair
	err = s.runTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.refreshTokens(tx).Delete(ctx, refreshToken); err != nil {
			return fmt.Errorf("failed to rotate refresh token: %w", err)
		}
		var genErr error
		pair, genErr = s.generateTokenPair(ctx, token.UserID, tx)
		return genErr
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// PurgeExpiredTokens drops refresh tokens past their expiry.
func (s *UserService) PurgeExpiredTokens(ctx context.Context) error {
	return s.refreshTokens(s.db).DeleteExpired(ctx)
}

func (s *UserService) generateTokenPair(ctx context.Context, userID string, tx dbx.DBTX) (*TokenPair, error) {
	access, err := auth.GenerateToken(userID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrInternal
	}
	refresh, err := randomToken()
	if err != nil {
		return nil, common.ErrInternal
	}
	if err := s.refreshTokens(tx).Create(ctx, userID, refresh, s.refreshTokenValidityDuration); err != nil {
		return nil, common.ErrInternal
	}
	return &TokenPair{OwnerID: userID, AccessToken: access, RefreshToken: refresh}, nil
}

func randomToken() (string, error) {
	return shared.MakeRandHexString(32)
}
