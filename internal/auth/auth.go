// ============================================================================
// flatset - Flat collection manager
// ============================================================================
//
// Package:     auth
// Description: Principals, bcrypt credentials and the login/register flow
// Author:      Mike Stoffels
// Created:     2026-10-19
// License:     MIT
// ============================================================================

package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	mdwerror "github.com/msto63/flatset/foundation/core/error"
	mdwlog "github.com/msto63/flatset/foundation/core/log"
	"github.com/msto63/flatset/foundation/utils/stringx"
)

// Principal is an authenticated user. Records created by a principal carry
// its ID as owner.
type Principal struct {
	ID       int64
	Username string
}

// UserRecord is a stored user with its password hash
type UserRecord struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// UserStore persists users. CreateUser fails with DUPLICATE_ENTRY for a
// taken name, FindUser with NOT_FOUND for an unknown one.
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) (*UserRecord, error)
	FindUser(ctx context.Context, username string) (*UserRecord, error)
}

// Service registers and authenticates users
type Service struct {
	users  UserStore
	cost   int
	logger *mdwlog.Logger
}

// NewService creates a service hashing with the given bcrypt cost. A cost
// outside bcrypt's range falls back to bcrypt.DefaultCost.
func NewService(users UserStore, cost int, logger *mdwlog.Logger) *Service {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = mdwlog.NewNop()
	}
	return &Service{
		users:  users,
		cost:   cost,
		logger: logger.WithField("component", "auth"),
	}
}

// Register creates a user and returns its principal
func (s *Service) Register(ctx context.Context, username, password string) (*Principal, error) {
	username = strings.TrimSpace(username)
	if stringx.IsBlank(username) {
		return nil, mdwerror.ValidationFailed("username", "username must not be empty")
	}
	if password == "" {
		return nil, mdwerror.ValidationFailed("password", "password must not be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, mdwerror.InvalidInput("password is too long")
		}
		return nil, mdwerror.Wrap(err, "could not hash password").WithCode(mdwerror.CodeInternal)
	}

	rec, err := s.users.CreateUser(ctx, username, string(hash))
	if err != nil {
		return nil, err
	}

	s.logger.Audit("user registered", mdwlog.Fields{"user": rec.Username, "userID": rec.ID})
	return &Principal{ID: rec.ID, Username: rec.Username}, nil
}

// Login verifies the credentials. Unknown users and wrong passwords fail
// alike with INVALID_CREDENTIALS.
func (s *Service) Login(ctx context.Context, username, password string) (*Principal, error) {
	username = strings.TrimSpace(username)
	rec, err := s.users.FindUser(ctx, username)
	if err != nil {
		if mdwerror.HasCode(err, mdwerror.CodeNotFound) {
			s.logger.Warn("login for unknown user", mdwlog.Fields{"user": username})
			return nil, invalidCredentials()
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			s.logger.Warn("login with wrong password", mdwlog.Fields{"user": username})
			return nil, invalidCredentials()
		}
		return nil, mdwerror.Wrap(err, "could not verify password").WithCode(mdwerror.CodeInternal)
	}

	s.logger.Audit("user logged in", mdwlog.Fields{"user": rec.Username, "userID": rec.ID})
	return &Principal{ID: rec.ID, Username: rec.Username}, nil
}

func invalidCredentials() error {
	return mdwerror.New("invalid username or password").WithCode(mdwerror.CodeInvalidCredentials)
}
