// ============================================================================
// flatset - Flat collection manager
// ============================================================================
//
// Package:     store
// Description: Persistence of the flat collection (file snapshots, SQL)
// Author:      Mike Stoffels
// Created:     2026-10-19
// License:     MIT
// ============================================================================

package store

import (
	"context"

	mdwerror "github.com/msto63/flatset/foundation/core/error"
	mdwlog "github.com/msto63/flatset/foundation/core/log"
	"github.com/msto63/flatset/internal/auth"
	"github.com/msto63/flatset/internal/flat"
	"github.com/msto63/flatset/pkg/core/config"
)

// Store loads and saves the whole collection
type Store interface {
	// Load returns the persisted records. An empty store yields no records
	// and no error.
	Load(ctx context.Context) ([]*flat.Flat, error)
	// Save replaces the persisted records with flats
	Save(ctx context.Context, flats []*flat.Flat) error
	// Describe names the persistence target for info output
	Describe() string
	Close() error
}

// Pinger is implemented by stores with a remote or shared backend
type Pinger interface {
	Ping(ctx context.Context) error
}

// Open creates the store selected by cfg.Backend
func Open(ctx context.Context, cfg config.StoreConfig, logger *mdwlog.Logger) (Store, error) {
	if logger == nil {
		logger = mdwlog.NewNop()
	}
	logger = logger.WithField("component", "store")

	switch cfg.Backend {
	case config.BackendFile, "":
		return NewFileStore(cfg.Path, logger), nil
	case config.BackendSQLite:
		return OpenSQLite(ctx, cfg.Path, logger)
	case config.BackendPostgres:
		return OpenPostgres(ctx, cfg.DSN, logger)
	default:
		return nil, mdwerror.Newf("unknown store backend %q", cfg.Backend).
			WithCode(mdwerror.CodeConfigError).WithDetail("field", "store.backend")
	}
}

// UsersFor returns the user store backing s. Stores without user tables get
// an in-memory user store.
func UsersFor(s Store) auth.UserStore {
	if users, ok := s.(auth.UserStore); ok {
		return users
	}
	return auth.NewMemoryUserStore()
}
