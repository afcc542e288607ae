package auth

import (
	"context"
	"sync"
	"time"

	mdwerror "github.com/msto63/flatset/foundation/core/error"
)

// MemoryUserStore keeps users in memory. Used by the file backend, where
// users do not outlive the process, and by tests.
type MemoryUserStore struct {
	mu     sync.RWMutex
	users  map[string]*UserRecord
	nextID int64
}

// NewMemoryUserStore creates an empty store
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]*UserRecord)}
}

// CreateUser implements UserStore
func (m *MemoryUserStore) CreateUser(ctx context.Context, username, passwordHash string) (*UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[username]; ok {
		return nil, mdwerror.Newf("user %q already exists", username).
			WithCode(mdwerror.CodeDuplicateEntry).WithDetail("username", username)
	}
	m.nextID++
	rec := &UserRecord{ID: m.nextID, Username: username, PasswordHash: passwordHash, CreatedAt: time.Now()}
	m.users[username] = rec
	copied := *rec
	return &copied, nil
}

// FindUser implements UserStore
func (m *MemoryUserStore) FindUser(ctx context.Context, username string) (*UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.users[username]
	if !ok {
		return nil, mdwerror.NotFound("user %q not found", username)
	}
	copied := *rec
	return &copied, nil
}
