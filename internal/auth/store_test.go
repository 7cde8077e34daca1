package auth

import (
	"context"
	"sync"
	"time"

	"github.com/KromaEnergia/api-guias/internal/apperr"
	"github.com/KromaEnergia/api-guias/internal/models"
	"github.com/google/uuid"
)

// memStore is an in-memory CredentialStore.
type memStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newMemStore() *memStore {
	return &memStore{users: map[uuid.UUID]*models.User{}}
}

func (m *memStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (m *memStore) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return apperr.ErrDuplicate
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memStore) SetRefreshHash(_ context.Context, id uuid.UUID, hash *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return apperr.ErrNotFound
	}
	if hash == nil {
		u.RefreshTokenHash = nil
		return nil
	}
	h := *hash
	u.RefreshTokenHash = &h
	return nil
}

func (m *memStore) SwapRefreshHash(_ context.Context, id uuid.UUID, expected, next string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.RefreshTokenHash == nil || *u.RefreshTokenHash != expected {
		return false, nil
	}
	u.RefreshTokenHash = &next
	return true, nil
}

func (m *memStore) hash(id uuid.UUID) *string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u.RefreshTokenHash
	}
	return nil
}

func testTokenConfig() TokenConfig {
	return TokenConfig{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	}
}
