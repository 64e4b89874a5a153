package repository

import (
	"context"
	"sync"
	"time"

	"resume-hub/auth-service/internal/session/domain"
)

// MemoryStore is an in-memory Store used by tests and local development.
// Maps are guarded by one mutex; record-level atomicity matches the contract.
type MemoryStore struct {
	mu            sync.Mutex
	sessions      map[string]*domain.Session
	refreshTokens map[string]*domain.RefreshTokenRecord
	revoked       map[string]*domain.RevocationEntry

	failing bool // when set, every call reports ErrUnavailable
}

// NewMemoryStore returns an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:      make(map[string]*domain.Session),
		refreshTokens: make(map[string]*domain.RefreshTokenRecord),
		revoked:       make(map[string]*domain.RevocationEntry),
	}
}

// SetFailing makes every subsequent call fail with ErrUnavailable, for
// exercising the fail-closed paths in tests.
func (m *MemoryStore) SetFailing(failing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing = failing
}

func (m *MemoryStore) CreateSession(ctx context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return ErrUnavailable
	}
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *MemoryStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return nil, ErrUnavailable
	}
	if s, ok := m.sessions[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (m *MemoryStore) TouchSession(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return ErrUnavailable
	}
	if s, ok := m.sessions[id]; ok {
		s.LastActivityAt = at
	}
	return nil
}

func (m *MemoryStore) EndSession(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return ErrUnavailable
	}
	if s, ok := m.sessions[id]; ok && s.EndedAt == nil {
		t := at
		s.EndedAt = &t
	}
	return nil
}

func (m *MemoryStore) StoreRefreshToken(ctx context.Context, rec *domain.RefreshTokenRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return ErrUnavailable
	}
	cp := *rec
	m.refreshTokens[rec.TokenHash] = &cp
	return nil
}

func (m *MemoryStore) FindRefreshToken(ctx context.Context, tokenHash string) (*domain.RefreshTokenRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return nil, ErrUnavailable
	}
	if rec, ok := m.refreshTokens[tokenHash]; ok {
		cp := *rec
		return &cp, nil
	}
	return nil, nil
}

func (m *MemoryStore) MarkRefreshTokenUsed(ctx context.Context, tokenHash string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return ErrUnavailable
	}
	if rec, ok := m.refreshTokens[tokenHash]; ok {
		rec.LastUsedAt = at
	}
	return nil
}

func (m *MemoryStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return false, ErrUnavailable
	}
	_, ok := m.revoked[tokenID]
	return ok, nil
}

func (m *MemoryStore) Revoke(ctx context.Context, tokenID string, expiresAt, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return ErrUnavailable
	}
	if _, ok := m.revoked[tokenID]; ok {
		return nil
	}
	m.revoked[tokenID] = &domain.RevocationEntry{TokenID: tokenID, ExpiresAt: expiresAt, RevokedAt: at}
	return nil
}

func (m *MemoryStore) PurgeExpiredRevocations(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return 0, ErrUnavailable
	}
	var n int64
	for id, e := range m.revoked {
		if e.ExpiresAt.Before(now) {
			delete(m.revoked, id)
			n++
		}
	}
	return n, nil
}
