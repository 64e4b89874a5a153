package repository

import (
	"context"
	"sync"

	"resume-hub/auth-service/internal/user/domain"
)

// MemoryDirectory is an in-memory Writer used by tests and local development.
type MemoryDirectory struct {
	mu      sync.RWMutex
	byID    map[string]*domain.User
	byEmail map[string]*domain.User
}

// NewMemoryDirectory returns an empty in-memory user directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		byID:    make(map[string]*domain.User),
		byEmail: make(map[string]*domain.User),
	}
}

func (d *MemoryDirectory) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if u, ok := d.byEmail[email]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (d *MemoryDirectory) FindByID(ctx context.Context, id string) (*domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if u, ok := d.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (d *MemoryDirectory) Create(ctx context.Context, u *domain.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *u
	d.byID[u.ID] = &cp
	d.byEmail[u.Email] = &cp
	return nil
}

// SetActive flips the active flag; used by tests to exercise the disabled paths.
func (d *MemoryDirectory) SetActive(id string, active bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if u, ok := d.byID[id]; ok {
		u.Active = active
	}
}
