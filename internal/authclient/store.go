package authclient

import "sync"

// CredentialStore holds the client's current token pair. Implementations must
// be safe for concurrent use; the client reads and writes it from multiple
// goroutines during refresh.
type CredentialStore interface {
	// Tokens returns the current pair. Either may be empty.
	Tokens() (accessToken, refreshToken string)
	// SetTokens replaces the stored pair.
	SetTokens(accessToken, refreshToken string)
	// Clear drops both tokens.
	Clear()
}

// MemoryCredentialStore is an in-process CredentialStore.
type MemoryCredentialStore struct {
	mu      sync.RWMutex
	access  string
	refresh string
}

// NewMemoryCredentialStore returns an empty store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{}
}

func (s *MemoryCredentialStore) Tokens() (string, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access, s.refresh
}

func (s *MemoryCredentialStore) SetTokens(accessToken, refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = accessToken
	s.refresh = refreshToken
}

func (s *MemoryCredentialStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = ""
	s.refresh = ""
}
