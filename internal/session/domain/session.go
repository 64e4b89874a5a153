package domain

import "time"

// Session is one authenticated session, created at login and logically ended
// (not deleted) at logout.
type Session struct {
	ID             string
	UserID         string
	CreatedAt      time.Time
	LastActivityAt time.Time
	EndedAt        *time.Time // nil while the session is live
	IPAddress      string
	UserAgent      string
}

// RefreshTokenRecord binds the SHA-256 hash of a raw refresh token to its
// session. The raw token value is never persisted. One active record exists
// per session; the token is not rotated on use.
type RefreshTokenRecord struct {
	TokenHash  string
	SessionID  string
	UserID     string
	ExpiresAt  time.Time
	CreatedAt  time.Time
	LastUsedAt time.Time
}

// RevocationEntry blacklists a token id. ExpiresAt mirrors the token's own
// expiry so the entry can be purged once the token would have died anyway.
// A token whose jti appears here must never be accepted again.
type RevocationEntry struct {
	TokenID   string
	ExpiresAt time.Time
	RevokedAt time.Time
}
