package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"resume-hub/auth-service/internal/session/domain"
)

// ErrUnavailable marks store failures. The auth service treats it as
// fail-closed: the request is denied, never admitted on a best guess.
var ErrUnavailable = errors.New("session store unavailable")

// Store persists sessions, refresh-token hashes, and the revocation set.
// All operations are atomic with respect to a single record; no in-process
// locking is needed above this interface.
type Store interface {
	CreateSession(ctx context.Context, s *domain.Session) error
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	// TouchSession updates last_activity_at. Best-effort: callers log and
	// ignore failures rather than aborting the surrounding operation.
	TouchSession(ctx context.Context, id string, at time.Time) error
	EndSession(ctx context.Context, id string, at time.Time) error

	StoreRefreshToken(ctx context.Context, rec *domain.RefreshTokenRecord) error
	// FindRefreshToken returns the record for tokenHash, or nil if absent.
	FindRefreshToken(ctx context.Context, tokenHash string) (*domain.RefreshTokenRecord, error)
	MarkRefreshTokenUsed(ctx context.Context, tokenHash string, at time.Time) error

	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	// Revoke inserts a revocation entry for tokenID. Idempotent.
	Revoke(ctx context.Context, tokenID string, expiresAt, at time.Time) error
	// PurgeExpiredRevocations removes entries whose token would have expired
	// anyway. Returns the number of rows removed.
	PurgeExpiredRevocations(ctx context.Context, now time.Time) (int64, error)
}

// unavailable wraps a driver error so errors.Is(err, ErrUnavailable) holds.
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}
