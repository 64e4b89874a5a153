package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"resume-hub/auth-service/internal/session/domain"
)

// PostgresStore implements Store over a sessions/refresh_tokens/revoked_tokens schema.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore returns a session store that uses the given db for persistence.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateSession persists the session. The session must have ID set.
// ip_address and user_agent are NOT NULL columns; absent metadata is stored
// as the empty string, never as NULL.
func (s *PostgresStore) CreateSession(ctx context.Context, sess *domain.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, created_at, last_activity_at, ended_at, ip_address, user_agent)
		 VALUES ($1, $2, $3, $4, NULL, $5, $6)`,
		sess.ID, sess.UserID, sess.CreatedAt, sess.LastActivityAt,
		sess.IPAddress, sess.UserAgent)
	if err != nil {
		return unavailable("create session", err)
	}
	return nil
}

// GetSession returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (s *PostgresStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, created_at, last_activity_at, ended_at, ip_address, user_agent
		 FROM sessions WHERE id = $1`, id)
	var sess domain.Session
	var endedAt sql.NullTime
	var ip, ua sql.NullString
	err := row.Scan(&sess.ID, &sess.UserID, &sess.CreatedAt, &sess.LastActivityAt, &endedAt, &ip, &ua)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, unavailable("get session", err)
	}
	if endedAt.Valid {
		sess.EndedAt = &endedAt.Time
	}
	sess.IPAddress = ip.String
	sess.UserAgent = ua.String
	return &sess, nil
}

// TouchSession sets last_activity_at. Missing sessions are a no-op.
func (s *PostgresStore) TouchSession(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_activity_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return unavailable("touch session", err)
	}
	return nil
}

// EndSession marks the session ended. Idempotent: an already-ended session keeps its first ended_at.
func (s *PostgresStore) EndSession(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = $2 WHERE id = $1 AND ended_at IS NULL`, id, at)
	if err != nil {
		return unavailable("end session", err)
	}
	return nil
}

// StoreRefreshToken persists the refresh-token record keyed by its hash.
func (s *PostgresStore) StoreRefreshToken(ctx context.Context, rec *domain.RefreshTokenRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (token_hash, session_id, user_id, expires_at, created_at, last_used_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.TokenHash, rec.SessionID, rec.UserID, rec.ExpiresAt, rec.CreatedAt, rec.LastUsedAt)
	if err != nil {
		return unavailable("store refresh token", err)
	}
	return nil
}

// FindRefreshToken returns the record for tokenHash, or nil if absent.
func (s *PostgresStore) FindRefreshToken(ctx context.Context, tokenHash string) (*domain.RefreshTokenRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT token_hash, session_id, user_id, expires_at, created_at, last_used_at
		 FROM refresh_tokens WHERE token_hash = $1`, tokenHash)
	var rec domain.RefreshTokenRecord
	err := row.Scan(&rec.TokenHash, &rec.SessionID, &rec.UserID, &rec.ExpiresAt, &rec.CreatedAt, &rec.LastUsedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, unavailable("find refresh token", err)
	}
	return &rec, nil
}

// MarkRefreshTokenUsed sets last_used_at on the record.
func (s *PostgresStore) MarkRefreshTokenUsed(ctx context.Context, tokenHash string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET last_used_at = $2 WHERE token_hash = $1`, tokenHash, at)
	if err != nil {
		return unavailable("mark refresh token used", err)
	}
	return nil
}

// IsRevoked reports whether tokenID is in the revocation set.
func (s *PostgresStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE token_id = $1)`, tokenID).Scan(&exists)
	if err != nil {
		return false, unavailable("is revoked", err)
	}
	return exists, nil
}

// Revoke inserts a revocation entry for tokenID. Conflicts are ignored so the
// operation is idempotent.
func (s *PostgresStore) Revoke(ctx context.Context, tokenID string, expiresAt, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO revoked_tokens (token_id, expires_at, revoked_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (token_id) DO NOTHING`,
		tokenID, expiresAt, at)
	if err != nil {
		return unavailable("revoke", err)
	}
	return nil
}

// PurgeExpiredRevocations deletes entries whose mirrored expiry has passed.
func (s *PostgresStore) PurgeExpiredRevocations(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM revoked_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, unavailable("purge revocations", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}
