// Package service implements the authentication service: login, refresh, and
// logout over the token codec, credential hasher, session store, and user
// directory. Each call is a short transaction; the session store is the only
// shared mutable resource.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"resume-hub/auth-service/internal/audit"
	"resume-hub/auth-service/internal/clock"
	"resume-hub/auth-service/internal/security"
	sessiondomain "resume-hub/auth-service/internal/session/domain"
	sessionrepo "resume-hub/auth-service/internal/session/repository"
	userrepo "resume-hub/auth-service/internal/user/repository"
)

// Sentinel errors for the auth service; the HTTP layer maps them to statuses.
// Login reports ErrInvalidCredentials for both unknown email and wrong
// password so callers cannot enumerate accounts.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrInvalidToken       = errors.New("invalid token")
	ErrWrongTokenType     = errors.New("wrong token type")
	ErrTokenRevoked       = errors.New("token revoked")
	ErrTokenExpired       = errors.New("token expired")
	ErrUserUnavailable    = errors.New("user missing or inactive")
)

// ClientMeta is optional per-login client information recorded on the session.
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

// LoginResult holds the raw token pair issued at login. Raw tokens exist only
// in this result; the store keeps the refresh token's hash.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // access-token TTL in seconds
	SessionID    string
	UserID       string
}

// RefreshResult holds the access token issued by a refresh call. The refresh
// token itself is not rotated.
type RefreshResult struct {
	AccessToken string
	ExpiresIn   int64
	SessionID   string
	UserID      string
}

// AuthService orchestrates login, refresh, and logout.
type AuthService struct {
	users         userrepo.Directory
	store         sessionrepo.Store
	hasher        *security.Hasher
	codec         *security.TokenCodec
	clk           clock.Clock
	auditor       audit.Recorder
	logger        *slog.Logger
	accessTTL     time.Duration
	refreshTTL    time.Duration
	rememberMeTTL time.Duration
}

// NewAuthService returns an AuthService with the given dependencies.
// auditor may be nil; clk defaults to the system clock when nil.
func NewAuthService(
	users userrepo.Directory,
	store sessionrepo.Store,
	hasher *security.Hasher,
	codec *security.TokenCodec,
	clk clock.Clock,
	auditor audit.Recorder,
	logger *slog.Logger,
	accessTTL, refreshTTL, rememberMeTTL time.Duration,
) *AuthService {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if rememberMeTTL <= 0 {
		rememberMeTTL = refreshTTL
	}
	return &AuthService{
		users:         users,
		store:         store,
		hasher:        hasher,
		codec:         codec,
		clk:           clk,
		auditor:       auditor,
		logger:        logger,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		rememberMeTTL: rememberMeTTL,
	}
}

// Login authenticates with email/password, creates a session, and returns an
// access/refresh pair sharing the new session id. rememberMe extends the
// refresh TTL. Store failures surface as sessionrepo.ErrUnavailable and deny
// the login (fail closed).
func (s *AuthService) Login(ctx context.Context, email, password string, rememberMe bool, meta ClientMeta) (*LoginResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		// Same error as a wrong password; no account enumeration.
		return nil, ErrInvalidCredentials
	}
	if !user.Active {
		return nil, ErrAccountDisabled
	}
	if err := s.hasher.Verify(user.PasswordHash, []byte(password)); err != nil {
		s.record(ctx, audit.ActionLoginFailure, user.ID, "")
		return nil, ErrInvalidCredentials
	}

	now := s.clk.Now()
	sessionID := uuid.New().String()

	refreshTTL := s.refreshTTL
	if rememberMe {
		refreshTTL = s.rememberMeTTL
	}
	accessToken, _, _, err := s.codec.Issue(user.ID, sessionID, security.TokenTypeAccess, now, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refreshToken, _, refreshExp, err := s.codec.Issue(user.ID, sessionID, security.TokenTypeRefresh, now, refreshTTL)
	if err != nil {
		return nil, err
	}

	sess := &sessiondomain.Session{
		ID:             sessionID,
		UserID:         user.ID,
		CreatedAt:      now,
		LastActivityAt: now,
		IPAddress:      meta.IPAddress,
		UserAgent:      meta.UserAgent,
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	rec := &sessiondomain.RefreshTokenRecord{
		TokenHash:  security.HashRefreshToken(refreshToken),
		SessionID:  sessionID,
		UserID:     user.ID,
		ExpiresAt:  refreshExp,
		CreatedAt:  now,
		LastUsedAt: now,
	}
	if err := s.store.StoreRefreshToken(ctx, rec); err != nil {
		return nil, err
	}

	s.record(ctx, audit.ActionLogin, user.ID, sessionID)
	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
		SessionID:    sessionID,
		UserID:       user.ID,
	}, nil
}

// Refresh validates the refresh token and issues a new access token on the
// same session. The refresh token is not rotated: presenting it again before
// expiry succeeds again.
func (s *AuthService) Refresh(ctx context.Context, rawRefreshToken string) (*RefreshResult, error) {
	if rawRefreshToken == "" {
		return nil, ErrInvalidToken
	}
	claims, err := s.codec.Decode(rawRefreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != security.TokenTypeRefresh {
		return nil, ErrWrongTokenType
	}

	revoked, err := s.store.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	// Store lookup by hash is defense in depth beyond the signature check: it
	// rejects tokens that verify but were never issued by this deployment.
	rec, err := s.store.FindRefreshToken(ctx, security.HashRefreshToken(rawRefreshToken))
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrInvalidToken
	}

	now := s.clk.Now()
	if !now.Before(rec.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	user, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.Active {
		return nil, ErrUserUnavailable
	}

	// Activity bookkeeping is best-effort; a failed touch must not deny the refresh.
	if err := s.store.MarkRefreshTokenUsed(ctx, rec.TokenHash, now); err != nil {
		s.logger.Warn("refresh: mark used failed", "err", err)
	}
	if err := s.store.TouchSession(ctx, rec.SessionID, now); err != nil {
		s.logger.Warn("refresh: touch session failed", "err", err)
	}

	accessToken, _, _, err := s.codec.Issue(user.ID, rec.SessionID, security.TokenTypeAccess, now, s.accessTTL)
	if err != nil {
		return nil, err
	}

	s.record(ctx, audit.ActionRefresh, user.ID, rec.SessionID)
	return &RefreshResult{
		AccessToken: accessToken,
		ExpiresIn:   int64(s.accessTTL.Seconds()),
		SessionID:   rec.SessionID,
		UserID:      user.ID,
	}, nil
}

// Logout revokes both tokens and ends the session. It decodes best-effort so
// already-expired tokens still surrender their jti, tolerates store failures,
// and never returns an error: a client must always be able to clear local
// state.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	now := s.clk.Now()
	sessionID := ""
	userID := ""

	for _, raw := range []string{accessToken, refreshToken} {
		if raw == "" {
			continue
		}
		claims, err := s.codec.Decode(raw)
		if err != nil {
			continue
		}
		if err := s.store.Revoke(ctx, claims.ID, claims.ExpiresAt.Time, now); err != nil {
			s.logger.Warn("logout: revoke failed", "jti", claims.ID, "err", err)
		}
		if sessionID == "" {
			sessionID = claims.SessionID
			userID = claims.Subject
		}
	}

	if sessionID != "" {
		if err := s.store.EndSession(ctx, sessionID, now); err != nil {
			s.logger.Warn("logout: end session failed", "session_id", sessionID, "err", err)
		}
		s.record(ctx, audit.ActionLogout, userID, sessionID)
	}
	return nil
}

func (s *AuthService) record(ctx context.Context, action, userID, sessionID string) {
	if s.auditor == nil {
		return
	}
	s.auditor.Record(ctx, audit.Event{
		Action:    action,
		UserID:    userID,
		SessionID: sessionID,
	})
}
