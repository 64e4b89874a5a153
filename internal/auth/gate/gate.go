// Package gate validates the bearer token on every protected request. The
// check is an explicit ordered list of stages, each passing claims forward or
// stopping with a terminal kind, so every stage is unit-testable on its own.
package gate

import (
	"context"
	"errors"
	"strings"

	"resume-hub/auth-service/internal/clock"
	"resume-hub/auth-service/internal/security"
	sessionrepo "resume-hub/auth-service/internal/session/repository"
	userdomain "resume-hub/auth-service/internal/user/domain"
	userrepo "resume-hub/auth-service/internal/user/repository"
)

// Failure kinds. All of them map to the same unauthorized response
// externally; they stay distinct here for observability and tests.
var (
	ErrUnauthenticated = errors.New("no bearer token")
	ErrInvalidToken    = errors.New("invalid token")
	ErrWrongTokenType  = errors.New("wrong token type")
	ErrTokenRevoked    = errors.New("token revoked")
	ErrTokenExpired    = errors.New("token expired")
	ErrUserNotFound    = errors.New("user not found")
)

const bearerPrefix = "bearer "

// Identity is the admitted result of a successful check: the resolved user
// plus the validated claims.
type Identity struct {
	User   *userdomain.User
	Claims *security.Claims
}

// Gate runs the validation pipeline. Store failures pass through as
// sessionrepo.ErrUnavailable so callers fail closed rather than admitting.
type Gate struct {
	codec  *security.TokenCodec
	store  sessionrepo.Store
	users  userrepo.Directory
	clk    clock.Clock
	stages []stage
}

type stage func(ctx context.Context, c *check) error

// check is the mutable state threaded through the stages of one request.
type check struct {
	authorization string
	token         string
	claims        *security.Claims
	user          *userdomain.User
}

// New returns a Gate over the given codec, store, directory, and clock.
func New(codec *security.TokenCodec, store sessionrepo.Store, users userrepo.Directory, clk clock.Clock) *Gate {
	if clk == nil {
		clk = clock.System{}
	}
	g := &Gate{codec: codec, store: store, users: users, clk: clk}
	g.stages = []stage{
		g.extractBearer,
		g.decode,
		g.requireAccessType,
		g.checkRevocation,
		g.checkExpiry,
		g.resolveUser,
	}
	return g
}

// Authenticate runs the pipeline against the Authorization header value and
// returns the admitted identity, or the first stage's terminal error.
func (g *Gate) Authenticate(ctx context.Context, authorization string) (*Identity, error) {
	c := &check{authorization: authorization}
	for _, s := range g.stages {
		if err := s(ctx, c); err != nil {
			return nil, err
		}
	}
	return &Identity{User: c.user, Claims: c.claims}, nil
}

func (g *Gate) extractBearer(ctx context.Context, c *check) error {
	v := strings.TrimSpace(c.authorization)
	if len(v) < len(bearerPrefix) || !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ErrUnauthenticated
	}
	token := strings.TrimSpace(v[len(bearerPrefix):])
	if token == "" {
		return ErrUnauthenticated
	}
	c.token = token
	return nil
}

func (g *Gate) decode(ctx context.Context, c *check) error {
	claims, err := g.codec.Decode(c.token)
	if err != nil {
		return ErrInvalidToken
	}
	c.claims = claims
	return nil
}

// requireAccessType rejects refresh tokens presented as access tokens, so a
// stolen long-lived refresh token cannot authorize API calls directly.
func (g *Gate) requireAccessType(ctx context.Context, c *check) error {
	if c.claims.TokenType != security.TokenTypeAccess {
		return ErrWrongTokenType
	}
	return nil
}

func (g *Gate) checkRevocation(ctx context.Context, c *check) error {
	revoked, err := g.store.IsRevoked(ctx, c.claims.ID)
	if err != nil {
		return err
	}
	if revoked {
		return ErrTokenRevoked
	}
	return nil
}

func (g *Gate) checkExpiry(ctx context.Context, c *check) error {
	if !g.clk.Now().Before(c.claims.ExpiresAt.Time) {
		return ErrTokenExpired
	}
	return nil
}

func (g *Gate) resolveUser(ctx context.Context, c *check) error {
	user, err := g.users.FindByID(ctx, c.claims.Subject)
	if err != nil {
		return err
	}
	if user == nil || !user.Active {
		return ErrUserNotFound
	}
	c.user = user
	return nil
}
