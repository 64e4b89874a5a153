package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Decode failure kinds. Callers that must not distinguish sub-failures
// externally (login, gate) collapse these into a generic unauthorized result.
var (
	// ErrTokenMalformed is returned when the token is not a well-formed JWT.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrSignatureInvalid is returned when the signature does not verify against the configured secret.
	ErrSignatureInvalid = errors.New("token signature invalid")
	// ErrClaimsIncomplete is returned when a verified token is missing required claims or carries wrong iss/aud.
	ErrClaimsIncomplete = errors.New("token claims incomplete")
)

// TokenType distinguishes access tokens from refresh tokens on the wire.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims is the claim set carried by every issued token.
type Claims struct {
	jwt.RegisteredClaims
	TokenType TokenType `json:"token_type"`
	SessionID string    `json:"session_id"`
}

// TokenCodec signs and verifies HS256 JWTs with a shared secret.
// Decode verifies the signature and claim structure only; expiry and
// revocation are checked by callers so the codec stays pure and testable
// without a clock or store.
type TokenCodec struct {
	secret   []byte
	issuer   string
	audience string
}

// NewTokenCodec returns a TokenCodec signing with the given HMAC secret.
// issuer and audience are set on every token and required on decode.
func NewTokenCodec(secret []byte, issuer, audience string) *TokenCodec {
	return &TokenCodec{secret: secret, issuer: issuer, audience: audience}
}

// Issue signs a token of the given type for the user and session.
// Returns the token string, its jti, and the expiry. Signing failures
// indicate misconfiguration and are fatal for the caller.
func (c *TokenCodec) Issue(userID, sessionID string, typ TokenType, now time.Time, ttl time.Duration) (token, jti string, expiresAt time.Time, err error) {
	jti, err = generateJTI()
	if err != nil {
		return "", "", time.Time{}, err
	}
	now = now.UTC()
	expiresAt = now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TokenType: typ,
		SessionID: sessionID,
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token, err = t.SignedString(c.secret)
	return token, jti, expiresAt, err
}

// Decode verifies the token's signature and returns its claims.
// Expiry is deliberately not validated here: logout must be able to recover
// the jti of an already-expired token, and the gate compares exp against an
// injected clock. Returns ErrTokenMalformed, ErrSignatureInvalid, or
// ErrClaimsIncomplete.
func (c *TokenCodec) Decode(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrSignatureInvalid
		}
		return c.secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		// A rejected signing method surfaces as ErrTokenUnverifiable wrapping
		// the keyfunc error, not as ErrTokenSignatureInvalid.
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrTokenUnverifiable) {
			return nil, ErrSignatureInvalid
		}
		return nil, ErrTokenMalformed
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrTokenMalformed
	}
	if err := c.checkStructure(claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (c *TokenCodec) checkStructure(claims *Claims) error {
	if claims.ID == "" || claims.Subject == "" || claims.SessionID == "" {
		return ErrClaimsIncomplete
	}
	if claims.TokenType != TokenTypeAccess && claims.TokenType != TokenTypeRefresh {
		return ErrClaimsIncomplete
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return ErrClaimsIncomplete
	}
	if claims.Issuer != c.issuer {
		return ErrClaimsIncomplete
	}
	for _, a := range claims.Audience {
		if a == c.audience {
			return nil
		}
	}
	return ErrClaimsIncomplete
}

// generateJTI returns a 128-bit random token identifier, hex-encoded.
func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
