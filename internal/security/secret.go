package security

import (
	"errors"
	"os"
	"strings"
)

// MinSecretLen is the minimum HMAC secret length in bytes. HS256 secrets
// shorter than the hash output weaken the MAC.
const MinSecretLen = 32

// ErrInvalidSecret is returned when the configured signing secret is missing or too short.
var ErrInvalidSecret = errors.New("invalid signing secret")

// LoadSecret resolves the JWT signing secret from s. If s names an existing
// file the file's contents are used; otherwise s itself is the secret.
// Trailing whitespace is stripped so secrets read from files with a final
// newline compare equal to inline values.
func LoadSecret(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidSecret
	}
	if info, err := os.Stat(s); err == nil && !info.IsDir() {
		b, err := os.ReadFile(s)
		if err != nil {
			return nil, err
		}
		s = strings.TrimSpace(string(b))
	}
	if len(s) < MinSecretLen {
		return nil, ErrInvalidSecret
	}
	return []byte(s), nil
}
