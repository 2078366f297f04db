package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinAPIKeyBytes is the smallest allowed entropy for generated API keys.
const MinAPIKeyBytes = 16

// DefaultAPIKeyBytes is the entropy used when no length is configured.
const DefaultAPIKeyBytes = 32

// Hasher wraps bcrypt with a configurable cost. The cost is a deliberate
// throughput ceiling: tens of milliseconds per call at the default.
type Hasher struct {
	cost int
}

// NewHasher constructs a Hasher. Costs outside bcrypt's supported range are
// clamped; zero selects the library default.
func NewHasher(cost int) Hasher {
	switch {
	case cost == 0:
		cost = bcrypt.DefaultCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return Hasher{cost: cost}
}

// Hash derives a salted one-way hash. Two calls on the same input produce
// different strings because the salt is embedded.
func (h Hasher) Hash(password string) (string, error) {
	if len(password) == 0 {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify compares plaintext against a stored hash using bcrypt's own
// constant-time comparator.
func (h Hasher) Verify(hash, password string) error {
	if hash == "" {
		return errors.New("password hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// GenerateAPIKey produces an opaque credential from the crypto-secure random
// source: n random bytes, base64url-encoded. n below the minimum is an error,
// n of zero selects the default.
func GenerateAPIKey(n int) (string, error) {
	if n == 0 {
		n = DefaultAPIKeyBytes
	}
	if n < MinAPIKeyBytes {
		return "", fmt.Errorf("api key length %d below minimum %d", n, MinAPIKeyBytes)
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
