// Package ids mints the identifiers used for credential records. They are
// prefixed ULIDs: sortable by creation time, safe in URLs, and visually
// distinguishable from tokens and API keys. Not secrets; API keys come from
// crypto/rand.
package ids

import (
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// UserPrefix marks user record identifiers.
const UserPrefix = "usr_"

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

func newULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewUser returns a fresh user record identifier.
func NewUser() string {
	return UserPrefix + newULID()
}

// IsUser reports whether id has the user identifier shape. Lookups never
// rely on this; it exists for validation at the edges.
func IsUser(id string) bool {
	if !strings.HasPrefix(id, UserPrefix) {
		return false
	}
	_, err := ulid.ParseStrict(id[len(UserPrefix):])
	return err == nil
}
