package auth

import "context"

// Store describes the external credential store consumed by the service.
// Every method is a single-row lookup or mutation; the auth core needs no
// multi-row transactions.
type Store interface {
	// FindActiveByEmail resolves an active record by normalised email.
	FindActiveByEmail(ctx context.Context, email string) (*Record, error)
	// FindActiveByID resolves an active record by id. Used on every
	// token-authenticated request to confirm the account still stands.
	FindActiveByID(ctx context.Context, id string) (*Record, error)
	// FindActiveByAPIKey resolves an active record by opaque API key.
	FindActiveByAPIKey(ctx context.Context, key string) (*Record, error)
	// ExistsByEmail reports whether any record (active or not) holds the email.
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// Insert persists a new credential record.
	Insert(ctx context.Context, rec *Record) error
	// UpdateLastLogin stamps last_login_at. Last-write-wins; informational only.
	UpdateLastLogin(ctx context.Context, id string) error
	// SetActive flips the active flag. Deactivation is how API keys and
	// outstanding tokens for an account are retired.
	SetActive(ctx context.Context, id string, active bool) error
}
