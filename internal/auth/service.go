package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"flowdeck.io/internal/ids"
	"flowdeck.io/internal/obs"
)

const defaultTokenTTL = 15 * time.Minute

// dummyHash is a fixed bcrypt hash whose compare result is always discarded.
// Login burns a compare against it when the email is unknown so the
// unknown-email and wrong-password paths share one timing profile.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Service orchestrates credential verification, token issuance, and the
// authorization gates. It is stateless across requests: every operation
// re-derives identity from the store or a self-contained token, so it is
// safe under any number of concurrent requests. Construct once per process.
type Service struct {
	store       Store
	codec       *Codec
	hasher      Hasher
	tokenTTL    time.Duration
	apiKeyBytes int
	now         func() time.Time
}

// ServiceOption configures Service construction.
type ServiceOption func(*Service) error

// WithTokenTTL sets the access token lifetime.
func WithTokenTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl <= 0 {
			return fmt.Errorf("%w: token ttl must be positive", ErrConfig)
		}
		s.tokenTTL = ttl
		return nil
	}
}

// WithAPIKeyBytes sets the entropy of generated API keys.
func WithAPIKeyBytes(n int) ServiceOption {
	return func(s *Service) error {
		if n < MinAPIKeyBytes {
			return fmt.Errorf("%w: api key length %d below minimum %d", ErrConfig, n, MinAPIKeyBytes)
		}
		s.apiKeyBytes = n
		return nil
	}
}

// WithClock overrides the time source (tests only).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService wires the auth core. It fails fast on misconfiguration instead
// of operating insecurely.
func NewService(store Store, codec *Codec, hasher Hasher, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrConfig)
	}
	if codec == nil {
		return nil, fmt.Errorf("%w: token codec is required", ErrConfig)
	}
	s := &Service{
		store:       store,
		codec:       codec,
		hasher:      hasher,
		tokenTTL:    defaultTokenTTL,
		apiKeyBytes: DefaultAPIKeyBytes,
		now:         time.Now,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// LoginResult carries the authenticated identity and its fresh token.
type LoginResult struct {
	Identity  Identity
	Token     string
	ExpiresAt time.Time
}

// Login verifies email/password credentials and issues a token. Unknown
// email and wrong password are indistinguishable to the caller: same error
// value, same message, and a hash comparison on both paths.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		_ = s.hasher.Verify(dummyHash, password)
		return LoginResult{}, ErrInvalidCredentials
	}
	rec, err := s.store.FindActiveByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			_ = s.hasher.Verify(dummyHash, password)
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if err := s.hasher.Verify(rec.PasswordHash, password); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	// Informational timestamp; a failed update must not fail the login.
	if err := s.store.UpdateLastLogin(ctx, rec.ID); err != nil {
		obs.Warn("last_login update failed", map[string]any{"user_id": rec.ID, "error": err.Error()})
	} else {
		rec.LastLoginAt = s.now().UTC()
	}

	identity := rec.Identity()
	token, expiresAt, err := s.codec.Issue(identity, s.tokenTTL)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Identity: identity, Token: token, ExpiresAt: expiresAt}, nil
}

// CreateUserParams describes a registration request.
type CreateUserParams struct {
	Email       string
	Password    string
	Role        Role
	TenantID    string
	Permissions []string
}

// CreateUser registers a new account. Effective permissions are the explicit
// grant unioned with the role's fixed default tier. The returned API key is
// shown exactly once; only the record keeps it.
func (s *Service) CreateUser(ctx context.Context, p CreateUserParams) (Identity, string, error) {
	email := NormalizeEmail(p.Email)
	if email == "" || !strings.Contains(email, "@") {
		return Identity{}, "", errors.New("valid email is required")
	}
	if len(p.Password) < 8 {
		return Identity{}, "", errors.New("password must be at least 8 characters")
	}
	role := ParseRole(string(p.Role))
	tenantID := strings.TrimSpace(p.TenantID)
	if role != RoleAdmin && tenantID == "" {
		return Identity{}, "", errors.New("tenant_id is required for non-admin roles")
	}

	exists, err := s.store.ExistsByEmail(ctx, email)
	if err != nil {
		return Identity{}, "", err
	}
	if exists {
		return Identity{}, "", ErrDuplicateEmail
	}

	hash, err := s.hasher.Hash(p.Password)
	if err != nil {
		return Identity{}, "", err
	}
	apiKey, err := GenerateAPIKey(s.apiKeyBytes)
	if err != nil {
		return Identity{}, "", err
	}

	perms := NewPermissionSet(p.Permissions...).Union(DefaultPermissions(role))
	rec := &Record{
		ID:           ids.NewUser(),
		Email:        email,
		PasswordHash: hash,
		Role:         string(role),
		TenantID:     tenantID,
		Permissions:  encodePermissions(perms),
		APIKey:       apiKey,
		Active:       true,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.Insert(ctx, rec); err != nil {
		return Identity{}, "", err
	}
	return rec.Identity(), apiKey, nil
}

// VerifyAPIKey resolves an active account by opaque key: a direct lookup,
// not a cryptographic verification.
func (s *Service) VerifyAPIKey(ctx context.Context, key string) (Identity, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Identity{}, ErrInvalidCredentials
	}
	rec, err := s.store.FindActiveByAPIKey(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, ErrInvalidCredentials
		}
		return Identity{}, err
	}
	return rec.Identity(), nil
}

// AuthenticateToken verifies a bearer token and re-checks that the subject
// is still an active account. Tokens are never revoked individually, so
// this store round-trip is mandatory on every request: deactivation ends a
// token's usefulness even before expiry.
func (s *Service) AuthenticateToken(ctx context.Context, token string) (Identity, error) {
	claims, err := s.codec.Verify(token)
	if err != nil {
		return Identity{}, err
	}
	rec, err := s.store.FindActiveByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, ErrTokenInvalid
		}
		return Identity{}, err
	}
	// Role and permissions come from the record, not the claims, so a grant
	// change takes effect without waiting for the token to expire.
	return rec.Identity(), nil
}

// GetUserByID loads an active account's identity.
func (s *Service) GetUserByID(ctx context.Context, id string) (Identity, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Identity{}, ErrNotFound
	}
	rec, err := s.store.FindActiveByID(ctx, id)
	if err != nil {
		return Identity{}, err
	}
	return rec.Identity(), nil
}

// Deactivate retires an account: its API key stops resolving and its
// outstanding tokens fail the per-request active re-check.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrNotFound
	}
	return s.store.SetActive(ctx, id, false)
}

// CheckPermission gates a capability: admins and wildcard holders pass,
// otherwise the capability must be in the set. The returned error names the
// missing capability; that is safe to disclose.
func CheckPermission(identity Identity, capability string) error {
	if identity.IsAdmin() {
		return nil
	}
	if identity.Permissions.Has(capability) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMissingPermission, capability)
}

// CheckTenantAccess gates tenant scope: admins bypass entirely, everyone
// else must match the requested tenant exactly. The error stays generic so
// it discloses nothing about other tenants.
func CheckTenantAccess(identity Identity, tenantID string) error {
	if identity.IsAdmin() {
		return nil
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID != "" && identity.TenantID == tenantID {
		return nil
	}
	return ErrTenantMismatch
}

func encodePermissions(perms PermissionSet) string {
	data, err := perms.MarshalJSON()
	if err != nil {
		return "[]"
	}
	return string(data)
}
