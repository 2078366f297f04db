package auth

import (
	"strings"
	"time"
)

// Role is a closed set of account tiers. Anything outside the set resolves
// to RoleReadOnly, never to a wider tier.
type Role string

const (
	// RoleAdmin is tenant-agnostic and passes every permission and tenant check.
	RoleAdmin Role = "admin"
	// RoleTenantUser is scoped to exactly one tenant.
	RoleTenantUser Role = "tenant_user"
	// RoleReadOnly has the tenant-user read set and never gains write capabilities.
	RoleReadOnly Role = "readonly"
)

// ParseRole normalises a stored role label. Unknown labels degrade to the
// most restrictive role.
func ParseRole(raw string) Role {
	switch Role(strings.TrimSpace(strings.ToLower(raw))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleTenantUser:
		return RoleTenantUser
	case RoleReadOnly:
		return RoleReadOnly
	default:
		return RoleReadOnly
	}
}

// Identity is the authenticated principal, reconstructed per request. It
// never carries the password hash.
type Identity struct {
	ID          string        `json:"id"`
	Email       string        `json:"email"`
	Role        Role          `json:"role"`
	TenantID    string        `json:"tenant_id,omitempty"`
	Permissions PermissionSet `json:"permissions"`
	CreatedAt   time.Time     `json:"created_at"`
	LastLoginAt time.Time     `json:"last_login_at,omitzero"`
}

// IsAdmin reports whether the identity bypasses tenant scoping.
func (id Identity) IsAdmin() bool { return id.Role == RoleAdmin }

// Record is the persisted credential row. The service never holds one beyond
// a single operation.
type Record struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	TenantID     string
	Permissions  string // serialized, parsed defensively
	APIKey       string
	Active       bool
	CreatedAt    time.Time
	LastLoginAt  time.Time
}

// Identity projects the record into a request-scoped principal.
func (r Record) Identity() Identity {
	return Identity{
		ID:          r.ID,
		Email:       r.Email,
		Role:        ParseRole(r.Role),
		TenantID:    strings.TrimSpace(r.TenantID),
		Permissions: ParseStoredPermissions(r.Permissions),
		CreatedAt:   r.CreatedAt,
		LastLoginAt: r.LastLoginAt,
	}
}

// NormalizeEmail canonicalises an email for lookup and uniqueness checks.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
