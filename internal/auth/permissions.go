package auth

import (
	"encoding/json"
	"sort"
	"strings"
)

// Wildcard grants every capability.
const Wildcard = "*"

// Capability keys. The resource names mirror the control-plane surface:
// scheduler (workflow executions), tenants, users, logs, stats, system.
const (
	PermSchedulerRead   = "scheduler:read"
	PermSchedulerWrite  = "scheduler:write"
	PermSchedulerDelete = "scheduler:delete"
	PermTenantsRead     = "tenants:read"
	PermTenantsWrite    = "tenants:write"
	PermTenantsDelete   = "tenants:delete"
	PermUsersRead       = "users:read"
	PermUsersWrite      = "users:write"
	PermUsersDelete     = "users:delete"
	PermLogsRead        = "logs:read"
	PermStatsRead       = "stats:read"
	PermSystemRead      = "system:read"
	PermSystemWrite     = "system:write"
)

// PermissionSet is a canonical, order-irrelevant capability set.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from capability strings, trimming and
// collapsing duplicates.
func NewPermissionSet(caps ...string) PermissionSet {
	set := make(PermissionSet, len(caps))
	for _, c := range caps {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		set[c] = struct{}{}
	}
	return set
}

// Has reports whether the set grants the capability, honouring the wildcard.
func (s PermissionSet) Has(capability string) bool {
	if _, ok := s[Wildcard]; ok {
		return true
	}
	_, ok := s[capability]
	return ok
}

// Union returns a new set containing both operands.
func (s PermissionSet) Union(other PermissionSet) PermissionSet {
	out := make(PermissionSet, len(s)+len(other))
	for k := range s {
		out[k] = struct{}{}
	}
	for k := range other {
		out[k] = struct{}{}
	}
	return out
}

// Sorted returns the capabilities in lexicographic order.
func (s PermissionSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON renders the set as a sorted array for stable wire output.
func (s PermissionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON accepts an array of capability strings.
func (s *PermissionSet) UnmarshalJSON(data []byte) error {
	var caps []string
	if err := json.Unmarshal(data, &caps); err != nil {
		return err
	}
	*s = NewPermissionSet(caps...)
	return nil
}

// ParseStoredPermissions normalises whatever shape the store kept: a JSON
// array, a JSON string wrapping an array, or a comma-separated list. Any
// parse failure degrades to the empty set; it never grants by accident and
// never panics.
func ParseStoredPermissions(raw string) PermissionSet {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return NewPermissionSet()
	}
	if caps, ok := decodePermissionJSON([]byte(raw), 0); ok {
		return NewPermissionSet(caps...)
	}
	if !strings.HasPrefix(raw, "[") && !strings.HasPrefix(raw, "\"") {
		return NewPermissionSet(strings.Split(raw, ",")...)
	}
	return NewPermissionSet()
}

func decodePermissionJSON(data []byte, depth int) ([]string, bool) {
	if depth > 2 {
		return nil, false
	}
	var caps []string
	if err := json.Unmarshal(data, &caps); err == nil {
		return caps, true
	}
	// Some stores double-encode: a JSON string whose content is the array.
	var inner string
	if err := json.Unmarshal(data, &inner); err == nil {
		return decodePermissionJSON([]byte(inner), depth+1)
	}
	return nil, false
}

var (
	adminDefaults = NewPermissionSet(
		PermSchedulerRead, PermSchedulerWrite, PermSchedulerDelete,
		PermTenantsRead, PermTenantsWrite, PermTenantsDelete,
		PermUsersRead, PermUsersWrite, PermUsersDelete,
		PermLogsRead, PermStatsRead,
		PermSystemRead, PermSystemWrite,
	)
	readDefaults = NewPermissionSet(
		PermSchedulerRead, PermTenantsRead, PermLogsRead, PermStatsRead,
	)
)

// DefaultPermissions returns the fixed capability tier for a role. Unknown
// roles get the read-only tier.
func DefaultPermissions(role Role) PermissionSet {
	switch role {
	case RoleAdmin:
		return adminDefaults.Union(nil)
	case RoleTenantUser, RoleReadOnly:
		return readDefaults.Union(nil)
	default:
		return readDefaults.Union(nil)
	}
}
