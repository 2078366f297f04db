package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func testIdentity() Identity {
	return Identity{
		ID:          "user-42",
		Email:       "alice@co.com",
		Role:        RoleTenantUser,
		TenantID:    "acme",
		Permissions: NewPermissionSet(PermSchedulerRead, PermStatsRead),
	}
}

func TestCodecRejectsShortSecret(t *testing.T) {
	if _, err := NewCodec([]byte("short")); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	codec, err := NewCodec(testSecret)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	identity := testIdentity()
	token, expiresAt, err := codec.Issue(identity, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expected future expiry, got %v", expiresAt)
	}

	claims, err := codec.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != identity.ID {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.TenantID != "acme" {
		t.Fatalf("unexpected tenant: %s", claims.TenantID)
	}
	if claims.Role != string(RoleTenantUser) {
		t.Fatalf("unexpected role: %s", claims.Role)
	}
	want := identity.Permissions.Sorted()
	if len(claims.Permissions) != len(want) {
		t.Fatalf("permissions not preserved: %v", claims.Permissions)
	}
	for i, p := range want {
		if claims.Permissions[i] != p {
			t.Fatalf("permissions not preserved: %v", claims.Permissions)
		}
	}
}

func TestCodecExpiry(t *testing.T) {
	codec, err := NewCodec(testSecret)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	token, _, err := codec.Issue(testIdentity(), -time.Second)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := codec.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestCodecExpiryWithClock(t *testing.T) {
	now := time.Now().UTC()
	current := now
	codec, err := NewCodec(testSecret, WithCodecClock(func() time.Time { return current }))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	token, _, err := codec.Issue(testIdentity(), time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := codec.Verify(token); err != nil {
		t.Fatalf("expected valid before expiry, got %v", err)
	}
	current = now.Add(2 * time.Minute)
	if _, err := codec.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestCodecTamperDetection(t *testing.T) {
	codec, err := NewCodec(testSecret)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	token, _, err := codec.Issue(testIdentity(), time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	segments := strings.Split(token, ".")
	if len(segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segments))
	}
	for i, segment := range segments {
		mutated := make([]string, 3)
		copy(mutated, segments)
		mutated[i] = flipChar(segment)
		_, err := codec.Verify(strings.Join(mutated, "."))
		if !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("segment %d: expected ErrTokenInvalid, got %v", i, err)
		}
	}

	if _, err := codec.Verify("not-a-token"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for malformed token, got %v", err)
	}
	if _, err := codec.Verify(""); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for empty token, got %v", err)
	}
}

func TestCodecRejectsForeignSignature(t *testing.T) {
	codec, err := NewCodec(testSecret)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	other, err := NewCodec([]byte("ffffffffffffffffffffffffffffffff"))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	token, _, err := other.Issue(testIdentity(), time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := codec.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

// flipChar replaces the first character with a different base64url character
// so the segment stays decodable but its content changes.
func flipChar(s string) string {
	if s == "" {
		return "A"
	}
	replacement := byte('A')
	if s[0] == 'A' {
		replacement = 'B'
	}
	return string(replacement) + s[1:]
}
