package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T, store Store) *Service {
	t.Helper()
	codec, err := NewCodec(testSecret)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	svc, err := NewService(store, codec, NewHasher(bcrypt.MinCost))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func mustCreate(t *testing.T, svc *Service, p CreateUserParams) (Identity, string) {
	t.Helper()
	identity, apiKey, err := svc.CreateUser(context.Background(), p)
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", p.Email, err)
	}
	return identity, apiKey
}

func TestLoginHappyPath(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	identity, _ := mustCreate(t, svc, CreateUserParams{
		Email:    "Alice@Co.com",
		Password: "pw123456",
		Role:     RoleTenantUser,
		TenantID: "acme",
	})
	if identity.Email != "alice@co.com" {
		t.Fatalf("email not normalised: %s", identity.Email)
	}

	result, err := svc.Login(ctx, "  ALICE@co.com ", "pw123456")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if result.Identity.ID != identity.ID {
		t.Fatalf("login resolved wrong account: %s", result.Identity.ID)
	}
	if result.Token == "" || !result.ExpiresAt.After(time.Now()) {
		t.Fatalf("expected fresh token, got %q exp=%v", result.Token, result.ExpiresAt)
	}

	rec, err := store.FindActiveByID(ctx, identity.ID)
	if err != nil {
		t.Fatalf("FindActiveByID: %v", err)
	}
	if rec.LastLoginAt.IsZero() {
		t.Fatal("last_login_at was not stamped")
	}
}

func TestLoginEnumerationResistance(t *testing.T) {
	svc := newTestService(t, NewMemoryStore())
	ctx := context.Background()

	mustCreate(t, svc, CreateUserParams{
		Email:    "real@x.com",
		Password: "pw123456",
		Role:     RoleTenantUser,
		TenantID: "acme",
	})

	_, unknownErr := svc.Login(ctx, "unknown@x.com", "anything")
	_, wrongErr := svc.Login(ctx, "real@x.com", "wrongpassword")

	if !errors.Is(unknownErr, ErrInvalidCredentials) || !errors.Is(wrongErr, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials twice, got %v / %v", unknownErr, wrongErr)
	}
	if unknownErr.Error() != wrongErr.Error() {
		t.Fatalf("error messages differ: %q vs %q", unknownErr.Error(), wrongErr.Error())
	}
}

type lastLoginFailingStore struct {
	Store
}

func (s lastLoginFailingStore) UpdateLastLogin(ctx context.Context, id string) error {
	return errors.New("store unavailable")
}

func TestLoginSurvivesLastLoginFailure(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(t, lastLoginFailingStore{store})

	mustCreate(t, svc, CreateUserParams{
		Email:    "alice@co.com",
		Password: "pw123456",
		Role:     RoleTenantUser,
		TenantID: "acme",
	})

	if _, err := svc.Login(context.Background(), "alice@co.com", "pw123456"); err != nil {
		t.Fatalf("login must not fail on last_login update: %v", err)
	}
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	identity, _ := mustCreate(t, svc, CreateUserParams{
		Email:    "alice@co.com",
		Password: "pw123456",
		Role:     RoleTenantUser,
		TenantID: "acme",
	})
	if err := svc.Deactivate(ctx, identity.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if _, err := svc.Login(ctx, "alice@co.com", "pw123456"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	svc := newTestService(t, NewMemoryStore())
	ctx := context.Background()

	mustCreate(t, svc, CreateUserParams{
		Email:    "alice@co.com",
		Password: "pw123456",
		Role:     RoleTenantUser,
		TenantID: "acme",
	})
	_, _, err := svc.CreateUser(ctx, CreateUserParams{
		Email:    "ALICE@CO.COM",
		Password: "other-password",
		Role:     RoleTenantUser,
		TenantID: "acme",
	})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestCreateUserPermissionDefaults(t *testing.T) {
	svc := newTestService(t, NewMemoryStore())

	identity, _ := mustCreate(t, svc, CreateUserParams{
		Email:       "bob@co.com",
		Password:    "pw123456",
		Role:        RoleTenantUser,
		TenantID:    "acme",
		Permissions: []string{PermUsersRead},
	})
	for _, capability := range []string{PermUsersRead, PermSchedulerRead, PermStatsRead} {
		if !identity.Permissions.Has(capability) {
			t.Fatalf("expected %q in effective permissions", capability)
		}
	}
	if identity.Permissions.Has(PermSchedulerWrite) {
		t.Fatal("tenant user must not gain write capabilities by default")
	}

	unknown, _ := mustCreate(t, svc, CreateUserParams{
		Email:    "carol@co.com",
		Password: "pw123456",
		Role:     Role("superuser"),
		TenantID: "acme",
	})
	if unknown.Role != RoleReadOnly {
		t.Fatalf("unknown role must degrade to readonly, got %s", unknown.Role)
	}
	if unknown.Permissions.Has(PermUsersWrite) {
		t.Fatal("unknown role must not receive write capabilities")
	}
}

func TestCreateUserRequiresTenantForNonAdmin(t *testing.T) {
	svc := newTestService(t, NewMemoryStore())
	ctx := context.Background()

	if _, _, err := svc.CreateUser(ctx, CreateUserParams{
		Email:    "dave@co.com",
		Password: "pw123456",
		Role:     RoleTenantUser,
	}); err == nil {
		t.Fatal("expected error for tenant user without tenant")
	}
	if _, _, err := svc.CreateUser(ctx, CreateUserParams{
		Email:    "root@co.com",
		Password: "pw123456",
		Role:     RoleAdmin,
	}); err != nil {
		t.Fatalf("admin without tenant must be allowed: %v", err)
	}
}

func TestVerifyAPIKeyResolvesSameIdentity(t *testing.T) {
	svc := newTestService(t, NewMemoryStore())
	ctx := context.Background()

	created, apiKey := mustCreate(t, svc, CreateUserParams{
		Email:    "alice@co.com",
		Password: "pw123456",
		Role:     RoleTenantUser,
		TenantID: "acme",
	})
	if apiKey == "" {
		t.Fatal("expected api key at registration")
	}

	viaKey, err := svc.VerifyAPIKey(ctx, apiKey)
	if err != nil {
		t.Fatalf("VerifyAPIKey: %v", err)
	}
	viaLogin, err := svc.Login(ctx, "alice@co.com", "pw123456")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if viaKey.ID != created.ID || viaKey.ID != viaLogin.Identity.ID {
		t.Fatalf("identities diverge: %s / %s / %s", created.ID, viaKey.ID, viaLogin.Identity.ID)
	}
	if viaKey.Role != viaLogin.Identity.Role || viaKey.TenantID != viaLogin.Identity.TenantID {
		t.Fatal("api key identity differs from login identity")
	}

	if _, err := svc.VerifyAPIKey(ctx, "no-such-key"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.VerifyAPIKey(ctx, ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for empty key, got %v", err)
	}
}

func TestAuthenticateTokenReChecksAccount(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	identity, _ := mustCreate(t, svc, CreateUserParams{
		Email:    "alice@co.com",
		Password: "pw123456",
		Role:     RoleTenantUser,
		TenantID: "acme",
	})
	result, err := svc.Login(ctx, "alice@co.com", "pw123456")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	authed, err := svc.AuthenticateToken(ctx, result.Token)
	if err != nil {
		t.Fatalf("AuthenticateToken: %v", err)
	}
	if authed.ID != identity.ID {
		t.Fatalf("unexpected identity: %s", authed.ID)
	}

	// Deactivation must end the token's usefulness before expiry.
	if err := svc.Deactivate(ctx, identity.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if _, err := svc.AuthenticateToken(ctx, result.Token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid after deactivation, got %v", err)
	}
}

func TestCheckPermission(t *testing.T) {
	member := Identity{ID: "u1", Role: RoleTenantUser, TenantID: "acme",
		Permissions: NewPermissionSet(PermSchedulerRead)}
	admin := Identity{ID: "root", Role: RoleAdmin}
	wildcarded := Identity{ID: "u2", Role: RoleTenantUser, TenantID: "acme",
		Permissions: NewPermissionSet(Wildcard)}

	if err := CheckPermission(member, PermSchedulerRead); err != nil {
		t.Fatalf("granted capability rejected: %v", err)
	}
	err := CheckPermission(member, PermUsersWrite)
	if !errors.Is(err, ErrMissingPermission) {
		t.Fatalf("expected ErrMissingPermission, got %v", err)
	}
	if got := err.Error(); got != "missing permission: users:write" {
		t.Fatalf("error must name the capability, got %q", got)
	}
	if err := CheckPermission(admin, PermUsersDelete); err != nil {
		t.Fatalf("admin bypass failed: %v", err)
	}
	if err := CheckPermission(wildcarded, "made:up"); err != nil {
		t.Fatalf("wildcard bypass failed: %v", err)
	}
}

func TestCheckTenantAccess(t *testing.T) {
	member := Identity{ID: "u1", Role: RoleTenantUser, TenantID: "A",
		Permissions: NewPermissionSet(Wildcard)}
	admin := Identity{ID: "root", Role: RoleAdmin}

	if err := CheckTenantAccess(member, "A"); err != nil {
		t.Fatalf("own tenant rejected: %v", err)
	}
	// Capability presence never overrides tenant isolation.
	if err := CheckTenantAccess(member, "B"); !errors.Is(err, ErrTenantMismatch) {
		t.Fatalf("expected ErrTenantMismatch, got %v", err)
	}
	if err := CheckTenantAccess(member, ""); !errors.Is(err, ErrTenantMismatch) {
		t.Fatalf("expected ErrTenantMismatch for empty target, got %v", err)
	}
	for _, tenant := range []string{"A", "B", "anything"} {
		if err := CheckTenantAccess(admin, tenant); err != nil {
			t.Fatalf("admin must pass for %q: %v", tenant, err)
		}
	}
}
