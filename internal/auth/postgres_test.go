package auth

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func recordRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "email", "password_hash", "role", "tenant_id",
		"permissions", "api_key", "active", "created_at", "last_login_at",
	})
}

func TestPGStoreFindActiveByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(`select .* from users where email = \$1 and active`).
		WithArgs("alice@co.com").
		WillReturnRows(recordRows().AddRow(
			"u1", "alice@co.com", "hash", "tenant_user", "acme",
			`["scheduler:read"]`, "key-1", true, created, nil,
		))

	store := NewPGStore(db)
	rec, err := store.FindActiveByEmail(context.Background(), " Alice@Co.com ")
	if err != nil {
		t.Fatalf("FindActiveByEmail: %v", err)
	}
	if rec.ID != "u1" || rec.TenantID != "acme" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if !rec.LastLoginAt.IsZero() {
		t.Fatalf("null last_login_at must scan to zero time, got %v", rec.LastLoginAt)
	}
	if !rec.Identity().Permissions.Has(PermSchedulerRead) {
		t.Fatal("permissions not carried through")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGStoreFindActiveByIDMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`select .* from users where id = \$1 and active`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	store := NewPGStore(db)
	if _, err := store.FindActiveByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGStoreNullableColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(`select .* from users where api_key = \$1 and active`).
		WithArgs("key-9").
		WillReturnRows(recordRows().AddRow(
			"root", "root@co.com", "hash", "admin", nil,
			nil, "key-9", true, created, created,
		))

	store := NewPGStore(db)
	rec, err := store.FindActiveByAPIKey(context.Background(), "key-9")
	if err != nil {
		t.Fatalf("FindActiveByAPIKey: %v", err)
	}
	if rec.TenantID != "" {
		t.Fatalf("null tenant must scan to empty, got %q", rec.TenantID)
	}
	if got := rec.Identity().Permissions.Sorted(); len(got) != 0 {
		t.Fatalf("null permissions must degrade to empty set, got %v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGStoreInsertAndExists(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectExec(`insert into users`).
		WithArgs("u1", "alice@co.com", "hash", "tenant_user", "acme",
			`["scheduler:read"]`, "key-1", true, created).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`select exists`).
		WithArgs("alice@co.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	store := NewPGStore(db)
	err = store.Insert(context.Background(), &Record{
		ID: "u1", Email: "alice@co.com", PasswordHash: "hash",
		Role: "tenant_user", TenantID: "acme",
		Permissions: `["scheduler:read"]`, APIKey: "key-1",
		Active: true, CreatedAt: created,
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	exists, err := store.ExistsByEmail(context.Background(), "alice@co.com")
	if err != nil || !exists {
		t.Fatalf("ExistsByEmail = %v, %v", exists, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGStoreUpdateLastLoginAndSetActive(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`update users set last_login_at = now\(\)`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`update users set active = \$2`).
		WithArgs("u1", false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`update users set active = \$2`).
		WithArgs("missing", false).
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewPGStore(db)
	if err := store.UpdateLastLogin(context.Background(), "u1"); err != nil {
		t.Fatalf("UpdateLastLogin: %v", err)
	}
	if err := store.SetActive(context.Background(), "u1", false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if err := store.SetActive(context.Background(), "missing", false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
