package auth

import (
	"context"
	"database/sql"
	"time"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store on PostgreSQL via database/sql (pgx stdlib driver).
type PGStore struct {
	db *sql.DB
}

// NewPGStore wraps an open connection pool.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const recordColumns = `id, email, password_hash, role, tenant_id, permissions, api_key, active, created_at, last_login_at`

func (s *PGStore) FindActiveByEmail(ctx context.Context, email string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+recordColumns+` from users where email = $1 and active`, NormalizeEmail(email))
	return scanRecord(row)
}

func (s *PGStore) FindActiveByID(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+recordColumns+` from users where id = $1 and active`, id)
	return scanRecord(row)
}

func (s *PGStore) FindActiveByAPIKey(ctx context.Context, key string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+recordColumns+` from users where api_key = $1 and active`, key)
	return scanRecord(row)
}

func (s *PGStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`select exists(select 1 from users where email = $1)`, NormalizeEmail(email)).Scan(&exists)
	return exists, err
}

func (s *PGStore) Insert(ctx context.Context, rec *Record) error {
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, email, password_hash, role, tenant_id, permissions, api_key, active, created_at)
		 values($1,$2,$3,$4,nullif($5,''),$6,nullif($7,''),$8,$9)`,
		rec.ID, rec.Email, rec.PasswordHash, rec.Role, rec.TenantID,
		rec.Permissions, rec.APIKey, rec.Active, rec.CreatedAt,
	)
	return err
}

func (s *PGStore) UpdateLastLogin(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`update users set last_login_at = now() where id = $1`, id)
	return err
}

func (s *PGStore) SetActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`update users set active = $2 where id = $1`, id, active)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec       Record
		tenantID  sql.NullString
		perms     sql.NullString
		apiKey    sql.NullString
		lastLogin sql.NullTime
	)
	err := row.Scan(
		&rec.ID, &rec.Email, &rec.PasswordHash, &rec.Role,
		&tenantID, &perms, &apiKey, &rec.Active, &rec.CreatedAt, &lastLogin,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rec.TenantID = tenantID.String
	rec.Permissions = perms.String
	rec.APIKey = apiKey.String
	if lastLogin.Valid {
		rec.LastLoginAt = lastLogin.Time.UTC()
	} else {
		rec.LastLoginAt = time.Time{}
	}
	return &rec, nil
}
