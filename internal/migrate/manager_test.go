package migrate

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestListMigrationsOrdersAndFilters(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"0002_add_api_key.up.sql",
		"0001_create_users.up.sql",
		"0001_create_users.down.sql",
		"notes.txt",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("select 1;"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	names, err := listMigrations(dir)
	if err != nil {
		t.Fatalf("listMigrations: %v", err)
	}
	want := []string{"0001_create_users.up.sql", "0002_add_api_key.up.sql"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("listMigrations = %v, want %v", names, want)
	}
}

func TestListMigrationsMissingDir(t *testing.T) {
	names, err := listMigrations(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("listMigrations: %v", err)
	}
	if names != nil {
		t.Errorf("names = %v, want nil", names)
	}
}

func TestSplitStatements(t *testing.T) {
	script := `
-- schema bootstrap
create table users (id text primary key);

create index users_idx on users (id);

-- trailing comment only
`
	statements := splitStatements(script)
	if len(statements) != 2 {
		t.Fatalf("got %d statements, want 2: %q", len(statements), statements)
	}
	if statements[1] != "create index users_idx on users (id)" {
		t.Errorf("second statement = %q", statements[1])
	}
}
