package sqlitemigrate

import (
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestApplyMigrations_RunsInOrderOnce(t *testing.T) {
	db := openTestDB(t)
	fsys := fstest.MapFS{
		"events/0001_base.sql":  {Data: []byte("CREATE TABLE widgets (id TEXT PRIMARY KEY);")},
		"events/0002_extra.sql": {Data: []byte("ALTER TABLE widgets ADD COLUMN label TEXT;")},
	}

	if err := ApplyMigrations(db, fsys, "events"); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	// Second run must be a no-op.
	if err := ApplyMigrations(db, fsys, "events"); err != nil {
		t.Fatalf("re-apply migrations: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 recorded migrations, got %d", count)
	}

	if _, err := db.Exec("INSERT INTO widgets (id, label) VALUES ('w1', 'a')"); err != nil {
		t.Fatalf("expected migrated schema to be usable: %v", err)
	}
}

func TestApplyMigrations_NilDB(t *testing.T) {
	if err := ApplyMigrations(nil, fstest.MapFS{}, "."); err == nil {
		t.Fatal("expected error for nil db")
	}
}
