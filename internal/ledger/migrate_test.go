package ledger

import (
	"database/sql"
	"sort"
	"testing"

	_ "modernc.org/sqlite"
)

func TestMigrateSQLiteIdempotent(t *testing.T) {
	db, err := sql.Open("sqlite", "file:migrate_idempotent?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if err := Migrate(db, DBSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := Migrate(db, DBSQLite); err != nil {
		t.Fatalf("migrate second: %v", err)
	}

	for _, table := range []string{"keys", "policy_versions", "features", "decisions", "receipts", "review_tasks", "reviews", "notification_outbox"} {
		var name string
		if err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name); err != nil {
			t.Fatalf("expected %s table: %v", table, err)
		}
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 migrations applied, got %d", count)
	}
}

func TestMigrateRejectsNilDB(t *testing.T) {
	if err := Migrate(nil, DBSQLite); err == nil {
		t.Fatalf("expected error for nil db")
	}
}

func TestMigrationDialects(t *testing.T) {
	d, err := dialectFor(DBPostgres)
	if err != nil {
		t.Fatalf("expected postgres dialect, got %v", err)
	}
	if d.dir != "migrations/postgres" || d.table != "geogate_schema_migrations" {
		t.Fatalf("unexpected postgres dialect: %s %s", d.dir, d.table)
	}
	if _, err := dialectFor(DBDriver("nope")); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
	if err := Migrate(&sql.DB{}, DBDriver("nope")); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}

	for _, driver := range []DBDriver{DBSQLite, DBPostgres} {
		files, err := listMigrationFiles(dialects[driver].dir)
		if err != nil {
			t.Fatalf("list migrations: %v", err)
		}
		if len(files) != 3 || !sort.StringsAreSorted(files) {
			t.Fatalf("expected three ordered migrations for %s, got %v", driver, files)
		}
	}
}
