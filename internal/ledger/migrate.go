package ledger

import (
	"database/sql"
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"
)

//go:embed migrations/*/*.sql
var migrationsFS embed.FS

type DBDriver string

const (
	DBSQLite   DBDriver = "sqlite"
	DBPostgres DBDriver = "postgres"
)

// dialect holds the per-driver SQL used to track applied migrations.
type dialect struct {
	dir       string
	table     string
	appliedAt string
	insert    string
	stamp     func(time.Time) any
}

var dialects = map[DBDriver]dialect{
	DBSQLite: {
		dir:       "migrations/sqlite",
		table:     "schema_migrations",
		appliedAt: "TEXT",
		insert:    `INSERT INTO %s(version, applied_at) VALUES(?, ?) ON CONFLICT(version) DO NOTHING`,
		stamp:     func(t time.Time) any { return t.Format(time.RFC3339) },
	},
	DBPostgres: {
		dir:       "migrations/postgres",
		table:     "geogate_schema_migrations",
		appliedAt: "TIMESTAMPTZ",
		insert:    `INSERT INTO %s(version, applied_at) VALUES($1, $2) ON CONFLICT(version) DO NOTHING`,
		stamp:     func(t time.Time) any { return t },
	},
}

func dialectFor(driver DBDriver) (dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported db driver: %s", driver)
	}
	return d, nil
}

// Migrate applies the embedded ledger schema for driver. Files run in
// lexical order, each in its own transaction together with the row that
// marks it applied, so a rerun skips what already succeeded.
func Migrate(db *sql.DB, driver DBDriver) error {
	if db == nil {
		return fmt.Errorf("missing db")
	}
	d, err := dialectFor(driver)
	if err != nil {
		return err
	}
	createTable := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  version TEXT PRIMARY KEY,\n  applied_at %s NOT NULL\n)", d.table, d.appliedAt)
	if _, err := db.Exec(createTable); err != nil {
		return fmt.Errorf("create %s: %w", d.table, err)
	}

	files, err := listMigrationFiles(d.dir)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, file := range files {
		if err := applyMigration(db, d, file, now); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(db *sql.DB, d dialect, file string, now time.Time) error {
	version := strings.TrimSuffix(path.Base(file), ".sql")
	contents, err := migrationsFS.ReadFile(file)
	if err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	res, err := tx.Exec(fmt.Sprintf(d.insert, d.table), version, d.stamp(now))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %s: %w", version, err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.Exec(string(contents)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("apply migration %s: %w", version, err)
	}
	return tx.Commit()
}

func listMigrationFiles(dir string) ([]string, error) {
	entries, err := migrationsFS.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			out = append(out, path.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}
