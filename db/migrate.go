package db

import (
	"database/sql"
	"embed"
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/phylo/errors"
)

//go:embed sqlite/migrations/*.sql
var migrations embed.FS

const migrationsDir = "sqlite/migrations"

// Migration is one embedded schema change, keyed by its numeric filename prefix.
type Migration struct {
	Version  string
	Filename string
	Applied  bool
}

// listMigrations returns the embedded migrations in version order.
func listMigrations() ([]Migration, error) {
	entries, err := migrations.ReadDir(migrationsDir)
	if err != nil {
		return nil, errors.Wrap(err, "read migrations")
	}

	var out []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		out = append(out, Migration{
			Version:  strings.SplitN(entry.Name(), "_", 2)[0],
			Filename: entry.Name(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out, nil
}

// isApplied reports whether version is recorded in schema_migrations.
// A missing table counts as "not applied" only for the bootstrap migration.
func isApplied(db *sql.DB, m Migration) (bool, error) {
	var exists bool
	err := db.QueryRow("SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)", m.Version).Scan(&exists)
	if err != nil {
		if m.Version == "000" {
			return false, nil
		}
		return false, errors.Newf("schema_migrations table missing, but migration is not 000: %s", m.Filename)
	}
	return exists, nil
}

// MigrationStatus lists every embedded migration with its applied state.
func MigrationStatus(db *sql.DB) ([]Migration, error) {
	all, err := listMigrations()
	if err != nil {
		return nil, err
	}
	for i := range all {
		applied, err := isApplied(db, all[i])
		if err != nil {
			// Nothing has been bootstrapped yet
			return all, nil
		}
		all[i].Applied = applied
	}
	return all, nil
}

// Migrate runs all pending migrations.
// If logger is provided, logs migration progress; otherwise operates silently.
func Migrate(db *sql.DB, logger *zap.SugaredLogger) error {
	all, err := listMigrations()
	if err != nil {
		return err
	}

	applied := 0
	for _, m := range all {
		done, err := isApplied(db, m)
		if err != nil {
			return err
		}
		if done {
			if logger != nil {
				logger.Debugw("Skipping migration (already applied)", "migration", m.Filename)
			}
			continue
		}
		if err := applyMigration(db, m, logger); err != nil {
			return err
		}
		applied++
	}

	if logger != nil {
		logger.Infow("Migrations complete",
			"total_migrations", len(all),
			"applied", applied,
		)
	}
	return nil
}

func applyMigration(db *sql.DB, m Migration, logger *zap.SugaredLogger) error {
	body, err := migrations.ReadFile(path.Join(migrationsDir, m.Filename))
	if err != nil {
		return errors.Wrapf(err, "read %s", m.Filename)
	}

	if logger != nil {
		logger.Infow("Applying migration", "migration", m.Filename, "version", m.Version)
	}

	tx, err := db.Begin()
	if err != nil {
		return errors.Wrapf(err, "begin tx for %s", m.Filename)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(string(body)); err != nil {
		return errors.Wrapf(err, "execute %s", m.Filename)
	}
	// 000 creates the table, then records itself
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.Version); err != nil {
		return errors.Wrapf(err, "record %s", m.Filename)
	}
	return errors.Wrapf(tx.Commit(), "commit %s", m.Filename)
}
