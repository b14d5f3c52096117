package commands

import (
	"database/sql"

	"github.com/teranos/phylo/am"
	"github.com/teranos/phylo/db"
	"github.com/teranos/phylo/errors"
	"github.com/teranos/phylo/logger"
)

// resolveDatabasePath returns dbPath, or the configured path when it is empty.
func resolveDatabasePath(dbPath string) (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}
	cfg, err := am.Load()
	if err != nil {
		return "", errors.Wrap(err, "failed to load configuration")
	}
	return cfg.GetDatabasePath(), nil
}

// openDatabase opens and migrates a database using the specified path.
// If dbPath is empty, it loads from am config. Uses logger.Logger for db operations.
func openDatabase(dbPath string) (*sql.DB, string, error) {
	path, err := resolveDatabasePath(dbPath)
	if err != nil {
		return nil, "", err
	}

	database, err := db.OpenWithMigrations(path, logger.Logger)
	if err != nil {
		return nil, "", errors.Wrapf(err, "failed to open database at %s", path)
	}
	return database, path, nil
}
