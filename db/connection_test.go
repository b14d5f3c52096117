package db_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/phylo/db"
	"github.com/teranos/phylo/errors"
)

func TestOpen_SetsPragmas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phylo.db")
	conn, err := db.Open(path, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	defer conn.Close()

	var mode string
	require.NoError(t, conn.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var fk int
	require.NoError(t, conn.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)

	var timeout int
	require.NoError(t, conn.QueryRow("PRAGMA busy_timeout").Scan(&timeout))
	assert.Equal(t, db.SQLiteBusyTimeoutMS, timeout)
}

func TestOpenWithMigrations_CreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phylo.db")
	conn, err := db.OpenWithMigrations(path, nil)
	require.NoError(t, err)
	defer conn.Close()

	for _, table := range []string{"schema_migrations", "concept", "concept_name"} {
		var name string
		err := conn.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, "table %s missing", table)
	}
}

func TestIsDatabaseClosed(t *testing.T) {
	assert.False(t, db.IsDatabaseClosed(nil))
	assert.True(t, db.IsDatabaseClosed(db.ErrDatabaseClosed))
	assert.True(t, db.IsDatabaseClosed(errors.Wrap(db.ErrDatabaseClosed, "query")))
	assert.False(t, db.IsDatabaseClosed(errors.New("no such table")))

	conn, err := db.Open(filepath.Join(t.TempDir(), "closed.db"), nil)
	require.NoError(t, err)
	conn.Close()
	_, err = conn.Exec("SELECT 1")
	assert.True(t, db.IsDatabaseClosed(err))
}
