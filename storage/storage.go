// Package storage reads and writes the concept hierarchy in SQLite and
// adapts it into the flat rows the phylogeny cache is built from.
package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/teranos/phylo/errors"
)

var (
	// ErrNotFound is returned when a concept lookup matches nothing.
	ErrNotFound = errors.ErrNotFound

	// ErrMultipleRoots means more than one concept lacks a parent.
	ErrMultipleRoots = errors.New("more than one root concept in the knowledgebase")

	// ErrInvalidConcept is returned for concepts or names that fail validation.
	ErrInvalidConcept = errors.New("invalid concept")
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// likeEscaper makes user text match literally inside LIKE ... ESCAPE '\'.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likeLiteral lowercases s and escapes its LIKE wildcards.
func likeLiteral(s string) string {
	return likeEscaper.Replace(strings.ToLower(s))
}

// last_updated_time columns hold unix milliseconds.
func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

// StoreOption configures a ConceptStore or RowSource.
type StoreOption func(*storeConfig)

type storeConfig struct {
	now func() time.Time
}

func newStoreConfig(opts []StoreOption) storeConfig {
	cfg := storeConfig{now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithClock replaces time.Now for write stamps and the empty-store watermark.
func WithClock(now func() time.Time) StoreOption {
	return func(c *storeConfig) { c.now = now }
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
