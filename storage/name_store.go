package storage

import (
	"context"
	"database/sql"

	"github.com/teranos/phylo/errors"
)

// NameStore answers name-only lookups without loading concepts.
type NameStore struct {
	db *sql.DB
}

// NewNameStore creates a NameStore over db.
func NewNameStore(db *sql.DB) *NameStore {
	return &NameStore{db: db}
}

func (s *NameStore) queryNames(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, errors.Wrap(err, "failed to scan name")
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// FindAllNames returns every concept name, sorted case-insensitively.
func (s *NameStore) FindAllNames(ctx context.Context) ([]string, error) {
	names, err := s.queryNames(ctx, `SELECT name FROM concept_name ORDER BY name COLLATE NOCASE`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list names")
	}
	return names, nil
}

// FindByNameContaining returns names containing glob, ignoring case.
func (s *NameStore) FindByNameContaining(ctx context.Context, glob string) ([]string, error) {
	names, err := s.queryNames(ctx, `
		SELECT name FROM concept_name
		WHERE LOWER(name) LIKE ? ESCAPE '\'
		ORDER BY name COLLATE NOCASE`, "%"+likeLiteral(glob)+"%")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to search names containing %s", glob)
	}
	return names, nil
}

// FindByNameStartingWith returns names starting with prefix, ignoring case.
func (s *NameStore) FindByNameStartingWith(ctx context.Context, prefix string) ([]string, error) {
	names, err := s.queryNames(ctx, `
		SELECT name FROM concept_name
		WHERE LOWER(name) LIKE ? ESCAPE '\'
		ORDER BY name COLLATE NOCASE`, likeLiteral(prefix)+"%")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to search names starting with %s", prefix)
	}
	return names, nil
}

// Exists reports whether name is taken by any concept.
func (s *NameStore) Exists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM concept_name WHERE name = ?)`, name).Scan(&exists)
	if err != nil {
		return false, errors.Wrapf(err, "failed to check name %s", name)
	}
	return exists, nil
}
