package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/phylo/errors"
	"github.com/teranos/phylo/logger"
	"github.com/teranos/phylo/phylogeny"
)

// Concept is a stored concept together with its names.
type Concept struct {
	ID          int64         `json:"id"`
	ParentID    *int64        `json:"parent_id,omitempty"`
	RankLevel   string        `json:"rank_level,omitempty"`
	RankName    string        `json:"rank_name,omitempty"`
	AphiaID     *int64        `json:"aphia_id,omitempty"`
	LastUpdated time.Time     `json:"last_updated"`
	Names       []ConceptName `json:"names"`
}

// ConceptName is one stored name of a concept.
type ConceptName struct {
	ID          int64              `json:"id"`
	Name        string             `json:"name"`
	Type        phylogeny.NameType `json:"type"`
	Author      string             `json:"author,omitempty"`
	LastUpdated time.Time          `json:"last_updated"`
}

// PrimaryName returns the concept's primary name, or "".
func (c *Concept) PrimaryName() string {
	for _, n := range c.Names {
		if n.Type == phylogeny.NamePrimary {
			return n.Name
		}
	}
	return ""
}

// NameInput describes a name to attach to a concept.
type NameInput struct {
	Name   string             `json:"name" yaml:"name"`
	Type   phylogeny.NameType `json:"type" yaml:"type"`
	Author string             `json:"author,omitempty" yaml:"author,omitempty"`
}

// ConceptInput describes a concept to create. Names must contain exactly one
// primary entry.
type ConceptInput struct {
	ParentID  *int64
	RankLevel string
	RankName  string
	AphiaID   *int64
	Names     []NameInput
}

// Validate checks names and types before anything touches the database.
func (in ConceptInput) Validate() error {
	if len(in.Names) == 0 {
		return errors.Wrap(ErrInvalidConcept, "at least one name is required")
	}
	primaries := 0
	for _, n := range in.Names {
		if err := n.validate(); err != nil {
			return err
		}
		if n.Type == phylogeny.NamePrimary {
			primaries++
		}
	}
	if primaries != 1 {
		return errors.Wrapf(ErrInvalidConcept, "exactly one primary name is required, got %d", primaries)
	}
	return nil
}

func (n NameInput) validate() error {
	if strings.TrimSpace(n.Name) == "" {
		return errors.Wrap(ErrInvalidConcept, "name cannot be empty")
	}
	if _, ok := phylogeny.ParseNameType(string(n.Type)); !ok {
		return errors.Wrapf(ErrInvalidConcept, "unknown name type %q for %s", n.Type, n.Name)
	}
	return nil
}

// ConceptStore is the repository for concepts and their names.
type ConceptStore struct {
	db  *sql.DB
	log *zap.SugaredLogger
	now func() time.Time
}

// NewConceptStore creates a ConceptStore over db.
func NewConceptStore(db *sql.DB, log *zap.SugaredLogger, opts ...StoreOption) *ConceptStore {
	if log == nil {
		log = logger.Logger
	}
	cfg := newStoreConfig(opts)
	return &ConceptStore{db: db, log: log.Named("storage.concepts"), now: cfg.now}
}

const conceptColumns = `c.id, c.parent_concept_id, c.rank_level, c.rank_name, c.aphia_id, c.last_updated_time`

func (s *ConceptStore) queryConcepts(ctx context.Context, q querier, query string, args ...any) ([]*Concept, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Concept
	for rows.Next() {
		var (
			c                   Concept
			parent, aphia       sql.NullInt64
			rankLevel, rankName sql.NullString
			updated             int64
		)
		if err := rows.Scan(&c.ID, &parent, &rankLevel, &rankName, &aphia, &updated); err != nil {
			return nil, errors.Wrap(err, "failed to scan concept")
		}
		c.ParentID = int64Ptr(parent)
		c.AphiaID = int64Ptr(aphia)
		c.RankLevel = rankLevel.String
		c.RankName = rankName.String
		c.LastUpdated = fromMillis(updated)
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, c := range out {
		if c.Names, err = s.names(ctx, q, c.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *ConceptStore) names(ctx context.Context, q querier, conceptID int64) ([]ConceptName, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, name_type, author, last_updated_time
		FROM concept_name
		WHERE concept_id = ?
		ORDER BY id`, conceptID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load names of concept %d", conceptID)
	}
	defer rows.Close()

	names := []ConceptName{}
	for rows.Next() {
		var (
			n       ConceptName
			typ     string
			author  sql.NullString
			updated int64
		)
		if err := rows.Scan(&n.ID, &n.Name, &typ, &author, &updated); err != nil {
			return nil, errors.Wrap(err, "failed to scan concept name")
		}
		n.Type = phylogeny.NameType(typ)
		n.Author = author.String
		n.LastUpdated = fromMillis(updated)
		names = append(names, n)
	}
	return names, rows.Err()
}

func (s *ConceptStore) findOne(ctx context.Context, q querier, what string, query string, args ...any) (*Concept, error) {
	found, err := s.queryConcepts(ctx, q, query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to find concept %s", what)
	}
	if len(found) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "concept %s", what)
	}
	return found[0], nil
}

// FindRoot returns the single concept without a parent.
func (s *ConceptStore) FindRoot(ctx context.Context) (*Concept, error) {
	roots, err := s.queryConcepts(ctx, s.db,
		`SELECT `+conceptColumns+` FROM concept c WHERE c.parent_concept_id IS NULL ORDER BY c.id`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find root concept")
	}
	switch len(roots) {
	case 0:
		return nil, errors.Wrap(ErrNotFound, "root concept")
	case 1:
		return roots[0], nil
	default:
		s.log.Errorw("More than one root concept found", logger.FieldCount, len(roots))
		return nil, errors.WithDetailf(ErrMultipleRoots, "%d roots", len(roots))
	}
}

// FindByName returns the concept owning name (exact match).
func (s *ConceptStore) FindByName(ctx context.Context, name string) (*Concept, error) {
	return s.findOne(ctx, s.db, "named "+name, `
		SELECT `+conceptColumns+`
		FROM concept c
		JOIN concept_name cn ON cn.concept_id = c.id
		WHERE cn.name = ?`, name)
}

// FindByID returns the concept with the given id.
func (s *ConceptStore) FindByID(ctx context.Context, id int64) (*Concept, error) {
	return s.findOne(ctx, s.db, "by id", `SELECT `+conceptColumns+` FROM concept c WHERE c.id = ?`, id)
}

// FindByAphiaID returns the concept linked to a WoRMS AphiaID.
func (s *ConceptStore) FindByAphiaID(ctx context.Context, aphiaID int64) (*Concept, error) {
	return s.findOne(ctx, s.db, "by aphia id", `SELECT `+conceptColumns+` FROM concept c WHERE c.aphia_id = ?`, aphiaID)
}

func (s *ConceptStore) findByNamePattern(ctx context.Context, pattern string) ([]*Concept, error) {
	found, err := s.queryConcepts(ctx, s.db, `
		SELECT DISTINCT `+conceptColumns+`
		FROM concept c
		JOIN concept_name cn ON cn.concept_id = c.id
		WHERE LOWER(cn.name) LIKE ? ESCAPE '\'
		ORDER BY c.id`, pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to search concepts matching %s", pattern)
	}
	return found, nil
}

// FindAllByNameContaining returns concepts with any name containing glob, ignoring case.
func (s *ConceptStore) FindAllByNameContaining(ctx context.Context, glob string) ([]*Concept, error) {
	return s.findByNamePattern(ctx, "%"+likeLiteral(glob)+"%")
}

// FindAllByNameStartingWith returns concepts with any name starting with glob, ignoring case.
func (s *ConceptStore) FindAllByNameStartingWith(ctx context.Context, glob string) ([]*Concept, error) {
	return s.findByNamePattern(ctx, likeLiteral(glob)+"%")
}

// FindAllByNameEndingWith returns concepts with any name ending with glob, ignoring case.
func (s *ConceptStore) FindAllByNameEndingWith(ctx context.Context, glob string) ([]*Concept, error) {
	return s.findByNamePattern(ctx, "%"+likeLiteral(glob))
}

// FindAll pages through every concept in id order.
func (s *ConceptStore) FindAll(ctx context.Context, limit, offset int) ([]*Concept, error) {
	found, err := s.queryConcepts(ctx, s.db,
		`SELECT `+conceptColumns+` FROM concept c ORDER BY c.id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list concepts")
	}
	return found, nil
}

// FindChildren returns the direct children of a concept.
func (s *ConceptStore) FindChildren(ctx context.Context, id int64) ([]*Concept, error) {
	found, err := s.queryConcepts(ctx, s.db,
		`SELECT `+conceptColumns+` FROM concept c WHERE c.parent_concept_id = ? ORDER BY c.id`, id)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to find children of concept %d", id)
	}
	return found, nil
}

// Count returns the number of concepts and names.
func (s *ConceptStore) Count(ctx context.Context) (concepts, names int, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM concept), (SELECT COUNT(*) FROM concept_name)`).Scan(&concepts, &names)
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to count concepts")
	}
	return concepts, names, nil
}

// Create inserts a concept and its names in one transaction. A concept
// without a parent is only accepted while the store has no root.
func (s *ConceptStore) Create(ctx context.Context, in ConceptInput) (*Concept, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if in.ParentID == nil {
		var roots int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM concept WHERE parent_concept_id IS NULL`).Scan(&roots); err != nil {
			return nil, errors.Wrap(err, "failed to check for existing root")
		}
		if roots > 0 {
			return nil, errors.WithHint(errors.Wrap(ErrMultipleRoots, "cannot create a second root"),
				"set a parent concept")
		}
	}

	now := s.now()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO concept (parent_concept_id, rank_level, rank_name, aphia_id, last_updated_time)
		VALUES (?, ?, ?, ?, ?)`,
		nullInt64(in.ParentID), nullString(in.RankLevel), nullString(in.RankName), nullInt64(in.AphiaID), toMillis(now))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to insert concept %s", in.Names[0].Name)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read concept id")
	}

	for _, n := range in.Names {
		if _, err := insertName(ctx, tx, id, n, now); err != nil {
			return nil, err
		}
	}

	created, err := s.findOne(ctx, tx, "by id", `SELECT `+conceptColumns+` FROM concept c WHERE c.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit transaction")
	}

	s.log.Infow("Concept created",
		logger.FieldConceptID, id,
		logger.FieldName, created.PrimaryName(),
	)
	return created, nil
}

func insertName(ctx context.Context, q querier, conceptID int64, n NameInput, now time.Time) (int64, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO concept_name (concept_id, name, name_type, author, last_updated_time)
		VALUES (?, ?, ?, ?, ?)`,
		conceptID, n.Name, string(n.Type), nullString(n.Author), toMillis(now))
	if err != nil {
		return 0, errors.Wrapf(err, "failed to insert name %s", n.Name)
	}
	return res.LastInsertId()
}

// AddName attaches a non-primary name to an existing concept.
func (s *ConceptStore) AddName(ctx context.Context, conceptID int64, n NameInput) (*ConceptName, error) {
	if err := n.validate(); err != nil {
		return nil, err
	}
	if n.Type == phylogeny.NamePrimary {
		return nil, errors.Wrapf(ErrInvalidConcept, "concept %d already has a primary name", conceptID)
	}
	if _, err := s.FindByID(ctx, conceptID); err != nil {
		return nil, err
	}

	now := s.now()
	id, err := insertName(ctx, s.db, conceptID, n, now)
	if err != nil {
		return nil, err
	}
	return &ConceptName{ID: id, Name: n.Name, Type: n.Type, Author: n.Author, LastUpdated: fromMillis(toMillis(now))}, nil
}

// DeleteBranchByName deletes the named concept and all of its descendants,
// leaves first, and returns how many concepts were removed. The parent is
// re-stamped so caches built before the delete notice it.
func (s *ConceptStore) DeleteBranchByName(ctx context.Context, name string) (int, error) {
	target, err := s.FindByName(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	// Breadth-first order; deleting it in reverse removes leaves first.
	order := []int64{target.ID}
	for i := 0; i < len(order); i++ {
		children, err := childIDs(ctx, tx, order[i])
		if err != nil {
			return 0, err
		}
		order = append(order, children...)
	}
	for i := len(order) - 1; i >= 0; i-- {
		if _, err := tx.ExecContext(ctx, `DELETE FROM concept WHERE id = ?`, order[i]); err != nil {
			return 0, errors.Wrapf(err, "failed to delete concept %d", order[i])
		}
	}

	if target.ParentID != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE concept SET last_updated_time = ? WHERE id = ?`,
			toMillis(s.now()), *target.ParentID); err != nil {
			return 0, errors.Wrap(err, "failed to stamp parent concept")
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "failed to commit transaction")
	}

	s.log.Infow("Concept branch deleted",
		logger.FieldName, name,
		logger.FieldCount, len(order),
	)
	return len(order), nil
}

func childIDs(ctx context.Context, q querier, parent int64) ([]int64, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM concept WHERE parent_concept_id = ? ORDER BY id`, parent)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list children of %d", parent)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
