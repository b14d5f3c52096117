package storage

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/phylo/errors"
	"github.com/teranos/phylo/logger"
	"github.com/teranos/phylo/phylogeny"
)

// Concepts without names are skipped by the WHERE clause.
const selectConceptRows = `
	SELECT c.id, c.parent_concept_id, cn.name, cn.name_type,
	       c.rank_level, c.rank_name, c.last_updated_time, cn.last_updated_time
	FROM concept c
	LEFT JOIN concept_name cn ON cn.concept_id = c.id
	WHERE cn.name IS NOT NULL
	ORDER BY c.id, cn.id`

const selectWatermark = `
	SELECT MAX(t) FROM (
		SELECT MAX(last_updated_time) AS t FROM concept
		UNION ALL
		SELECT MAX(last_updated_time) AS t FROM concept_name
	)`

// RowSource feeds the phylogeny cache from SQL. Store failures are logged
// and degrade to "no rows" or the zero watermark so the cache keeps serving.
type RowSource struct {
	db  *sql.DB
	log *zap.SugaredLogger
	now func() time.Time
}

var _ phylogeny.RowSource = (*RowSource)(nil)

// NewRowSource creates a RowSource over db.
func NewRowSource(db *sql.DB, log *zap.SugaredLogger, opts ...StoreOption) *RowSource {
	if log == nil {
		log = logger.Logger
	}
	cfg := newStoreConfig(opts)
	return &RowSource{db: db, log: log.Named("storage.rows"), now: cfg.now}
}

// FetchAllRows returns one row per (concept, name) pair in no particular order.
func (s *RowSource) FetchAllRows(ctx context.Context) []phylogeny.Row {
	rows, err := s.fetchAllRows(ctx)
	if err != nil {
		s.log.Errorw("Failed to fetch concept rows", logger.FieldError, err)
		return []phylogeny.Row{}
	}
	return rows
}

func (s *RowSource) fetchAllRows(ctx context.Context) ([]phylogeny.Row, error) {
	rs, err := s.db.QueryContext(ctx, selectConceptRows)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query concept rows")
	}
	defer rs.Close()

	out := []phylogeny.Row{}
	for rs.Next() {
		var (
			r                   phylogeny.Row
			parent              sql.NullInt64
			nameType            string
			rankLevel, rankName sql.NullString
			conceptMS, nameMS   int64
		)
		if err := rs.Scan(&r.ID, &parent, &r.Name, &nameType, &rankLevel, &rankName, &conceptMS, &nameMS); err != nil {
			return nil, errors.Wrap(err, "failed to scan concept row")
		}
		r.ParentID = int64Ptr(parent)
		r.NameType = phylogeny.NameType(nameType)
		r.RankLevel = rankLevel.String
		r.RankName = rankName.String
		r.ConceptLastModified = fromMillis(conceptMS)
		r.NameLastModified = fromMillis(nameMS)
		out = append(out, r)
	}
	if err := rs.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate concept rows")
	}
	return out, nil
}

// FetchFreshnessWatermark returns the newest last_updated_time across concepts
// and names, the current time for an empty store, and the zero time on failure.
func (s *RowSource) FetchFreshnessWatermark(ctx context.Context) time.Time {
	var ms sql.NullInt64
	if err := s.db.QueryRowContext(ctx, selectWatermark).Scan(&ms); err != nil {
		s.log.Errorw("Failed to probe phylogeny watermark",
			logger.FieldError, errors.Wrap(err, "failed to query freshness watermark"))
		return time.Time{}
	}
	if !ms.Valid {
		return s.now()
	}
	return fromMillis(ms.Int64)
}
