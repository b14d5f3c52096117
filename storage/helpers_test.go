package storage

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	qtest "github.com/teranos/phylo/internal/testing"
	"github.com/teranos/phylo/phylogeny"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// stepClock advances one second per call so every write gets a newer stamp.
type stepClock struct {
	mu  sync.Mutex
	cur time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Second)
	return c.cur
}

func setupStore(t *testing.T) (*sql.DB, *ConceptStore, *stepClock) {
	t.Helper()
	db := qtest.CreateTestDB(t)
	clock := &stepClock{cur: epoch}
	store := NewConceptStore(db, zaptest.NewLogger(t).Sugar(), WithClock(clock.Now))
	return db, store, clock
}

func mustCreate(t *testing.T, store *ConceptStore, parent *int64, primary string, alts ...string) *Concept {
	t.Helper()
	names := []NameInput{{Name: primary, Type: phylogeny.NamePrimary}}
	for _, a := range alts {
		names = append(names, NameInput{Name: a, Type: phylogeny.NameSynonym})
	}
	c, err := store.Create(context.Background(), ConceptInput{ParentID: parent, Names: names})
	require.NoError(t, err)
	return c
}

// seedScenario creates Animalia > Chordata (aka Vertebrata) > Mammalia.
func seedScenario(t *testing.T, store *ConceptStore) (animalia, chordata, mammalia *Concept) {
	t.Helper()
	animalia = mustCreate(t, store, nil, "Animalia")
	chordata = mustCreate(t, store, &animalia.ID, "Chordata", "Vertebrata")
	mammalia = mustCreate(t, store, &chordata.ID, "Mammalia")
	return
}
