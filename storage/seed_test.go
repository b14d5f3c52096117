package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/phylo/errors"
	"github.com/teranos/phylo/phylogeny"
)

const seedYAML = `
name: Animalia
rank_name: kingdom
alternates:
  - {name: animals, type: common}
children:
  - name: Chordata
    rank_name: phylum
    alternates:
      - {name: Vertebrata, type: synonym}
    children:
      - name: Mammalia
        rank_name: class
  - name: Mollusca
    rank_name: phylum
    alternates:
      - name: molluscs
`

func TestLoadSeed(t *testing.T) {
	_, store, _ := setupStore(t)
	ctx := context.Background()

	n, err := LoadSeed(ctx, store, strings.NewReader(seedYAML))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	root, err := store.FindRoot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Animalia", root.PrimaryName())
	assert.Equal(t, "kingdom", root.RankName)

	mollusca, err := store.FindByName(ctx, "molluscs")
	require.NoError(t, err)
	assert.Equal(t, "Mollusca", mollusca.PrimaryName())
	assert.Equal(t, phylogeny.NameAlternate, mollusca.Names[1].Type)

	mammalia, err := store.FindByName(ctx, "Mammalia")
	require.NoError(t, err)
	chordata, err := store.FindByName(ctx, "Vertebrata")
	require.NoError(t, err)
	assert.Equal(t, chordata.ID, *mammalia.ParentID)
}

func TestParseSeed_Errors(t *testing.T) {
	_, err := ParseSeed(strings.NewReader("rank_name: kingdom\n"))
	assert.True(t, errors.Is(err, ErrInvalidConcept))

	_, err = ParseSeed(strings.NewReader("name: Animalia\nbogus: true\n"))
	assert.Error(t, err)
}

func TestLoadSeed_InvalidTypeStops(t *testing.T) {
	_, store, _ := setupStore(t)
	doc := "name: Animalia\nchildren:\n  - name: Chordata\n    alternates:\n      - {name: x, type: nickname}\n"

	n, err := LoadSeed(context.Background(), store, strings.NewReader(doc))
	assert.True(t, errors.Is(err, ErrInvalidConcept))
	assert.Equal(t, 1, n)
}
