package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/phylo/am"
	qtest "github.com/teranos/phylo/internal/testing"
	"github.com/teranos/phylo/phylogeny"
	"github.com/teranos/phylo/storage"
)

const seed = `
name: Animalia
rank_name: kingdom
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
`

func seededService(t *testing.T) *phylogeny.Service {
	t.Helper()
	db := qtest.CreateTestDB(t)
	log := zaptest.NewLogger(t).Sugar()
	_, err := storage.LoadSeed(context.Background(), storage.NewConceptStore(db, log), strings.NewReader(seed))
	require.NoError(t, err)
	return phylogeny.New(storage.NewRowSource(db, log), phylogeny.WithLogger(log))
}

func withJSON(t *testing.T, on bool) {
	t.Helper()
	prev := queryJSON
	queryJSON = on
	t.Cleanup(func() { queryJSON = prev })
}

func TestConceptLabel(t *testing.T) {
	assert.Equal(t, "Mammalia", conceptLabel("Mammalia", "", nil))
	assert.Equal(t, "Chordata (phylum) [Vertebrata, chordates]",
		conceptLabel("Chordata", "phylum", []string{"Vertebrata", "chordates"}))
}

func TestConceptTree(t *testing.T) {
	tree := conceptTree(&phylogeny.ImmutableConcept{
		Name: "Animalia",
		Children: []*phylogeny.ImmutableConcept{
			{Name: "Chordata", AlternativeNames: []string{"Vertebrata"}},
			{Name: "Mollusca"},
		},
	})
	assert.Equal(t, pterm.TreeNode{
		Text: "Animalia",
		Children: []pterm.TreeNode{
			{Text: "Chordata [Vertebrata]"},
			{Text: "Mollusca"},
		},
	}, tree)
}

func TestSiblingsTable(t *testing.T) {
	data := siblingsTable([]phylogeny.SimpleConcept{
		{Name: "Chordata", Rank: "phylum", AlternativeNames: []string{"Vertebrata"}},
	})
	assert.Equal(t, pterm.TableData{
		{"Name", "Rank", "Alternative names"},
		{"Chordata", "phylum", "Vertebrata"},
	}, data)
}

func TestQueryDownJSON(t *testing.T) {
	withJSON(t, true)
	var out bytes.Buffer
	require.NoError(t, queryDown(context.Background(), seededService(t), "Vertebrata", &out))

	var got phylogeny.ImmutableConcept
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "Chordata", got.Name)
	require.Len(t, got.Children, 1)
	assert.Equal(t, "Mammalia", got.Children[0].Name)
}

func TestQueryUpRendersTree(t *testing.T) {
	withJSON(t, false)
	var out bytes.Buffer
	require.NoError(t, queryUp(context.Background(), seededService(t), "Mammalia", &out))

	text := out.String()
	for _, name := range []string{"Animalia", "Chordata", "Mammalia"} {
		assert.Contains(t, text, name)
	}
	assert.NotContains(t, text, "Mollusca")
}

func TestQueryNotFound(t *testing.T) {
	withJSON(t, false)
	var out bytes.Buffer
	err := queryDown(context.Background(), seededService(t), "Nope", &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestQueryTaxaAndSiblings(t *testing.T) {
	withJSON(t, false)
	svc := seededService(t)

	var out bytes.Buffer
	require.NoError(t, queryTaxa(context.Background(), svc, "Chordata", &out))
	assert.Equal(t, "Chordata\nMammalia\n", out.String())

	out.Reset()
	require.NoError(t, querySiblings(context.Background(), svc, "Animalia", &out))
	assert.Equal(t, "Animalia has no siblings\n", out.String())

	out.Reset()
	require.NoError(t, querySiblings(context.Background(), svc, "Mollusca", &out))
	assert.Contains(t, out.String(), "Chordata")
	assert.Contains(t, out.String(), "Mollusca")
}

func TestWriteSettings(t *testing.T) {
	settings := map[string]interface{}{
		"server": map[string]interface{}{"port": 9090},
	}

	var out bytes.Buffer
	require.NoError(t, writeSettings(&out, settings, "json"))
	assert.JSONEq(t, `{"server": {"port": 9090}}`, out.String())

	out.Reset()
	require.NoError(t, writeSettings(&out, settings, "toml"))
	assert.Contains(t, out.String(), "[server]")
	assert.Contains(t, out.String(), "port = 9090")

	out.Reset()
	require.NoError(t, writeSettings(&out, settings, "yaml"))
	assert.Contains(t, out.String(), "port: 9090")

	assert.Error(t, writeSettings(&out, settings, "xml"))
}

func TestSourcesTable(t *testing.T) {
	data := sourcesTable([]am.SettingInfo{
		{Key: "server.port", Value: 9090, Source: am.SourceEnvironment, SourcePath: "PHYLO_SERVER_PORT"},
		{Key: "database.path", Value: strings.Repeat("x", 60), Source: am.SourceDefault},
	})
	require.Len(t, data, 3)
	assert.Equal(t, []string{"server.port", "9090", "environment", "PHYLO_SERVER_PORT"}, data[1])
	assert.Len(t, data[2][1], 50)
	assert.True(t, strings.HasSuffix(data[2][1], "..."))
}
