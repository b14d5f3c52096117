package phylogeny

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/phylo/errors"
)

func TestBuild_Scenario(t *testing.T) {
	tree, err := Build(scenarioRows())
	require.NoError(t, err)

	assert.Equal(t, "Animalia", tree.Root.PrimaryName())
	assert.Nil(t, tree.Root.Parent)
	require.Len(t, tree.Root.Children, 1)

	chordata := tree.Root.Children[0]
	assert.Equal(t, "Chordata", chordata.PrimaryName())
	assert.Equal(t, []string{"Vertebrata"}, chordata.alternativeNames())
	assert.Same(t, tree.Root, chordata.Parent)
	require.Len(t, chordata.Children, 1)
	assert.Equal(t, "Mammalia", chordata.Children[0].PrimaryName())

	assert.Len(t, tree.Index, 3)
}

func TestBuild_LinksParentOncePerID(t *testing.T) {
	rows := []Row{
		row(1, nil, "Animalia", NamePrimary),
		row(2, ptr(1), "Chordata", NamePrimary),
		row(2, ptr(1), "Vertebrata", NameSynonym),
		row(2, ptr(1), "chordates", NameCommon),
	}
	tree, err := Build(rows)
	require.NoError(t, err)

	require.Len(t, tree.Root.Children, 1)
	assert.Len(t, tree.Root.Children[0].Names, 3)
}

func TestBuild_OrderIndependent(t *testing.T) {
	rows := scenarioRows()
	reversed := make([]Row, len(rows))
	for i, r := range rows {
		reversed[len(rows)-1-i] = r
	}

	a, err := Build(rows)
	require.NoError(t, err)
	b, err := Build(reversed)
	require.NoError(t, err)

	assert.Equal(t, projectSubtree(a.Root).Name, projectSubtree(b.Root).Name)
	assert.ElementsMatch(t,
		collectNames(projectSubtree(a.Root), nil),
		collectNames(projectSubtree(b.Root), nil))
	// Children reference a stub created before its own rows arrived
	assert.Equal(t, "Chordata", b.Root.Children[0].PrimaryName())
}

func TestBuild_Idempotent(t *testing.T) {
	a, err := Build(scenarioRows())
	require.NoError(t, err)
	b, err := Build(scenarioRows())
	require.NoError(t, err)

	assert.Equal(t, projectSubtree(a.Root), projectSubtree(b.Root))
}

func TestBuild_EveryIDReachableOnce(t *testing.T) {
	rows := []Row{
		row(1, nil, "Animalia", NamePrimary),
		row(2, ptr(1), "Chordata", NamePrimary),
		row(3, ptr(1), "Mollusca", NamePrimary),
		row(4, ptr(2), "Mammalia", NamePrimary),
		row(5, ptr(2), "Aves", NamePrimary),
		row(6, ptr(3), "Cephalopoda", NamePrimary),
		row(6, ptr(3), "Siphonopoda", NameFormer),
	}
	tree, err := Build(rows)
	require.NoError(t, err)

	seen := map[int64]int{}
	var walk func(*Node)
	walk = func(n *Node) {
		seen[n.ID]++
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(tree.Root)

	assert.Len(t, seen, 6)
	for id, count := range seen {
		assert.Equal(t, 1, count, "id %d", id)
	}
	assert.Len(t, tree.Index, len(seen))
}

func TestBuild_NoRoot(t *testing.T) {
	_, err := Build([]Row{row(2, ptr(1), "Chordata", NamePrimary)})
	assert.True(t, errors.Is(err, ErrNoRoot))

	_, err = Build(nil)
	assert.True(t, errors.Is(err, ErrNoRoot))
}

func TestBuild_FirstRootWins(t *testing.T) {
	tree, err := Build([]Row{
		row(1, nil, "Animalia", NamePrimary),
		row(9, nil, "Plantae", NamePrimary),
	})
	require.NoError(t, err)
	assert.Equal(t, "Animalia", tree.Root.PrimaryName())
}

func TestRowRank(t *testing.T) {
	tests := []struct {
		name  string
		level string
		rank  string
		want  string
	}{
		{"level and name", "sub", "phylum", "subphylum"},
		{"name only", "", "phylum", "phylum"},
		{"level only", "sub", "", ""},
		{"neither", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Row{RankLevel: tt.level, RankName: tt.rank}
			assert.Equal(t, tt.want, r.Rank())
		})
	}
}

func TestRowWatermark(t *testing.T) {
	later := t0.Add(time.Hour)
	assert.Equal(t, later, Row{ConceptLastModified: t0, NameLastModified: later}.Watermark())
	assert.Equal(t, later, Row{ConceptLastModified: later, NameLastModified: t0}.Watermark())
}

func TestParseNameType(t *testing.T) {
	typ, ok := ParseNameType("synonym")
	assert.True(t, ok)
	assert.Equal(t, NameSynonym, typ)

	_, ok = ParseNameType("nickname")
	assert.False(t, ok)
}

func TestBuild_RankOverwrittenPerRow(t *testing.T) {
	r1 := row(1, nil, "Animalia", NamePrimary)
	r2 := row(1, nil, "animals", NameCommon)
	r2.RankName = "kingdom"
	tree, err := Build([]Row{r1, r2})
	require.NoError(t, err)
	assert.Equal(t, "kingdom", tree.Root.Rank)
}
