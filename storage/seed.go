package storage

import (
	"context"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/teranos/phylo/errors"
	"github.com/teranos/phylo/phylogeny"
)

// SeedNode is one concept in a YAML seed file.
//
//	name: Animalia
//	rank_name: kingdom
//	alternates:
//	  - {name: animals, type: common}
//	children:
//	  - name: Chordata
type SeedNode struct {
	Name       string      `yaml:"name"`
	RankLevel  string      `yaml:"rank_level,omitempty"`
	RankName   string      `yaml:"rank_name,omitempty"`
	AphiaID    *int64      `yaml:"aphia_id,omitempty"`
	Alternates []NameInput `yaml:"alternates,omitempty"`
	Children   []SeedNode  `yaml:"children,omitempty"`
}

// ParseSeed decodes a YAML seed tree.
func ParseSeed(r io.Reader) (*SeedNode, error) {
	var root SeedNode
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&root); err != nil {
		return nil, errors.Wrap(err, "failed to parse seed file")
	}
	if root.Name == "" {
		return nil, errors.Wrap(ErrInvalidConcept, "seed root has no name")
	}
	return &root, nil
}

// LoadSeed creates every concept in the seed tree, parents before children,
// and returns how many were created. The seed root becomes the store root.
func LoadSeed(ctx context.Context, store *ConceptStore, r io.Reader) (int, error) {
	root, err := ParseSeed(r)
	if err != nil {
		return 0, err
	}
	return loadSeedNode(ctx, store, root, nil)
}

func loadSeedNode(ctx context.Context, store *ConceptStore, n *SeedNode, parent *int64) (int, error) {
	names := append([]NameInput{{Name: n.Name, Type: phylogeny.NamePrimary}}, n.Alternates...)
	for i := range names[1:] {
		if names[i+1].Type == "" {
			names[i+1].Type = phylogeny.NameAlternate
		}
	}

	created, err := store.Create(ctx, ConceptInput{
		ParentID:  parent,
		RankLevel: n.RankLevel,
		RankName:  n.RankName,
		AphiaID:   n.AphiaID,
		Names:     names,
	})
	if err != nil {
		return 0, errors.Wrapf(err, "seed concept %s", n.Name)
	}

	count := 1
	for i := range n.Children {
		c, err := loadSeedNode(ctx, store, &n.Children[i], &created.ID)
		count += c
		if err != nil {
			return count, err
		}
	}
	return count, nil
}
