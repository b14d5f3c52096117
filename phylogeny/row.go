// Package phylogeny materializes the concept hierarchy into an in-memory tree
// and answers ancestor, descendant and sibling queries against it.
package phylogeny

import "time"

// NameType classifies a concept name.
type NameType string

const (
	NamePrimary   NameType = "primary"
	NameAlternate NameType = "alternate"
	NameCommon    NameType = "common"
	NameFormer    NameType = "former"
	NameSynonym   NameType = "synonym"
)

// ParseNameType returns the NameType for s, or false when s is not a known type.
func ParseNameType(s string) (NameType, bool) {
	switch t := NameType(s); t {
	case NamePrimary, NameAlternate, NameCommon, NameFormer, NameSynonym:
		return t, true
	}
	return "", false
}

// Row is one (concept, name) pair as read from the store. A concept with
// three names arrives as three rows sharing ID, ParentID and rank columns.
type Row struct {
	ID        int64
	ParentID  *int64 // nil for the root concept
	Name      string
	NameType  NameType
	RankLevel string // optional, "" when absent
	RankName  string // optional, "" when absent

	ConceptLastModified time.Time
	NameLastModified    time.Time
}

// Watermark is the later of the concept and name modification times.
func (r Row) Watermark() time.Time {
	if r.NameLastModified.After(r.ConceptLastModified) {
		return r.NameLastModified
	}
	return r.ConceptLastModified
}

// Rank combines level and name ("sub" + "phylum" -> "subphylum").
// Without a rank name there is no rank, whatever the level says.
func (r Row) Rank() string {
	if r.RankName == "" {
		return ""
	}
	return r.RankLevel + r.RankName
}
