package phylogeny

// NameEntry is one name attached to a node.
type NameEntry struct {
	Name string
	Type NameType
}

// Node is a mutable tree node owned by a cache container. Parent is a
// back-reference and is nil only for the root.
type Node struct {
	ID       int64
	Rank     string
	Names    []NameEntry
	Children []*Node
	Parent   *Node

	linked bool // parent edge already recorded
}

// PrimaryName returns the first name tagged primary, or "" if none is.
func (n *Node) PrimaryName() string {
	for _, e := range n.Names {
		if e.Type == NamePrimary {
			return e.Name
		}
	}
	return ""
}

// HasName reports whether any of the node's names equals name exactly.
func (n *Node) HasName(name string) bool {
	for _, e := range n.Names {
		if e.Name == name {
			return true
		}
	}
	return false
}

// alternativeNames lists every name except the primary, in insertion order.
func (n *Node) alternativeNames() []string {
	primary := n.PrimaryName()
	alts := make([]string, 0, len(n.Names))
	for _, e := range n.Names {
		if e.Name != primary {
			alts = append(alts, e.Name)
		}
	}
	return alts
}
