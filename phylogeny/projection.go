package phylogeny

// ImmutableConcept is a parent-less deep copy of a node and (optionally) its
// descendants. It shares nothing with the cache that produced it.
type ImmutableConcept struct {
	Name             string              `json:"name"`
	Rank             string              `json:"rank,omitempty"`
	AlternativeNames []string            `json:"alternativeNames"`
	Children         []*ImmutableConcept `json:"children"`
}

// SimpleConcept is an ImmutableConcept without children.
type SimpleConcept struct {
	Name             string   `json:"name"`
	Rank             string   `json:"rank,omitempty"`
	AlternativeNames []string `json:"alternativeNames"`
}

// ContainsName reports whether name is the primary or an alternative name.
func (c *ImmutableConcept) ContainsName(name string) bool {
	return c.Name == name || contains(c.AlternativeNames, name)
}

// ContainsName reports whether name is the primary or an alternative name.
func (c SimpleConcept) ContainsName(name string) bool {
	return c.Name == name || contains(c.AlternativeNames, name)
}

// Depth is the number of concepts on the longest path from c down to a leaf.
func (c *ImmutableConcept) Depth() int {
	max := 0
	for _, child := range c.Children {
		if d := child.Depth(); d > max {
			max = d
		}
	}
	return max + 1
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func flatCopy(n *Node) *ImmutableConcept {
	return &ImmutableConcept{
		Name:             n.PrimaryName(),
		Rank:             n.Rank,
		AlternativeNames: n.alternativeNames(),
		Children:         []*ImmutableConcept{},
	}
}

// projectSubtree deep-copies n and all of its descendants.
func projectSubtree(n *Node) *ImmutableConcept {
	c := flatCopy(n)
	for _, child := range n.Children {
		c.Children = append(c.Children, projectSubtree(child))
	}
	return c
}

// projectSpine copies the path from the root down to n. Each ancestor keeps
// only the child on that path and n itself carries no children.
func projectSpine(n *Node) *ImmutableConcept {
	c := flatCopy(n)
	for p := n.Parent; p != nil; p = p.Parent {
		up := flatCopy(p)
		up.Children = append(up.Children, c)
		c = up
	}
	return c
}

func projectSimple(n *Node) SimpleConcept {
	return SimpleConcept{
		Name:             n.PrimaryName(),
		Rank:             n.Rank,
		AlternativeNames: n.alternativeNames(),
	}
}

// collectNames appends primary names of n's subtree in pre-order.
func collectNames(c *ImmutableConcept, out []string) []string {
	out = append(out, c.Name)
	for _, child := range c.Children {
		out = collectNames(child, out)
	}
	return out
}
