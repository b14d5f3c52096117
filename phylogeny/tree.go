package phylogeny

import (
	"github.com/teranos/phylo/errors"
)

// ErrNoRoot means none of the rows lacked a parent, so no tree can be built.
var ErrNoRoot = errors.New("phylogeny: no root concept among rows")

// Tree is the result of Build: the root plus every node in first-seen order.
type Tree struct {
	Root  *Node
	Index []*Node
}

// Build assembles rows into a tree in a single, order-independent pass.
//
// Each id's parent edge is linked once, on the first row that names a parent;
// later rows for the same id only add names and overwrite the rank. When
// several rows lack a parent the first one becomes the root.
func Build(rows []Row) (*Tree, error) {
	byID := make(map[int64]*Node, len(rows))
	var index []*Node
	resolve := func(id int64) *Node {
		if n, ok := byID[id]; ok {
			return n
		}
		n := &Node{ID: id}
		byID[id] = n
		index = append(index, n)
		return n
	}

	var root *Node
	for _, row := range rows {
		self := resolve(row.ID)

		if row.ParentID == nil {
			if root == nil {
				root = self
			}
		} else if !self.linked {
			parent := resolve(*row.ParentID)
			self.Parent = parent
			parent.Children = append(parent.Children, self)
			self.linked = true
		}

		self.Names = append(self.Names, NameEntry{Name: row.Name, Type: row.NameType})
		self.Rank = row.Rank()
	}

	if root == nil {
		return nil, errors.WithDetailf(ErrNoRoot, "%d rows, %d concepts", len(rows), len(index))
	}
	return &Tree{Root: root, Index: index}, nil
}

// Find returns the first indexed node carrying name, or nil.
func (t *Tree) Find(name string) *Node {
	for _, n := range t.Index {
		if n.HasName(name) {
			return n
		}
	}
	return nil
}
