package phylogeny

import "time"

// container is one built snapshot. It is replaced, never mutated.
type container struct {
	watermark time.Time
	tree      *Tree
}

// newContainer builds a snapshot from rows. Its watermark is the newest
// row watermark in the batch, not the store-reported one that triggered it.
func newContainer(rows []Row) (*container, error) {
	tree, err := Build(rows)
	if err != nil {
		return nil, err
	}
	var wm time.Time
	for _, r := range rows {
		if w := r.Watermark(); w.After(wm) {
			wm = w
		}
	}
	return &container{watermark: wm, tree: tree}, nil
}

// stale reports whether storeWatermark is strictly newer than the snapshot.
func (c *container) stale(storeWatermark time.Time) bool {
	return storeWatermark.After(c.watermark)
}
