package phylogeny

import (
	"context"
	"sync"
	"time"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func ptr(id int64) *int64 { return &id }

func row(id int64, parent *int64, name string, typ NameType) Row {
	return Row{
		ID:                  id,
		ParentID:            parent,
		Name:                name,
		NameType:            typ,
		ConceptLastModified: t0,
		NameLastModified:    t0,
	}
}

// scenarioRows is the Animalia > Chordata (aka Vertebrata) > Mammalia fixture.
func scenarioRows() []Row {
	return []Row{
		row(1, nil, "Animalia", NamePrimary),
		row(2, ptr(1), "Chordata", NamePrimary),
		row(2, ptr(1), "Vertebrata", NameSynonym),
		row(3, ptr(2), "Mammalia", NamePrimary),
	}
}

// fakeSource is an instrumented RowSource.
type fakeSource struct {
	mu        sync.Mutex
	rows      []Row
	watermark time.Time
	fetches   int
	probes    int
	delay     time.Duration
}

func newFakeSource(rows []Row) *fakeSource {
	src := &fakeSource{}
	src.set(rows)
	return src
}

// set replaces the rows and moves the watermark to their newest row.
func (f *fakeSource) set(rows []Row) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = rows
	f.watermark = time.Time{}
	for _, r := range rows {
		if r.Watermark().After(f.watermark) {
			f.watermark = r.Watermark()
		}
	}
}

func (f *fakeSource) setWatermark(t time.Time) {
	f.mu.Lock()
	f.watermark = t
	f.mu.Unlock()
}

func (f *fakeSource) FetchAllRows(ctx context.Context) []Row {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	return append([]Row(nil), f.rows...)
}

func (f *fakeSource) FetchFreshnessWatermark(ctx context.Context) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes++
	return f.watermark
}

func (f *fakeSource) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes []string
	rebuilds int
	queries  map[string]int
}

func (m *recordingMetrics) ObserveRefresh(outcome string) {
	m.mu.Lock()
	m.outcomes = append(m.outcomes, outcome)
	m.mu.Unlock()
}

func (m *recordingMetrics) ObserveRebuild(d time.Duration, nodes int) {
	m.mu.Lock()
	m.rebuilds++
	m.mu.Unlock()
}

func (m *recordingMetrics) ObserveQuery(op string, found bool, d time.Duration) {
	m.mu.Lock()
	if m.queries == nil {
		m.queries = map[string]int{}
	}
	m.queries[op]++
	m.mu.Unlock()
}
