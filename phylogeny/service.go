package phylogeny

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/teranos/phylo/logger"
)

const tracerName = "github.com/teranos/phylo/phylogeny"

// RowSource supplies the flat rows the cache is built from.
//
// FetchAllRows returns an empty slice both when there is nothing to load and
// when the store failed. FetchFreshnessWatermark returns the zero time on
// failure and the current time when the store is empty.
type RowSource interface {
	FetchAllRows(ctx context.Context) []Row
	FetchFreshnessWatermark(ctx context.Context) time.Time
}

// Refresh outcomes reported to the MetricsRecorder.
const (
	OutcomeFresh   = "fresh"
	OutcomeRebuilt = "rebuilt"
	OutcomeEmpty   = "empty"
	OutcomeFailed  = "failed"
)

// MetricsRecorder receives cache and query measurements.
type MetricsRecorder interface {
	ObserveRefresh(outcome string)
	ObserveRebuild(d time.Duration, nodes int)
	ObserveQuery(op string, found bool, d time.Duration)
}

// RebuildEvent describes a completed rebuild.
type RebuildEvent struct {
	Watermark time.Time
	NodeCount int
	Duration  time.Duration
}

// RebuildListener is called after each successful rebuild, outside the cache lock.
type RebuildListener func(RebuildEvent)

// Snapshot is a point-in-time summary of the cache.
type Snapshot struct {
	Loaded    bool      `json:"loaded"`
	Watermark time.Time `json:"watermark,omitzero"`
	NodeCount int       `json:"node_count"`
	RootName  string    `json:"root_name,omitempty"`
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Service) { s.log = l }
}

// WithClock replaces time.Now for rebuild and query timing.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics attaches a MetricsRecorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTracerProvider sets the provider spans are created from. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(tracerName) }
}

// WithRebuildListener registers fn to be told about rebuilds.
func WithRebuildListener(fn RebuildListener) Option {
	return func(s *Service) { s.listeners = append(s.listeners, fn) }
}

// Service owns the live phylogeny snapshot. Rebuilds happen synchronously on
// the calling goroutine; mu serializes the check-and-rebuild section so at
// most one rebuild is in flight.
type Service struct {
	source    RowSource
	log       *zap.SugaredLogger
	now       func() time.Time
	metrics   MetricsRecorder
	listeners []RebuildListener
	tracer    trace.Tracer

	mu      sync.Mutex
	current *container
}

// New creates a Service reading from source. Nothing is loaded until the
// first Refresh or query.
func New(source RowSource, opts ...Option) *Service {
	s := &Service{
		source: source,
		log:    logger.Logger.Named("phylogeny.cache"),
		now:    time.Now,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Refresh rebuilds the snapshot when there is none or the store has changed
// since it was built. An empty fetch leaves the current snapshot in place.
// The only error is a tree-construction failure, which also keeps the
// previous snapshot.
func (s *Service) Refresh(ctx context.Context) error {
	_, err := s.load(ctx)
	return err
}

// load refreshes and returns the snapshot the refresh settled on, which may
// be nil when nothing has ever loaded.
func (s *Service) load(ctx context.Context) (*container, error) {
	ctx, span := s.tracer.Start(ctx, "phylogeny.Service.Refresh")
	defer span.End()

	storeWM := s.source.FetchFreshnessWatermark(ctx)

	current, event, outcome, err := s.refresh(ctx, storeWM)
	s.observeRefresh(outcome)
	span.SetAttributes(
		attribute.String("outcome", outcome),
		attribute.String("store_watermark", storeWM.Format(time.RFC3339Nano)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rebuild failed")
		return nil, err
	}

	if event != nil {
		for _, fn := range s.listeners {
			fn(*event)
		}
	}
	return current, nil
}

func (s *Service) refresh(ctx context.Context, storeWM time.Time) (*container, *RebuildEvent, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && !s.current.stale(storeWM) {
		return s.current, nil, OutcomeFresh, nil
	}

	start := s.now()
	rows := s.source.FetchAllRows(ctx)
	if len(rows) == 0 {
		s.log.Debugw("No rows fetched, keeping current cache",
			logger.FieldStoreWatermark, storeWM,
			"loaded", s.current != nil,
		)
		return s.current, nil, OutcomeEmpty, nil
	}

	next, err := newContainer(rows)
	if err != nil {
		s.log.Errorw("Failed to build phylogeny",
			logger.FieldRows, len(rows),
			logger.FieldError, err,
		)
		return nil, nil, OutcomeFailed, err
	}
	s.current = next

	elapsed := s.now().Sub(start)
	nodes := len(next.tree.Index)
	if s.metrics != nil {
		s.metrics.ObserveRebuild(elapsed, nodes)
	}
	s.log.Infow("Phylogeny cache rebuilt",
		logger.FieldWatermark, next.watermark,
		logger.FieldStoreWatermark, storeWM,
		logger.FieldRows, len(rows),
		logger.FieldNodes, nodes,
		logger.FieldDurationMS, elapsed.Milliseconds(),
	)
	event := &RebuildEvent{Watermark: next.watermark, NodeCount: nodes, Duration: elapsed}
	return next, event, OutcomeRebuilt, nil
}

func (s *Service) observeRefresh(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveRefresh(outcome)
	}
}

// Clear drops the snapshot; the next query rebuilds from scratch.
func (s *Service) Clear() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	s.log.Infow("Phylogeny cache cleared")
}

// Snapshot summarizes the cache without refreshing it.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Snapshot{}
	}
	return Snapshot{
		Loaded:    true,
		Watermark: s.current.watermark,
		NodeCount: len(s.current.tree.Index),
		RootName:  s.current.tree.Root.PrimaryName(),
	}
}

// query refreshes, then runs fn against the matched node in the snapshot
// that refresh settled on. A Clear racing the lookup does not hide it.
// fn sees nil when nothing matches or nothing is loaded.
func (s *Service) query(ctx context.Context, op, name string, fn func(*Node) bool) error {
	ctx, span := s.tracer.Start(ctx, "phylogeny.Service."+op,
		trace.WithAttributes(attribute.String("name", name)),
	)
	defer span.End()
	start := s.now()

	current, err := s.load(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh failed")
		return err
	}

	var match *Node
	if current != nil {
		match = current.tree.Find(name)
	}
	found := fn(match)

	span.SetAttributes(attribute.Bool("found", found))
	if s.metrics != nil {
		s.metrics.ObserveQuery(op, found, s.now().Sub(start))
	}
	return nil
}

// FindUp returns the chain of ancestors from the root down to name, each
// holding only the next concept on the path. nil when name is unknown.
func (s *Service) FindUp(ctx context.Context, name string) (*ImmutableConcept, error) {
	var out *ImmutableConcept
	err := s.query(ctx, "FindUp", name, func(n *Node) bool {
		if n == nil {
			return false
		}
		out = projectSpine(n)
		return true
	})
	return out, err
}

// FindDown returns a deep copy of name's subtree. nil when name is unknown.
func (s *Service) FindDown(ctx context.Context, name string) (*ImmutableConcept, error) {
	var out *ImmutableConcept
	err := s.query(ctx, "FindDown", name, func(n *Node) bool {
		if n == nil {
			return false
		}
		out = projectSubtree(n)
		return true
	})
	return out, err
}

// FindSiblings returns every child of name's parent, name included.
// The result is empty when name is unknown or is the root.
func (s *Service) FindSiblings(ctx context.Context, name string) ([]SimpleConcept, error) {
	out := []SimpleConcept{}
	err := s.query(ctx, "FindSiblings", name, func(n *Node) bool {
		if n == nil || n.Parent == nil {
			return false
		}
		for _, sib := range n.Parent.Children {
			out = append(out, projectSimple(sib))
		}
		return true
	})
	return out, err
}

// FindDescendantNames lists the primary names of name's subtree in pre-order,
// starting with the matched concept. Empty when name is unknown.
func (s *Service) FindDescendantNames(ctx context.Context, name string) ([]string, error) {
	out := []string{}
	err := s.query(ctx, "FindDescendantNames", name, func(n *Node) bool {
		if n == nil {
			return false
		}
		out = collectNames(projectSubtree(n), out)
		return true
	})
	return out, err
}
