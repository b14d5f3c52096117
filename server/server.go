// Package server exposes the phylogeny cache and concept store over HTTP,
// with a websocket feed of cache rebuilds.
package server

import (
	"context"
	"database/sql"
	"net/http"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/teranos/phylo/am"
	"github.com/teranos/phylo/observability"
	"github.com/teranos/phylo/phylogeny"
	"github.com/teranos/phylo/storage"
)

const metricsNamespace = "phylo"

// Server wires the stores, the phylogeny cache, metrics and the websocket hub
// behind one chi router.
type Server struct {
	db       *sql.DB
	concepts *storage.ConceptStore
	names    *storage.NameStore
	phylo    *phylogeny.Service
	metrics  *observability.Collector
	hub      *Hub
	limiter  *clientLimiter
	origins  atomic.Pointer[[]string]
	handler  http.Handler
	log      *zap.SugaredLogger

	httpServer *http.Server
	state      atomic.Int32
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// Option configures optional server collaborators.
type Option func(*options)

type options struct {
	tracerProvider trace.TracerProvider
}

// WithTracerProvider sends phylogeny spans to tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// New builds a server over db using cfg. db must already be migrated.
func New(cfg *am.Config, db *sql.DB, log *zap.SugaredLogger, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	metrics := observability.NewCollector(metricsNamespace)
	hub := NewHub(log.Named("ws"), metrics.WSClients)

	s := &Server{
		db:       db,
		concepts: storage.NewConceptStore(db, log.Named("concepts")),
		names:    storage.NewNameStore(db),
		metrics:  metrics,
		hub:      hub,
		limiter:  newClientLimiter(cfg.Server.RateLimit.RequestsPerSecond, cfg.Server.RateLimit.Burst),
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
	phyloOpts := []phylogeny.Option{
		phylogeny.WithLogger(log.Named("phylogeny.cache")),
		phylogeny.WithMetrics(metrics),
		phylogeny.WithRebuildListener(hub.NotifyRebuilt),
	}
	if o.tracerProvider != nil {
		phyloOpts = append(phyloOpts, phylogeny.WithTracerProvider(o.tracerProvider))
	}
	s.phylo = phylogeny.New(storage.NewRowSource(db, log.Named("rows")), phyloOpts...)
	s.setOrigins(cfg.GetServerAllowedOrigins())
	s.handler = s.routes()
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: ReadHeaderTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}
	s.state.Store(int32(StateRunning))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		hub.Run(ctx)
	}()

	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Phylogeny returns the cache service.
func (s *Server) Phylogeny() *phylogeny.Service {
	return s.phylo
}

// Metrics returns the prometheus collector.
func (s *Server) Metrics() *observability.Collector {
	return s.metrics
}

// ApplyConfig applies the reloadable parts of cfg: allowed origins and the
// rate limit. It has the am.ReloadCallback signature.
func (s *Server) ApplyConfig(cfg *am.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	origins := cfg.GetServerAllowedOrigins()
	s.setOrigins(origins)
	s.limiter.SetLimit(cfg.Server.RateLimit.RequestsPerSecond, cfg.Server.RateLimit.Burst)
	s.log.Infow("Applied configuration",
		"allowed_origins", origins,
		"rate_limit_rps", cfg.Server.RateLimit.RequestsPerSecond,
		"rate_limit_burst", cfg.Server.RateLimit.Burst,
	)
	return nil
}

func (s *Server) setOrigins(origins []string) {
	cp := append([]string(nil), origins...)
	s.origins.Store(&cp)
}
