package server

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/teranos/phylo/logger"
)

// routes builds the chi router with middleware and every API route.
func (s *Server) routes() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(s.requestLogging)
	router.Use(chimiddleware.Recoverer)
	router.Use(s.recordMetrics)
	router.Use(cors.Handler(cors.Options{
		AllowOriginFunc:  s.allowOrigin,
		AllowedMethods:   []string{"GET", "DELETE", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/health", s.handleHealth)
	router.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	router.Get("/ws", s.handleWebSocket)

	router.Route("/v1", func(r chi.Router) {
		r.Use(s.rateLimit)

		r.Route("/phylogeny", func(r chi.Router) {
			r.Get("/up/{name}", s.handlePhylogenyUp)
			r.Get("/down/{name}", s.handlePhylogenyDown)
			r.Get("/siblings/{name}", s.handlePhylogenySiblings)
			r.Get("/taxa/{name}", s.handlePhylogenyTaxa)
			r.Get("/cache", s.handleCacheStatus)
			r.Delete("/cache", s.handleCacheClear)
		})

		r.Route("/concept", func(r chi.Router) {
			r.Get("/", s.handleConceptNames)
			r.Get("/find/{glob}", s.handleConceptFind)
			r.Get("/startswith/{prefix}", s.handleConceptStartsWith)
			r.Get("/{name}", s.handleConceptGet)
		})
	})

	return router
}

// allowOrigin checks origin against the reloadable allow list by prefix,
// so "http://localhost" admits any localhost port.
func (s *Server) allowOrigin(r *http.Request, origin string) bool {
	return checkOrigin(origin, *s.origins.Load())
}

func checkOrigin(origin string, allowed []string) bool {
	if origin == "" {
		return true
	}
	for _, prefix := range allowed {
		if prefix == "*" || strings.HasPrefix(origin, prefix) {
			return true
		}
	}
	return false
}

// requestLogger returns the server logger carrying the request id.
func (s *Server) requestLogger(r *http.Request) *zap.SugaredLogger {
	return logger.FromContext(r.Context(), s.log)
}

// requestLogging copies chi's request id into the logger context and logs
// each completed request.
func (s *Server) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := chimiddleware.GetReqID(r.Context())
		if reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
			r = r.WithContext(logger.WithRequestID(r.Context(), reqID))
		}

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.requestLogger(r).Debugw("HTTP request",
			logger.FieldMethod, r.Method,
			logger.FieldPath, r.URL.Path,
			logger.FieldStatus, ww.Status(),
			logger.FieldDurationMS, time.Since(start).Milliseconds(),
		)
	})
}

// recordMetrics observes each request under its route pattern, not the raw
// path, so concept names do not explode label cardinality.
func (s *Server) recordMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ObserveHTTP(r.Method, route, status, time.Since(start))
	})
}

// rateLimit applies the per-client token bucket keyed on the client address.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientKey(r)) {
			w.Header().Set("Retry-After", "1")
			s.handleError(w, r, ErrRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey strips the port from RemoteAddr. RealIP has already replaced it
// with the forwarded address when present.
func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
