package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/teranos/phylo/errors"
	"github.com/teranos/phylo/logger"
	"github.com/teranos/phylo/phylogeny"
)

// HealthResponse is the /health body.
type HealthResponse struct {
	Status string             `json:"status"`
	State  string             `json:"state"`
	Cache  phylogeny.Snapshot `json:"cache"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	health := "ok"
	if err := s.db.PingContext(r.Context()); err != nil {
		s.requestLogger(r).Warnw("Health check ping failed", logger.FieldError, err)
		status = http.StatusServiceUnavailable
		health = "degraded"
	}
	writeJSON(w, status, HealthResponse{
		Status: health,
		State:  s.State().String(),
		Cache:  s.phylo.Snapshot(),
	})
}

func (s *Server) handlePhylogenyUp(w http.ResponseWriter, r *http.Request) {
	name, err := pathParam(r, "name")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	concept, err := s.phylo.FindUp(r.Context(), name)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if concept == nil {
		s.handleError(w, r, errors.Wrapf(ErrNotFound, "concept %q", name))
		return
	}
	writeJSON(w, http.StatusOK, concept)
}

func (s *Server) handlePhylogenyDown(w http.ResponseWriter, r *http.Request) {
	name, err := pathParam(r, "name")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	concept, err := s.phylo.FindDown(r.Context(), name)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if concept == nil {
		s.handleError(w, r, errors.Wrapf(ErrNotFound, "concept %q", name))
		return
	}
	writeJSON(w, http.StatusOK, concept)
}

func (s *Server) handlePhylogenySiblings(w http.ResponseWriter, r *http.Request) {
	name, err := pathParam(r, "name")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	siblings, err := s.phylo.FindSiblings(r.Context(), name)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, siblings)
}

func (s *Server) handlePhylogenyTaxa(w http.ResponseWriter, r *http.Request) {
	name, err := pathParam(r, "name")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	names, err := s.phylo.FindDescendantNames(r.Context(), name)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleCacheStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.phylo.Snapshot())
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	s.phylo.Clear()
	s.hub.Broadcast(StatusMessage{Type: MessageCacheCleared, Cache: s.phylo.Snapshot()})
	s.requestLogger(r).Infow("Phylogeny cache cleared")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConceptNames(w http.ResponseWriter, r *http.Request) {
	names, err := s.names.FindAllNames(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(names))
}

func (s *Server) handleConceptFind(w http.ResponseWriter, r *http.Request) {
	glob, err := pathParam(r, "glob")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	names, err := s.names.FindByNameContaining(r.Context(), glob)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(names))
}

func (s *Server) handleConceptStartsWith(w http.ResponseWriter, r *http.Request) {
	prefix, err := pathParam(r, "prefix")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	names, err := s.names.FindByNameStartingWith(r.Context(), prefix)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(names))
}

// handleConceptGet returns the stored concept record, names included.
func (s *Server) handleConceptGet(w http.ResponseWriter, r *http.Request) {
	name, err := pathParam(r, "name")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	concept, err := s.concepts.FindByName(r.Context(), name)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, concept)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.State() != StateRunning {
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return checkOrigin(r.Header.Get("Origin"), *s.origins.Load())
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		s.requestLogger(r).Warnw("WebSocket upgrade failed", logger.FieldError, err)
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan interface{}, sendBufferSize),
		id:   uuid.NewString(),
	}
	// Queued before registration so it is always the first message
	client.send <- StatusMessage{Type: MessageCacheStatus, Cache: s.phylo.Snapshot()}

	if !s.hub.Register(client) {
		conn.Close()
		return
	}
	s.requestLogger(r).Infow("WebSocket client connected", logger.FieldClientID, client.id)

	go client.writePump()
	go client.readPump()
}

func nonNil(names []string) []string {
	if names == nil {
		return []string{}
	}
	return names
}
