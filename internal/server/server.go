// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the research pipeline over HTTP: query submission,
// record lookup, an SSE live feed, history, and the source catalog.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/research-pilot/internal/coordinator"
	"github.com/pdiddy/research-pilot/internal/dispatch"
	"github.com/pdiddy/research-pilot/internal/publisher"
	"github.com/pdiddy/research-pilot/internal/store"
	"github.com/pdiddy/research-pilot/pkg/types"
)

const minQueryLength = 10

// Server wires the HTTP surface to the pipeline components.
type Server struct {
	store      *store.Store
	queue      *coordinator.Queue
	publisher  *publisher.Publisher
	dispatcher *dispatch.Dispatcher
	cfg        types.ServerConfig
	logger     *zap.Logger
}

// New builds the HTTP server over its collaborators.
func New(st *store.Store, queue *coordinator.Queue, pub *publisher.Publisher, disp *dispatch.Dispatcher, cfg types.ServerConfig, logger *zap.Logger) *Server {
	return &Server{
		store:      st,
		queue:      queue,
		publisher:  pub,
		dispatcher: disp,
		cfg:        cfg,
		logger:     logger,
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/research/query", s.handleQuery)
	mux.HandleFunc("GET /api/v1/research/history", s.handleHistory)
	mux.HandleFunc("GET /api/v1/research/stream/{id}", s.handleStream)
	mux.HandleFunc("GET /api/v1/research/{id}", s.handleGet)
	mux.HandleFunc("DELETE /api/v1/research/{id}", s.handleDelete)
	mux.HandleFunc("GET /api/v1/sources", s.handleSources)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	return mux
}

// ListenAndServe runs the server until ctx is cancelled, then drains
// connections and waits for in-flight research runs to reach a terminal
// state.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	s.queue.Wait()
	return nil
}

// queryRequest is the submission payload.
type queryRequest struct {
	Query              string   `json:"query"`
	Sources            []string `json:"sources"`
	IncludeCredibility *bool    `json:"include_credibility"`
	ParentID           string   `json:"parent_research_id"`
}

// queryResponse acknowledges a submission with the tracking id.
type queryResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Query) < minQueryLength {
		s.writeError(w, http.StatusBadRequest, "Query too short (minimum 10 characters)")
		return
	}

	rec := &types.ResearchRecord{
		ID:               uuid.NewString(),
		Query:            req.Query,
		Status:           types.StatusPending,
		RequestedSources: req.Sources,
		ParentID:         req.ParentID,
	}
	if err := s.store.Create(r.Context(), rec); err != nil {
		s.logger.Error("creating research record failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	includeCredibility := req.IncludeCredibility == nil || *req.IncludeCredibility
	if err := s.queue.Schedule(rec.ID, coordinator.RunOptions{IncludeCredibility: includeCredibility}); err != nil {
		// A fresh uuid cannot hold a lease; treat this as a server fault.
		s.logger.Error("scheduling research failed", zap.String("research_id", rec.ID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.logger.Info("research query submitted",
		zap.String("research_id", rec.ID),
		zap.Int("query_length", len(req.Query)))

	s.writeJSON(w, http.StatusOK, queryResponse{
		ID:      rec.ID,
		Status:  string(rec.Status),
		Message: "Research query submitted successfully",
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Research not found")
		return
	}
	if err != nil {
		s.logger.Error("reading research record failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	id := r.PathValue("id")
	for snap := range s.publisher.Observe(r.Context(), id) {
		data, err := json.Marshal(snap)
		if err != nil {
			s.logger.Error("marshaling snapshot failed",
				zap.String("research_id", id),
				zap.Error(err))
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.store.Delete(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Research not found")
		return
	}
	if err != nil {
		s.logger.Error("deleting research record failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Research deleted successfully"})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	records, err := s.store.List(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("listing research records failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if records == nil {
		records = []types.ResearchRecord{}
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	statuses := s.dispatcher.CheckAll(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]any{
		"sources": statuses,
		"summary": dispatch.Summarize(statuses),
		"active":  s.dispatcher.ActiveSources(),
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("writing response failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
