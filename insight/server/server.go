// Package server exposes the agent over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/insight-agent/insight/agent"
	"github.com/ZanzyTHEbar/insight-agent/insight/agent/adapters"
	ports "github.com/ZanzyTHEbar/insight-agent/insight/agent/ports"
	"github.com/ZanzyTHEbar/insight-agent/insight/config"
)

// Client-facing messages for 500 responses; details go to the log.
const (
	errQueryFailed = "the query could not be processed, please try again"
	errInternal    = "internal server error"
)

// Tables lists the analysed tables.
type Tables interface {
	ListTables(ctx context.Context) ([]string, error)
	RowCount(ctx context.Context, table string) (int, error)
}

// ArtifactLister returns the artifacts recorded for a conversation.
type ArtifactLister interface {
	ListArtifacts(ctx context.Context, conversationID string) ([]adapters.Artifact, error)
}

// Catalogue lists the registered tools.
type Catalogue interface {
	ListDescriptions() []ports.ToolSpec
}

// Server holds the HTTP handlers' dependencies.
type Server struct {
	cfg       config.ServerConfig
	outputDir string
	sessions  *agent.Sessions
	tools     Catalogue
	tables    Tables
	artifacts ArtifactLister // optional
	logger    zerolog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithArtifacts enables the per-session artifact listing.
func WithArtifacts(lister ArtifactLister) Option {
	return func(s *Server) { s.artifacts = lister }
}

// New creates a Server.
func New(cfg config.ServerConfig, outputDir string, sessions *agent.Sessions, tools Catalogue, tables Tables, logger zerolog.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:       cfg,
		outputDir: outputDir,
		sessions:  sessions,
		tools:     tools,
		tables:    tables,
		logger:    logger.With().Str("component", "server").Logger(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler creates the HTTP router with all API routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(RequestLogger(s.logger))
	r.Use(Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/tools", s.listTools)
		r.Get("/tables", s.listTables)

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.listSessions)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", s.sessionInfo)
				r.Delete("/", s.clearSession)
				r.Post("/query", s.query)
				r.Get("/history", s.history)
				r.Get("/artifacts", s.listArtifacts)
			})
		})
	})

	files := http.StripPrefix("/artifacts/", http.FileServer(http.Dir(s.outputDir)))
	r.Get("/artifacts/*", files.ServeHTTP)

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "insight",
	})
}

func (s *Server) listTools(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.tools.ListDescriptions())
}

type tableInfo struct {
	Name string `json:"name"`
	Rows int    `json:"rows"`
}

func (s *Server) listTables(w http.ResponseWriter, r *http.Request) {
	names, err := s.tables.ListTables(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list tables")
		respondError(w, http.StatusInternalServerError, errInternal)
		return
	}

	out := make([]tableInfo, 0, len(names))
	for _, name := range names {
		n, err := s.tables.RowCount(r.Context(), name)
		if err != nil {
			s.logger.Error().Err(err).Str("table", name).Msg("Failed to count rows")
			respondError(w, http.StatusInternalServerError, errInternal)
			return
		}
		out = append(out, tableInfo{Name: name, Rows: n})
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string][]string{"sessions": s.sessions.Keys()})
}

type queryRequest struct {
	Query string `json:"query"`
}

func (s *Server) query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		respondError(w, http.StatusBadRequest, agent.ErrEmptyQuery.Error())
		return
	}

	a := s.sessions.Get(chi.URLParam(r, "sessionID"))
	resp, err := a.ProcessQuery(r.Context(), req.Query)
	if err != nil {
		if errors.Is(err, agent.ErrEmptyQuery) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error().Err(err).
			Str("request_id", chimw.GetReqID(r.Context())).
			Str("session", chi.URLParam(r, "sessionID")).
			Msg("Query failed")
		respondError(w, http.StatusInternalServerError, errQueryFailed)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) sessionInfo(w http.ResponseWriter, r *http.Request) {
	a, ok := s.sessions.Lookup(chi.URLParam(r, "sessionID"))
	if !ok {
		respondJSON(w, http.StatusOK, agent.SessionInfo{})
		return
	}
	respondJSON(w, http.StatusOK, a.SessionInfo())
}

func (s *Server) clearSession(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "sessionID")
	if a, ok := s.sessions.Lookup(key); ok {
		a.ClearContext(r.Context())
		s.sessions.Delete(key)
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	a, ok := s.sessions.Lookup(chi.URLParam(r, "sessionID"))
	if !ok {
		respondJSON(w, http.StatusOK, []ports.Turn{})
		return
	}
	turns := a.History()
	if turns == nil {
		turns = []ports.Turn{}
	}
	respondJSON(w, http.StatusOK, turns)
}

func (s *Server) listArtifacts(w http.ResponseWriter, r *http.Request) {
	out := []adapters.Artifact{}
	a, ok := s.sessions.Lookup(chi.URLParam(r, "sessionID"))
	if !ok || s.artifacts == nil {
		respondJSON(w, http.StatusOK, out)
		return
	}

	info := a.SessionInfo()
	if info.Active {
		list, err := s.artifacts.ListArtifacts(r.Context(), info.SessionID)
		if err != nil {
			s.logger.Error().Err(err).Str("session_id", info.SessionID).Msg("Failed to list artifacts")
			respondError(w, http.StatusInternalServerError, errInternal)
			return
		}
		out = append(out, list...)
	}
	respondJSON(w, http.StatusOK, out)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
