// Package api implements the HTTP surface of the encounter service.
//
// Handler code never writes to the log sink or an error body directly:
// every log line routes through the safe logger and every error body
// through the sanitizer, so PHI cannot leak through either surface.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/osiriscare/encounters/internal/config"
	"github.com/osiriscare/encounters/internal/phi"
	"github.com/osiriscare/encounters/internal/storage"
)

// Server wires routes to storage with PHI-safe logging and error handling.
type Server struct {
	cfg       *config.Config
	store     storage.Store
	log       *phi.SafeLogger
	sanitizer *phi.Sanitizer
	router    *mux.Router
}

// NewServer builds the server. The redactor and classifier are the
// process-wide redaction configuration, injected once at startup.
func NewServer(cfg *config.Config, store storage.Store, red *phi.Redactor, fields *phi.Classifier, sink phi.Sink) *Server {
	s := &Server{
		cfg:       cfg,
		store:     store,
		log:       phi.NewSafeLogger("api", red, fields, sink),
		sanitizer: phi.NewSanitizer(red, fields),
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler with panic recovery applied.
func (s *Server) Handler() http.Handler {
	return s.recoverPanics(s.router)
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	v1 := r.PathPrefix(s.cfg.APIPrefix).Subrouter()
	v1.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	v1.HandleFunc("/encounters", s.requireAuth(s.handleCreateEncounter)).Methods(http.MethodPost)
	v1.HandleFunc("/encounters", s.requireAuth(s.handleListEncounters)).Methods(http.MethodGet)
	v1.HandleFunc("/encounters/{encounter_id}", s.requireAuth(s.handleGetEncounter)).Methods(http.MethodGet)
	v1.HandleFunc("/audit/encounters", s.requireAuth(s.handleAuditTrail)).Methods(http.MethodGet)

	return r
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": s.cfg.ProjectName,
		"version": s.cfg.Version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
