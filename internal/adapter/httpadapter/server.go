package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/weather-lookup-service/internal/adapter/sqlite"
	"github.com/couchcryptid/weather-lookup-service/internal/domain"
)

// RecordStore reads persisted lookup records.
type RecordStore interface {
	Get(ctx context.Context, entity, filename string) (domain.StoredRecord, error)
	FindLatest(ctx context.Context, entity string) (domain.StoredRecord, error)
}

// Server exposes health, readiness, metrics and lookup read endpoints.
type Server struct {
	httpServer *http.Server
	registry   *domain.Registry
	records    RecordStore
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /lookups routes backed by registry. The /records routes are registered
// only when records is non-nil.
func NewServer(addr string, ready sharedobs.ReadinessChecker, registry *domain.Registry, records RecordStore, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		registry: registry,
		records:  records,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /lookups/{entity}", s.handleStems)
	mux.HandleFunc("GET /lookups/{entity}/{stem}", s.handleLookup)
	mux.HandleFunc("GET /lookups/{entity}/{stem}/{accessor}", s.handlePeriod)
	if records != nil {
		mux.HandleFunc("GET /records/{entity}/latest", s.handleLatestRecord)
		mux.HandleFunc("GET /records/{entity}/{stem}", s.handleRecord)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleStems(w http.ResponseWriter, r *http.Request) {
	l, err := s.registry.Loader(r.PathValue("entity"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	stems, err := l.Stems()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if stems == nil {
		stems = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entity": l.Entity().Name, "stems": stems})
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	ev, err := s.registry.Lookup(r.Context(), refFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handlePeriod(w http.ResponseWriter, r *http.Request) {
	a, err := domain.ParseAccessor(r.PathValue("accessor"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": err.Error(), "accessors": domain.Accessors()})
		return
	}
	q := r.URL.Query()
	key := q.Get("key")
	if key == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "key is required"})
		return
	}
	i, err := strconv.Atoi(q.Get("i"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "i must be an integer"})
		return
	}

	rec, err := s.registry.Record(r.Context(), refFrom(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	found, err := rec.Found(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !found {
		s.writeError(w, domain.ErrLookupFileMissing)
		return
	}
	v, err := rec.Period(r.Context(), a, key, i)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"var": a.VarName(key, i), "value": v})
}

func (s *Server) handleLatestRecord(w http.ResponseWriter, r *http.Request) {
	l, err := s.registry.Loader(r.PathValue("entity"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	stored, err := s.records.FindLatest(r.Context(), l.Entity().Name)
	s.writeStored(w, r, l, stored, err)
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	l, err := s.registry.Loader(r.PathValue("entity"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	stored, err := s.records.Get(r.Context(), l.Entity().Name, l.Entity().Filename(r.PathValue("stem")))
	s.writeStored(w, r, l, stored, err)
}

// writeStored resolves a persisted record without touching the lookup file.
func (s *Server) writeStored(w http.ResponseWriter, r *http.Request, l *domain.Loader, stored domain.StoredRecord, err error) {
	if errors.Is(err, sqlite.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	ev, err := domain.NewLookupEvent(r.Context(), l.Restore(stored))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func refFrom(r *http.Request) domain.LookupRef {
	return domain.LookupRef{Entity: r.PathValue("entity"), Stem: r.PathValue("stem")}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var parseErr *domain.RecordParseError
	switch {
	case errors.Is(err, domain.ErrUnknownEntity), errors.Is(err, domain.ErrLookupFileMissing):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidStem):
		status = http.StatusBadRequest
	case errors.As(err, &parseErr):
		status = http.StatusUnprocessableEntity
	default:
		s.logger.Error("lookup request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
