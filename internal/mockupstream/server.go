package mockupstream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Chea-Ilong/CFCC-Leaderboard/pkg/logger"
)

// Server serves Fixtures over HTTP:
//
//	GET /{round}                      round metadata, {"name", "questions"}
//	GET /{round}/candidates           paged rows, {"data": [...]}
//	GET /participants.json            registry collections, keyed objects
//	GET /teams.json
//	GET /games.json
//
// Scoring routes require "Authorization: Bearer <token>" when a token is set.
type Server struct {
	mu       sync.RWMutex
	fixtures Fixtures
	failures map[string]int

	token    string
	verbose  bool
	logger   logger.Logger
	requests atomic.Int64
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithToken requires a bearer token on scoring routes.
func WithToken(token string) ServerOption {
	return func(s *Server) { s.token = token }
}

// WithVerbose logs every request.
func WithVerbose(v bool) ServerOption {
	return func(s *Server) { s.verbose = v }
}

// WithServerLogger sets the logger.
func WithServerLogger(l logger.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a Server serving f.
func NewServer(f Fixtures, opts ...ServerOption) *Server {
	s := &Server{fixtures: f, failures: make(map[string]int)}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}
	return s
}

// SetFixtures replaces the served data.
func (s *Server) SetFixtures(f Fixtures) {
	s.mu.Lock()
	s.fixtures = f
	s.mu.Unlock()
}

// Update mutates the served data in place.
func (s *Server) Update(fn func(*Fixtures)) {
	s.mu.Lock()
	fn(&s.fixtures)
	s.mu.Unlock()
}

// Fail makes every request to path answer with status until Recover.
func (s *Server) Fail(path string, status int) {
	s.mu.Lock()
	s.failures[path] = status
	s.mu.Unlock()
}

// Recover clears all injected failures.
func (s *Server) Recover() {
	s.mu.Lock()
	s.failures = make(map[string]int)
	s.mu.Unlock()
}

// Requests returns the number of requests served.
func (s *Server) Requests() int64 { return s.requests.Load() }

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /participants.json", s.handleParticipants)
	mux.HandleFunc("GET /teams.json", s.handleTeams)
	mux.HandleFunc("GET /games.json", s.handleGames)
	mux.HandleFunc("GET /{round}/candidates", s.authorized(s.handleCandidates))
	mux.HandleFunc("GET /{round}", s.authorized(s.handleMetadata))
	return s.instrument(mux)
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		if s.verbose {
			s.logger.Info(r.Context(), "request",
				logger.String("method", r.Method),
				logger.String("path", r.URL.Path),
				logger.String("query", r.URL.RawQuery),
			)
		}
		s.mu.RLock()
		status, failing := s.failures[r.URL.Path]
		s.mu.RUnlock()
		if failing {
			http.Error(w, http.StatusText(status), status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" && r.Header.Get("Authorization") != "Bearer "+s.token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "unauthorized"})
			return
		}
		next(w, r)
	}
}

func (s *Server) round(r *http.Request) (Round, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	round, ok := s.fixtures.Rounds[r.PathValue("round")]
	return round, ok
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	round, ok := s.round(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": round.Name, "questions": round.QuestionIDs})
}

func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	round, ok := s.round(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)

	rows := []Candidate{}
	if offset < len(round.Candidates) {
		end := min(offset+limit, len(round.Candidates))
		rows = round.Candidates[offset:end]
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": rows, "total": len(round.Candidates)})
}

func (s *Server) handleParticipants(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	writeJSON(w, http.StatusOK, keyed(s.fixtures.Participants))
}

func (s *Server) handleTeams(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	writeJSON(w, http.StatusOK, keyed(s.fixtures.Teams))
}

func (s *Server) handleGames(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	writeJSON(w, http.StatusOK, keyed(s.fixtures.Games))
}

// keyed renders records the way a realtime database stores pushed children:
// an object with generated keys. Zero padding keeps the sorted encoder output
// in insertion order.
func keyed[T any](records []T) map[string]T {
	out := make(map[string]T, len(records))
	for i, rec := range records {
		out[fmt.Sprintf("-mock%05d", i)] = rec
	}
	return out
}

func queryInt(r *http.Request, name string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
