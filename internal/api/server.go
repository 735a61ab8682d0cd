// Package api exposes builder operations over HTTP using the same envelopes
// as the command line.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/moogar0880/problems"

	"github.com/langdag/dagbuilder/internal/builder"
	"github.com/langdag/dagbuilder/internal/logging"
)

// CurrentSession addresses the store's current session in URLs.
const CurrentSession = "current"

// Server represents the HTTP API server.
type Server struct {
	httpServer  *http.Server
	builder     *builder.Builder
	apiKey      string
	corsOrigins []string
	logger      *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Addr        string
	APIKey      string // Optional API key for authentication
	CORSOrigins []string
	Logger      *slog.Logger
}

// New creates a new API server on top of b.
func New(cfg *Config, b *builder.Builder) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		builder:     b,
		apiKey:      cfg.APIKey,
		corsOrigins: cfg.CORSOrigins,
		logger:      logger,
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // commit waits on the workflow service
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /sessions", s.authMiddleware(s.handleListSessions))
	mux.HandleFunc("POST /sessions", s.authMiddleware(s.handleStart))
	mux.HandleFunc("GET /sessions/{id}", s.authMiddleware(s.handleStatus))
	mux.HandleFunc("POST /sessions/{id}/abort", s.authMiddleware(s.handleAbort))

	mux.HandleFunc("POST /sessions/{id}/nodes", s.authMiddleware(s.handleAddNode))
	mux.HandleFunc("PATCH /sessions/{id}/nodes/{nodeId}", s.authMiddleware(s.handleUpdateNode))
	mux.HandleFunc("DELETE /sessions/{id}/nodes/{nodeId}", s.authMiddleware(s.handleRemoveNode))
	mux.HandleFunc("POST /sessions/{id}/connections", s.authMiddleware(s.handleConnect))
	mux.HandleFunc("DELETE /sessions/{id}/connections", s.authMiddleware(s.handleDisconnect))

	mux.HandleFunc("GET /sessions/{id}/graph", s.authMiddleware(s.handleGraph))
	mux.HandleFunc("POST /sessions/{id}/validate", s.authMiddleware(s.handleValidate))
	mux.HandleFunc("POST /sessions/{id}/commit", s.authMiddleware(s.handleCommit))

	return s.corsMiddleware(s.logMiddleware(mux))
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting API server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// authMiddleware checks for API key authentication if configured.
func (s *Server) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				auth = r.Header.Get("X-API-Key")
			} else {
				auth = strings.TrimPrefix(auth, "Bearer ")
			}

			if auth != s.apiKey {
				writeProblem(w, r, http.StatusUnauthorized, "unauthorized", "missing or invalid API key")
				return
			}
		}
		next(w, r)
	}
}

// corsMiddleware adds CORS headers.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := s.allowedOrigin(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowedOrigin(origin string) string {
	for _, allowed := range s.corsOrigins {
		if allowed == "*" {
			return "*"
		}
		if origin != "" && allowed == origin {
			return origin
		}
	}
	return ""
}

// logMiddleware puts the server logger on the request context.
func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := s.logger.With("method", r.Method, "path", r.URL.Path)
		logger.Debug("request")
		next.ServeHTTP(w, r.WithContext(logging.WithLogger(r.Context(), logger)))
	})
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a success envelope.
func writeSuccess(w http.ResponseWriter, status int, typ string, payload any) {
	writeJSON(w, status, NewSuccess(typ, payload))
}

// writeFailure writes err as a failure envelope.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	f := FailureFrom(err)
	status := StatusFor(f.Code)
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("request failed", "code", f.Code, "error", err)
	}
	writeJSON(w, status, f)
}

// writeProblem writes a transport-level error that never reached the builder.
func writeProblem(w http.ResponseWriter, r *http.Request, status int, typ, detail string) {
	problem := problems.NewStatusProblem(status).
		WithInstance(r.URL.Path).
		WithType(typ).
		WithDetail(detail)

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(problem)
}

// decodeJSON decodes JSON from the request body.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(v)
}

// sessionID maps the {id} path segment to a builder session id.
func sessionID(r *http.Request) string {
	id := r.PathValue("id")
	if id == CurrentSession {
		return ""
	}
	return id
}
