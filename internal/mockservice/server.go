// Package mockservice implements a stand-in for the workflow-creation
// service, for local runs and tests of commit.
package mockservice

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/langdag/dagbuilder/pkg/types"
)

// Config holds the mock server configuration.
type Config struct {
	Port         int
	Mode         string // ok, error
	Delay        time.Duration
	ErrorCode    int
	ErrorMessage string
}

// Server is the mock workflow service.
type Server struct {
	cfg        *Config
	httpServer *http.Server

	mu       sync.Mutex
	requests []types.CreateWorkflowRequest
}

// NewServer creates a new mock server.
func NewServer(cfg *Config) *Server {
	s := &Server{cfg: cfg}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /workflows", s.handleCreateWorkflow)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// HTTPServer exposes the underlying server for shutdown.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Requests returns the workflow requests received so far.
func (s *Server) Requests() []types.CreateWorkflowRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.CreateWorkflowRequest(nil), s.requests...)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req types.CreateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "failed to decode request body")
		return
	}

	if s.cfg.Delay > 0 {
		time.Sleep(s.cfg.Delay)
	}

	if s.cfg.Mode == "error" {
		code := s.cfg.ErrorCode
		if code == 0 {
			code = http.StatusInternalServerError
		}
		writeError(w, code, s.cfg.ErrorMessage)
		return
	}

	if req.Name == "" || len(req.Spec.Nodes) == 0 {
		writeError(w, http.StatusBadRequest, "name and at least one node are required")
		return
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, types.CreateWorkflowResponse{
		WorkflowID: "wf_" + uuid.New().String(),
		Name:       req.Name,
		CreatedAt:  time.Now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
