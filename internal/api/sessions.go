package api

import (
	"net/http"

	"github.com/langdag/dagbuilder/internal/builder"
	"github.com/langdag/dagbuilder/internal/workflow"
)

// ConnectionRequest names one dependency edge.
type ConnectionRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func badBody(err error) error {
	return &workflow.InputError{Problems: []workflow.Problem{{Message: "request body is not valid JSON: " + err.Error()}}}
}

// decodeObjectBody reads a JSON object body into a map.
func decodeObjectBody(r *http.Request) (map[string]any, error) {
	var raw map[string]any
	if err := decodeJSON(r, &raw); err != nil {
		return nil, badBody(err)
	}
	if raw == nil {
		return nil, &workflow.InputError{Problems: []workflow.Problem{{Message: "request body must be an object"}}}
	}
	return raw, nil
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.builder.List(r.Context())
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, TypeSessionList, Summarize(sessions))
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var opts builder.StartOptions
	if err := decodeJSON(r, &opts); err != nil {
		writeFailure(w, r, badBody(err))
		return
	}

	session, err := s.builder.Start(r.Context(), opts)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, TypeSessionStart, session)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.builder.Status(r.Context(), sessionID(r))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, TypeSessionStatus, status)
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	session, err := s.builder.Abort(r.Context(), sessionID(r))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, TypeSessionAbort, session)
}

func (s *Server) handleAddNode(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeObjectBody(r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	node, err := workflow.NodeFromMap(raw)
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	result, err := s.builder.AddNode(r.Context(), sessionID(r), node)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, TypeNodeAdd, MutationPayload{
		SessionID: result.Session.ID,
		State:     result.Session.State,
		Result:    result,
	})
}

func (s *Server) handleUpdateNode(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeObjectBody(r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	patch, err := workflow.PatchFromMap(raw)
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	result, err := s.builder.UpdateNode(r.Context(), sessionID(r), r.PathValue("nodeId"), patch)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, TypeNodeUpdate, MutationPayload{
		SessionID: result.Session.ID,
		State:     result.Session.State,
		Result:    result,
	})
}

func (s *Server) handleRemoveNode(w http.ResponseWriter, r *http.Request) {
	result, err := s.builder.RemoveNode(r.Context(), sessionID(r), r.PathValue("nodeId"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, TypeNodeRemove, MutationPayload{
		SessionID: result.Session.ID,
		State:     result.Session.State,
		Result:    result,
	})
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req ConnectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, r, badBody(err))
		return
	}

	result, err := s.builder.Connect(r.Context(), sessionID(r), req.From, req.To)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, TypeConnect, MutationPayload{
		SessionID: result.Session.ID,
		State:     result.Session.State,
		Result:    result,
	})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	req := ConnectionRequest{
		From: r.URL.Query().Get("from"),
		To:   r.URL.Query().Get("to"),
	}

	result, err := s.builder.Disconnect(r.Context(), sessionID(r), req.From, req.To)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, TypeDisconnect, MutationPayload{
		SessionID: result.Session.ID,
		State:     result.Session.State,
		Result:    result,
	})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	session, graph, err := s.builder.Graph(r.Context(), sessionID(r))
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "ascii" {
		writeSuccess(w, http.StatusOK, TypeGraphASCII, ASCIIPayload{
			SessionID: session.ID,
			ASCII:     workflow.RenderASCII(session.WorkflowDraft, graph),
		})
		return
	}
	writeSuccess(w, http.StatusOK, TypeGraph, NewGraphPayload(session, graph))
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	session, err := s.builder.Validate(r.Context(), sessionID(r))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, TypeValidate, NewValidationPayload(session))
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	result, err := s.builder.Commit(r.Context(), sessionID(r))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, TypeCommit, MutationPayload{
		SessionID: result.Session.ID,
		State:     result.Session.State,
		Result:    result,
	})
}
