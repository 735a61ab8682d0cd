package api

import (
	"errors"
	"net/http"

	"github.com/langdag/dagbuilder/internal/builder"
	"github.com/langdag/dagbuilder/internal/client"
	"github.com/langdag/dagbuilder/internal/workflow"
	"github.com/langdag/dagbuilder/pkg/types"
)

// Envelope types, named <component>.<action>.
const (
	TypeSessionStart  = "session.start"
	TypeSessionStatus = "session.status"
	TypeSessionList   = "session.list"
	TypeSessionAbort  = "session.abort"
	TypeNodeAdd       = "node.add"
	TypeNodeUpdate    = "node.update"
	TypeNodeRemove    = "node.remove"
	TypeConnect       = "connection.connect"
	TypeDisconnect    = "connection.disconnect"
	TypeGraph         = "graph.generate"
	TypeGraphASCII    = "graph.ascii"
	TypeValidate      = "validator.validate"
	TypeCommit        = "commit.commit"
)

// Success is the envelope for a completed operation.
type Success struct {
	OK      bool   `json:"ok" yaml:"ok"`
	Type    string `json:"type" yaml:"type"`
	Payload any    `json:"payload" yaml:"payload"`
}

// Failure is the envelope for a failed operation.
type Failure struct {
	OK      bool           `json:"ok" yaml:"ok"`
	Code    string         `json:"code" yaml:"code"`
	Message string         `json:"message" yaml:"message"`
	Hint    string         `json:"hint,omitempty" yaml:"hint,omitempty"`
	Details map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
}

// NewSuccess wraps payload in a success envelope.
func NewSuccess(typ string, payload any) Success {
	return Success{OK: true, Type: typ, Payload: payload}
}

// FailureFrom renders any error as a failure envelope. Errors from the
// workflow service become COMMIT_FAILED; anything untyped is INTERNAL_ERROR.
func FailureFrom(err error) Failure {
	var be *builder.Error
	if errors.As(err, &be) {
		return Failure{Code: be.Code, Message: be.Message, Hint: be.Hint, Details: be.Details}
	}

	if client.IsServiceError(err) {
		f := Failure{
			Code:    builder.CodeCommitFailed,
			Message: err.Error(),
			Hint:    "the session is still VALIDATED, re-run commit once the workflow service is reachable",
		}
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			f.Details = map[string]any{"status": apiErr.StatusCode}
		}
		return f
	}

	var ie *workflow.InputError
	if errors.As(err, &ie) {
		return Failure{Code: builder.CodeInvalidInput, Message: err.Error(), Details: map[string]any{"problems": ie.Problems}}
	}

	return Failure{Code: builder.CodeInternal, Message: err.Error()}
}

// StatusFor maps a failure code to an HTTP status.
func StatusFor(code string) int {
	switch code {
	case builder.CodeInvalidInput, builder.CodeDuplicateNodeID, builder.CodeDuplicateEdge, builder.CodeSelfReference:
		return http.StatusBadRequest
	case builder.CodeNodeNotFound, builder.CodeEdgeNotFound, builder.CodeSessionNotFound, builder.CodeNotStarted:
		return http.StatusNotFound
	case builder.CodeNotValidated, builder.CodeSessionClosed, builder.CodeStaleSession:
		return http.StatusConflict
	case builder.CodeCommitFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// SessionSummary is the row shape used by session listings.
type SessionSummary struct {
	ID         string      `json:"id" yaml:"id"`
	Name       string      `json:"name" yaml:"name"`
	State      types.State `json:"state" yaml:"state"`
	Nodes      int         `json:"nodes" yaml:"nodes"`
	WorkflowID string      `json:"workflowId,omitempty" yaml:"workflowId,omitempty"`
	CreatedAt  string      `json:"createdAt" yaml:"createdAt"`
	UpdatedAt  string      `json:"updatedAt" yaml:"updatedAt"`
}

// Summarize builds listing rows for sessions.
func Summarize(sessions []*types.Session) []SessionSummary {
	out := make([]SessionSummary, len(sessions))
	for i, s := range sessions {
		out[i] = SessionSummary{
			ID:        s.ID,
			Name:      s.WorkflowDraft.Name,
			State:     s.State,
			Nodes:     len(s.WorkflowDraft.Nodes),
			CreatedAt: s.CreatedAt.Format("2006-01-02T15:04:05Z"),
			UpdatedAt: s.UpdatedAt.Format("2006-01-02T15:04:05Z"),
		}
		if s.Commit != nil {
			out[i].WorkflowID = s.Commit.WorkflowID
		}
	}
	return out
}

// ValidationPayload is the payload of a validate envelope.
type ValidationPayload struct {
	SessionID string                  `json:"sessionId" yaml:"sessionId"`
	State     types.State             `json:"state" yaml:"state"`
	OK        bool                    `json:"ok" yaml:"ok"`
	Errors    []types.ValidationIssue `json:"errors" yaml:"errors"`
}

// NewValidationPayload reports the validation stored on session.
func NewValidationPayload(session *types.Session) ValidationPayload {
	errs := session.Validation.Errors
	if errs == nil {
		errs = []types.ValidationIssue{}
	}
	return ValidationPayload{
		SessionID: session.ID,
		State:     session.State,
		OK:        session.Validation.OK,
		Errors:    errs,
	}
}

// GraphPayload is the payload of a graph envelope.
type GraphPayload struct {
	SessionID string              `json:"sessionId" yaml:"sessionId"`
	Name      string              `json:"name" yaml:"name"`
	Nodes     []types.Node        `json:"nodes" yaml:"nodes"`
	Edges     []workflow.Edge     `json:"edges" yaml:"edges"`
	Stats     workflow.GraphStats `json:"stats" yaml:"stats"`
}

// NewGraphPayload wraps a generated graph.
func NewGraphPayload(session *types.Session, g workflow.Graph) GraphPayload {
	return GraphPayload{
		SessionID: session.ID,
		Name:      session.WorkflowDraft.Name,
		Nodes:     g.Nodes,
		Edges:     g.Edges,
		Stats:     g.Stats,
	}
}

// ASCIIPayload is the payload of an ascii graph envelope.
type ASCIIPayload struct {
	SessionID string `json:"sessionId" yaml:"sessionId"`
	ASCII     string `json:"ascii" yaml:"ascii"`
}

// MutationPayload adds the resulting session state to a mutation result.
type MutationPayload struct {
	SessionID string      `json:"sessionId" yaml:"sessionId"`
	State     types.State `json:"state" yaml:"state"`
	Result    any         `json:"result" yaml:"result"`
}
