package builder

import (
	"context"
	"errors"

	"github.com/langdag/dagbuilder/pkg/types"
)

// ErrNoCreator is returned by Commit when the builder has no workflow service.
var ErrNoCreator = errors.New("builder: no workflow service configured")

// CommitResult is returned by a successful commit.
type CommitResult struct {
	Session    *types.Session   `json:"-" yaml:"-"`
	WorkflowID string           `json:"workflowId" yaml:"workflowId"`
	Commit     types.CommitInfo `json:"commit" yaml:"commit"`
}

// RequireCommittable fails unless the session is VALIDATED.
func RequireCommittable(session *types.Session) error {
	if session.State == types.StateValidated {
		return nil
	}
	return newError(CodeNotValidated, "session %s is %s, only VALIDATED sessions can be committed", session.ID, session.State).
		withDetails(map[string]any{"sessionId": session.ID, "state": session.State}).
		withHint("run `dagbuilder validate` and fix any reported errors")
}

// BuildCreateRequest converts the session draft into a workflow-creation
// request.
func BuildCreateRequest(session *types.Session) *types.CreateWorkflowRequest {
	draft := session.WorkflowDraft
	nodes := make([]types.WorkflowSpecNode, len(draft.Nodes))
	for i, n := range draft.Nodes {
		c := n.Clone()
		nodes[i] = types.WorkflowSpecNode{
			ID:        c.ID,
			Type:      c.Type,
			Input:     c.Input,
			DependsOn: c.DependsOn,
		}
	}
	return &types.CreateWorkflowRequest{
		Name:        draft.Name,
		Description: draft.Description,
		Spec: types.WorkflowSpec{
			Version:  types.WorkflowSpecVersion,
			Nodes:    nodes,
			Metadata: draft.Metadata,
		},
	}
}

// Commit submits a VALIDATED session to the workflow service. On success the
// session becomes COMMITTED and stops being current. Service failures are
// returned unchanged and leave the session VALIDATED.
func (b *Builder) Commit(ctx context.Context, sessionID string) (*CommitResult, error) {
	session, err := b.resolve(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := RequireCommittable(session); err != nil {
		return nil, err
	}
	if b.creator == nil {
		return nil, &Error{Code: CodeInternal, Message: ErrNoCreator.Error(), Err: ErrNoCreator}
	}

	req := BuildCreateRequest(session)
	b.logger.Info("creating workflow", "session", session.ID, "name", req.Name, "nodes", len(req.Spec.Nodes))

	resp, err := b.creator.CreateWorkflow(ctx, req)
	if err != nil {
		b.logger.Error("workflow creation failed", "session", session.ID, "error", err)
		return nil, err
	}

	session.Commit = &types.CommitInfo{WorkflowID: resp.WorkflowID, CommittedAt: b.now()}
	session.State = types.StateCommitted
	session.UpdatedAt = session.Commit.CommittedAt

	if err := b.save(ctx, session); err != nil {
		b.logger.Error("workflow created but session could not be saved",
			"session", session.ID, "workflow", resp.WorkflowID, "error", err)
		return nil, (&Error{
			Code:    CodeInternal,
			Message: "workflow " + resp.WorkflowID + " was created but the session could not be updated",
			Err:     err,
		}).withDetails(map[string]any{"sessionId": session.ID, "workflowId": resp.WorkflowID})
	}
	if err := b.store.ReleaseCurrent(ctx, session.ID); err != nil {
		return nil, storeError("release current session", err)
	}

	return &CommitResult{Session: session, WorkflowID: resp.WorkflowID, Commit: *session.Commit}, nil
}
