package builder

import (
	"context"

	"github.com/langdag/dagbuilder/internal/workflow"
	"github.com/langdag/dagbuilder/pkg/types"
)

// Validate runs the validator over the addressed session, stores the result
// and moves a DRAFT session to VALIDATED when it passes. The session is saved
// whatever the outcome.
func (b *Builder) Validate(ctx context.Context, sessionID string) (*types.Session, error) {
	session, err := b.resolveOpen(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	result := workflow.ValidateDraft(session.WorkflowDraft)
	session.Validation = result
	switch {
	case result.OK && session.State == types.StateDraft:
		session.State = types.StateValidated
	case !result.OK:
		session.State = types.StateDraft
	}
	session.UpdatedAt = b.now()

	if err := b.save(ctx, session); err != nil {
		return nil, err
	}

	b.logger.Debug("draft validated", "session", session.ID, "ok", result.OK, "errors", len(result.Errors))
	return session, nil
}
