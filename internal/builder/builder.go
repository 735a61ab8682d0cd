// Package builder implements the incremental workflow-graph builder: a
// persisted session that is mutated one operation at a time, validated, and
// finally committed to the workflow-creation service.
package builder

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/langdag/dagbuilder/internal/storage"
	"github.com/langdag/dagbuilder/internal/workflow"
	"github.com/langdag/dagbuilder/pkg/types"
)

// WorkflowCreator submits a workflow to the remote workflow-creation service.
type WorkflowCreator interface {
	CreateWorkflow(ctx context.Context, req *types.CreateWorkflowRequest) (*types.CreateWorkflowResponse, error)
}

// Builder runs builder operations against a session store.
type Builder struct {
	store   storage.Store
	creator WorkflowCreator
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

// Option configures a Builder.
type Option func(*Builder)

// WithCreator sets the service used by Commit.
func WithCreator(c WorkflowCreator) Option {
	return func(b *Builder) {
		b.creator = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = l
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		b.now = now
	}
}

// WithIDGenerator overrides how session ids are generated.
func WithIDGenerator(gen func() string) Option {
	return func(b *Builder) {
		b.newID = gen
	}
}

// New creates a new builder on top of store.
func New(store storage.Store, opts ...Option) *Builder {
	b := &Builder{
		store:  store,
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// StartOptions describes a new builder session.
type StartOptions struct {
	Name        string   `json:"name" validate:"required,notblank"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty" validate:"omitempty,dive,required"`
	Owner       string   `json:"owner,omitempty"`
}

// Start creates a DRAFT session with an empty draft and makes it current.
// A previously current session stays stored and addressable by id.
func (b *Builder) Start(ctx context.Context, opts StartOptions) (*types.Session, error) {
	if err := workflow.CheckStruct(opts); err != nil {
		return nil, errInvalidInput(err)
	}

	now := b.now()
	session := &types.Session{
		ID:        b.newID(),
		Version:   types.SessionSchemaVersion,
		State:     types.StateDraft,
		CreatedAt: now,
		UpdatedAt: now,
		WorkflowDraft: types.Draft{
			Name:        opts.Name,
			Description: opts.Description,
			Nodes:       []types.Node{},
		},
		Validation: emptyValidation(),
	}
	if len(opts.Tags) > 0 || opts.Owner != "" {
		session.WorkflowDraft.Metadata = &types.Metadata{Tags: opts.Tags, Owner: opts.Owner}
	}

	if err := b.save(ctx, session); err != nil {
		return nil, err
	}

	previous, err := b.store.GetCurrent(ctx)
	if err != nil {
		return nil, storeError("get current session", err)
	}
	if err := b.store.SetCurrent(ctx, session.ID); err != nil {
		return nil, storeError("set current session", err)
	}
	if previous != nil && !previous.State.Terminal() {
		b.logger.Warn("replaced current session", "previous", previous.ID, "session", session.ID)
	}

	b.logger.Debug("session started", "session", session.ID, "name", opts.Name)
	return session, nil
}

// StatusResult reports the addressed session, or IDLE when there is none.
type StatusResult struct {
	State   types.State    `json:"state" yaml:"state"`
	Session *types.Session `json:"session,omitempty" yaml:"session,omitempty"`
}

// Status returns the state of the addressed session. With no id and no
// current session the state is IDLE.
func (b *Builder) Status(ctx context.Context, sessionID string) (*StatusResult, error) {
	session, err := b.resolve(ctx, sessionID)
	if IsCode(err, CodeNotStarted) {
		return &StatusResult{State: types.StateIdle}, nil
	}
	if err != nil {
		return nil, err
	}
	return &StatusResult{State: session.State, Session: session}, nil
}

// List returns every stored session, newest first.
func (b *Builder) List(ctx context.Context) ([]*types.Session, error) {
	sessions, err := b.store.List(ctx)
	if err != nil {
		return nil, storeError("list sessions", err)
	}
	return sessions, nil
}

// Abort moves a non-terminal session to ABORTED and releases the current
// pointer if it names the session.
func (b *Builder) Abort(ctx context.Context, sessionID string) (*types.Session, error) {
	session, err := b.resolveOpen(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	session.State = types.StateAborted
	session.UpdatedAt = b.now()
	if err := b.save(ctx, session); err != nil {
		return nil, err
	}
	if err := b.store.ReleaseCurrent(ctx, session.ID); err != nil {
		return nil, storeError("release current session", err)
	}

	b.logger.Debug("session aborted", "session", session.ID)
	return session, nil
}

// Graph returns the structured graph view of the addressed session.
func (b *Builder) Graph(ctx context.Context, sessionID string) (*types.Session, workflow.Graph, error) {
	session, err := b.resolve(ctx, sessionID)
	if err != nil {
		return nil, workflow.Graph{}, err
	}
	return session, workflow.GenerateGraph(session.WorkflowDraft), nil
}

// resolve loads the session named by sessionID, or the current one.
func (b *Builder) resolve(ctx context.Context, sessionID string) (*types.Session, error) {
	if sessionID == "" {
		session, err := b.store.GetCurrent(ctx)
		if err != nil {
			return nil, storeError("get current session", err)
		}
		if session == nil {
			return nil, errNotStarted()
		}
		return session, nil
	}

	session, err := b.store.Load(ctx, sessionID)
	if storage.IsNotFound(err) {
		return nil, errSessionNotFound(sessionID)
	}
	if err != nil {
		return nil, storeError("load session", err)
	}
	return session, nil
}

// resolveOpen is resolve restricted to non-terminal sessions.
func (b *Builder) resolveOpen(ctx context.Context, sessionID string) (*types.Session, error) {
	session, err := b.resolve(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.State.Terminal() {
		return nil, newError(CodeSessionClosed, "session %s is %s and can no longer change", session.ID, session.State).
			withDetails(map[string]any{"sessionId": session.ID, "state": session.State}).
			withHint("start a new session with `dagbuilder start <name>`")
	}
	return session, nil
}

// save persists the session, translating store failures.
func (b *Builder) save(ctx context.Context, session *types.Session) error {
	err := b.store.Save(ctx, session)
	if storage.IsStale(err) {
		b.logger.Warn("rejected stale session write", "session", session.ID, "revision", session.Revision)
		return (&Error{
			Code:    CodeStaleSession,
			Message: "session was modified by another invocation",
			Err:     err,
		}).withHint("re-run the command to apply it on top of the latest state").
			withDetails(map[string]any{"sessionId": session.ID})
	}
	if err != nil {
		return storeError("save session", err)
	}
	return nil
}

func storeError(op string, err error) *Error {
	return &Error{Code: CodeInternal, Message: "session store unavailable: " + op + ": " + err.Error(), Err: err}
}

func emptyValidation() types.ValidationResult {
	return types.ValidationResult{OK: false, Errors: []types.ValidationIssue{}}
}
