package builder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langdag/dagbuilder/internal/storage"
	"github.com/langdag/dagbuilder/internal/storage/sqlite"
	"github.com/langdag/dagbuilder/internal/workflow"
	"github.com/langdag/dagbuilder/pkg/types"
)

type fakeCreator struct {
	calls    int
	requests []*types.CreateWorkflowRequest
	err      error
}

func (f *fakeCreator) CreateWorkflow(_ context.Context, req *types.CreateWorkflowRequest) (*types.CreateWorkflowResponse, error) {
	f.calls++
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &types.CreateWorkflowResponse{
		WorkflowID: fmt.Sprintf("wf-%d", f.calls),
		Name:       req.Name,
		CreatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}, nil
}

func newTestStore(t *testing.T) *sqlite.SQLiteStorage {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Init(context.Background()))
	return store
}

func newTestBuilder(t *testing.T, store storage.Store, creator WorkflowCreator) *Builder {
	t.Helper()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seq := 0
	return New(store,
		WithCreator(creator),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("session-%d", seq)
		}),
	)
}

func testNode(id, typ string, deps ...string) types.Node {
	return types.Node{ID: id, Type: typ, Input: map[string]any{}, DependsOn: deps}
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, CodeOf(err), "error: %v", err)
}

func TestEndToEndCommit(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	creator := &fakeCreator{}
	b := newTestBuilder(t, store, creator)

	session, err := b.Start(ctx, StartOptions{Name: "demo"})
	require.NoError(t, err)
	assert.Equal(t, types.StateDraft, session.State)

	_, err = b.AddNode(ctx, "", types.Node{ID: "n1", Type: "http", Input: map[string]any{"url": "https://example.com"}})
	require.NoError(t, err)
	_, err = b.AddNode(ctx, "", testNode("n2", "transform", "n1"))
	require.NoError(t, err)

	validated, err := b.Validate(ctx, "")
	require.NoError(t, err)
	assert.True(t, validated.Validation.OK)
	assert.Empty(t, validated.Validation.Errors)
	assert.Equal(t, types.StateValidated, validated.State)

	result, err := b.Commit(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "wf-1", result.WorkflowID)
	assert.Equal(t, 1, creator.calls)

	req := creator.requests[0]
	assert.Equal(t, "demo", req.Name)
	assert.Equal(t, 1, req.Spec.Version)
	require.Len(t, req.Spec.Nodes, 2)
	assert.Equal(t, []string{}, req.Spec.Nodes[0].DependsOn)
	assert.Equal(t, []string{"n1"}, req.Spec.Nodes[1].DependsOn)
	assert.Equal(t, "https://example.com", req.Spec.Nodes[0].Input["url"])

	stored, err := store.Load(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StateCommitted, stored.State)
	require.NotNil(t, stored.Commit)
	assert.Equal(t, "wf-1", stored.Commit.WorkflowID)

	current, err := store.GetCurrent(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)

	_, err = b.AddNode(ctx, "", testNode("n3", "http"))
	requireCode(t, err, CodeNotStarted)

	_, err = b.AddNode(ctx, session.ID, testNode("n3", "http"))
	requireCode(t, err, CodeSessionClosed)
}

func TestCommitSendsInputNumbersUnchanged(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	creator := &fakeCreator{}
	b := newTestBuilder(t, store, creator)

	node, err := workflow.ParseNode([]byte(`{"id":"n1","type":"http","input":{"id":9007199254740993,"n":12345678901234567890}}`))
	require.NoError(t, err)

	session, err := b.Start(ctx, StartOptions{Name: "demo"})
	require.NoError(t, err)
	_, err = b.AddNode(ctx, "", node)
	require.NoError(t, err)
	_, err = b.Validate(ctx, "")
	require.NoError(t, err)

	stored, err := store.Load(ctx, session.ID)
	require.NoError(t, err)
	input, err := json.Marshal(BuildCreateRequest(stored).Spec.Nodes[0].Input)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":9007199254740993,"n":12345678901234567890}`, string(input))

	_, err = b.Commit(ctx, "")
	require.NoError(t, err)
	require.Len(t, creator.requests, 1)
	sent, err := json.Marshal(creator.requests[0].Spec.Nodes[0].Input)
	require.NoError(t, err)
	assert.Equal(t, `{"id":9007199254740993,"n":12345678901234567890}`, string(sent))
}

func TestCommitRequiresValidatedSession(t *testing.T) {
	ctx := context.Background()
	creator := &fakeCreator{}
	b := newTestBuilder(t, newTestStore(t), creator)

	_, err := b.Start(ctx, StartOptions{Name: "demo"})
	require.NoError(t, err)
	_, err = b.AddNode(ctx, "", testNode("n1", "http"))
	require.NoError(t, err)

	_, err = b.Commit(ctx, "")
	requireCode(t, err, CodeNotValidated)
	assert.Equal(t, 0, creator.calls)
}

func TestCommitWithoutSession(t *testing.T) {
	creator := &fakeCreator{}
	b := newTestBuilder(t, newTestStore(t), creator)

	_, err := b.Commit(context.Background(), "")
	requireCode(t, err, CodeNotStarted)
	assert.Equal(t, 0, creator.calls)
}

func TestCommitServiceFailureKeepsSessionValidated(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	serviceErr := errors.New("connection refused")
	creator := &fakeCreator{err: serviceErr}
	b := newTestBuilder(t, store, creator)

	session, err := b.Start(ctx, StartOptions{Name: "demo"})
	require.NoError(t, err)
	_, err = b.AddNode(ctx, "", testNode("n1", "http"))
	require.NoError(t, err)
	_, err = b.Validate(ctx, "")
	require.NoError(t, err)

	_, err = b.Commit(ctx, "")
	require.ErrorIs(t, err, serviceErr)

	stored, err := store.Load(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StateValidated, stored.State)
	assert.Nil(t, stored.Commit)

	current, err := store.GetCurrent(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, session.ID, current.ID)
}

func TestCommitWithoutCreator(t *testing.T) {
	ctx := context.Background()
	b := newTestBuilder(t, newTestStore(t), nil)

	_, err := b.Start(ctx, StartOptions{Name: "demo"})
	require.NoError(t, err)
	_, err = b.AddNode(ctx, "", testNode("n1", "http"))
	require.NoError(t, err)
	_, err = b.Validate(ctx, "")
	require.NoError(t, err)

	_, err = b.Commit(ctx, "")
	require.ErrorIs(t, err, ErrNoCreator)
}

func TestMutationsRequireSession(t *testing.T) {
	ctx := context.Background()
	b := newTestBuilder(t, newTestStore(t), nil)

	_, err := b.AddNode(ctx, "", testNode("n1", "http"))
	requireCode(t, err, CodeNotStarted)
	_, err = b.RemoveNode(ctx, "", "n1")
	requireCode(t, err, CodeNotStarted)
	_, err = b.Connect(ctx, "", "a", "b")
	requireCode(t, err, CodeNotStarted)
	_, err = b.Validate(ctx, "")
	requireCode(t, err, CodeNotStarted)
	_, err = b.AddNode(ctx, "nope", testNode("n1", "http"))
	requireCode(t, err, CodeSessionNotFound)
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	b := newTestBuilder(t, newTestStore(t), nil)

	status, err := b.Status(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, types.StateIdle, status.State)
	assert.Nil(t, status.Session)

	session, err := b.Start(ctx, StartOptions{Name: "demo", Tags: []string{"etl"}, Owner: "ops"})
	require.NoError(t, err)

	status, err = b.Status(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, types.StateDraft, status.State)
	require.NotNil(t, status.Session)
	assert.Equal(t, session.ID, status.Session.ID)
	require.NotNil(t, status.Session.WorkflowDraft.Metadata)
	assert.Equal(t, []string{"etl"}, status.Session.WorkflowDraft.Metadata.Tags)
}

func TestStartValidatesOptions(t *testing.T) {
	b := newTestBuilder(t, newTestStore(t), nil)

	_, err := b.Start(context.Background(), StartOptions{})
	requireCode(t, err, CodeInvalidInput)

	var ie *workflow.InputError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "name", ie.Problems[0].Field)
}

func TestStartRejectsBlankName(t *testing.T) {
	store := newTestStore(t)
	b := newTestBuilder(t, store, nil)

	_, err := b.Start(context.Background(), StartOptions{Name: "   "})
	requireCode(t, err, CodeInvalidInput)

	var ie *workflow.InputError
	require.ErrorAs(t, err, &ie)
	require.Len(t, ie.Problems, 1)
	assert.Equal(t, "name", ie.Problems[0].Field)
	assert.Equal(t, "must not be blank", ie.Problems[0].Message)

	sessions, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestStartReplacesCurrent(t *testing.T) {
	ctx := context.Background()
	b := newTestBuilder(t, newTestStore(t), nil)

	first, err := b.Start(ctx, StartOptions{Name: "first"})
	require.NoError(t, err)
	second, err := b.Start(ctx, StartOptions{Name: "second"})
	require.NoError(t, err)

	status, err := b.Status(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, second.ID, status.Session.ID)

	status, err = b.Status(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", status.Session.WorkflowDraft.Name)

	sessions, err := b.List(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, second.ID, sessions[0].ID)
}

func TestAbort(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	b := newTestBuilder(t, store, nil)

	session, err := b.Start(ctx, StartOptions{Name: "demo"})
	require.NoError(t, err)

	aborted, err := b.Abort(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, types.StateAborted, aborted.State)

	status, err := b.Status(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, types.StateIdle, status.State)

	_, err = b.Abort(ctx, session.ID)
	requireCode(t, err, CodeSessionClosed)
	_, err = b.Validate(ctx, session.ID)
	requireCode(t, err, CodeSessionClosed)
}
