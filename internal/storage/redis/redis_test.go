package redis

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/langdag/dagbuilder/internal/storage"
	"github.com/langdag/dagbuilder/pkg/types"
)

var (
	redisOnce sync.Once
	redisURL  string
	redisErr  error
)

// testRedisURL returns DAGBUILDER_TEST_REDIS_URL, or starts a throwaway
// redis container shared by every test in the package.
func testRedisURL(t *testing.T) string {
	t.Helper()
	if url := os.Getenv("DAGBUILDER_TEST_REDIS_URL"); url != "" {
		return url
	}
	if testing.Short() {
		t.Skip("redis container tests skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	redisOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
		defer cancel()

		var container testcontainers.Container
		container, redisErr = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "redis:7-alpine",
				ExposedPorts: []string{"6379/tcp"},
				WaitingFor:   wait.ForListeningPort("6379/tcp"),
			},
			Started: true,
		})
		if redisErr != nil {
			return
		}

		var endpoint string
		endpoint, redisErr = container.Endpoint(ctx, "")
		redisURL = "redis://" + endpoint + "/0"
	})
	require.NoError(t, redisErr)
	return redisURL
}

// setupTestRedis connects to a test redis under a unique key prefix.
func setupTestRedis(t *testing.T) *Storage {
	t.Helper()
	store, err := New(testRedisURL(t), "dagbuilder-test-"+uuid.NewString())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Init(context.Background()))
	return store
}

func testSession(id string) *types.Session {
	now := time.Now().UTC()
	return &types.Session{
		ID:            id,
		Version:       types.SessionSchemaVersion,
		State:         types.StateDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
		WorkflowDraft: types.Draft{Name: "demo", Nodes: []types.Node{}},
	}
}

func TestRedisSaveLoad(t *testing.T) {
	store := setupTestRedis(t)
	ctx := context.Background()

	session := testSession("s1")
	require.NoError(t, store.Save(ctx, session))
	assert.Equal(t, int64(1), session.Revision)

	got, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "demo", got.WorkflowDraft.Name)
	assert.Equal(t, int64(1), got.Revision)

	_, err = store.Load(ctx, "missing")
	assert.True(t, storage.IsNotFound(err))
}

func TestRedisStaleWrite(t *testing.T) {
	store := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSession("s1")))
	a, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	b, err := store.Load(ctx, "s1")
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, a))
	assert.True(t, storage.IsStale(store.Save(ctx, b)))
	assert.True(t, storage.IsStale(store.Save(ctx, testSession("s1"))))
}

func TestRedisCurrentPointer(t *testing.T) {
	store := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSession("s1")))
	require.NoError(t, store.SetCurrent(ctx, "s1"))

	got, err := store.GetCurrent(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "s1", got.ID)

	require.NoError(t, store.ReleaseCurrent(ctx, "other"))
	got, err = store.GetCurrent(ctx)
	require.NoError(t, err)
	assert.NotNil(t, got)

	require.NoError(t, store.ReleaseCurrent(ctx, "s1"))
	got, err = store.GetCurrent(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	sessions, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestRedisKeepsNumericInput(t *testing.T) {
	store := setupTestRedis(t)
	ctx := context.Background()

	session := testSession("s1")
	session.WorkflowDraft.Nodes = append(session.WorkflowDraft.Nodes, types.Node{
		ID:        "n1",
		Type:      "http",
		Input:     map[string]any{"id": json.Number("9007199254740993")},
		DependsOn: []string{},
	})
	require.NoError(t, store.Save(ctx, session))

	got, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, json.Number("9007199254740993"), got.WorkflowDraft.Nodes[0].Input["id"])
}
