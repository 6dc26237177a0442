package stores

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a migrated store in a temporary directory
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{Path: ":memory:"})
	require.NoError(t, err)

	ctx := context.Background()
	require.Error(t, store.Migrate(ctx), "migrate before init")
	require.NoError(t, store.Init(ctx))
	require.NoError(t, store.HealthCheck(ctx))
	require.NoError(t, store.Migrate(ctx))
	// a second run is a no-op
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Close())
}

func TestNewSQLiteStoreRequiresPath(t *testing.T) {
	_, err := NewSQLiteStore(Config{})
	assert.Error(t, err)
}

func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)

	for _, table := range []string{"runs", "task_results"} {
		var count int
		err := store.db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&count)
		assert.NoError(t, err, table)
	}
}

func TestRunLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	run := &Run{
		ID:        "run-1",
		Playbook:  "site.yml",
		Status:    RunStatusRunning,
		CheckMode: true,
		StartedAt: started,
	}
	require.NoError(t, store.CreateRun(ctx, run))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	want := &Run{
		ID:        "run-1",
		Playbook:  "site.yml",
		Status:    RunStatusRunning,
		CheckMode: true,
		StartedAt: started,
		Metadata:  "{}",
	}
	assert.Empty(t, cmp.Diff(want, got, cmpopts.EquateApproxTime(time.Second)))

	msg := "task failed"
	require.NoError(t, store.FinishRun(ctx, "run-1", RunStatusFailed, &msg))
	got, err = store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, got.Status)
	assert.NotNil(t, got.CompletedAt)
	require.NotNil(t, got.Error)
	assert.Equal(t, msg, *got.Error)

	assert.Error(t, store.FinishRun(ctx, "missing", RunStatusCompleted, nil))
	_, err = store.GetRun(ctx, "missing")
	assert.Error(t, err)
}

func TestListRunsNewestFirst(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		run := &Run{ID: id, Playbook: "p.yml", Status: RunStatusCompleted, StartedAt: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, store.CreateRun(ctx, run))
	}

	runs, err := store.ListRuns(ctx, 2, 0)
	require.NoError(t, err)
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"c", "b"}, ids)

	n, err := store.DeleteRunsBefore(ctx, base.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	runs, err = store.ListRuns(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "c", runs[0].ID)
}

func TestTaskResults(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.CreateRun(ctx, &Run{ID: "run-1", Playbook: "p.yml", Status: RunStatusRunning, StartedAt: started}))

	msg := "error creating space, HTTP 400: bad"
	recs := []*TaskRecord{
		{
			ID: "t2", RunID: "run-1", Seq: 2, Host: "prod", Task: "create space", Module: "space",
			Status: TaskStatusFailed, Error: &msg, StartedAt: started, Duration: 1500 * time.Millisecond,
		},
		{
			ID: "t1", RunID: "run-1", Seq: 1, Play: "setup", Host: "prod", Task: "add user", Module: "user",
			Status: TaskStatusChanged, Changed: true, Operations: `["create"]`, Result: `{"changed":true}`,
			StartedAt: started, Duration: 250 * time.Millisecond,
		},
	}
	for _, rec := range recs {
		require.NoError(t, store.AppendTask(ctx, rec), rec.ID)
	}

	got, err := store.ListTasks(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "t1", got[0].ID)
	assert.Equal(t, "t2", got[1].ID)
	assert.True(t, got[0].Changed)
	assert.Equal(t, `["create"]`, got[0].Operations)
	assert.Equal(t, "[]", got[1].Operations)
	assert.Equal(t, "{}", got[1].Result)
	assert.Equal(t, 1500*time.Millisecond, got[1].Duration)
	require.NotNil(t, got[1].Error)
	assert.Equal(t, msg, *got[1].Error)

	orphan := &TaskRecord{ID: "t3", RunID: "missing", Host: "h", Task: "x", Module: "space", Status: TaskStatusOK, StartedAt: started}
	assert.Error(t, store.AppendTask(ctx, orphan), "foreign key violation for unknown run")
}
