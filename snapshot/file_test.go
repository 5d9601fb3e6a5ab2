package snapshot

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/researchmesh/agentcore/config"
	"github.com/researchmesh/agentcore/plan"
	"github.com/researchmesh/agentcore/types"
)

func sampleSnapshot(id string, ts time.Time) *AgentSnapshot {
	p := plan.New("task-1", "scripted", []plan.Step{
		{Name: "search_papers", Inputs: map[string]any{"query": "x"}, TimeoutS: 30},
		{Name: "reviewer", TimeoutS: 60, DependsOn: []string{"search_papers"}},
	})
	p.CreatedAt = ts

	return &AgentSnapshot{
		SnapshotID: id,
		AgentName:  "test-agent",
		Timestamp:  ts,
		Config:     *config.Default(),
		Inbox: []types.Task{
			{ID: "task-2", Kind: types.TaskResearch, Priority: 3, CreatedAt: ts},
		},
		Plan: p,
		History: []types.HistoryEntry{
			{TS: ts, Kind: types.EntryStep, Name: "search_papers", InputsDigest: "abc12345", LatencyMS: 42},
		},
		Artifacts: map[string]types.Artifact{
			"report": {Name: "report", Kind: types.ArtifactFile, Location: "/tmp/report.md", CreatedAt: ts},
		},
		Cursors: map[string]any{"step": "reviewer"},
		Stats:   types.Stats{StepsExecuted: 7, TasksCompleted: 2},
		Version: Version,
	}
}

// assertSnapshotsEqual compares snapshots through their JSON form, which
// normalizes time representations.
func assertSnapshotsEqual(t *testing.T, want, got *AgentSnapshot) {
	t.Helper()
	wantJSON, err := json.Marshal(want)
	require.NoError(t, err)
	gotJSON, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, string(wantJSON), string(gotJSON))
}

func TestFileStore_RoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store := NewFileStore(dir, zap.NewNop())
	ctx := context.Background()

	snap := sampleSnapshot("snap-1", time.Unix(1700000000, 0).UTC())
	require.NoError(t, store.Save(ctx, snap))

	loaded, err := store.Load(ctx, "snap-1")
	require.NoError(t, err)
	assertSnapshotsEqual(t, snap, loaded)
}

func TestFileStore_LoadLatest(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store := NewFileStore(dir, zap.NewNop())
	ctx := context.Background()

	older := sampleSnapshot("older", time.Unix(1700000000, 0).UTC())
	newer := sampleSnapshot("newer", time.Unix(1700003600, 0).UTC())
	require.NoError(t, store.Save(ctx, older))
	require.NoError(t, store.Save(ctx, newer))

	// Latest is chosen by file modification time; pin mtimes so the test
	// does not depend on filesystem timestamp resolution.
	base := time.Now()
	require.NoError(t, os.Chtimes(filepath.Join(dir, older.Key()+".json"), base.Add(-time.Hour), base.Add(-time.Hour)))
	require.NoError(t, os.Chtimes(filepath.Join(dir, newer.Key()+".json"), base, base))

	loaded, err := store.Load(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "newer", loaded.SnapshotID)
}

func TestFileStore_NotFound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	missingDir := NewFileStore(filepath.Join(t.TempDir(), "nope"), zap.NewNop())
	_, err := missingDir.Load(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)

	empty := NewFileStore(t.TempDir(), zap.NewNop())
	_, err = empty.Load(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)

	store := NewFileStore(t.TempDir(), zap.NewNop())
	require.NoError(t, store.Save(ctx, sampleSnapshot("snap-1", time.Unix(1700000000, 0).UTC())))
	_, err = store.Load(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_AppendsAuditLog(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store := NewFileStore(dir, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleSnapshot("snap-1", time.Unix(1700000000, 0).UTC())))
	require.NoError(t, store.Save(ctx, sampleSnapshot("snap-2", time.Unix(1700000100, 0).UTC())))

	f, err := os.Open(filepath.Join(dir, "test-agent_history.jsonl"))
	require.NoError(t, err)
	defer f.Close()

	var lines int
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		var snap AgentSnapshot
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &snap))
		lines++
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, 2, lines)
}

func TestFileStore_NoPartialFilesLeftBehind(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store := NewFileStore(dir, zap.NewNop())
	require.NoError(t, store.Save(context.Background(), sampleSnapshot("snap-1", time.Unix(1700000000, 0).UTC())))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotContains(t, entry.Name(), ".tmp")
	}
}
