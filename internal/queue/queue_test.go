package queue

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/researchmesh/agentcore/types"
)

func taskAt(id string, priority int, created time.Time) types.Task {
	return types.Task{ID: id, Kind: types.TaskCustom, Priority: priority, CreatedAt: created}
}

func TestPop_Empty(t *testing.T) {
	t.Parallel()
	q := New()
	_, ok := q.Pop()
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())
}

func TestPop_PriorityOrder(t *testing.T) {
	t.Parallel()
	base := time.Unix(1700000000, 0)
	q := New()
	q.Push(taskAt("low", 1, base))
	q.Push(taskAt("high", 9, base))
	q.Push(taskAt("mid", 5, base))

	for _, want := range []string{"high", "mid", "low"} {
		task, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, want, task.ID)
	}
}

func TestPop_TiesBrokenByCreationTime(t *testing.T) {
	t.Parallel()
	base := time.Unix(1700000000, 0)
	q := New()
	q.Push(taskAt("later", 5, base.Add(time.Minute)))
	q.Push(taskAt("earlier", 5, base))

	task, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "earlier", task.ID)
}

func TestPop_StableForIdenticalKeys(t *testing.T) {
	t.Parallel()
	base := time.Unix(1700000000, 0)
	q := New()
	q.Push(taskAt("first", 5, base))
	q.Push(taskAt("second", 5, base))

	task, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "first", task.ID)
}

func TestSnapshot_DoesNotDrain(t *testing.T) {
	t.Parallel()
	base := time.Unix(1700000000, 0)
	q := New()
	q.Push(taskAt("a", 1, base))
	q.Push(taskAt("b", 2, base))

	snap := q.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "b", snap[0].ID)
	assert.Equal(t, 2, q.Len())
}

func TestProperty_DrainOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		count := rapid.IntRange(0, 50).Draw(t, "count")
		base := time.Unix(1700000000, 0)

		q := New()
		tasks := make([]types.Task, count)
		for i := range tasks {
			task := taskAt(
				fmt.Sprintf("t%d", i),
				rapid.IntRange(-5, 5).Draw(t, fmt.Sprintf("prio_%d", i)),
				base.Add(time.Duration(rapid.IntRange(0, 100).Draw(t, fmt.Sprintf("ts_%d", i)))*time.Second),
			)
			tasks[i] = task
			q.Push(task)
		}

		// Expected order: priority desc, creation asc, arrival asc.
		expected := make([]types.Task, count)
		copy(expected, tasks)
		sort.SliceStable(expected, func(i, j int) bool {
			if expected[i].Priority != expected[j].Priority {
				return expected[i].Priority > expected[j].Priority
			}
			return expected[i].CreatedAt.Before(expected[j].CreatedAt)
		})

		for i := 0; i < count; i++ {
			task, ok := q.Pop()
			if !ok {
				t.Fatalf("queue drained early at %d of %d", i, count)
			}
			if task.ID != expected[i].ID {
				t.Fatalf("position %d: got %s, want %s", i, task.ID, expected[i].ID)
			}
		}
		if _, ok := q.Pop(); ok {
			t.Fatal("queue should be empty after drain")
		}
	})
}
