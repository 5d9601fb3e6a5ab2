// Package queue provides the agent's priority task queue.
// This package is internal and should not be imported by external projects.
package queue

import (
	"container/heap"

	"github.com/researchmesh/agentcore/types"
)

// TaskQueue orders pending tasks by priority (higher first), breaking ties
// by earliest creation time, then by arrival order for identical keys.
// Pop never blocks; waiting for work is the controller's responsibility.
type TaskQueue struct {
	heap taskHeap
	seq  int
}

// New creates an empty task queue.
func New() *TaskQueue {
	return &TaskQueue{}
}

// Push appends a task in O(log n).
func (q *TaskQueue) Push(task types.Task) {
	q.seq++
	heap.Push(&q.heap, queued{task: task, seq: q.seq})
}

// Pop removes and returns the highest-priority task, or false when empty.
func (q *TaskQueue) Pop() (types.Task, bool) {
	if q.heap.Len() == 0 {
		return types.Task{}, false
	}
	item := heap.Pop(&q.heap).(queued)
	return item.task, true
}

// Len reports the number of pending tasks.
func (q *TaskQueue) Len() int {
	return q.heap.Len()
}

// Snapshot returns the pending tasks in drain order without removing them.
func (q *TaskQueue) Snapshot() []types.Task {
	clone := taskHeap(make([]queued, len(q.heap)))
	copy(clone, q.heap)
	out := make([]types.Task, 0, clone.Len())
	for clone.Len() > 0 {
		out = append(out, heap.Pop(&clone).(queued).task)
	}
	return out
}

type queued struct {
	task types.Task
	seq  int
}

type taskHeap []queued

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.task.Priority != b.task.Priority {
		return a.task.Priority > b.task.Priority
	}
	if !a.task.CreatedAt.Equal(b.task.CreatedAt) {
		return a.task.CreatedAt.Before(b.task.CreatedAt)
	}
	return a.seq < b.seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(queued)) }

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
