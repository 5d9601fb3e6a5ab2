package types

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskKind classifies a task for the planner.
type TaskKind string

const (
	// TaskResearch runs the research pipeline (search, ideation, refinement)
	TaskResearch TaskKind = "research"
	// TaskWriteup runs the writeup pipeline (collect, compile, review)
	TaskWriteup TaskKind = "writeup"
	// TaskReview runs a standalone review pass
	TaskReview TaskKind = "review"
	// TaskCustom is any task without a scripted pipeline
	TaskCustom TaskKind = "custom"
)

// Task is a unit of work submitted to the agent. Tasks are immutable once
// enqueued and are removed from the queue when picked for processing.
type Task struct {
	ID        string         `json:"id"`
	Kind      TaskKind       `json:"kind"`
	Payload   map[string]any `json:"payload,omitempty"`
	Priority  int            `json:"priority"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewTask creates a task with a generated ID and the current timestamp.
func NewTask(kind TaskKind, payload map[string]any, priority int) Task {
	return Task{
		ID:        uuid.NewString(),
		Kind:      kind,
		Payload:   payload,
		Priority:  priority,
		CreatedAt: time.Now(),
	}
}

// EntryKind classifies a history entry.
type EntryKind string

const (
	// EntryPlan records plan creation or override
	EntryPlan EntryKind = "plan"
	// EntryStep records a successfully executed step
	EntryStep EntryKind = "step"
	// EntryObs records an observation
	EntryObs EntryKind = "obs"
	// EntryError records a failure
	EntryError EntryKind = "error"
	// EntryMeta records agent lifecycle events
	EntryMeta EntryKind = "meta"
)

// HistoryEntry is one record in the agent's append-only history. Entries are
// never mutated; compaction replaces a prefix with a single summary entry.
type HistoryEntry struct {
	TS           time.Time      `json:"ts"`
	Kind         EntryKind      `json:"kind"`
	Name         string         `json:"name"`
	InputsDigest string         `json:"inputs_digest,omitempty"`
	ResultDigest string         `json:"result_digest,omitempty"`
	LatencyMS    int64          `json:"latency_ms,omitempty"`
	Error        string         `json:"error,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// ArtifactKind classifies an artifact.
type ArtifactKind string

const (
	ArtifactFile      ArtifactKind = "file"
	ArtifactURL       ArtifactKind = "url"
	ArtifactData      ArtifactKind = "data"
	ArtifactReference ArtifactKind = "reference"
)

// Artifact is a durable output produced by a tool step. Artifacts are owned
// by the agent for the lifetime of its run and carried through snapshots.
type Artifact struct {
	Name      string         `json:"name"`
	Kind      ArtifactKind   `json:"kind"`
	Location  string         `json:"location,omitempty"`
	SizeBytes int64          `json:"size_bytes,omitempty"`
	Checksum  string         `json:"checksum,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Stats tracks running counters for one agent instance.
type Stats struct {
	StepsExecuted     int        `json:"steps_executed"`
	TasksCompleted    int        `json:"tasks_completed"`
	ErrorsEncountered int        `json:"errors_encountered"`
	LastCompaction    *time.Time `json:"last_compaction,omitempty"`
	// LastSnapshotStep is the value of StepsExecuted when the last snapshot
	// was written. Used to decide when the snapshot interval has elapsed.
	LastSnapshotStep int `json:"last_snapshot_step"`
}

// Digest returns a short stable digest of an arbitrary value, used to keep
// history entries small. Falls back to a truncated string form for values
// that cannot be serialized.
func Digest(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		s := fmt.Sprintf("%v", v)
		if len(s) > 16 {
			s = s[:16]
		}
		return s
	}
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])[:8]
}
