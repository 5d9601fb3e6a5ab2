package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/researchmesh/agentcore/config"
	"github.com/researchmesh/agentcore/plan"
	"github.com/researchmesh/agentcore/types"
)

// Version is the snapshot schema version.
const Version = "0.1.0"

// ErrNotFound is returned when no snapshot matches a load request.
var ErrNotFound = errors.New("snapshot not found")

// AgentSnapshot is a full point-in-time capture of agent state, sufficient
// to resume a run. Snapshots are immutable once written.
type AgentSnapshot struct {
	SnapshotID string                    `json:"snapshot_id"`
	AgentName  string                    `json:"agent_name"`
	Timestamp  time.Time                 `json:"timestamp"`
	Config     config.Config             `json:"config"`
	Inbox      []types.Task              `json:"inbox"`
	Plan       *plan.Plan                `json:"plan,omitempty"`
	History    []types.HistoryEntry      `json:"history"`
	Artifacts  map[string]types.Artifact `json:"artifacts"`
	Cursors    map[string]any            `json:"cursors,omitempty"`
	Stats      types.Stats               `json:"stats"`
	Version    string                    `json:"version"`
}

// New creates an empty snapshot shell with a generated ID and the current
// wall-clock time.
func New(agentName string) *AgentSnapshot {
	return &AgentSnapshot{
		SnapshotID: uuid.NewString(),
		AgentName:  agentName,
		Timestamp:  time.Now().UTC(),
		Version:    Version,
	}
}

// Key returns the storage key for a snapshot, {agent_name}_{snapshot_id}.
func (s *AgentSnapshot) Key() string {
	return fmt.Sprintf("%s_%s", s.AgentName, s.SnapshotID)
}

// Store persists and recovers agent snapshots. Save must be atomic from the
// caller's perspective: either the full record becomes visible or none of
// it. Load with an empty id returns the most recently written snapshot;
// ErrNotFound is reported when nothing matches.
type Store interface {
	Save(ctx context.Context, snap *AgentSnapshot) error
	Load(ctx context.Context, snapshotID string) (*AgentSnapshot, error)
}
