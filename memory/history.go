package memory

import (
	"encoding/json"

	"github.com/researchmesh/agentcore/types"
)

// History is the agent's append-only log of entries. Entries are never
// mutated in place; compaction produces a new slice consisting of one
// summary entry plus the verbatim tail.
type History []types.HistoryEntry

// SerializedSize returns the JSON-serialized size of the history in bytes,
// the unit the memory budget is expressed in.
func (h History) SerializedSize() int {
	if len(h) == 0 {
		return len("[]")
	}
	data, err := json.Marshal([]types.HistoryEntry(h))
	if err != nil {
		// Entries are plain data; marshal failure means a payload snuck in
		// something unserializable. Overestimate so compaction still fires.
		return 1 << 30
	}
	return len(data)
}

// Append returns the history with the entry added.
func (h History) Append(entry types.HistoryEntry) History {
	return append(h, entry)
}
