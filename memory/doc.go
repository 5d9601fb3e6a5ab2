// Package memory holds the agent's append-only history and the compaction
// policy that bounds its growth: when a size budget is exceeded, the oldest
// entries are replaced with a single extractive summary while a recent tail
// is kept verbatim.
package memory
