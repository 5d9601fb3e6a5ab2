package agent

import (
	"github.com/researchmesh/agentcore/config"
	"github.com/researchmesh/agentcore/plan"
	"github.com/researchmesh/agentcore/types"
)

// EventType names the five events the controller accepts.
type EventType string

const (
	// EventConfigure sets the configuration once; later sends are ignored
	EventConfigure EventType = "configure"
	// EventEnqueueTask appends a task to the priority queue
	EventEnqueueTask EventType = "enqueue_task"
	// EventInjectMemory appends raw entries to the history
	EventInjectMemory EventType = "inject_memory"
	// EventSetPlan overrides the next task's plan, bypassing the planner
	EventSetPlan EventType = "set_plan"
	// EventShutdown ends the event loop after in-flight work finishes
	EventShutdown EventType = "shutdown"
)

// Event is one message on the controller's serialized inbox. Exactly the
// payload field matching Type is set.
type Event struct {
	Type    EventType
	Config  *config.Config
	Task    *types.Task
	Entries []types.HistoryEntry
	Plan    *plan.Plan
}
