package planner

import (
	"context"

	"github.com/researchmesh/agentcore/config"
	"github.com/researchmesh/agentcore/plan"
	"github.com/researchmesh/agentcore/types"
)

// Planner converts a task into a complete, fresh execution plan. Planners
// never modify an existing plan in place.
type Planner interface {
	Plan(ctx context.Context, task types.Task) (*plan.Plan, error)
}

// ReasoningClient is the external collaborator consulted by the model
// planner: it receives a task description and returns a complete plan or an
// error, which triggers fallback to the heuristic tier.
type ReasoningClient interface {
	ProposePlan(ctx context.Context, task types.Task) (*plan.Plan, error)
}

// ForMode builds the planner selected by the configuration. The model mode
// requires a reasoning client; when client is nil the model planner degrades
// to its heuristic fallback on every call.
func ForMode(cfg *config.Config, client ReasoningClient) Planner {
	switch cfg.PlannerMode {
	case config.PlannerScripted:
		return NewScripted(cfg)
	case config.PlannerModel:
		return NewModel(cfg, client)
	default:
		return NewHeuristic(cfg)
	}
}
