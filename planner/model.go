package planner

import (
	"context"

	"go.uber.org/zap"

	"github.com/researchmesh/agentcore/config"
	"github.com/researchmesh/agentcore/plan"
	"github.com/researchmesh/agentcore/types"
)

// MetaFallbackFrom marks a plan that was produced by the fallback tier after
// the model planner failed. The controller records the fallback as an
// observation, not an error.
const MetaFallbackFrom = "fallback_from"

// Model delegates planning to an external reasoning collaborator, falling
// back to the heuristic tier when the collaborator is unavailable or fails.
type Model struct {
	client   ReasoningClient
	fallback *Heuristic
	logger   *zap.Logger
}

// NewModel creates a model-driven planner.
func NewModel(cfg *config.Config, client ReasoningClient) *Model {
	return &Model{
		client:   client,
		fallback: NewHeuristic(cfg),
		logger:   zap.NewNop(),
	}
}

// WithLogger attaches a logger.
func (m *Model) WithLogger(logger *zap.Logger) *Model {
	if logger != nil {
		m.logger = logger.With(zap.String("component", "model_planner"))
	}
	return m
}

// Plan asks the reasoning collaborator for a plan. On any failure the
// heuristic plan is returned with fallback provenance in its metadata.
func (m *Model) Plan(ctx context.Context, task types.Task) (*plan.Plan, error) {
	if m.client != nil {
		p, err := m.client.ProposePlan(ctx, task)
		switch {
		case err != nil:
			m.logger.Warn("reasoning service unavailable, falling back",
				zap.String("task_id", task.ID),
				zap.Error(err))
		case p == nil:
			m.logger.Warn("reasoning service returned no plan, falling back",
				zap.String("task_id", task.ID))
		default:
			p.Mode = string(config.PlannerModel)
			vErr := p.Validate()
			if vErr == nil {
				return p, nil
			}
			m.logger.Warn("reasoning service returned invalid plan, falling back",
				zap.String("task_id", task.ID),
				zap.Error(vErr))
		}
	} else {
		m.logger.Warn("no reasoning client configured, falling back",
			zap.String("task_id", task.ID))
	}

	p, err := m.fallback.Plan(ctx, task)
	if err != nil {
		return nil, err
	}
	if p.Metadata == nil {
		p.Metadata = make(map[string]any)
	}
	p.Metadata[MetaFallbackFrom] = string(config.PlannerModel)
	return p, nil
}
