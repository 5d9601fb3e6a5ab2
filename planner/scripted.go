package planner

import (
	"context"
	"fmt"

	"github.com/researchmesh/agentcore/config"
	"github.com/researchmesh/agentcore/plan"
	"github.com/researchmesh/agentcore/types"
)

// Scripted produces a fixed step sequence per task kind. Deterministic, no
// external calls.
type Scripted struct {
	cfg *config.Config
}

// NewScripted creates a scripted planner.
func NewScripted(cfg *config.Config) *Scripted {
	return &Scripted{cfg: cfg}
}

// Plan builds the scripted pipeline for the task kind. Unknown kinds get a
// single generic review step.
func (s *Scripted) Plan(ctx context.Context, task types.Task) (*plan.Plan, error) {
	var steps []plan.Step

	switch task.Kind {
	case types.TaskResearch:
		topic, _ := task.Payload["topic"].(string)
		steps = []plan.Step{
			s.step("search_papers", map[string]any{"query": topic}, 30, nil),
			s.step("generate_ideas", map[string]any{"topic": topic}, 60, nil),
			s.step("refine_ideas", map[string]any{"ideas": []any{}}, 60, []string{"generate_ideas"}),
		}
	case types.TaskWriteup:
		experiments, _ := task.Payload["experiments"].([]any)
		title, _ := task.Payload["title"].(string)
		if title == "" {
			title = "Report"
		}
		steps = []plan.Step{
			s.step("collect_results", map[string]any{"experiment_ids": experiments}, 30, nil),
			s.step("compile_writeup", map[string]any{"title": title}, 120, nil),
			s.step("reviewer", map[string]any{"content": "", "review_type": "writeup"}, 60, []string{"compile_writeup"}),
		}
	default:
		steps = []plan.Step{
			s.step("reviewer", map[string]any{
				"content":     fmt.Sprintf("%v", task.Payload),
				"review_type": "general",
			}, 30, nil),
		}
	}

	p := plan.New(task.ID, string(config.PlannerScripted), steps)
	return p, p.Validate()
}

// step builds one plan step, applying retry defaults and per-tool timeout
// overrides from configuration.
func (s *Scripted) step(name string, inputs map[string]any, timeoutS int, deps []string) plan.Step {
	if override, ok := s.cfg.ToolTimeouts[name]; ok && override > 0 {
		timeoutS = override
	}
	return plan.Step{
		Name:      name,
		Inputs:    inputs,
		Retry:     s.cfg.DefaultRetryAttempts,
		TimeoutS:  timeoutS,
		DependsOn: deps,
	}
}

// Heuristic is the rule-based tier. It currently produces the same plans as
// the scripted planner; the tier exists so payload-driven adaptations (such
// as skipping steps) can be added without touching the scripted sequences or
// invoking external reasoning.
type Heuristic struct {
	scripted *Scripted
}

// NewHeuristic creates a heuristic planner.
func NewHeuristic(cfg *config.Config) *Heuristic {
	return &Heuristic{scripted: NewScripted(cfg)}
}

// Plan delegates to the scripted sequences and relabels the mode.
func (h *Heuristic) Plan(ctx context.Context, task types.Task) (*plan.Plan, error) {
	p, err := h.scripted.Plan(ctx, task)
	if err != nil {
		return nil, err
	}
	p.Mode = string(config.PlannerHeuristic)
	return p, nil
}
