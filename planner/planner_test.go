package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/researchmesh/agentcore/config"
	"github.com/researchmesh/agentcore/plan"
	"github.com/researchmesh/agentcore/types"
)

type stubReasoner struct {
	plan *plan.Plan
	err  error
}

func (s *stubReasoner) ProposePlan(ctx context.Context, task types.Task) (*plan.Plan, error) {
	return s.plan, s.err
}

func stepNames(steps []plan.Step) []string {
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.Name
	}
	return names
}

func TestScripted_ResearchPipeline(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	p, err := NewScripted(cfg).Plan(context.Background(), types.Task{
		ID:      "t1",
		Kind:    types.TaskResearch,
		Payload: map[string]any{"topic": "sparse attention"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"search_papers", "generate_ideas", "refine_ideas"}, stepNames(p.Steps))
	assert.Equal(t, []string{"generate_ideas"}, p.Steps[2].DependsOn)
	assert.Equal(t, "sparse attention", p.Steps[0].Inputs["query"])
	assert.Equal(t, cfg.DefaultRetryAttempts, p.Steps[0].Retry)
	assert.Equal(t, "scripted", p.Mode)
	assert.Equal(t, "t1", p.TaskID)
}

func TestScripted_WriteupPipeline(t *testing.T) {
	t.Parallel()
	p, err := NewScripted(config.Default()).Plan(context.Background(), types.Task{
		ID:   "t2",
		Kind: types.TaskWriteup,
		Payload: map[string]any{
			"title":       "Quantization Study",
			"experiments": []any{"e1", "e2"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"collect_results", "compile_writeup", "reviewer"}, stepNames(p.Steps))
	assert.Equal(t, []string{"compile_writeup"}, p.Steps[2].DependsOn)
	assert.Equal(t, "Quantization Study", p.Steps[1].Inputs["title"])
}

func TestScripted_UnknownKindGetsReviewStep(t *testing.T) {
	t.Parallel()
	p, err := NewScripted(config.Default()).Plan(context.Background(), types.Task{
		ID:   "t3",
		Kind: types.TaskCustom,
	})
	require.NoError(t, err)
	require.Len(t, p.Steps, 1)
	assert.Equal(t, "reviewer", p.Steps[0].Name)
	assert.Equal(t, "general", p.Steps[0].Inputs["review_type"])
}

func TestScripted_ToolTimeoutOverride(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.ToolTimeouts = map[string]int{"compile_writeup": 300}
	p, err := NewScripted(cfg).Plan(context.Background(), types.Task{ID: "t4", Kind: types.TaskWriteup})
	require.NoError(t, err)
	assert.Equal(t, 300, p.Steps[1].TimeoutS)
}

func TestHeuristic_MatchesScriptedSteps(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	task := types.Task{ID: "t5", Kind: types.TaskResearch, Payload: map[string]any{"topic": "x"}}

	scripted, err := NewScripted(cfg).Plan(context.Background(), task)
	require.NoError(t, err)
	heuristic, err := NewHeuristic(cfg).Plan(context.Background(), task)
	require.NoError(t, err)

	assert.Equal(t, stepNames(scripted.Steps), stepNames(heuristic.Steps))
	assert.Equal(t, "heuristic", heuristic.Mode)
}

func TestModel_UsesReasoningClient(t *testing.T) {
	t.Parallel()
	proposed := plan.New("t6", "model", []plan.Step{{Name: "custom_step", TimeoutS: 10}})
	m := NewModel(config.Default(), &stubReasoner{plan: proposed}).WithLogger(zap.NewNop())

	p, err := m.Plan(context.Background(), types.Task{ID: "t6", Kind: types.TaskResearch})
	require.NoError(t, err)
	assert.Equal(t, []string{"custom_step"}, stepNames(p.Steps))
	assert.NotContains(t, p.Metadata, MetaFallbackFrom)
}

func TestModel_FallsBackOnError(t *testing.T) {
	t.Parallel()
	m := NewModel(config.Default(), &stubReasoner{err: errors.New("service unavailable")}).
		WithLogger(zap.NewNop())

	p, err := m.Plan(context.Background(), types.Task{
		ID: "t7", Kind: types.TaskResearch, Payload: map[string]any{"topic": "x"},
	})
	require.NoError(t, err)
	assert.Equal(t, "heuristic", p.Mode)
	assert.Equal(t, "model", p.Metadata[MetaFallbackFrom])
}

func TestModel_FallsBackOnNilPlan(t *testing.T) {
	t.Parallel()
	m := NewModel(config.Default(), &stubReasoner{}).WithLogger(zap.NewNop())
	p, err := m.Plan(context.Background(), types.Task{
		ID: "t9", Kind: types.TaskResearch, Payload: map[string]any{"topic": "x"},
	})
	require.NoError(t, err)
	assert.Equal(t, "heuristic", p.Mode)
	assert.Equal(t, "model", p.Metadata[MetaFallbackFrom])
}

func TestModel_FallsBackWithoutClient(t *testing.T) {
	t.Parallel()
	m := NewModel(config.Default(), nil)
	p, err := m.Plan(context.Background(), types.Task{ID: "t8", Kind: types.TaskWriteup})
	require.NoError(t, err)
	assert.Equal(t, "model", p.Metadata[MetaFallbackFrom])
}

func TestForMode(t *testing.T) {
	t.Parallel()
	cfg := config.Default()

	cfg.PlannerMode = config.PlannerScripted
	assert.IsType(t, &Scripted{}, ForMode(cfg, nil))

	cfg.PlannerMode = config.PlannerHeuristic
	assert.IsType(t, &Heuristic{}, ForMode(cfg, nil))

	cfg.PlannerMode = config.PlannerModel
	assert.IsType(t, &Model{}, ForMode(cfg, nil))
}
