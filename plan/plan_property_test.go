package plan

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"
)

// genPlan draws a random plan whose steps may only depend on earlier steps,
// so every generated plan is acyclic and fully executable.
func genPlan(t *rapid.T) *Plan {
	count := rapid.IntRange(1, 12).Draw(t, "step_count")
	steps := make([]Step, count)
	for i := range steps {
		name := fmt.Sprintf("step_%d", i)
		var deps []string
		if i > 0 {
			depCount := rapid.IntRange(0, i).Draw(t, fmt.Sprintf("dep_count_%d", i))
			seen := map[int]bool{}
			for d := 0; d < depCount; d++ {
				idx := rapid.IntRange(0, i-1).Draw(t, fmt.Sprintf("dep_%d_%d", i, d))
				if !seen[idx] {
					seen[idx] = true
					deps = append(deps, fmt.Sprintf("step_%d", idx))
				}
			}
		}
		steps[i] = Step{Name: name, DependsOn: deps}
	}
	return New("task-prop", "scripted", steps)
}

func TestProperty_ReadyStepsNeverReturnsCompleted(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := genPlan(t)
		completed := map[string]struct{}{}
		doneCount := rapid.IntRange(0, len(p.Steps)).Draw(t, "done_count")
		for i := 0; i < doneCount; i++ {
			completed[p.Steps[i].Name] = struct{}{}
		}

		for _, step := range p.ReadySteps(completed) {
			if _, done := completed[step.Name]; done {
				t.Fatalf("ready step %q is already completed", step.Name)
			}
			for _, dep := range step.DependsOn {
				if _, done := completed[dep]; !done {
					t.Fatalf("ready step %q has unsatisfied dependency %q", step.Name, dep)
				}
			}
		}
	})
}

func TestProperty_RepeatedReadySetsDrainAcyclicPlans(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := genPlan(t)
		completed := map[string]struct{}{}

		for len(completed) < len(p.Steps) {
			ready := p.ReadySteps(completed)
			if len(ready) == 0 {
				t.Fatalf("acyclic plan stalled with %d of %d steps completed",
					len(completed), len(p.Steps))
			}
			for _, step := range ready {
				completed[step.Name] = struct{}{}
			}
		}
	})
}

func TestProperty_ParallelGroupsPartitionSteps(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := genPlan(t)
		total := 0
		for _, steps := range p.ParallelGroups() {
			total += len(steps)
		}
		if total != len(p.Steps) {
			t.Fatalf("groups hold %d steps, plan has %d", total, len(p.Steps))
		}
	})
}
