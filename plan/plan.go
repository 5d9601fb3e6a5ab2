package plan

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Step is a single unit of a plan: one tool invocation with its inputs,
// dependency names, and execution policy.
type Step struct {
	// Name identifies the tool to invoke. Names are unique within a plan.
	Name   string         `json:"name"`
	Inputs map[string]any `json:"inputs,omitempty"`
	// Group tags steps intended for concurrent dispatch. Untagged steps form
	// a singleton group keyed by their own name.
	Group string `json:"group,omitempty"`
	// Retry is the number of additional attempts after a failed invocation.
	Retry int `json:"retry"`
	// TimeoutS is the hard deadline for one invocation, in seconds.
	TimeoutS int `json:"timeout_s"`
	// DependsOn lists step names that must be completed first.
	DependsOn []string       `json:"depends_on,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Timeout returns the step timeout as a duration.
func (s Step) Timeout() time.Duration {
	return time.Duration(s.TimeoutS) * time.Second
}

// Plan is a versioned, dependency-ordered set of steps generated for one
// task. A plan is created fresh per task (or supplied externally) and
// discarded once every step reached a terminal outcome.
type Plan struct {
	PlanID    string         `json:"plan_id"`
	TaskID    string         `json:"task_id"`
	Mode      string         `json:"mode"`
	Steps     []Step         `json:"steps"`
	CreatedAt time.Time      `json:"created_at"`
	Version   int            `json:"version"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// New creates a version-1 plan for a task.
func New(taskID, mode string, steps []Step) *Plan {
	return &Plan{
		PlanID:    "plan_" + uuid.NewString(),
		TaskID:    taskID,
		Mode:      mode,
		Steps:     steps,
		CreatedAt: time.Now(),
		Version:   1,
	}
}

// ReadySteps returns every step not yet in completed whose dependencies are
// all in completed, preserving declaration order. A step whose dependency
// name never enters the completed set yields no execution; the executor
// reports the resulting starvation as a stall.
func (p *Plan) ReadySteps(completed map[string]struct{}) []Step {
	var ready []Step
	for _, step := range p.Steps {
		if _, done := completed[step.Name]; done {
			continue
		}
		satisfied := true
		for _, dep := range step.DependsOn {
			if _, done := completed[dep]; !done {
				satisfied = false
				break
			}
		}
		if satisfied {
			ready = append(ready, step)
		}
	}
	return ready
}

// ParallelGroups buckets steps by their group tag, defaulting the key to the
// step's own name when untagged. Steps sharing a bucket are intended for
// concurrent dispatch.
func (p *Plan) ParallelGroups() map[string][]Step {
	groups := make(map[string][]Step)
	for _, step := range p.Steps {
		key := step.Group
		if key == "" {
			key = step.Name
		}
		groups[key] = append(groups[key], step)
	}
	return groups
}

// Validate rejects structurally broken plans: duplicate step names,
// self-dependencies, and dependencies on names that do not exist. Cycles
// among valid names are not detected here; they surface at execution time
// as a stall.
func (p *Plan) Validate() error {
	names := make(map[string]struct{}, len(p.Steps))
	for _, step := range p.Steps {
		if step.Name == "" {
			return fmt.Errorf("plan %s: step with empty name", p.PlanID)
		}
		if _, dup := names[step.Name]; dup {
			return fmt.Errorf("plan %s: duplicate step name %q", p.PlanID, step.Name)
		}
		names[step.Name] = struct{}{}
	}
	for _, step := range p.Steps {
		for _, dep := range step.DependsOn {
			if dep == step.Name {
				return fmt.Errorf("plan %s: step %q depends on itself", p.PlanID, step.Name)
			}
			if _, ok := names[dep]; !ok {
				return fmt.Errorf("plan %s: step %q depends on unknown step %q", p.PlanID, step.Name, dep)
			}
		}
	}
	return nil
}
