package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completedSet(names ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func stepNames(steps []Step) []string {
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.Name
	}
	return names
}

func TestReadySteps_LinearChain(t *testing.T) {
	t.Parallel()
	p := New("task-1", "scripted", []Step{
		{Name: "A"},
		{Name: "B", DependsOn: []string{"A"}},
		{Name: "C", DependsOn: []string{"B"}},
	})

	assert.Equal(t, []string{"A"}, stepNames(p.ReadySteps(completedSet())))
	assert.Equal(t, []string{"B"}, stepNames(p.ReadySteps(completedSet("A"))))
	assert.Equal(t, []string{"C"}, stepNames(p.ReadySteps(completedSet("A", "B"))))
	assert.Empty(t, p.ReadySteps(completedSet("A", "B", "C")))
}

func TestReadySteps_PreservesDeclarationOrder(t *testing.T) {
	t.Parallel()
	p := New("task-1", "scripted", []Step{
		{Name: "z"},
		{Name: "a"},
		{Name: "m"},
	})
	assert.Equal(t, []string{"z", "a", "m"}, stepNames(p.ReadySteps(completedSet())))
}

func TestReadySteps_MissingDependencyStarves(t *testing.T) {
	t.Parallel()
	p := New("task-1", "scripted", []Step{
		{Name: "A", DependsOn: []string{"ghost"}},
	})
	assert.Empty(t, p.ReadySteps(completedSet()), "step with unsatisfiable dependency never becomes ready")
}

func TestParallelGroups(t *testing.T) {
	t.Parallel()
	p := New("task-1", "scripted", []Step{
		{Name: "s1", Group: "fetch"},
		{Name: "s2", Group: "fetch"},
		{Name: "s3"},
	})
	groups := p.ParallelGroups()
	require.Len(t, groups, 2)
	assert.Equal(t, []string{"s1", "s2"}, stepNames(groups["fetch"]))
	assert.Equal(t, []string{"s3"}, stepNames(groups["s3"]))
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		steps   []Step
		wantErr string
	}{
		{
			name:  "valid",
			steps: []Step{{Name: "A"}, {Name: "B", DependsOn: []string{"A"}}},
		},
		{
			name:    "duplicate name",
			steps:   []Step{{Name: "A"}, {Name: "A"}},
			wantErr: "duplicate step name",
		},
		{
			name:    "self dependency",
			steps:   []Step{{Name: "A", DependsOn: []string{"A"}}},
			wantErr: "depends on itself",
		},
		{
			name:    "unknown dependency",
			steps:   []Step{{Name: "A", DependsOn: []string{"missing"}}},
			wantErr: "unknown step",
		},
		{
			name:    "empty name",
			steps:   []Step{{Name: ""}},
			wantErr: "empty name",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New("task-1", "scripted", tt.steps).Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
