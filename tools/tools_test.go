package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegistry_RegisterAndResolve(t *testing.T) {
	t.Parallel()
	r := NewRegistry(zap.NewNop())

	tool := Func{ToolName: "echo", Fn: func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
		return inputs, nil
	}}
	require.NoError(t, r.Register(tool))

	resolved, err := r.Resolve("echo")
	require.NoError(t, err)
	out, err := resolved.Invoke(context.Background(), map[string]any{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": 1}, out)
}

func TestRegistry_DuplicateName(t *testing.T) {
	t.Parallel()
	r := NewRegistry(nil)
	tool := Func{ToolName: "echo", Fn: func(ctx context.Context, inputs map[string]any) (map[string]any, error) {
		return nil, nil
	}}
	require.NoError(t, r.Register(tool))
	assert.Error(t, r.Register(tool))
}

func TestRegistry_UnknownName(t *testing.T) {
	t.Parallel()
	r := NewRegistry(nil)
	_, err := r.Resolve("ghost")
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestRegisterBuiltins(t *testing.T) {
	t.Parallel()
	r := NewRegistry(nil)
	require.NoError(t, RegisterBuiltins(r, zap.NewNop()))

	assert.Equal(t, []string{
		"collect_results",
		"compile_writeup",
		"generate_ideas",
		"refine_ideas",
		"reviewer",
		"run_experiment",
		"search_papers",
	}, r.Names())

	search, err := r.Resolve("search_papers")
	require.NoError(t, err)
	out, err := search.Invoke(context.Background(), map[string]any{"query": "sparse attention"})
	require.NoError(t, err)
	assert.Equal(t, 3, out["count"])
}
