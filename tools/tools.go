package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// ErrToolNotFound is returned when resolving a name that was never registered.
var ErrToolNotFound = errors.New("tool not found")

// Tool is the collaborator contract every step invokes: a named function
// taking a structured input record and returning a structured output record
// or failing with a descriptive error. Implementations must be safe to
// retry.
type Tool interface {
	Name() string
	Invoke(ctx context.Context, inputs map[string]any) (map[string]any, error)
}

// Func adapts a plain function to the Tool interface.
type Func struct {
	ToolName string
	Fn       func(ctx context.Context, inputs map[string]any) (map[string]any, error)
}

func (f Func) Name() string { return f.ToolName }

func (f Func) Invoke(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	return f.Fn(ctx, inputs)
}

// Registry is the closed mapping from step names to tools, built at startup.
// Unknown names resolve to a typed error rather than a silent lookup miss.
type Registry struct {
	tools  map[string]Tool
	logger *zap.Logger
	mu     sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		tools:  make(map[string]Tool),
		logger: logger.With(zap.String("component", "tool_registry")),
	}
}

// Register adds a tool. Registering a duplicate name returns an error; the
// mapping is meant to be closed once the agent starts.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = tool
	r.logger.Debug("tool registered", zap.String("tool", name))
	return nil
}

// Resolve returns the tool for a step name.
func (r *Registry) Resolve(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return tool, nil
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
