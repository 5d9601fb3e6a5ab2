// =============================================================================
// Agentcore configuration
// =============================================================================
// One Config struct carrying everything the agent core needs. Loaded once at
// startup via the configure event; the controller treats reconfiguration
// mid-run as a no-op.
// =============================================================================
package config

import (
	"fmt"
	"time"
)

// PlannerMode selects the planning strategy.
type PlannerMode string

const (
	// PlannerScripted uses fixed step sequences per task kind
	PlannerScripted PlannerMode = "scripted"
	// PlannerHeuristic is the rule-based tier (currently scripted sequences)
	PlannerHeuristic PlannerMode = "heuristic"
	// PlannerModel delegates to an external reasoning service
	PlannerModel PlannerMode = "model"
)

// Config is the complete agent configuration.
type Config struct {
	// Identity
	AgentName    string `yaml:"agent_name" json:"agent_name"`
	WorkspaceDir string `yaml:"workspace_dir" json:"workspace_dir,omitempty"`

	// Planning
	PlannerMode PlannerMode `yaml:"planner_mode" json:"planner_mode"`

	// Memory
	MemoryBudgetChars  int     `yaml:"memory_budget_chars" json:"memory_budget_chars"`
	MemoryBudgetTokens int     `yaml:"memory_budget_tokens" json:"memory_budget_tokens,omitempty"`
	KeepLast           int     `yaml:"keep_last" json:"keep_last"`
	SafetyMargin       float64 `yaml:"safety_margin" json:"safety_margin"`

	// Tool policy
	AllowedTools []string `yaml:"allowed_tools" json:"allowed_tools,omitempty"`
	// ToolTimeouts overrides the step timeout for specific tools, in seconds.
	ToolTimeouts   map[string]int `yaml:"tool_timeouts" json:"tool_timeouts,omitempty"`
	DefaultTimeout time.Duration  `yaml:"default_timeout" json:"default_timeout"`
	// ToolRateLimit caps tool invocations per second across the plan.
	// Zero disables rate limiting.
	ToolRateLimit float64 `yaml:"tool_rate_limit" json:"tool_rate_limit,omitempty"`

	// Queues maps named concurrency queues to their capacity. A step selects
	// its queue via the "queue" metadata key; unknown names fall back to the
	// default queue.
	Queues map[string]int `yaml:"queues" json:"queues"`

	// Persistence
	SnapshotDir string `yaml:"snapshot_dir" json:"snapshot_dir"`
	// SnapshotInterval is the number of executed steps between snapshots.
	// Zero snapshots after every task.
	SnapshotInterval int `yaml:"snapshot_interval" json:"snapshot_interval,omitempty"`

	// Retry & resilience
	DefaultRetryAttempts    int     `yaml:"default_retry_attempts" json:"default_retry_attempts"`
	RetryBackoffBase        float64 `yaml:"retry_backoff_base" json:"retry_backoff_base"`
	CircuitBreakerThreshold int     `yaml:"circuit_breaker_threshold" json:"circuit_breaker_threshold"`

	// Observability
	Log       LogConfig       `yaml:"log" json:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
}

// LogConfig configures zap logging.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"` // json or console
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	ServiceName string `yaml:"service_name" json:"service_name"`
	// Endpoint is the OTLP gRPC collector endpoint, host:port.
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	Insecure bool   `yaml:"insecure" json:"insecure"`
}

// Validate checks the configuration for values the core cannot run with.
func (c *Config) Validate() error {
	if c.AgentName == "" {
		return fmt.Errorf("agent_name must not be empty")
	}
	if c.MemoryBudgetChars <= 0 {
		return fmt.Errorf("memory_budget_chars must be positive, got %d", c.MemoryBudgetChars)
	}
	if c.SafetyMargin <= 0 || c.SafetyMargin > 1 {
		return fmt.Errorf("safety_margin must be in (0, 1], got %v", c.SafetyMargin)
	}
	if c.KeepLast < 0 {
		return fmt.Errorf("keep_last must not be negative, got %d", c.KeepLast)
	}
	if c.DefaultTimeout <= 0 {
		return fmt.Errorf("default_timeout must be positive, got %v", c.DefaultTimeout)
	}
	if c.RetryBackoffBase < 1 {
		return fmt.Errorf("retry_backoff_base must be >= 1, got %v", c.RetryBackoffBase)
	}
	for name, capacity := range c.Queues {
		if capacity <= 0 {
			return fmt.Errorf("queue %q capacity must be positive, got %d", name, capacity)
		}
	}
	return nil
}

// StepTimeout returns the configured timeout for a tool, falling back to the
// default when no per-tool override exists.
func (c *Config) StepTimeout(tool string) time.Duration {
	if secs, ok := c.ToolTimeouts[tool]; ok && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return c.DefaultTimeout
}

// ToolAllowed reports whether a tool passes the allowlist. An empty
// allowlist permits everything.
func (c *Config) ToolAllowed(tool string) bool {
	if len(c.AllowedTools) == 0 {
		return true
	}
	for _, name := range c.AllowedTools {
		if name == tool {
			return true
		}
	}
	return false
}
