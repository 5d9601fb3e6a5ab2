// =============================================================================
// Agentcore configuration loader
// =============================================================================
// Layered loading: defaults → YAML file → environment variables.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("agent.yaml").
//	    WithEnvPrefix("AGENTCORE").
//	    Load()
// =============================================================================
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader loads configuration from defaults, an optional YAML file, and
// environment variable overrides.
type Loader struct {
	configPath string
	envPrefix  string
}

// NewLoader creates a loader with no config file and the AGENTCORE env prefix.
func NewLoader() *Loader {
	return &Loader{envPrefix: "AGENTCORE"}
}

// WithConfigPath sets the YAML config file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Load builds the final configuration and validates it.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	if l.configPath != "" {
		data, err := os.ReadFile(l.configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", l.configPath, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", l.configPath, err)
		}
	}

	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides scalar fields from environment variables of the form
// PREFIX_FIELD, e.g. AGENTCORE_AGENT_NAME.
func (l *Loader) applyEnv(cfg *Config) error {
	lookup := func(key string) (string, bool) {
		return os.LookupEnv(l.envPrefix + "_" + key)
	}

	if v, ok := lookup("AGENT_NAME"); ok {
		cfg.AgentName = v
	}
	if v, ok := lookup("WORKSPACE_DIR"); ok {
		cfg.WorkspaceDir = v
	}
	if v, ok := lookup("PLANNER_MODE"); ok {
		cfg.PlannerMode = PlannerMode(v)
	}
	if v, ok := lookup("SNAPSHOT_DIR"); ok {
		cfg.SnapshotDir = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok {
		cfg.Log.Level = v
	}
	if v, ok := lookup("ALLOWED_TOOLS"); ok {
		cfg.AllowedTools = splitList(v)
	}

	intFields := map[string]*int{
		"MEMORY_BUDGET_CHARS":       &cfg.MemoryBudgetChars,
		"MEMORY_BUDGET_TOKENS":      &cfg.MemoryBudgetTokens,
		"KEEP_LAST":                 &cfg.KeepLast,
		"SNAPSHOT_INTERVAL":         &cfg.SnapshotInterval,
		"DEFAULT_RETRY_ATTEMPTS":    &cfg.DefaultRetryAttempts,
		"CIRCUIT_BREAKER_THRESHOLD": &cfg.CircuitBreakerThreshold,
	}
	for key, dst := range intFields {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("env %s_%s: %w", l.envPrefix, key, err)
			}
			*dst = n
		}
	}

	floatFields := map[string]*float64{
		"SAFETY_MARGIN":      &cfg.SafetyMargin,
		"RETRY_BACKOFF_BASE": &cfg.RetryBackoffBase,
		"TOOL_RATE_LIMIT":    &cfg.ToolRateLimit,
	}
	for key, dst := range floatFields {
		if v, ok := lookup(key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("env %s_%s: %w", l.envPrefix, key, err)
			}
			*dst = f
		}
	}

	if v, ok := lookup("DEFAULT_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("env %s_DEFAULT_TIMEOUT: %w", l.envPrefix, err)
		}
		cfg.DefaultTimeout = d
	}

	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
