// =============================================================================
// Agentcore default configuration
// =============================================================================
package config

import "time"

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		AgentName:          "basemodel-agent",
		PlannerMode:        PlannerHeuristic,
		MemoryBudgetChars:  16000,
		MemoryBudgetTokens: 0,
		KeepLast:           5,
		SafetyMargin:       0.9,
		ToolTimeouts:       map[string]int{},
		DefaultTimeout:     60 * time.Second,
		Queues: map[string]int{
			"llm":     4,
			"io":      8,
			"compute": 2,
		},
		SnapshotDir:             "./snapshots",
		DefaultRetryAttempts:    2,
		RetryBackoffBase:        2.0,
		CircuitBreakerThreshold: 5,
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			ServiceName: "agentcore",
			Endpoint:    "localhost:4317",
			Insecure:    true,
		},
	}
}
