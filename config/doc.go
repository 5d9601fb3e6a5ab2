// Package config provides the agent configuration model and its layered
// loader (defaults, YAML file, environment overrides).
package config
