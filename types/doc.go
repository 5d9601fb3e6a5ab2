// Package types defines the shared data model of the agent core: tasks,
// history entries, artifacts, and running statistics. It is a leaf package
// with no dependencies on other agentcore packages.
package types
