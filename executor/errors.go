package executor

import "errors"

var (
	// ErrToolDisallowed reports a step whose tool name is absent from a
	// non-empty allowlist. The tool is never invoked.
	ErrToolDisallowed = errors.New("tool not allowed")

	// ErrToolTimeout reports an invocation that exceeded its hard deadline.
	// Timed-out steps are not retried.
	ErrToolTimeout = errors.New("tool invocation timed out")

	// ErrBreakerOpen reports a step suppressed by an open circuit breaker.
	ErrBreakerOpen = errors.New("circuit breaker open")

	// ErrPlanStalled reports a plan whose ready set is empty while steps
	// remain, usually a dependency cycle.
	ErrPlanStalled = errors.New("plan stalled")
)
