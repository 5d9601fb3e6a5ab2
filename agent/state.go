package agent

import "fmt"

// State is the controller lifecycle state.
type State string

const (
	// StateUninitialized waits for the configure event
	StateUninitialized State = "uninitialized"
	// StateIdle waits for a non-empty task queue or shutdown
	StateIdle State = "idle"
	// StateProcessing plans and executes exactly one task
	StateProcessing State = "processing"
	// StateShuttingDown finishes in-flight work and forces a final snapshot
	StateShuttingDown State = "shutting_down"
	// StateTerminated is the final state; the event loop has exited
	StateTerminated State = "terminated"
)

var validTransitions = map[State][]State{
	StateUninitialized: {StateIdle, StateShuttingDown},
	StateIdle:          {StateProcessing, StateShuttingDown},
	StateProcessing:    {StateIdle, StateShuttingDown},
	StateShuttingDown:  {StateTerminated},
	StateTerminated:    {},
}

// CanTransition reports whether moving between two states is legal.
func CanTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ErrInvalidTransition reports an illegal state transition.
type ErrInvalidTransition struct {
	From State
	To   State
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid state transition: %s -> %s", e.From, e.To)
}
