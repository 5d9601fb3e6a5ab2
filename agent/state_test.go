package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	t.Parallel()
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateUninitialized, StateIdle, true},
		{StateUninitialized, StateShuttingDown, true},
		{StateUninitialized, StateProcessing, false},
		{StateIdle, StateProcessing, true},
		{StateIdle, StateShuttingDown, true},
		{StateProcessing, StateIdle, true},
		{StateProcessing, StateShuttingDown, true},
		{StateShuttingDown, StateTerminated, true},
		{StateShuttingDown, StateIdle, false},
		{StateTerminated, StateIdle, false},
		{StateTerminated, StateUninitialized, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestErrInvalidTransition(t *testing.T) {
	t.Parallel()
	err := ErrInvalidTransition{From: StateTerminated, To: StateIdle}
	assert.Contains(t, err.Error(), "terminated")
	assert.Contains(t, err.Error(), "idle")
}
