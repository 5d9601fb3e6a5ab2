package executor

import (
	"sync"

	"go.uber.org/zap"
)

// BreakerState is the circuit breaker state for one tool.
type BreakerState int

const (
	// BreakerClosed allows dispatch
	BreakerClosed BreakerState = iota
	// BreakerOpen suppresses dispatch for the remainder of the plan
	BreakerOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	default:
		return "unknown"
	}
}

// BreakerSet tracks per-tool consecutive failures within one plan
// execution. A breaker opens when a tool fails threshold times in a row
// and stays open until the plan ends; each new plan starts with a fresh
// set. A threshold of zero disables the breakers entirely.
type BreakerSet struct {
	threshold int
	logger    *zap.Logger

	mu       sync.Mutex
	failures map[string]int
	open     map[string]bool
}

// NewBreakerSet creates a breaker set for one plan execution.
func NewBreakerSet(threshold int, logger *zap.Logger) *BreakerSet {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BreakerSet{
		threshold: threshold,
		logger:    logger,
		failures:  make(map[string]int),
		open:      make(map[string]bool),
	}
}

// Allow reports whether a tool may be dispatched.
func (b *BreakerSet) Allow(tool string) bool {
	if b.threshold <= 0 {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.open[tool]
}

// RecordSuccess resets the tool's consecutive failure count.
func (b *BreakerSet) RecordSuccess(tool string) {
	if b.threshold <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[tool] = 0
}

// RecordFailure increments the tool's consecutive failure count and
// reports whether this failure opened the breaker.
func (b *BreakerSet) RecordFailure(tool string) bool {
	if b.threshold <= 0 {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures[tool]++
	if b.open[tool] || b.failures[tool] < b.threshold {
		return false
	}
	b.open[tool] = true
	b.logger.Warn("circuit breaker opened",
		zap.String("tool", tool),
		zap.Int("consecutive_failures", b.failures[tool]))
	return true
}

// State returns the breaker state for a tool.
func (b *BreakerSet) State(tool string) BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.open[tool] {
		return BreakerOpen
	}
	return BreakerClosed
}

// States returns the state of every tool seen so far.
func (b *BreakerSet) States() map[string]BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	states := make(map[string]BreakerState, len(b.failures))
	for tool := range b.failures {
		if b.open[tool] {
			states[tool] = BreakerOpen
		} else {
			states[tool] = BreakerClosed
		}
	}
	return states
}
