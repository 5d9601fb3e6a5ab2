package memory

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/researchmesh/agentcore/types"
)

// SummaryEntryName is the name of the synthetic entry that replaces a
// compacted history prefix.
const SummaryEntryName = "COMPACTED_HISTORY"

// tokenEncoding is the tiktoken encoding used for the optional token budget.
const tokenEncoding = "cl100k_base"

// Compactor bounds history growth: when the serialized history exceeds the
// character budget (or, if configured, the token budget), the prefix before
// the last keepLast entries is replaced with one extractive summary entry.
type Compactor struct {
	keepLast    int
	budgetChars int
	// budgetTokens is an optional second budget. Zero disables it.
	budgetTokens int
	logger       *zap.Logger

	encOnce sync.Once
	enc     *tiktoken.Tiktoken
}

// Report describes one compaction pass.
type Report struct {
	OriginalCount  int
	CompactedCount int
	CharsBefore    int
	CharsAfter     int
	Compacted      bool
}

// NewCompactor creates a compactor.
func NewCompactor(keepLast, budgetChars, budgetTokens int, logger *zap.Logger) *Compactor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compactor{
		keepLast:     keepLast,
		budgetChars:  budgetChars,
		budgetTokens: budgetTokens,
		logger:       logger.With(zap.String("component", "memory_compactor")),
	}
}

// NeedsCompaction reports whether the history has crossed the compaction
// threshold: serialized size above budget*margin, or token count above the
// token budget when one is configured.
func (c *Compactor) NeedsCompaction(h History, margin float64) bool {
	if len(h) <= c.keepLast {
		return false
	}
	if float64(h.SerializedSize()) > float64(c.budgetChars)*margin {
		return true
	}
	if c.budgetTokens > 0 && c.countTokens(h) > c.budgetTokens {
		return true
	}
	return false
}

// Compact reduces the history to [summary] + keepLast verbatim entries.
// No-op when the entry count is within keepLast, or when both budgets are
// satisfied (the gate mirrors NeedsCompaction, so a trigger always compacts).
func (c *Compactor) Compact(h History) (History, Report) {
	report := Report{
		OriginalCount: len(h),
		CharsBefore:   h.SerializedSize(),
	}

	overChars := report.CharsBefore > c.budgetChars
	overTokens := c.budgetTokens > 0 && c.countTokens(h) > c.budgetTokens
	if len(h) <= c.keepLast || (!overChars && !overTokens) {
		report.CompactedCount = len(h)
		report.CharsAfter = report.CharsBefore
		return h, report
	}

	split := len(h) - c.keepLast
	head, tail := h[:split], h[split:]

	summary := types.HistoryEntry{
		TS:           head[0].TS,
		Kind:         types.EntryMeta,
		Name:         SummaryEntryName,
		InputsDigest: fmt.Sprintf("Summarized %d entries", len(head)),
		ResultDigest: summarize(head),
		Tags:         []string{"compaction", "summary"},
		Metadata: map[string]any{
			"original_count": len(head),
			"time_range":     []any{head[0].TS, head[len(head)-1].TS},
		},
	}

	compacted := make(History, 0, len(tail)+1)
	compacted = append(compacted, summary)
	compacted = append(compacted, tail...)

	report.CompactedCount = len(compacted)
	report.CharsAfter = compacted.SerializedSize()
	report.Compacted = true

	c.logger.Info("history compacted",
		zap.Int("original_count", report.OriginalCount),
		zap.Int("compacted_count", report.CompactedCount),
		zap.Int("chars_before", report.CharsBefore),
		zap.Int("chars_after", report.CharsAfter))

	return compacted, report
}

// summarize builds the extractive summary of a history prefix: counts per
// kind, up to 5 successful step names, and up to 3 error messages verbatim.
func summarize(entries History) string {
	byKind := map[types.EntryKind]int{}
	var keySteps, errors []string

	for _, entry := range entries {
		byKind[entry.Kind]++
		if entry.Error != "" {
			errors = append(errors, fmt.Sprintf("%s: %s", entry.Name, entry.Error))
		}
		if entry.Kind == types.EntryStep && entry.Error == "" {
			keySteps = append(keySteps, entry.Name)
		}
	}

	parts := []string{
		fmt.Sprintf("Executed %d operations:", len(entries)),
		fmt.Sprintf("  Plans: %d, Steps: %d, Observations: %d, Errors: %d",
			byKind[types.EntryPlan], byKind[types.EntryStep],
			byKind[types.EntryObs], byKind[types.EntryError]),
	}
	if len(keySteps) > 0 {
		if len(keySteps) > 5 {
			keySteps = keySteps[:5]
		}
		parts = append(parts, "  Key steps: "+strings.Join(keySteps, ", "))
	}
	if len(errors) > 0 {
		if len(errors) > 3 {
			errors = errors[:3]
		}
		parts = append(parts, "  Errors encountered: "+strings.Join(errors, "; "))
	}
	return strings.Join(parts, " | ")
}

// countTokens estimates the token count of the serialized history. When the
// tiktoken encoding cannot be loaded, a chars/4 estimate is used so the
// token budget still bounds growth.
func (c *Compactor) countTokens(h History) int {
	c.encOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(tokenEncoding)
		if err != nil {
			c.logger.Warn("token encoding unavailable, estimating tokens from chars",
				zap.String("encoding", tokenEncoding),
				zap.Error(err))
			return
		}
		c.enc = enc
	})

	size := h.SerializedSize()
	if c.enc == nil {
		return size / 4
	}

	var sb strings.Builder
	sb.Grow(size)
	for _, entry := range h {
		sb.WriteString(entry.Name)
		sb.WriteString(" ")
		sb.WriteString(entry.InputsDigest)
		sb.WriteString(" ")
		sb.WriteString(entry.ResultDigest)
		sb.WriteString(" ")
		sb.WriteString(entry.Error)
		sb.WriteString("\n")
	}
	return len(c.enc.Encode(sb.String(), nil, nil))
}
