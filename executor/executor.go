// =============================================================================
// Agentcore Step Executor
// =============================================================================
// Drives a plan to completion: repeatedly computes the ready set against the
// completed set and dispatches ready steps concurrently, bounded by named
// admission queues. Every step outcome, success or failure, marks the step
// completed, so dependents of a failed step still run and must validate
// upstream results themselves. All results flow back through one channel and
// only the executor's own loop touches the completed set and entry list.
// =============================================================================
package executor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/researchmesh/agentcore/config"
	"github.com/researchmesh/agentcore/internal/metrics"
	"github.com/researchmesh/agentcore/plan"
	"github.com/researchmesh/agentcore/tools"
	"github.com/researchmesh/agentcore/types"
)

// queueMetaKey is the step metadata key selecting an admission queue.
const queueMetaKey = "queue"

// retryBackoffUnit scales the exponential backoff between retry attempts.
const retryBackoffUnit = 100 * time.Millisecond

// Result is the outcome of one plan execution. Entries are ordered by
// completion, not dispatch; concurrent steps may interleave.
type Result struct {
	PlanID    string
	Entries   []types.HistoryEntry
	Completed map[string]struct{}
	// Failed maps step names to their final error text. Failed steps are
	// also present in Completed.
	Failed    map[string]string
	Artifacts map[string]types.Artifact
	Stalled   bool
}

// Executor invokes plan steps against the tool registry under the
// configured timeout, retry, allowlist, rate-limit, and circuit-breaker
// policies.
type Executor struct {
	cfg       *config.Config
	registry  *tools.Registry
	collector *metrics.Collector
	limiter   *rate.Limiter
	queues    map[string]*semaphore.Weighted
	tracer    trace.Tracer
	logger    *zap.Logger
}

// New creates an executor. The metrics collector may be nil.
func New(cfg *config.Config, registry *tools.Registry, collector *metrics.Collector, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	queues := make(map[string]*semaphore.Weighted, len(cfg.Queues))
	for name, capacity := range cfg.Queues {
		queues[name] = semaphore.NewWeighted(int64(capacity))
	}
	var limiter *rate.Limiter
	if cfg.ToolRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.ToolRateLimit), 1)
	}
	return &Executor{
		cfg:       cfg,
		registry:  registry,
		collector: collector,
		limiter:   limiter,
		queues:    queues,
		tracer:    otel.Tracer("agentcore/executor"),
		logger:    logger.With(zap.String("component", "executor")),
	}
}

type stepOutcome struct {
	step     plan.Step
	entry    types.HistoryEntry
	artifact *types.Artifact
	errText  string
}

// ExecutePlan runs every step of the plan. It returns a Result covering
// all completed steps even on error. A non-nil error wraps ErrPlanStalled
// when the ready set starved with steps remaining, or the context error
// when the run was cancelled.
func (e *Executor) ExecutePlan(ctx context.Context, p *plan.Plan) (*Result, error) {
	res := &Result{
		PlanID:    p.PlanID,
		Completed: make(map[string]struct{}, len(p.Steps)),
		Failed:    make(map[string]string),
		Artifacts: make(map[string]types.Artifact),
	}
	if err := p.Validate(); err != nil {
		return res, err
	}

	breakers := NewBreakerSet(e.cfg.CircuitBreakerThreshold, e.logger)

	e.logger.Info("starting plan execution",
		zap.String("plan_id", p.PlanID),
		zap.String("task_id", p.TaskID),
		zap.Int("steps", len(p.Steps)))

	for len(res.Completed) < len(p.Steps) {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		ready := p.ReadySteps(res.Completed)
		if len(ready) == 0 {
			res.Stalled = true
			e.logger.Warn("plan stalled",
				zap.String("plan_id", p.PlanID),
				zap.Int("completed", len(res.Completed)),
				zap.Int("total", len(p.Steps)))
			return res, fmt.Errorf("plan %s: %w: %d of %d steps completed",
				p.PlanID, ErrPlanStalled, len(res.Completed), len(p.Steps))
		}

		outcomes := make(chan stepOutcome, len(ready))
		var g errgroup.Group
		for _, step := range ready {
			g.Go(func() error {
				if sem := e.queueFor(step); sem != nil {
					if err := sem.Acquire(ctx, 1); err != nil {
						return err
					}
					defer sem.Release(1)
				}
				outcomes <- e.executeStep(ctx, p, step, breakers)
				return nil
			})
		}
		err := g.Wait()
		close(outcomes)

		// Single writer: only this loop mutates the result state.
		for out := range outcomes {
			res.Completed[out.step.Name] = struct{}{}
			res.Entries = append(res.Entries, out.entry)
			if out.errText != "" {
				res.Failed[out.step.Name] = out.errText
			}
			if out.artifact != nil {
				res.Artifacts[out.artifact.Name] = *out.artifact
			}
		}
		if err != nil {
			return res, err
		}
	}

	e.logger.Info("plan execution completed",
		zap.String("plan_id", p.PlanID),
		zap.Int("steps", len(res.Completed)),
		zap.Int("failed", len(res.Failed)))

	return res, nil
}

// queueFor resolves the admission queue for a step: the metadata-selected
// queue if it exists, the default queue otherwise, nil meaning unbounded.
func (e *Executor) queueFor(step plan.Step) *semaphore.Weighted {
	if name, ok := step.Metadata[queueMetaKey].(string); ok {
		if sem, ok := e.queues[name]; ok {
			return sem
		}
	}
	return e.queues["default"]
}

// executeStep runs one step through the full policy chain: allowlist,
// registry resolution, circuit breaker admission, rate limiting, timed
// invocation, and bounded retry. Every path returns an outcome carrying
// exactly one history entry.
func (e *Executor) executeStep(ctx context.Context, p *plan.Plan, step plan.Step, breakers *BreakerSet) stepOutcome {
	ctx, span := e.tracer.Start(ctx, "executor.step",
		trace.WithAttributes(
			attribute.String("tool", step.Name),
			attribute.String("plan_id", p.PlanID),
		))
	defer span.End()

	if !e.cfg.ToolAllowed(step.Name) {
		err := fmt.Errorf("%w: %q not in allowlist", ErrToolDisallowed, step.Name)
		return e.failStep(p, step, span, err, "disallowed", 0)
	}

	tool, err := e.registry.Resolve(step.Name)
	if err != nil {
		return e.failStep(p, step, span, err, "unresolved", 0)
	}

	// Failed attempts count toward the tool's breaker; once it opens,
	// remaining retries and any later dispatch of the tool are suppressed
	// until the next plan.
	attempts := step.Retry + 1
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if !breakers.Allow(step.Name) {
			if lastErr == nil {
				lastErr = fmt.Errorf("%w for tool %q", ErrBreakerOpen, step.Name)
			}
			break
		}
		if attempt > 0 {
			if err := e.backoff(ctx, attempt); err != nil {
				lastErr = err
				break
			}
		}
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				lastErr = err
				break
			}
		}

		start := time.Now()
		output, err := e.invoke(ctx, tool, step)
		latency := time.Since(start)

		if err == nil {
			breakers.RecordSuccess(step.Name)
			if e.collector != nil {
				e.collector.RecordStep(step.Name, "ok", latency)
			}
			span.SetStatus(codes.Ok, "")
			return stepOutcome{
				step:     step,
				artifact: artifactFromOutput(step.Name, output),
				entry: types.HistoryEntry{
					TS:           time.Now(),
					Kind:         types.EntryStep,
					Name:         step.Name,
					InputsDigest: types.Digest(step.Inputs),
					ResultDigest: types.Digest(output),
					LatencyMS:    latency.Milliseconds(),
					Metadata:     map[string]any{"plan_id": p.PlanID, "attempt": attempt + 1},
				},
			}
		}

		lastErr = err
		if breakers.RecordFailure(step.Name) && e.collector != nil {
			e.collector.RecordBreakerOpen(step.Name)
		}
		if errors.Is(err, ErrToolTimeout) || ctx.Err() != nil {
			break
		}
		e.logger.Warn("step attempt failed",
			zap.String("tool", step.Name),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", attempts),
			zap.Error(err))
	}

	status := "error"
	switch {
	case errors.Is(lastErr, ErrToolTimeout):
		status = "timeout"
	case errors.Is(lastErr, ErrBreakerOpen):
		status = "suppressed"
	}
	return e.failStep(p, step, span, lastErr, status, attempts)
}

// failStep builds the error outcome for a step. Attempts is zero for
// policy failures where the tool was never invoked.
func (e *Executor) failStep(p *plan.Plan, step plan.Step, span trace.Span, err error, status string, attempts int) stepOutcome {
	span.RecordError(err)
	span.SetStatus(codes.Error, status)
	if e.collector != nil {
		e.collector.RecordStep(step.Name, status, 0)
	}
	e.logger.Warn("step failed",
		zap.String("plan_id", p.PlanID),
		zap.String("tool", step.Name),
		zap.String("status", status),
		zap.Error(err))
	return stepOutcome{
		step:    step,
		errText: err.Error(),
		entry: types.HistoryEntry{
			TS:           time.Now(),
			Kind:         types.EntryError,
			Name:         step.Name,
			InputsDigest: types.Digest(step.Inputs),
			Error:        err.Error(),
			Metadata:     map[string]any{"plan_id": p.PlanID, "status": status, "attempts": attempts},
		},
	}
}

// invoke calls the tool with a hard deadline. The call runs in its own
// goroutine so an uninterruptible tool cannot block the executor past the
// timeout; an abandoned call finishes against a cancelled context.
func (e *Executor) invoke(ctx context.Context, tool tools.Tool, step plan.Step) (map[string]any, error) {
	timeout := step.Timeout()
	if timeout <= 0 {
		timeout = e.cfg.StepTimeout(step.Name)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type invocation struct {
		output map[string]any
		err    error
	}
	done := make(chan invocation, 1)
	go func() {
		output, err := tool.Invoke(ctx, step.Inputs)
		done <- invocation{output, err}
	}()

	select {
	case inv := <-done:
		return inv.output, inv.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("tool %q: %w after %v", step.Name, ErrToolTimeout, timeout)
		}
		return nil, ctx.Err()
	}
}

// backoff sleeps before a retry attempt, scaling exponentially with the
// configured base. Returns the context error if cancelled while waiting.
func (e *Executor) backoff(ctx context.Context, attempt int) error {
	base := e.cfg.RetryBackoffBase
	if base < 1 {
		base = 1
	}
	delay := time.Duration(float64(retryBackoffUnit) * math.Pow(base, float64(attempt-1)))
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// artifactFromOutput lifts a tool output's "artifact" block into an
// Artifact record. Tools that produce durable outputs describe them under
// this key; everything else is carried by digest only.
func artifactFromOutput(tool string, output map[string]any) *types.Artifact {
	block, ok := output["artifact"].(map[string]any)
	if !ok {
		return nil
	}
	name, _ := block["name"].(string)
	if name == "" {
		name = tool
	}
	kind := types.ArtifactData
	if k, ok := block["kind"].(string); ok && k != "" {
		kind = types.ArtifactKind(k)
	}
	location, _ := block["location"].(string)
	artifact := &types.Artifact{
		Name:      name,
		Kind:      kind,
		Location:  location,
		Checksum:  types.Digest(block),
		CreatedAt: time.Now(),
	}
	if size, ok := block["size_bytes"].(float64); ok {
		artifact.SizeBytes = int64(size)
	}
	return artifact
}
