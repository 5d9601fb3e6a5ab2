// =============================================================================
// Agentcore Controller
// =============================================================================
// The controller owns every piece of mutable agent state: configuration,
// task queue, history, plan override, artifacts, cursors, and stats. All
// external interaction flows through one serialized event inbox consumed by
// a single run goroutine; event senders never touch state directly. Step
// execution may fan out internally, but results are folded back into state
// only by the run goroutine.
// =============================================================================
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/researchmesh/agentcore/config"
	"github.com/researchmesh/agentcore/executor"
	"github.com/researchmesh/agentcore/internal/metrics"
	"github.com/researchmesh/agentcore/internal/queue"
	"github.com/researchmesh/agentcore/memory"
	"github.com/researchmesh/agentcore/plan"
	"github.com/researchmesh/agentcore/planner"
	"github.com/researchmesh/agentcore/snapshot"
	"github.com/researchmesh/agentcore/tools"
	"github.com/researchmesh/agentcore/types"
)

// ErrTerminated is returned when sending an event to a controller whose
// run loop has already exited.
var ErrTerminated = errors.New("controller terminated")

// inboxCapacity bounds the serialized event inbox. Senders block once the
// buffer is full rather than dropping events.
const inboxCapacity = 128

// Options wires the controller's collaborators. Store and Registry are
// required for a useful agent; Metrics and Reasoner may be nil.
type Options struct {
	Store    snapshot.Store
	Registry *tools.Registry
	Metrics  *metrics.Collector
	Reasoner planner.ReasoningClient
	Logger   *zap.Logger
}

// Controller is the agent's state machine and event loop.
type Controller struct {
	store     snapshot.Store
	registry  *tools.Registry
	collector *metrics.Collector
	reasoner  planner.ReasoningClient
	logger    *zap.Logger

	inbox chan Event
	done  chan struct{}

	// Everything below is owned by the run goroutine; the mutex exists so
	// the read-only accessors can observe a consistent view.
	mu           sync.RWMutex
	state        State
	cfg          *config.Config
	configured   bool
	queue        *queue.TaskQueue
	history      memory.History
	planOverride *plan.Plan
	artifacts    map[string]types.Artifact
	cursors      map[string]any
	stats        types.Stats

	compactor *memory.Compactor
	plnr      planner.Planner
	exec      *executor.Executor
}

// New creates an unconfigured controller. Run starts the event loop; the
// configure event (or Restore) must arrive before tasks are planned with
// anything other than defaults.
func New(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		store:     opts.Store,
		registry:  opts.Registry,
		collector: opts.Metrics,
		reasoner:  opts.Reasoner,
		logger:    logger.With(zap.String("component", "controller")),
		inbox:     make(chan Event, inboxCapacity),
		done:      make(chan struct{}),
		state:     StateUninitialized,
		queue:     queue.New(),
		artifacts: make(map[string]types.Artifact),
		cursors:   make(map[string]any),
	}
}

// Run executes the event loop until a shutdown event or context
// cancellation. It blocks; callers normally run it in its own goroutine.
// Between tasks the loop waits on the inbox, never busy polling.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)

	c.logger.Info("event loop started")
	for {
		// Apply any pending events before looking at the queue, so
		// configure and set-plan sent together with a task take effect
		// first.
		select {
		case ev := <-c.inbox:
			if c.apply(ev) {
				c.shutdown(ctx)
				return nil
			}
			continue
		default:
		}

		task, ok := c.popTask()
		if !ok {
			select {
			case ev := <-c.inbox:
				if c.apply(ev) {
					c.shutdown(ctx)
					return nil
				}
			case <-ctx.Done():
				c.shutdown(ctx)
				return ctx.Err()
			}
			continue
		}

		if !c.isConfigured() {
			// Degrade to defaults rather than stalling the queue.
			c.logger.Warn("task received before configure, adopting default configuration")
			c.adoptConfig(config.Default())
			c.setState(StateIdle)
		}

		c.setState(StateProcessing)
		c.processTask(ctx, task)
		c.maybeCompact()
		c.maybeSnapshot(ctx, false)
		c.setState(StateIdle)
	}
}

// Send delivers an event to the serialized inbox.
func (c *Controller) Send(ctx context.Context, ev Event) error {
	select {
	case c.inbox <- ev:
		return nil
	case <-c.done:
		return ErrTerminated
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Configure sends the one-time configure event.
func (c *Controller) Configure(ctx context.Context, cfg *config.Config) error {
	return c.Send(ctx, Event{Type: EventConfigure, Config: cfg})
}

// EnqueueTask sends a task to the priority queue.
func (c *Controller) EnqueueTask(ctx context.Context, task types.Task) error {
	return c.Send(ctx, Event{Type: EventEnqueueTask, Task: &task})
}

// InjectMemory appends raw entries to the history.
func (c *Controller) InjectMemory(ctx context.Context, entries ...types.HistoryEntry) error {
	return c.Send(ctx, Event{Type: EventInjectMemory, Entries: entries})
}

// SetPlan overrides the plan used for the next processed task, bypassing
// the planner.
func (c *Controller) SetPlan(ctx context.Context, p *plan.Plan) error {
	return c.Send(ctx, Event{Type: EventSetPlan, Plan: p})
}

// Shutdown requests a graceful stop. The run loop finishes any in-flight
// task, writes a final snapshot, and exits; wait on Done for completion.
func (c *Controller) Shutdown(ctx context.Context) error {
	return c.Send(ctx, Event{Type: EventShutdown})
}

// Done is closed when the run loop has exited.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Stats returns a copy of the running counters.
func (c *Controller) Stats() types.Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// History returns a copy of the current history.
func (c *Controller) History() memory.History {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append(memory.History(nil), c.history...)
}

// QueueLen returns the number of queued tasks.
func (c *Controller) QueueLen() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.queue.Len()
}

// Restore rebuilds controller state from a persisted snapshot, by ID or
// the latest one when snapshotID is empty. Must be called before Run.
func (c *Controller) Restore(ctx context.Context, snapshotID string) error {
	if c.store == nil {
		return fmt.Errorf("restore: no snapshot store configured")
	}
	snap, err := c.store.Load(ctx, snapshotID)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	cfg := snap.Config
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("restore: snapshot carries invalid config: %w", err)
	}

	c.adoptConfig(&cfg)

	c.mu.Lock()
	c.queue = queue.New()
	for _, task := range snap.Inbox {
		c.queue.Push(task)
	}
	c.history = memory.History(snap.History)
	c.planOverride = snap.Plan
	c.artifacts = make(map[string]types.Artifact, len(snap.Artifacts))
	for name, artifact := range snap.Artifacts {
		c.artifacts[name] = artifact
	}
	c.cursors = snap.Cursors
	if c.cursors == nil {
		c.cursors = make(map[string]any)
	}
	c.stats = snap.Stats
	c.state = StateIdle
	c.mu.Unlock()

	c.logger.Info("state restored",
		zap.String("snapshot_id", snap.SnapshotID),
		zap.String("agent_name", snap.AgentName),
		zap.Int("inbox", len(snap.Inbox)),
		zap.Int("history", len(snap.History)))
	return nil
}

// apply mutates state for one event. Returns true for shutdown.
func (c *Controller) apply(ev Event) bool {
	switch ev.Type {
	case EventConfigure:
		c.applyConfigure(ev.Config)

	case EventEnqueueTask:
		if ev.Task == nil {
			c.logger.Warn("enqueue event without task dropped")
			return false
		}
		c.mu.Lock()
		c.queue.Push(*ev.Task)
		depth := c.queue.Len()
		c.mu.Unlock()
		if c.collector != nil {
			c.collector.SetQueueDepth(depth)
		}
		c.logger.Debug("task enqueued",
			zap.String("task_id", ev.Task.ID),
			zap.String("kind", string(ev.Task.Kind)),
			zap.Int("priority", ev.Task.Priority),
			zap.Int("queue_depth", depth))

	case EventInjectMemory:
		c.mu.Lock()
		c.history = append(c.history, ev.Entries...)
		c.mu.Unlock()
		c.logger.Debug("memory injected", zap.Int("entries", len(ev.Entries)))

	case EventSetPlan:
		if ev.Plan == nil {
			c.logger.Warn("set-plan event without plan dropped")
			return false
		}
		if err := ev.Plan.Validate(); err != nil {
			c.logger.Error("plan override rejected", zap.Error(err))
			c.appendHistory(types.HistoryEntry{
				TS:    time.Now(),
				Kind:  types.EntryError,
				Name:  "set_plan",
				Error: err.Error(),
			})
			return false
		}
		c.mu.Lock()
		c.planOverride = ev.Plan
		c.mu.Unlock()
		c.logger.Info("plan override set",
			zap.String("plan_id", ev.Plan.PlanID),
			zap.Int("steps", len(ev.Plan.Steps)))

	case EventShutdown:
		return true

	default:
		c.logger.Warn("unknown event type dropped", zap.String("type", string(ev.Type)))
	}
	return false
}

// applyConfigure handles the configure event. Configuration is one-shot:
// anything after the first successful configure is ignored with a warning.
func (c *Controller) applyConfigure(cfg *config.Config) {
	if c.isConfigured() {
		c.logger.Warn("configure after initialization ignored")
		return
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		c.logger.Error("invalid configuration rejected", zap.Error(err))
		return
	}
	c.adoptConfig(cfg)
	c.setState(StateIdle)
	c.appendHistory(types.HistoryEntry{
		TS:   time.Now(),
		Kind: types.EntryMeta,
		Name: "agent_configured",
		Metadata: map[string]any{
			"agent_name":   cfg.AgentName,
			"planner_mode": string(cfg.PlannerMode),
		},
	})
	c.logger.Info("agent configured",
		zap.String("agent_name", cfg.AgentName),
		zap.String("planner_mode", string(cfg.PlannerMode)))
}

// adoptConfig installs a configuration and builds the runtime components
// derived from it. Does not touch the lifecycle state.
func (c *Controller) adoptConfig(cfg *config.Config) {
	c.mu.Lock()
	c.cfg = cfg
	c.configured = true
	c.mu.Unlock()

	c.compactor = memory.NewCompactor(cfg.KeepLast, cfg.MemoryBudgetChars, cfg.MemoryBudgetTokens, c.logger)
	c.plnr = planner.ForMode(cfg, c.reasoner)
	c.exec = executor.New(cfg, c.registry, c.collector, c.logger)
}

// processTask plans and executes one task. Failures are recorded in
// history and stats; they never escape to the event loop.
func (c *Controller) processTask(ctx context.Context, task types.Task) {
	start := time.Now()
	log := c.logger.With(
		zap.String("task_id", task.ID),
		zap.String("kind", string(task.Kind)))
	log.Info("processing task", zap.Int("priority", task.Priority))

	p := c.takePlanOverride()
	if p != nil {
		p.TaskID = task.ID
	} else {
		var err error
		p, err = c.plnr.Plan(ctx, task)
		if err != nil {
			log.Error("planning failed", zap.Error(err))
			c.appendHistory(types.HistoryEntry{
				TS:       time.Now(),
				Kind:     types.EntryError,
				Name:     "planner",
				Error:    err.Error(),
				Metadata: map[string]any{"task_id": task.ID},
			})
			c.mu.Lock()
			c.stats.ErrorsEncountered++
			c.mu.Unlock()
			c.recordTask(task, "plan_error", time.Since(start))
			return
		}
	}

	if from, ok := p.Metadata[planner.MetaFallbackFrom]; ok {
		c.appendHistory(types.HistoryEntry{
			TS:   time.Now(),
			Kind: types.EntryObs,
			Name: "planner_fallback",
			Metadata: map[string]any{
				"task_id": task.ID,
				"from":    from,
				"mode":    p.Mode,
			},
		})
	}

	c.appendHistory(types.HistoryEntry{
		TS:   time.Now(),
		Kind: types.EntryPlan,
		Name: p.Mode,
		Metadata: map[string]any{
			"plan_id": p.PlanID,
			"task_id": task.ID,
			"steps":   len(p.Steps),
		},
	})

	res, execErr := c.exec.ExecutePlan(ctx, p)

	status := "ok"
	switch {
	case errors.Is(execErr, executor.ErrPlanStalled):
		status = "stalled"
	case execErr != nil:
		status = "error"
	case len(res.Failed) > 0:
		status = "partial"
	}

	c.mu.Lock()
	c.history = append(c.history, res.Entries...)
	for name, artifact := range res.Artifacts {
		c.artifacts[name] = artifact
	}
	c.cursors["last_task_id"] = task.ID
	c.cursors["last_plan_id"] = p.PlanID
	c.stats.StepsExecuted += len(res.Completed) - len(res.Failed)
	c.stats.ErrorsEncountered += len(res.Failed)
	// A task counts as completed only when its plan ran to the end;
	// stalled or aborted plans count toward the error counter instead.
	if execErr == nil {
		c.stats.TasksCompleted++
	} else {
		c.stats.ErrorsEncountered++
	}
	c.mu.Unlock()

	if execErr != nil {
		log.Warn("plan execution ended early", zap.Error(execErr))
		c.appendHistory(types.HistoryEntry{
			TS:       time.Now(),
			Kind:     types.EntryError,
			Name:     "executor",
			Error:    execErr.Error(),
			Metadata: map[string]any{"task_id": task.ID, "plan_id": p.PlanID},
		})
	}

	duration := time.Since(start)
	c.appendHistory(types.HistoryEntry{
		TS:        time.Now(),
		Kind:      types.EntryObs,
		Name:      "task_processed",
		LatencyMS: duration.Milliseconds(),
		Metadata: map[string]any{
			"task_id":   task.ID,
			"status":    status,
			"completed": len(res.Completed),
			"failed":    len(res.Failed),
		},
	})
	c.recordTask(task, status, duration)

	log.Info("task processed",
		zap.String("status", status),
		zap.Int("completed", len(res.Completed)),
		zap.Int("failed", len(res.Failed)),
		zap.Duration("duration", duration))
}

// maybeCompact compacts the history when its serialized size breaches the
// configured budget scaled by the safety margin. Checked after each task.
func (c *Controller) maybeCompact() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.compactor.NeedsCompaction(c.history, c.cfg.SafetyMargin) {
		return
	}
	compacted, report := c.compactor.Compact(c.history)
	c.history = compacted
	if report.Compacted {
		now := time.Now()
		c.stats.LastCompaction = &now
		if c.collector != nil {
			c.collector.RecordCompaction()
		}
	}
	if c.collector != nil {
		c.collector.SetHistorySize(c.history.SerializedSize())
	}
}

// maybeSnapshot persists a snapshot on the configured cadence: after every
// task when no interval is set, otherwise once the step counter has
// advanced by the interval. A failed save is logged and retried on the
// next cadence trigger, never immediately, and never crashes the agent.
func (c *Controller) maybeSnapshot(ctx context.Context, force bool) {
	if c.store == nil {
		return
	}
	c.mu.RLock()
	interval := c.cfg.SnapshotInterval
	due := c.stats.StepsExecuted-c.stats.LastSnapshotStep >= interval
	c.mu.RUnlock()
	if !force && interval > 0 && !due {
		return
	}

	snap := c.buildSnapshot()
	if err := c.store.Save(ctx, snap); err != nil {
		c.logger.Error("snapshot save failed",
			zap.String("snapshot_id", snap.SnapshotID),
			zap.Error(err))
		if c.collector != nil {
			c.collector.RecordSnapshot("error")
		}
		return
	}

	c.mu.Lock()
	c.stats.LastSnapshotStep = c.stats.StepsExecuted
	c.mu.Unlock()
	if c.collector != nil {
		c.collector.RecordSnapshot("ok")
	}
	c.logger.Debug("snapshot saved", zap.String("snapshot_id", snap.SnapshotID))
}

// buildSnapshot captures the full current state.
func (c *Controller) buildSnapshot() *snapshot.AgentSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := snapshot.New(c.cfg.AgentName)
	snap.Config = *c.cfg
	snap.Inbox = c.queue.Snapshot()
	snap.Plan = c.planOverride
	snap.History = append([]types.HistoryEntry(nil), c.history...)
	snap.Artifacts = make(map[string]types.Artifact, len(c.artifacts))
	for name, artifact := range c.artifacts {
		snap.Artifacts[name] = artifact
	}
	snap.Cursors = make(map[string]any, len(c.cursors))
	for key, value := range c.cursors {
		snap.Cursors[key] = value
	}
	snap.Stats = c.stats
	return snap
}

// shutdown finishes the lifecycle: a meta entry, a forced final snapshot,
// and the terminal state. The final snapshot survives context
// cancellation.
func (c *Controller) shutdown(ctx context.Context) {
	c.setState(StateShuttingDown)
	c.appendHistory(types.HistoryEntry{
		TS:   time.Now(),
		Kind: types.EntryMeta,
		Name: "agent_shutdown",
	})
	if !c.isConfigured() {
		c.adoptConfig(config.Default())
	}
	c.maybeSnapshot(context.WithoutCancel(ctx), true)
	c.setState(StateTerminated)

	stats := c.Stats()
	c.logger.Info("controller terminated",
		zap.Int("tasks_completed", stats.TasksCompleted),
		zap.Int("steps_executed", stats.StepsExecuted),
		zap.Int("errors", stats.ErrorsEncountered))
}

func (c *Controller) setState(next State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == next {
		return
	}
	if !CanTransition(c.state, next) {
		c.logger.Warn("forced lifecycle transition",
			zap.Error(ErrInvalidTransition{From: c.state, To: next}))
	}
	c.state = next
}

func (c *Controller) isConfigured() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.configured
}

func (c *Controller) popTask() (types.Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	task, ok := c.queue.Pop()
	if ok && c.collector != nil {
		c.collector.SetQueueDepth(c.queue.Len())
	}
	return task, ok
}

func (c *Controller) takePlanOverride() *plan.Plan {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.planOverride
	c.planOverride = nil
	return p
}

func (c *Controller) appendHistory(entry types.HistoryEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, entry)
}

func (c *Controller) recordTask(task types.Task, status string, duration time.Duration) {
	if c.collector != nil {
		c.collector.RecordTask(string(task.Kind), status, duration)
	}
}
