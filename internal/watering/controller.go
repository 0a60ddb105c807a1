// Package watering runs the watering control loop: it applies the schedule
// state machine to each tick, drives moisture-targeted pump cycles and
// persists the schedule after every processed tick.
package watering

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/plant-nanny/internal/gpio"
	"github.com/sweeney/plant-nanny/internal/history"
	"github.com/sweeney/plant-nanny/internal/logger"
	"github.com/sweeney/plant-nanny/internal/logic"
	"github.com/sweeney/plant-nanny/internal/sensor"
)

var (
	// ErrPersist is returned by Tick when the schedule could not be saved.
	// The in-memory schedule is still updated and stays authoritative for
	// this process; a restart will see the previous record.
	ErrPersist = errors.New("watering: persist schedule")

	// ErrCycleCanceled is returned by Tick when a watering cycle was aborted.
	// The schedule is not written.
	ErrCycleCanceled = errors.New("watering: cycle canceled")

	// ErrTargetUnreachable is logged when a cycle hits its pulse limit
	// without reaching the moisture target.
	ErrTargetUnreachable = errors.New("watering: moisture target unreachable")
)

// SelectionSource supplies the operator's current choices.
type SelectionSource interface {
	Selection() logic.Selection
}

// Store persists the schedule.
type Store interface {
	Save(state logic.ScheduleState) error
}

// Observer is told about every controller state change.
type Observer interface {
	ControllerChanged(s Snapshot)
}

// Snapshot is a point-in-time view of the controller.
type Snapshot struct {
	Phase     logic.Phase
	Schedule  logic.ScheduleState
	NextPulse time.Time
	LastCycle *history.Entry
	Cycles    int
}

// Config holds the control loop timings.
type Config struct {
	// Cadence gates how often the schedule is consulted.
	Cadence time.Duration
	// Pulse is how long the pump runs per pulse.
	Pulse time.Duration
	// Settle is the wait after each pulse before re-reading moisture.
	Settle time.Duration
	// MaxPulses bounds a cycle. 0 means unbounded.
	MaxPulses int
}

// DefaultConfig returns the stock timings.
func DefaultConfig() Config {
	return Config{
		Cadence:   5 * time.Minute,
		Pulse:     100 * time.Millisecond,
		Settle:    time.Minute,
		MaxPulses: 30,
	}
}

// Deps are the controller's collaborators. Selection, Source, Pump and
// Store are required.
type Deps struct {
	Selection SelectionSource
	Source    sensor.Source
	Pump      gpio.Pump
	Store     Store
	Recorder  history.Recorder // optional
	Observer  Observer         // optional

	// Now and Sleep default to time.Now and a context-aware sleep.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// TickResult describes what a tick did.
type TickResult struct {
	Decision logic.Decision
	// Cycle is set when a watering cycle ran to completion.
	Cycle *history.Entry
}

// Controller owns the schedule state machine. Tick is safe to call from
// one loop; Abort and Snapshot may be called from any goroutine.
type Controller struct {
	cfg   Config
	deps  Deps
	sched *logic.Scheduler

	// mu serialises ticks, so at most one cycle is ever in flight.
	mu sync.Mutex

	cancelMu sync.Mutex
	cancel   context.CancelFunc

	snapMu sync.RWMutex
	snap   Snapshot
}

// New creates a controller resuming from persisted state. start is the
// process start time; the first tick is processed one cadence later.
func New(cfg Config, deps Deps, start time.Time, persisted logic.ScheduleState) *Controller {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Sleep == nil {
		deps.Sleep = sleepCtx
	}
	if deps.Recorder == nil {
		deps.Recorder = history.Multi{}
	}
	c := &Controller{
		cfg:   cfg,
		deps:  deps,
		sched: logic.NewScheduler(cfg.Cadence, start, persisted),
	}
	c.publish(nil)
	return c
}

// Tick evaluates the schedule at now and, when due, runs a watering cycle
// before returning.
func (c *Controller) Tick(ctx context.Context, now time.Time) (TickResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d := c.sched.Evaluate(now, c.deps.Selection.Selection())
	res := TickResult{Decision: d}

	switch d.Action {
	case logic.ActionNone:
		return res, nil

	case logic.ActionWait:
		c.sched.Wait(d)
		c.publish(nil)
		logger.Debug("schedule checked", "next_check", c.sched.State().NextCheck, "delay", d.Delay, "target", d.Target)
		return res, c.persist()

	case logic.ActionWater:
		c.sched.Begin(d)
		c.publish(nil)
		logger.Info("watering cycle started", "target", d.Target, "delay", d.Delay)

		cycle, err := c.runCycle(ctx, d)
		if err != nil {
			c.sched.Abort(c.deps.Now())
			c.publish(nil)
			logger.Warn("watering cycle aborted", "id", cycle.ID, "pulses", cycle.Pulses, "err", err)
			return res, err
		}

		c.sched.Complete(d)
		res.Cycle = &cycle
		c.publish(&cycle)
		logger.Info("watering cycle finished",
			"id", cycle.ID,
			"outcome", cycle.Outcome,
			"moisture", cycle.FinalPercent,
			"pulses", cycle.Pulses,
			"next_check", c.sched.State().NextCheck)
		return res, c.persist()
	}
	return res, fmt.Errorf("watering: unknown action %q", d.Action)
}

// Abort cancels the in-flight watering cycle, if any. It reports whether a
// cycle was running.
func (c *Controller) Abort() bool {
	c.cancelMu.Lock()
	defer c.cancelMu.Unlock()
	if c.cancel == nil {
		return false
	}
	c.cancel()
	return true
}

// Snapshot returns the latest controller state. It does not wait for an
// in-flight cycle.
func (c *Controller) Snapshot() Snapshot {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snap
}

func (c *Controller) persist() error {
	if err := c.deps.Store.Save(c.sched.State()); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

// publish refreshes the snapshot and notifies the observer. Called with mu held.
func (c *Controller) publish(cycle *history.Entry) {
	c.snapMu.Lock()
	c.snap.Phase = c.sched.Phase()
	c.snap.Schedule = c.sched.State()
	c.snap.NextPulse = c.sched.NextPulse()
	if cycle != nil {
		cp := *cycle
		c.snap.LastCycle = &cp
		c.snap.Cycles++
	}
	s := c.snap
	c.snapMu.Unlock()

	if c.deps.Observer != nil {
		c.deps.Observer.ControllerChanged(s)
	}
}

func (c *Controller) setCancel(cancel context.CancelFunc) {
	c.cancelMu.Lock()
	c.cancel = cancel
	c.cancelMu.Unlock()
}

func newCycleID() string {
	return uuid.NewString()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
