package watering

import (
	"context"
	"fmt"

	"github.com/sweeney/plant-nanny/internal/history"
	"github.com/sweeney/plant-nanny/internal/logger"
	"github.com/sweeney/plant-nanny/internal/logic"
)

// runCycle pulses the pump until the moisture target is reached.
//
// With no usable sensor the reading is taken as 0% and the pump is pulsed
// at most once, since nothing can confirm the target was reached. The
// returned error is non-nil only when the cycle was canceled.
func (c *Controller) runCycle(ctx context.Context, d logic.Decision) (history.Entry, error) {
	ctx, cancel := context.WithCancel(ctx)
	c.setCancel(cancel)
	defer func() {
		c.setCancel(nil)
		cancel()
	}()

	e := history.Entry{
		ID:            newCycleID(),
		StartedAt:     d.Time,
		TargetPercent: d.Target.Percent,
	}

	reading, err := c.deps.Source.Read()
	if err != nil {
		logger.Warn("moisture sensor unavailable, assuming dry soil", "err", err)
		e.Outcome = history.OutcomeSensorUnavailable
		if e.StartPercent < e.TargetPercent {
			if err := ctx.Err(); err != nil {
				return e, fmt.Errorf("%w: %w", ErrCycleCanceled, err)
			}
			c.pulse(&e)
		}
		return c.finish(e), nil
	}

	e.StartPercent = reading
	e.FinalPercent = reading
	logger.Debug("moisture read", "percent", reading, "target", e.TargetPercent)

	for reading < e.TargetPercent {
		if err := ctx.Err(); err != nil {
			return e, fmt.Errorf("%w: %w", ErrCycleCanceled, err)
		}
		if c.cfg.MaxPulses > 0 && e.Pulses >= c.cfg.MaxPulses {
			e.Outcome = history.OutcomeTargetUnreachable
			logger.Warn("giving up on watering cycle", "err", ErrTargetUnreachable,
				"pulses", e.Pulses, "moisture", reading, "target", e.TargetPercent)
			break
		}

		c.pulse(&e)

		if err := c.deps.Sleep(ctx, c.cfg.Settle); err != nil {
			return e, fmt.Errorf("%w: %w", ErrCycleCanceled, err)
		}

		next, err := c.deps.Source.Read()
		if err != nil {
			e.Outcome = history.OutcomeSensorUnavailable
			logger.Warn("moisture sensor lost during cycle", "err", err, "pulses", e.Pulses)
			break
		}
		reading = next
		e.FinalPercent = reading
		logger.Debug("moisture read", "percent", reading, "target", e.TargetPercent)
	}

	if e.Outcome == "" {
		e.Outcome = history.OutcomeTargetReached
	}
	return c.finish(e), nil
}

// pulse runs the pump once. Failures are logged and counted; the cycle
// carries on so a flaky relay cannot stall the schedule.
func (c *Controller) pulse(e *history.Entry) {
	e.Pulses++
	if err := c.deps.Pump.Pulse(c.cfg.Pulse); err != nil {
		e.PumpFailures++
		logger.Error("pump pulse failed", "err", err, "pulse", e.Pulses)
	}
}

func (c *Controller) finish(e history.Entry) history.Entry {
	e.FinishedAt = c.deps.Now()
	if err := c.deps.Recorder.Record(e); err != nil {
		logger.Error("failed to record watering cycle", "id", e.ID, "err", err)
	}
	return e
}
