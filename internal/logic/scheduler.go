package logic

import "time"

// Scheduler is the watering state machine.
//
// A tick is processed only once the cadence gate has opened (now >= next
// pulse time). Once past the gate the persisted NextCheck decides whether a
// watering cycle runs. An unset NextCheck forces exactly one cycle, which is
// how a fresh install gets its first watering.
type Scheduler struct {
	cadence   time.Duration
	nextPulse time.Time
	phase     Phase
	state     ScheduleState
}

// NewScheduler creates a scheduler from previously persisted state.
// The first tick is processed at start+cadence.
func NewScheduler(cadence time.Duration, start time.Time, persisted ScheduleState) *Scheduler {
	persisted.DelayIndex = ClampDelayIndex(persisted.DelayIndex)
	persisted.MoistureIndex = ClampMoistureIndex(persisted.MoistureIndex)
	return &Scheduler{
		cadence:   cadence,
		nextPulse: start.Add(cadence),
		phase:     PhaseIdle,
		state:     persisted,
	}
}

// Evaluate decides what the tick at now must do. It does not mutate state.
func (s *Scheduler) Evaluate(now time.Time, sel Selection) Decision {
	sel = sel.Clamp()
	d := Decision{
		Action:    ActionNone,
		Time:      now,
		Selection: sel,
		Delay:     sel.Delay(),
		Target:    sel.Target(),
	}

	if now.Before(s.nextPulse) || s.phase == PhaseWatering {
		return d
	}

	if !s.state.HasNextCheck() || !now.Before(s.state.NextCheck) {
		d.Action = ActionWater
	} else {
		d.Action = ActionWait
	}
	return d
}

// Begin enters the WATERING phase for an ActionWater decision.
func (s *Scheduler) Begin(d Decision) {
	if d.Action != ActionWater {
		return
	}
	s.phase = PhaseWatering
}

// Complete finishes a watering cycle started at d.Time and schedules the
// next check one delay later.
func (s *Scheduler) Complete(d Decision) {
	s.state.NextCheck = d.Delay.After(d.Time)
	s.record(d)
	s.phase = PhaseIdle
}

// Wait records a processed tick that did not need a watering cycle.
func (s *Scheduler) Wait(d Decision) {
	s.record(d)
}

// Abort leaves the WATERING phase without touching the durable state, and
// holds the gate closed for one cadence so the cycle is not retried at once.
func (s *Scheduler) Abort(now time.Time) {
	s.phase = PhaseIdle
	s.nextPulse = now.Add(s.cadence)
}

func (s *Scheduler) record(d Decision) {
	s.state.LastTick = d.Time
	s.state.DelayIndex = d.Selection.DelayIndex
	s.state.MoistureIndex = d.Selection.MoistureIndex
	s.nextPulse = d.Time.Add(s.cadence)
}

// State returns a copy of the durable state.
func (s *Scheduler) State() ScheduleState {
	return s.state
}

// Phase returns the current phase.
func (s *Scheduler) Phase() Phase {
	return s.phase
}

// NextPulse returns the time the cadence gate next opens.
func (s *Scheduler) NextPulse() time.Time {
	return s.nextPulse
}
