// Package logic contains the pure watering schedule logic.
// This package has NO external dependencies (no GPIO, serial, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// Phase is the controller's coarse state.
type Phase string

const (
	PhaseIdle     Phase = "IDLE"
	PhaseWatering Phase = "WATERING"
)

// Action is what the controller must do for a tick.
type Action string

const (
	// ActionNone means the tick was gated out and nothing changes.
	ActionNone Action = "NONE"
	// ActionWait means the schedule was consulted but no check is due yet.
	ActionWait Action = "WAIT"
	// ActionWater means a watering cycle must run now.
	ActionWater Action = "WATER"
)

// Selection is a read-only snapshot of the operator's chosen options,
// as indices into DelayCatalog and MoistureCatalog.
type Selection struct {
	DelayIndex    int
	MoistureIndex int
}

// ScheduleState is the durable control state.
type ScheduleState struct {
	// Time of the last processed tick.
	LastTick time.Time
	// Time at/after which a moisture check must run. Zero means unset:
	// check on the next processed tick.
	NextCheck time.Time
	// Last-known operator selections.
	DelayIndex    int
	MoistureIndex int
}

// HasNextCheck reports whether a next check time has been scheduled.
func (s ScheduleState) HasNextCheck() bool {
	return !s.NextCheck.IsZero()
}

// Selection returns the persisted selection, clamped into catalog range.
func (s ScheduleState) Selection() Selection {
	return Selection{DelayIndex: s.DelayIndex, MoistureIndex: s.MoistureIndex}.Clamp()
}

// Decision is the outcome of evaluating one tick.
type Decision struct {
	Action    Action
	Time      time.Time
	Selection Selection // clamped
	Delay     DelayOption
	Target    MoistureTarget
}
