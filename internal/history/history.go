// Package history records completed watering cycles.
package history

import (
	"errors"
	"time"
)

// Outcome describes how a watering cycle ended.
type Outcome string

const (
	OutcomeTargetReached     Outcome = "TARGET_REACHED"
	OutcomeSensorUnavailable Outcome = "SENSOR_UNAVAILABLE"
	OutcomeTargetUnreachable Outcome = "TARGET_UNREACHABLE"
)

// Entry is one completed watering cycle.
type Entry struct {
	ID            string    `json:"id"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	StartPercent  int       `json:"start_percent"`
	FinalPercent  int       `json:"final_percent"`
	TargetPercent int       `json:"target_percent"`
	Pulses        int       `json:"pulses"`
	PumpFailures  int       `json:"pump_failures"`
	Outcome       Outcome   `json:"outcome"`
}

// Recorder stores completed cycles.
type Recorder interface {
	Record(e Entry) error
}

// Multi fans an entry out to several recorders. Every recorder is tried;
// the errors are joined.
type Multi []Recorder

// Record writes e to every recorder.
func (m Multi) Record(e Entry) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FakeRecorder keeps entries in memory.
type FakeRecorder struct {
	Entries     []Entry
	RecordError error
}

// Record appends e, or returns RecordError if set.
func (f *FakeRecorder) Record(e Entry) error {
	if f.RecordError != nil {
		return f.RecordError
	}
	f.Entries = append(f.Entries, e)
	return nil
}
