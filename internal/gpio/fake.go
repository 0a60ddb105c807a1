package gpio

import (
	"errors"
	"time"
)

// FakePump is a test double that records pulses instead of switching a relay.
type FakePump struct {
	// Pulses contains the duration of every Pulse call, including failed ones.
	Pulses []time.Duration

	// PulseError, if set, will be returned by Pulse.
	PulseError error

	// OnPulse, if set, is called after each pulse is recorded.
	OnPulse func(n int)

	// Closed tracks if Close was called
	Closed bool
}

// NewFakePump creates a FakePump.
func NewFakePump() *FakePump {
	return &FakePump{}
}

// Pulse records the pulse without sleeping.
func (f *FakePump) Pulse(d time.Duration) error {
	f.Pulses = append(f.Pulses, d)
	if f.OnPulse != nil {
		f.OnPulse(len(f.Pulses))
	}
	return f.PulseError
}

// Count returns the number of pulses so far.
func (f *FakePump) Count() int {
	return len(f.Pulses)
}

// Close marks the pump as closed.
func (f *FakePump) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded pulses.
func (f *FakePump) Reset() {
	f.Pulses = nil
	f.PulseError = nil
	f.Closed = false
}

// FakeReader is a test double that returns scripted button states.
type FakeReader struct {
	// Samples contains scripted button states. Each call to Read consumes
	// the next sample; once exhausted the last is repeated.
	Samples []Sample

	// ReadError, if set, is returned by Read.
	ReadError error

	// Reads counts calls to Read.
	Reads int

	index  int
	Closed bool
}

// Sample is one reading of both buttons. true = pressed.
type Sample struct {
	A bool
	B bool
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples []Sample) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next scripted sample.
func (f *FakeReader) Read() (bool, bool, error) {
	f.Reads++
	if f.ReadError != nil {
		return false, false, f.ReadError
	}
	if len(f.Samples) == 0 {
		return false, false, errors.New("no samples configured")
	}

	s := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return s.A, s.B, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset rewinds to the first sample.
func (f *FakeReader) Reset() {
	f.index = 0
	f.Reads = 0
	f.Closed = false
}
