package logic

import "time"

// Button identifies one of the two panel buttons.
type Button int

const (
	// ButtonA moves to the next tab.
	ButtonA Button = iota + 1
	// ButtonB advances the option on the current tab.
	ButtonB
)

func (b Button) String() string {
	switch b {
	case ButtonA:
		return "A"
	case ButtonB:
		return "B"
	default:
		return "?"
	}
}

// ButtonInput is one sample of both buttons. true = held down.
type ButtonInput struct {
	A    bool
	B    bool
	Time time.Time
}

// ButtonPress is a debounced press of one button.
type ButtonPress struct {
	Button Button
	Time   time.Time
}

// buttonState is the debounce state of one button.
type buttonState struct {
	Stable       bool
	Pending      bool
	HasPending   bool
	PendingSince time.Time
	Baselined    bool
}

// ButtonDetector debounces the panel buttons and reports presses. A press
// is a stable change from released to held. A button held when polling
// starts does not count until it has been released.
type ButtonDetector struct {
	debounceDuration time.Duration
	a                buttonState
	b                buttonState
}

// NewButtonDetector creates a detector that requires a level to hold for
// debounceDuration before it is believed.
func NewButtonDetector(debounceDuration time.Duration) *ButtonDetector {
	return &ButtonDetector{debounceDuration: debounceDuration}
}

// Process takes a new sample and returns any presses it completes, A first.
func (d *ButtonDetector) Process(in ButtonInput) []ButtonPress {
	var presses []ButtonPress
	if d.processButton(&d.a, in.A, in.Time) {
		presses = append(presses, ButtonPress{Button: ButtonA, Time: in.Time})
	}
	if d.processButton(&d.b, in.B, in.Time) {
		presses = append(presses, ButtonPress{Button: ButtonB, Time: in.Time})
	}
	return presses
}

// processButton applies one sample and reports a debounced press.
func (d *ButtonDetector) processButton(s *buttonState, held bool, now time.Time) bool {
	if !s.Baselined {
		if !s.HasPending || s.Pending != held {
			s.Pending = held
			s.HasPending = true
			s.PendingSince = now
		}
		if now.Sub(s.PendingSince) >= d.debounceDuration {
			s.Stable = held
			s.Baselined = true
			s.HasPending = false
		}
		return false
	}

	if held == s.Stable {
		s.HasPending = false
		return false
	}

	if !s.HasPending || s.Pending != held {
		s.Pending = held
		s.HasPending = true
		s.PendingSince = now
	}
	if now.Sub(s.PendingSince) < d.debounceDuration {
		return false
	}

	s.Stable = held
	s.HasPending = false
	return held
}

// IsBaselined reports whether both buttons have a stable level.
func (d *ButtonDetector) IsBaselined() bool {
	return d.a.Baselined && d.b.Baselined
}

// Tab is a page of the panel menu.
type Tab int

const (
	TabDelay Tab = iota
	TabWater
)

// tabCount is the number of tabs; Next wraps after the last.
const tabCount = 2

func (t Tab) String() string {
	switch t {
	case TabDelay:
		return "Delay"
	case TabWater:
		return "Water"
	default:
		return "?"
	}
}

// Next returns the following tab, wrapping to the first.
func (t Tab) Next() Tab {
	return (t + 1) % tabCount
}
