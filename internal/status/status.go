// Package status provides a thread-safe status tracker for the plant-nanny daemon.
// It is read by the HTTP operator panel.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/plant-nanny/internal/logic"
	"github.com/sweeney/plant-nanny/internal/watering"
)

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs    int64
	CadenceMs int64
	PulseMs   int64
	SettleMs  int64
	MaxPulses int
	Serial    string // empty = no sensor
	Broker    string // empty = MQTT disabled
	HTTPAddr  string
}

// SelectionSource supplies the live operator selection.
type SelectionSource interface {
	Selection() logic.Selection
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Controller    watering.Snapshot
	Selection     logic.Selection
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// UntilCheck returns the time left before the next scheduled check, or 0
// if one is due or none is scheduled.
func (s Snapshot) UntilCheck() time.Duration {
	next := s.Controller.Schedule.NextCheck
	if next.IsZero() {
		return 0
	}
	if d := next.Sub(s.Now); d > 0 {
		return d
	}
	return 0
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	sel  SelectionSource
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time, config and
// selection source.
func NewTracker(startTime time.Time, cfg Config, sel SelectionSource) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		sel: sel,
		now: time.Now,
	}
}

// ControllerChanged records the controller's latest state.
// Called by the controller on every transition.
func (t *Tracker) ControllerChanged(s watering.Snapshot) {
	t.mu.Lock()
	t.snap.Controller = s
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	if s.Controller.LastCycle != nil {
		cp := *s.Controller.LastCycle
		s.Controller.LastCycle = &cp
	}
	if t.sel != nil {
		s.Selection = t.sel.Selection()
	}
	s.Now = t.now()
	return s
}
