package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Phase             string        `json:"phase"`
	LastTick          string        `json:"last_tick,omitempty"`
	NextCheck         string        `json:"next_check,omitempty"`
	UntilCheckSeconds int64         `json:"until_check_seconds"`
	Cycles            int           `json:"cycles"`
	Selection         SelectionJSON `json:"selection"`
	LastCycle         *CycleJSON    `json:"last_cycle,omitempty"`
	UptimeSeconds     int64         `json:"uptime_seconds"`
	StartTime         string        `json:"start_time"`
	Timestamp         string        `json:"timestamp"`
	MQTT              MQTTStatus    `json:"mqtt"`
	Network           *NetworkJSON  `json:"network,omitempty"`
	Config            ConfigJSON    `json:"config"`
}

// SelectionJSON reports the operator's choices with their labels.
type SelectionJSON struct {
	DelayIndex    int    `json:"delay_index"`
	Delay         string `json:"delay"`
	MoistureIndex int    `json:"moisture_index"`
	Target        string `json:"target"`
}

// CycleJSON is the JSON representation of the last completed cycle.
type CycleJSON struct {
	ID            string `json:"id"`
	StartedAt     string `json:"started_at"`
	FinishedAt    string `json:"finished_at"`
	StartPercent  int    `json:"start_percent"`
	FinalPercent  int    `json:"final_percent"`
	TargetPercent int    `json:"target_percent"`
	Pulses        int    `json:"pulses"`
	PumpFailures  int    `json:"pump_failures"`
	Outcome       string `json:"outcome"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Enabled   bool   `json:"enabled"`
	Connected bool   `json:"connected"`
	Broker    string `json:"broker,omitempty"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs    int64  `json:"poll_ms"`
	CadenceMs int64  `json:"cadence_ms"`
	PulseMs   int64  `json:"pulse_ms"`
	SettleMs  int64  `json:"settle_ms"`
	MaxPulses int    `json:"max_pulses"`
	Serial    string `json:"serial,omitempty"`
	HTTPAddr  string `json:"http_addr"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func buildInner(snap Snapshot) StatusInner {
	phase := string(snap.Controller.Phase)
	if phase == "" {
		phase = "UNKNOWN"
	}
	sched := snap.Controller.Schedule

	inner := StatusInner{
		Phase:             phase,
		LastTick:          formatTime(sched.LastTick),
		NextCheck:         formatTime(sched.NextCheck),
		UntilCheckSeconds: int64(snap.UntilCheck().Truncate(time.Second).Seconds()),
		Cycles:            snap.Controller.Cycles,
		Selection: SelectionJSON{
			DelayIndex:    snap.Selection.DelayIndex,
			Delay:         snap.Selection.Delay().String(),
			MoistureIndex: snap.Selection.MoistureIndex,
			Target:        snap.Selection.Target().String(),
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT: MQTTStatus{
			Enabled:   snap.Config.Broker != "",
			Connected: snap.MQTTConnected,
			Broker:    snap.Config.Broker,
		},
		Config: ConfigJSON{
			PollMs:    snap.Config.PollMs,
			CadenceMs: snap.Config.CadenceMs,
			PulseMs:   snap.Config.PulseMs,
			SettleMs:  snap.Config.SettleMs,
			MaxPulses: snap.Config.MaxPulses,
			Serial:    snap.Config.Serial,
			HTTPAddr:  snap.Config.HTTPAddr,
		},
	}

	if c := snap.Controller.LastCycle; c != nil {
		inner.LastCycle = &CycleJSON{
			ID:            c.ID,
			StartedAt:     formatTime(c.StartedAt),
			FinishedAt:    formatTime(c.FinishedAt),
			StartPercent:  c.StartPercent,
			FinalPercent:  c.FinalPercent,
			TargetPercent: c.TargetPercent,
			Pulses:        c.Pulses,
			PumpFailures:  c.PumpFailures,
			Outcome:       string(c.Outcome),
		}
	}

	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}
