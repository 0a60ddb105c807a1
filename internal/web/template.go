package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/plant-nanny/internal/history"
	"github.com/sweeney/plant-nanny/internal/logic"
	"github.com/sweeney/plant-nanny/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"duration": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"stamp": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.Local().Format("2006-01-02 15:04:05")
	},
	"phaseOrUnknown": func(p logic.Phase) string {
		if p == "" {
			return "UNKNOWN"
		}
		return string(p)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Plant Nanny</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
form { display: inline; }
.watering { color: #06c; font-weight: bold; }
.idle { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Plant Nanny</h1>

<h2>Schedule</h2>
<table>
<tr><th>Phase</th><td class="{{if eq (phaseOrUnknown .Controller.Phase) "WATERING"}}watering{{else if eq (phaseOrUnknown .Controller.Phase) "IDLE"}}idle{{else}}unknown{{end}}">{{phaseOrUnknown .Controller.Phase}}</td></tr>
<tr><th>Last tick</th><td>{{stamp .Controller.Schedule.LastTick}}</td></tr>
<tr><th>Next check</th><td>{{if .Controller.Schedule.HasNextCheck}}{{stamp .Controller.Schedule.NextCheck}} (in {{duration .UntilCheck}}){{else}}on next tick{{end}}</td></tr>
<tr><th>Cycles</th><td>{{.Controller.Cycles}}</td></tr>
</table>
{{if .Controls.Aborter}}{{if eq (phaseOrUnknown .Controller.Phase) "WATERING"}}<form method="post" action="/abort"><button>Abort watering</button></form>{{end}}{{end}}

<h2>Selection</h2>
<table>
<tr><th>Delay</th><td>{{.Selection.Delay}}{{if .Controls.Selection}} <form method="post" action="/selection"><input type="hidden" name="action" value="next-delay"><button>next</button></form>{{end}}</td></tr>
<tr><th>Moisture target</th><td>{{.Selection.Target}}{{if .Controls.Selection}} <form method="post" action="/selection"><input type="hidden" name="action" value="next-water"><button>next</button></form>{{end}}</td></tr>
</table>

{{with .Controller.LastCycle}}
<h2>Last Cycle</h2>
<table>
<tr><th>Finished</th><td>{{stamp .FinishedAt}}</td></tr>
<tr><th>Moisture</th><td>{{.StartPercent}}% &rarr; {{.FinalPercent}}% (target {{.TargetPercent}}%)</td></tr>
<tr><th>Pulses</th><td>{{.Pulses}}{{if .PumpFailures}} ({{.PumpFailures}} failed){{end}}</td></tr>
<tr><th>Outcome</th><td>{{.Outcome}}</td></tr>
</table>
{{end}}

{{if .History}}
<h2>History</h2>
<table>
<tr><th>Started</th><td>Moisture / pulses / outcome</td></tr>
{{range .History}}<tr><th>{{stamp .StartedAt}}</th><td>{{.StartPercent}}% &rarr; {{.FinalPercent}}% / {{.Pulses}} / {{.Outcome}}</td></tr>
{{end}}</table>
{{end}}

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if not .Config.Broker}}disabled{{else if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
{{if .Config.Broker}}<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>{{end}}
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{duration .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Sensor</th><td>{{if .Config.Serial}}{{.Config.Serial}}{{else}}none{{end}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Cadence</th><td>{{.Config.CadenceMs}}ms</td></tr>
<tr><th>Pulse / settle</th><td>{{.Config.PulseMs}}ms / {{.Config.SettleMs}}ms</td></tr>
<tr><th>Max pulses</th><td>{{if eq .Config.MaxPulses 0}}unbounded{{else}}{{.Config.MaxPulses}}{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a>{{if .Controls.History}} | <a href="/history.json">History</a>{{end}}</p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot, recent []history.Entry, controls Controls) {
	// Snapshot has Uptime/UntilCheck methods but the template wants fields.
	data := struct {
		status.Snapshot
		Uptime     time.Duration
		UntilCheck time.Duration
		History    []history.Entry
		Controls   Controls
	}{
		Snapshot:   snap,
		Uptime:     snap.Uptime(),
		UntilCheck: snap.UntilCheck(),
		History:    recent,
		Controls:   controls,
	}
	indexTmpl.Execute(w, data)
}
