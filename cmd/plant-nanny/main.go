// Command plant-nanny waters a pot plant on a schedule, topping the soil up
// to a moisture target with short pump pulses.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/sweeney/plant-nanny/internal/gpio"
	"github.com/sweeney/plant-nanny/internal/history"
	"github.com/sweeney/plant-nanny/internal/logger"
	"github.com/sweeney/plant-nanny/internal/logic"
	"github.com/sweeney/plant-nanny/internal/mqtt"
	"github.com/sweeney/plant-nanny/internal/selection"
	"github.com/sweeney/plant-nanny/internal/sensor"
	"github.com/sweeney/plant-nanny/internal/status"
	"github.com/sweeney/plant-nanny/internal/store"
	"github.com/sweeney/plant-nanny/internal/watering"
	"github.com/sweeney/plant-nanny/internal/web"
)

// Globals are flags shared by every command.
type Globals struct {
	StateFile string `help:"Schedule record path." default:"/var/lib/plant-nanny/plantnanny.save.txt" env:"PLANT_NANNY_STATE_FILE" type:"path"`
	HistoryDB string `help:"Cycle history database (empty to disable)." default:"/var/lib/plant-nanny/history.db" env:"PLANT_NANNY_HISTORY_DB"`
}

// CLI is the command line.
type CLI struct {
	Globals

	Version kong.VersionFlag `help:"Print version and exit."`

	Run     RunCmd     `cmd:"" help:"Run the watering daemon." default:"1"`
	State   StateCmd   `cmd:"" help:"Print the saved schedule record and exit."`
	History HistoryCmd `cmd:"" help:"List recent watering cycles."`
}

// RunCmd runs the daemon.
type RunCmd struct {
	WaterLog string `help:"Moisture log path (empty to disable)." default:"/var/lib/plant-nanny/plantnanny.water.log" env:"PLANT_NANNY_WATER_LOG"`
	LogDir   string `help:"Directory for the rotating daemon log (empty logs to stderr)." env:"PLANT_NANNY_LOG_DIR"`
	Debug    bool   `help:"Enable debug logging." env:"PLANT_NANNY_DEBUG"`

	Poll      time.Duration `help:"Tick interval." default:"1s" env:"PLANT_NANNY_POLL"`
	Cadence   time.Duration `help:"Minimum interval between schedule checks." default:"5m" env:"PLANT_NANNY_CADENCE"`
	Pulse     time.Duration `help:"Pump run time per pulse." default:"100ms" env:"PLANT_NANNY_PULSE"`
	Settle    time.Duration `help:"Wait after each pulse before re-reading moisture." default:"1m" env:"PLANT_NANNY_SETTLE"`
	MaxPulses int           `help:"Pulse limit per cycle (0 for unbounded)." default:"30" env:"PLANT_NANNY_MAX_PULSES"`

	Serial   string `help:"Moisture sensor serial device (empty for no sensor)." default:"/dev/ttyACM0" env:"PLANT_NANNY_SERIAL"`
	Baud     int    `help:"Moisture sensor baud rate." default:"9600" env:"PLANT_NANNY_BAUD"`
	GPIOChip string `name:"gpio-chip" help:"GPIO character device." default:"gpiochip0" env:"PLANT_NANNY_GPIO_CHIP"`
	PumpPin  int    `help:"BCM line number driving the pump." default:"9" env:"PLANT_NANNY_PUMP_PIN"`

	ButtonA    int           `help:"BCM line of the next-tab button (negative disables the buttons)." default:"15" env:"PLANT_NANNY_BUTTON_A"`
	ButtonB    int           `help:"BCM line of the next-option button (negative disables the buttons)." default:"18" env:"PLANT_NANNY_BUTTON_B"`
	ButtonPoll time.Duration `help:"Button polling interval." default:"20ms" env:"PLANT_NANNY_BUTTON_POLL"`
	Debounce   time.Duration `help:"How long a button level must hold before it counts." default:"50ms" env:"PLANT_NANNY_DEBOUNCE"`

	HTTP          string `help:"HTTP operator panel address (empty to disable)." default:":80" env:"PLANT_NANNY_HTTP"`
	Broker        string `help:"MQTT broker for remote settings (empty to disable)." env:"PLANT_NANNY_BROKER"`
	SettingsTopic string `help:"MQTT topic carrying settings." default:"garden/plant-nanny/settings" env:"PLANT_NANNY_SETTINGS_TOPIC"`
}

// StateCmd prints the schedule record.
type StateCmd struct{}

// HistoryCmd lists watering cycles.
type HistoryCmd struct {
	Limit int `help:"Number of cycles to show." default:"10" short:"n"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("plant-nanny"),
		kong.Description("Moisture-targeted plant watering daemon"),
		kong.UsageOnError(),
		kong.Vars{"version": "v0.1.0"},
	)
	if err := ctx.Run(&cli.Globals); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// Run starts the daemon and blocks until SIGINT or SIGTERM.
func (c *RunCmd) Run(g *Globals) error {
	if err := logger.Init(logger.Config{Debug: c.Debug, Dir: c.LogDir}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	start := time.Now()

	st := store.NewFileStore(g.StateFile, nil)
	persisted := loadSchedule(st)
	holder := selection.NewHolder(persisted.Selection())

	source := openSensor(c.Serial, c.Baud)
	defer source.Close()

	pump, err := gpio.NewRealPump(c.GPIOChip, c.PumpPin)
	if err != nil {
		return fmt.Errorf("init pump: %w", err)
	}
	defer pump.Close()

	var recorders history.Multi
	if c.WaterLog != "" {
		rec, closer := history.NewRotatingLogRecorder(c.WaterLog, 5)
		defer closer.Close()
		recorders = append(recorders, rec)
	}
	var historySource web.HistorySource
	if g.HistoryDB != "" {
		db, err := history.OpenSQLite(g.HistoryDB)
		if err != nil {
			logger.Warn("cycle history disabled", "path", g.HistoryDB, "err", err)
		} else {
			defer db.Close()
			recorders = append(recorders, db)
			historySource = db
		}
	}

	cfg := watering.Config{
		Cadence:   c.Cadence,
		Pulse:     c.Pulse,
		Settle:    c.Settle,
		MaxPulses: c.MaxPulses,
	}

	tracker := status.NewTracker(start, status.Config{
		PollMs:    c.Poll.Milliseconds(),
		CadenceMs: c.Cadence.Milliseconds(),
		PulseMs:   c.Pulse.Milliseconds(),
		SettleMs:  c.Settle.Milliseconds(),
		MaxPulses: c.MaxPulses,
		Serial:    c.Serial,
		Broker:    c.Broker,
		HTTPAddr:  c.HTTP,
	}, holder)
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	ctrl := watering.New(cfg, watering.Deps{
		Selection: holder,
		Source:    source,
		Pump:      pump,
		Store:     st,
		Recorder:  recorders,
		Observer:  tracker,
	}, start, persisted)

	var mqttStatus mqtt.ConnectionStatus
	if c.Broker != "" {
		sub, err := mqtt.NewRealSubscriber(c.Broker, c.SettingsTopic, mqtt.DefaultClientID, holder)
		if err != nil {
			logger.Warn("mqtt settings disabled", "broker", c.Broker, "err", err)
		} else {
			defer sub.Close()
			mqttStatus = sub
		}
	}

	if c.HTTP != "" {
		srv := web.New(c.HTTP, tracker, web.Controls{
			Selection: holder,
			Aborter:   ctrl,
			History:   historySource,
		})
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("http server error", "err", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Info("http operator panel listening", "addr", c.HTTP)
	}

	logger.Info("started",
		"poll", c.Poll,
		"cadence", c.Cadence,
		"pulse", c.Pulse,
		"settle", c.Settle,
		"max_pulses", c.MaxPulses,
		"delay", holder.Selection().Delay().String(),
		"target", holder.Selection().Target().String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if c.ButtonA >= 0 && c.ButtonB >= 0 {
		buttons, err := gpio.NewRealReader(c.GPIOChip, c.ButtonA, c.ButtonB)
		if err != nil {
			logger.Warn("panel buttons disabled", "err", err)
		} else {
			buttonTicker := time.NewTicker(c.ButtonPoll)
			done := make(chan struct{})
			go func() {
				defer close(done)
				buttonLoop(ctx, buttons, logic.NewButtonDetector(c.Debounce), holder, time.Now, buttonTicker.C)
			}()
			defer func() {
				stop()
				<-done
				buttonTicker.Stop()
				buttons.Close()
			}()
		}
	}

	ticker := time.NewTicker(c.Poll)
	defer ticker.Stop()

	return runLoop(ctx, ctrl, mqttStatus, tracker, time.Now, ticker.C)
}

// Run prints the schedule record in its on-disk form.
func (c *StateCmd) Run(g *Globals) error {
	return printState(os.Stdout, store.NewFileStore(g.StateFile, nil))
}

// Run prints the most recent watering cycles.
func (c *HistoryCmd) Run(g *Globals) error {
	if g.HistoryDB == "" {
		return errors.New("no history database configured")
	}
	db, err := history.OpenSQLite(g.HistoryDB)
	if err != nil {
		return err
	}
	defer db.Close()
	return printHistory(os.Stdout, db, c.Limit)
}

// Ticker advances the watering controller.
type Ticker interface {
	Tick(ctx context.Context, now time.Time) (watering.TickResult, error)
}

// runLoop ticks the controller until ctx is done. Tick errors are logged and
// never end the loop.
func runLoop(ctx context.Context, ctrl Ticker, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, now func() time.Time, tick <-chan time.Time) error {
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil

		case <-tick:
			res, err := ctrl.Tick(ctx, now())
			switch {
			case err == nil:
			case errors.Is(err, watering.ErrCycleCanceled):
				if ctx.Err() != nil {
					logger.Warn("watering cycle interrupted by shutdown")
				}
			case errors.Is(err, watering.ErrPersist):
				logger.Error("schedule not saved", "err", err)
			default:
				logger.Error("tick failed", "err", err)
			}

			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				if res.Cycle != nil {
					// Refresh network info after each cycle
					if net := readNetworkInfo(); net != nil {
						tracker.SetNetwork(net)
					}
				}
			}
		}
	}
}

// loadSchedule reads the saved schedule. A missing or unreadable record
// yields the defaults; the next save replaces it.
func loadSchedule(st *store.FileStore) logic.ScheduleState {
	state, err := st.Load()
	switch {
	case err == nil:
		logger.Info("schedule restored", "path", st.Path(),
			"last_tick", state.LastTick, "next_check", state.NextCheck)
	case errors.Is(err, store.ErrNotFound):
		logger.Info("no saved schedule, starting fresh", "path", st.Path())
	default:
		logger.Warn("saved schedule ignored", "path", st.Path(), "err", err)
		state = logic.ScheduleState{}
	}
	return state
}

// openSensor opens the serial moisture sensor. Without one every reading
// fails and cycles fall back to a single pulse.
func openSensor(path string, baud int) sensor.Source {
	if path == "" {
		logger.Warn("no moisture sensor configured")
		return sensor.NoneSource{}
	}
	src, err := sensor.OpenSerial(path, baud, 2*time.Second)
	if err != nil {
		logger.Error("moisture sensor unavailable", "path", path, "err", err)
		return sensor.NoneSource{}
	}
	return src
}

func printState(w io.Writer, st *store.FileStore) error {
	state, err := st.Load()
	if errors.Is(err, store.ErrNotFound) {
		fmt.Fprintf(w, "no saved schedule at %s\n", st.Path())
		return nil
	}
	if err != nil {
		return err
	}
	w.Write(store.Format(state, nil))
	sel := state.Selection()
	fmt.Fprintf(w, "# delay %s, target %s\n", sel.Delay(), sel.Target())
	return nil
}

// recentSource lists recent cycles, newest first.
type recentSource interface {
	Recent(limit int) ([]history.Entry, error)
}

func printHistory(w io.Writer, src recentSource, limit int) error {
	entries, err := src.Recent(limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "no watering cycles recorded")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s  %3d%% -> %3d%% (target %d%%)  %2d pulses  %s\n",
			e.StartedAt.Local().Format("2006-01-02 15:04:05"),
			e.StartPercent, e.FinalPercent, e.TargetPercent, e.Pulses, e.Outcome)
	}
	return nil
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
