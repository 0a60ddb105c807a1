package watering

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/plant-nanny/internal/gpio"
	"github.com/sweeney/plant-nanny/internal/history"
	"github.com/sweeney/plant-nanny/internal/logic"
	"github.com/sweeney/plant-nanny/internal/sensor"
)

var start = time.Date(2026, 4, 18, 9, 0, 0, 0, time.UTC)

type fixedSelection logic.Selection

func (f fixedSelection) Selection() logic.Selection { return logic.Selection(f) }

type fakeStore struct {
	Saved     []logic.ScheduleState
	SaveError error
}

func (f *fakeStore) Save(s logic.ScheduleState) error {
	if f.SaveError != nil {
		return f.SaveError
	}
	f.Saved = append(f.Saved, s)
	return nil
}

type recordingObserver struct {
	snaps []Snapshot
}

func (r *recordingObserver) ControllerChanged(s Snapshot) { r.snaps = append(r.snaps, s) }

type harness struct {
	ctrl     *Controller
	source   *sensor.FakeSource
	pump     *gpio.FakePump
	store    *fakeStore
	recorder *history.FakeRecorder
	observer *recordingObserver
	sleeps   []time.Duration
	onSleep  func(n int)
}

func newHarness(t *testing.T, cfg Config, sel logic.Selection, persisted logic.ScheduleState, source *sensor.FakeSource) *harness {
	t.Helper()
	h := &harness{
		source:   source,
		pump:     gpio.NewFakePump(),
		store:    &fakeStore{},
		recorder: &history.FakeRecorder{},
		observer: &recordingObserver{},
	}
	h.ctrl = New(cfg, Deps{
		Selection: fixedSelection(sel),
		Source:    h.source,
		Pump:      h.pump,
		Store:     h.store,
		Recorder:  h.recorder,
		Observer:  h.observer,
		Now:       func() time.Time { return start.Add(time.Hour) },
		Sleep: func(ctx context.Context, d time.Duration) error {
			h.sleeps = append(h.sleeps, d)
			if h.onSleep != nil {
				h.onSleep(len(h.sleeps))
			}
			return ctx.Err()
		},
	}, start, persisted)
	return h
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxPulses = 10
	return cfg
}

func firstTick() time.Time { return start.Add(5 * time.Minute) }

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Cadence != 5*time.Minute || cfg.Pulse != 100*time.Millisecond || cfg.Settle != time.Minute {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.MaxPulses <= 0 {
		t.Errorf("expected a bounded default MaxPulses, got %d", cfg.MaxPulses)
	}
}

func TestTickBeforeCadenceDoesNothing(t *testing.T) {
	h := newHarness(t, testConfig(), logic.Selection{}, logic.ScheduleState{}, sensor.NewFakeSource(0))

	res, err := h.ctrl.Tick(context.Background(), start.Add(time.Minute))
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if res.Decision.Action != logic.ActionNone {
		t.Errorf("expected NONE, got %s", res.Decision.Action)
	}
	if h.pump.Count() != 0 || len(h.store.Saved) != 0 || h.source.Reads != 0 {
		t.Errorf("gated tick had side effects: pulses=%d saves=%d reads=%d", h.pump.Count(), len(h.store.Saved), h.source.Reads)
	}
}

func TestColdStartWatersAndSchedules(t *testing.T) {
	// 1 day / 20%; sensor reads 15, 18, then 22.
	sel := logic.Selection{DelayIndex: 0, MoistureIndex: 2}
	h := newHarness(t, testConfig(), sel, logic.ScheduleState{}, sensor.NewFakeSource(15, 18, 22))

	now := firstTick()
	res, err := h.ctrl.Tick(context.Background(), now)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if res.Decision.Action != logic.ActionWater {
		t.Fatalf("expected WATER, got %s", res.Decision.Action)
	}
	if h.pump.Count() != 2 {
		t.Errorf("expected 2 pulses, got %d", h.pump.Count())
	}
	for i, d := range h.pump.Pulses {
		if d != 100*time.Millisecond {
			t.Errorf("pulse %d: got %v, want 100ms", i, d)
		}
	}
	if len(h.sleeps) != 2 || h.sleeps[0] != time.Minute {
		t.Errorf("expected 2 settle waits of 1m, got %v", h.sleeps)
	}

	if len(h.store.Saved) != 1 {
		t.Fatalf("expected 1 save, got %d", len(h.store.Saved))
	}
	saved := h.store.Saved[0]
	if want := now.Add(24 * time.Hour); !saved.NextCheck.Equal(want) {
		t.Errorf("NextCheck: got %v, want %v", saved.NextCheck, want)
	}
	if !saved.LastTick.Equal(now) {
		t.Errorf("LastTick: got %v, want %v", saved.LastTick, now)
	}
	if saved.DelayIndex != 0 || saved.MoistureIndex != 2 {
		t.Errorf("indices: got %d/%d, want 0/2", saved.DelayIndex, saved.MoistureIndex)
	}

	if res.Cycle == nil {
		t.Fatal("expected cycle result")
	}
	if res.Cycle.Outcome != history.OutcomeTargetReached {
		t.Errorf("outcome: got %s", res.Cycle.Outcome)
	}
	if res.Cycle.StartPercent != 15 || res.Cycle.FinalPercent != 22 || res.Cycle.TargetPercent != 20 {
		t.Errorf("cycle percents: %+v", res.Cycle)
	}
	if res.Cycle.ID == "" {
		t.Error("expected a cycle ID")
	}
	if len(h.recorder.Entries) != 1 || h.recorder.Entries[0].FinalPercent != 22 {
		t.Errorf("expected one recorded entry with 22%%, got %+v", h.recorder.Entries)
	}
}

func TestSingleRereadAboveTarget(t *testing.T) {
	sel := logic.Selection{DelayIndex: 0, MoistureIndex: 2}
	h := newHarness(t, testConfig(), sel, logic.ScheduleState{}, sensor.NewFakeSource(15, 22))

	now := firstTick()
	if _, err := h.ctrl.Tick(context.Background(), now); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if h.pump.Count() != 1 {
		t.Errorf("expected 1 pulse (15 -> pulse -> 22), got %d", h.pump.Count())
	}
	if h.source.Reads != 2 {
		t.Errorf("expected 2 reads, got %d", h.source.Reads)
	}
	if want := now.Add(24 * time.Hour); !h.store.Saved[0].NextCheck.Equal(want) {
		t.Errorf("NextCheck: got %v, want %v", h.store.Saved[0].NextCheck, want)
	}
}

func TestAlreadyMoistDoesNotPulse(t *testing.T) {
	h := newHarness(t, testConfig(), logic.Selection{MoistureIndex: 3}, logic.ScheduleState{}, sensor.NewFakeSource(60))

	res, err := h.ctrl.Tick(context.Background(), firstTick())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if h.pump.Count() != 0 {
		t.Errorf("expected no pulses, got %d", h.pump.Count())
	}
	if res.Cycle == nil || res.Cycle.Outcome != history.OutcomeTargetReached {
		t.Errorf("expected TARGET_REACHED cycle, got %+v", res.Cycle)
	}
	if len(h.store.Saved) != 1 || !h.store.Saved[0].HasNextCheck() {
		t.Errorf("expected schedule saved with NextCheck, got %+v", h.store.Saved)
	}
}

func TestRetickDoesNotRewater(t *testing.T) {
	h := newHarness(t, testConfig(), logic.Selection{}, logic.ScheduleState{}, sensor.NewFakeSource(0, 50))

	now := firstTick()
	if _, err := h.ctrl.Tick(context.Background(), now); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	pulses := h.pump.Count()
	next := h.store.Saved[0].NextCheck

	for i := 0; i <= 12; i++ {
		res, err := h.ctrl.Tick(context.Background(), now.Add(time.Duration(i)*5*time.Minute))
		if err != nil {
			t.Fatalf("re-tick %d: %v", i, err)
		}
		if res.Decision.Action == logic.ActionWater {
			t.Fatalf("re-tick %d: watered again", i)
		}
	}
	if h.pump.Count() != pulses {
		t.Errorf("extra pulses after completed cycle: %d -> %d", pulses, h.pump.Count())
	}
	for _, s := range h.store.Saved {
		if !s.NextCheck.Equal(next) {
			t.Errorf("NextCheck moved to %v, want %v", s.NextCheck, next)
		}
	}
}

func TestWaitTickPersistsWithoutWatering(t *testing.T) {
	persisted := logic.ScheduleState{
		LastTick:      start.Add(-time.Hour),
		NextCheck:     start.Add(48 * time.Hour),
		DelayIndex:    1,
		MoistureIndex: 1,
	}
	h := newHarness(t, testConfig(), logic.Selection{DelayIndex: 1, MoistureIndex: 1}, persisted, sensor.NewFakeSource(0))

	now := firstTick()
	res, err := h.ctrl.Tick(context.Background(), now)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if res.Decision.Action != logic.ActionWait {
		t.Fatalf("expected WAIT, got %s", res.Decision.Action)
	}
	if h.pump.Count() != 0 || h.source.Reads != 0 {
		t.Errorf("WAIT should not touch devices: pulses=%d reads=%d", h.pump.Count(), h.source.Reads)
	}
	if len(h.store.Saved) != 1 {
		t.Fatalf("expected 1 save, got %d", len(h.store.Saved))
	}
	if got := h.store.Saved[0]; !got.LastTick.Equal(now) || !got.NextCheck.Equal(persisted.NextCheck) {
		t.Errorf("saved %+v", got)
	}
}

func TestSensorUnavailablePulsesOnce(t *testing.T) {
	src := sensor.NewFakeSource()
	src.ReadError = sensor.ErrUnavailable
	h := newHarness(t, testConfig(), logic.Selection{MoistureIndex: 3}, logic.ScheduleState{}, src)

	now := firstTick()
	res, err := h.ctrl.Tick(context.Background(), now)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if h.pump.Count() != 1 {
		t.Errorf("expected exactly 1 pulse without a sensor, got %d", h.pump.Count())
	}
	if src.Reads != 1 {
		t.Errorf("expected 1 read attempt, got %d", src.Reads)
	}
	if res.Cycle == nil || res.Cycle.Outcome != history.OutcomeSensorUnavailable {
		t.Fatalf("expected SENSOR_UNAVAILABLE, got %+v", res.Cycle)
	}
	if res.Cycle.FinalPercent != 0 {
		t.Errorf("expected 0%% fallback, got %d", res.Cycle.FinalPercent)
	}
	if want := now.Add(24 * time.Hour); !h.store.Saved[0].NextCheck.Equal(want) {
		t.Errorf("NextCheck: got %v, want %v", h.store.Saved[0].NextCheck, want)
	}
}

func TestNoneSourcePulsesOnce(t *testing.T) {
	h := newHarness(t, testConfig(), logic.Selection{}, logic.ScheduleState{}, nil)
	h.ctrl.deps.Source = sensor.NoneSource{}

	if _, err := h.ctrl.Tick(context.Background(), firstTick()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if h.pump.Count() != 1 {
		t.Errorf("expected 1 pulse, got %d", h.pump.Count())
	}
}

func TestSensorLostMidCycle(t *testing.T) {
	src := sensor.NewFakeSource(5, 8, 12)
	src.FailAfter = 2
	h := newHarness(t, testConfig(), logic.Selection{MoistureIndex: 3}, logic.ScheduleState{}, src)

	res, err := h.ctrl.Tick(context.Background(), firstTick())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if h.pump.Count() != 2 {
		t.Errorf("expected 2 pulses before the sensor dropped, got %d", h.pump.Count())
	}
	if res.Cycle.Outcome != history.OutcomeSensorUnavailable {
		t.Errorf("outcome: got %s", res.Cycle.Outcome)
	}
	if res.Cycle.FinalPercent != 8 {
		t.Errorf("expected last good reading 8, got %d", res.Cycle.FinalPercent)
	}
	if len(h.store.Saved) != 1 {
		t.Errorf("cycle should complete and persist, got %d saves", len(h.store.Saved))
	}
}

func TestMaxPulsesBoundsCycle(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPulses = 3
	h := newHarness(t, cfg, logic.Selection{MoistureIndex: 3}, logic.ScheduleState{}, sensor.NewFakeSource(5))

	now := firstTick()
	res, err := h.ctrl.Tick(context.Background(), now)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if h.pump.Count() != 3 {
		t.Errorf("expected 3 pulses, got %d", h.pump.Count())
	}
	if res.Cycle.Outcome != history.OutcomeTargetUnreachable {
		t.Errorf("outcome: got %s", res.Cycle.Outcome)
	}
	if len(h.store.Saved) != 1 || !h.store.Saved[0].NextCheck.Equal(now.Add(24*time.Hour)) {
		t.Errorf("expected next check scheduled after unreachable target, got %+v", h.store.Saved)
	}
}

func TestUnboundedWhenMaxPulsesZero(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPulses = 0
	readings := make([]int, 0, 60)
	for i := 0; i < 50; i++ {
		readings = append(readings, 1)
	}
	readings = append(readings, 30)
	h := newHarness(t, cfg, logic.Selection{MoistureIndex: 3}, logic.ScheduleState{}, sensor.NewFakeSource(readings...))

	res, err := h.ctrl.Tick(context.Background(), firstTick())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if h.pump.Count() != 50 {
		t.Errorf("expected 50 pulses, got %d", h.pump.Count())
	}
	if res.Cycle.Outcome != history.OutcomeTargetReached {
		t.Errorf("outcome: got %s", res.Cycle.Outcome)
	}
}

func TestPumpFailureDoesNotBlockSchedule(t *testing.T) {
	h := newHarness(t, testConfig(), logic.Selection{MoistureIndex: 2}, logic.ScheduleState{}, sensor.NewFakeSource(10, 25))
	h.pump.PulseError = errors.New("relay stuck")

	res, err := h.ctrl.Tick(context.Background(), firstTick())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if res.Cycle.PumpFailures != 1 || res.Cycle.Pulses != 1 {
		t.Errorf("expected 1 failed pulse recorded, got %+v", res.Cycle)
	}
	if len(h.store.Saved) != 1 {
		t.Errorf("expected schedule persisted despite pump failure")
	}
}

func TestAbortDuringCycleLeavesStateUnwritten(t *testing.T) {
	h := newHarness(t, testConfig(), logic.Selection{MoistureIndex: 3}, logic.ScheduleState{}, sensor.NewFakeSource(5))
	h.onSleep = func(n int) {
		if n == 2 {
			if !h.ctrl.Abort() {
				t.Error("Abort: expected an in-flight cycle")
			}
		}
	}

	res, err := h.ctrl.Tick(context.Background(), firstTick())
	if !errors.Is(err, ErrCycleCanceled) {
		t.Fatalf("expected ErrCycleCanceled, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
	if res.Cycle != nil {
		t.Errorf("canceled cycle must not be reported complete")
	}
	if h.pump.Count() != 2 {
		t.Errorf("expected 2 pulses before abort, got %d", h.pump.Count())
	}
	if len(h.store.Saved) != 0 {
		t.Errorf("canceled cycle must not persist, got %d saves", len(h.store.Saved))
	}
	if len(h.recorder.Entries) != 0 {
		t.Errorf("canceled cycle must not be recorded, got %d", len(h.recorder.Entries))
	}

	snap := h.ctrl.Snapshot()
	if snap.Phase != logic.PhaseIdle {
		t.Errorf("expected IDLE after abort, got %s", snap.Phase)
	}
	if snap.Schedule.HasNextCheck() {
		t.Errorf("expected NextCheck still unset, got %v", snap.Schedule.NextCheck)
	}
	if h.ctrl.Abort() {
		t.Error("Abort with nothing in flight should report false")
	}
}

func TestCanceledContextAbortsCycle(t *testing.T) {
	h := newHarness(t, testConfig(), logic.Selection{MoistureIndex: 3}, logic.ScheduleState{}, sensor.NewFakeSource(5))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.ctrl.Tick(ctx, firstTick())
	if !errors.Is(err, ErrCycleCanceled) {
		t.Fatalf("expected ErrCycleCanceled, got %v", err)
	}
	if h.pump.Count() != 0 {
		t.Errorf("expected no pulses once canceled, got %d", h.pump.Count())
	}
	if len(h.store.Saved) != 0 {
		t.Errorf("expected no save, got %d", len(h.store.Saved))
	}
}

func TestAbortWithoutCycle(t *testing.T) {
	h := newHarness(t, testConfig(), logic.Selection{}, logic.ScheduleState{}, sensor.NewFakeSource(50))
	if h.ctrl.Abort() {
		t.Error("expected false with no cycle running")
	}
}

func TestPersistFailureSurfacedStateKept(t *testing.T) {
	h := newHarness(t, testConfig(), logic.Selection{}, logic.ScheduleState{}, sensor.NewFakeSource(50))
	h.store.SaveError = errors.New("read-only filesystem")

	now := firstTick()
	res, err := h.ctrl.Tick(context.Background(), now)
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("expected ErrPersist, got %v", err)
	}
	if res.Cycle == nil {
		t.Error("cycle still completed; expected its result")
	}
	if want := now.Add(24 * time.Hour); !h.ctrl.Snapshot().Schedule.NextCheck.Equal(want) {
		t.Errorf("in-memory NextCheck: got %v, want %v", h.ctrl.Snapshot().Schedule.NextCheck, want)
	}

	// The next cadence must not water again even though nothing hit disk.
	res, err = h.ctrl.Tick(context.Background(), now.Add(5*time.Minute))
	if res.Decision.Action != logic.ActionWait {
		t.Errorf("expected WAIT after failed persist, got %s", res.Decision.Action)
	}
	if !errors.Is(err, ErrPersist) {
		t.Errorf("expected ErrPersist again, got %v", err)
	}
}

func TestOutOfRangeIndexClamped(t *testing.T) {
	persisted := logic.ScheduleState{LastTick: start.Add(-time.Hour), DelayIndex: 99, MoistureIndex: 42}
	h := newHarness(t, testConfig(), logic.Selection{DelayIndex: 99, MoistureIndex: 42}, persisted, sensor.NewFakeSource(50))

	now := firstTick()
	res, err := h.ctrl.Tick(context.Background(), now)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if res.Decision.Delay != logic.DelayCatalog[0] || res.Decision.Target != logic.MoistureCatalog[0] {
		t.Errorf("expected catalog defaults, got %v/%v", res.Decision.Delay, res.Decision.Target)
	}
	saved := h.store.Saved[0]
	if saved.DelayIndex != 0 || saved.MoistureIndex != 0 {
		t.Errorf("expected clamped indices persisted, got %d/%d", saved.DelayIndex, saved.MoistureIndex)
	}
	if want := now.Add(24 * time.Hour); !saved.NextCheck.Equal(want) {
		t.Errorf("NextCheck: got %v, want %v", saved.NextCheck, want)
	}
}

func TestObserverSeesWateringPhase(t *testing.T) {
	h := newHarness(t, testConfig(), logic.Selection{MoistureIndex: 2}, logic.ScheduleState{}, sensor.NewFakeSource(10, 25))
	var during logic.Phase
	h.onSleep = func(int) { during = h.ctrl.Snapshot().Phase }

	if _, err := h.ctrl.Tick(context.Background(), firstTick()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if during != logic.PhaseWatering {
		t.Errorf("phase during cycle: got %s, want WATERING", during)
	}

	last := h.observer.snaps[len(h.observer.snaps)-1]
	if last.Phase != logic.PhaseIdle {
		t.Errorf("final phase: got %s", last.Phase)
	}
	if last.Cycles != 1 || last.LastCycle == nil || last.LastCycle.FinalPercent != 25 {
		t.Errorf("final snapshot: %+v", last)
	}

	sawWatering := false
	for _, s := range h.observer.snaps {
		if s.Phase == logic.PhaseWatering {
			sawWatering = true
		}
	}
	if !sawWatering {
		t.Error("observer never saw WATERING")
	}
}

func TestRecorderFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, testConfig(), logic.Selection{}, logic.ScheduleState{}, sensor.NewFakeSource(50))
	h.recorder.RecordError = errors.New("db locked")

	if _, err := h.ctrl.Tick(context.Background(), firstTick()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(h.store.Saved) != 1 {
		t.Errorf("expected schedule saved, got %d", len(h.store.Saved))
	}
}

func TestSleepCtx(t *testing.T) {
	if err := sleepCtx(context.Background(), time.Millisecond); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepCtx(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
