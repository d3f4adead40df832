package switcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"tombola/app/cadence"
	"tombola/app/device"
	"tombola/apperror"
	"tombola/config"
	"tombola/logger"
	"tombola/metrics"
)

type call struct {
	Action   string
	ID       int
	Filename string
	Settings device.CameraSettings
}

// fakeCameras records every call and answers Success unless told to fail
// the n-th one.
type fakeCameras struct {
	mu    sync.Mutex
	calls []call
	fail  map[int]device.Kind

	// hold parks the first call to this action until release is closed.
	hold    string
	held    chan struct{}
	release chan struct{}
}

func (f *fakeCameras) record(c call) device.Outcome {
	f.mu.Lock()
	if f.hold != "" && c.Action == f.hold {
		f.hold = ""
		f.mu.Unlock()
		close(f.held)
		<-f.release
		f.mu.Lock()
	}
	defer f.mu.Unlock()
	idx := len(f.calls)
	f.calls = append(f.calls, c)
	if kind, ok := f.fail[idx]; ok {
		return device.Outcome{Kind: kind, StatusCode: http.StatusInternalServerError}
	}
	return device.Outcome{Kind: device.Success, StatusCode: http.StatusOK}
}

func (f *fakeCameras) StartRecording(_ context.Context, id int) device.Outcome {
	return f.record(call{Action: device.ActionStart, ID: id})
}

func (f *fakeCameras) StopRecording(_ context.Context, id int) device.Outcome {
	return f.record(call{Action: device.ActionStop, ID: id})
}

func (f *fakeCameras) Flush(_ context.Context, id int) device.Outcome {
	return f.record(call{Action: device.ActionFlush, ID: id})
}

func (f *fakeCameras) Save(_ context.Context, id int, filename string) device.Outcome {
	return f.record(call{Action: device.ActionSave, ID: id, Filename: filename})
}

func (f *fakeCameras) Configure(_ context.Context, id int, s device.CameraSettings) device.Outcome {
	return f.record(call{Action: device.ActionConfigure, ID: id, Settings: s})
}

func (f *fakeCameras) snapshot() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func (f *fakeCameras) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

type fakeDrum struct {
	rpm  float64
	kind device.Kind
}

func (d fakeDrum) GetDrumRPM(context.Context) (float64, device.Outcome) {
	if d.kind != device.Success {
		return 0, device.Outcome{Kind: d.kind}
	}
	return d.rpm, device.Outcome{Kind: device.Success}
}

type idlePins struct{}

func (idlePins) ReadPin(string) (bool, error) { return true, nil }

func testConfig(qty int) config.Config {
	conf := config.Default()
	conf.Camera.Qty = qty
	conf.Camera.ConfigureOnStart = false
	conf.Camera.FlushOnSwitch = true
	return conf
}

func newSwitcher(conf config.Config, policy Policy, cams Cameras, drum Drum, withPins bool) (*Switcher, *test.Hook) {
	base, hook := test.NewNullLogger()
	var s *Switcher
	if withPins {
		s = New(conf, policy, cams, drum, idlePins{}, logger.New(base), metrics.New())
	} else {
		s = New(conf, policy, cams, drum, nil, logger.New(base), metrics.New())
	}
	s.now = func() time.Time { return time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC) }
	return s, hook
}

// prime puts the switcher in the state Start leaves it in without
// launching any producers.
func prime(s *Switcher) {
	s.reset()
	s.startSlot(context.Background(), s.active)
	s.take = s.filename()
}

func countLevel(hook *test.Hook, level logrus.Level) int {
	n := 0
	for _, e := range hook.AllEntries() {
		if e.Level == level {
			n++
		}
	}
	return n
}

func actions(calls []call) []string {
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, fmt.Sprintf("%s(%d)", c.Action, c.ID))
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSwitchAfterThresholdCrossings(t *testing.T) {
	for _, threshold := range []int{1, 2, 20} {
		cams := &fakeCameras{}
		s, _ := newSwitcher(testConfig(2), RotationCount{Crossings: threshold}, cams, fakeDrum{}, true)
		prime(s)

		for i := 1; i <= 3*threshold; i++ {
			s.handle(context.Background(), SensorStart)
			if want := i / threshold; s.switchovers != want {
				t.Fatalf("threshold %d: after %d crossings expected %d switch-overs, got %d", threshold, i, want, s.switchovers)
			}
			if s.count >= threshold {
				t.Fatalf("threshold %d: counter %d not reset", threshold, s.count)
			}
		}
		if s.count != 0 {
			t.Errorf("threshold %d: expected counter reset after switch, got %d", threshold, s.count)
		}
		if s.active != 2 {
			t.Errorf("threshold %d: expected camera 2 active after 3 switches, got %d", threshold, s.active)
		}
	}
}

func TestSwitchCameraOrder(t *testing.T) {
	cams := &fakeCameras{}
	s, _ := newSwitcher(testConfig(2), TimeCadence{IntervalSeconds: 1}, cams, fakeDrum{}, false)
	prime(s)
	firstTake := s.take
	cams.reset()

	s.handle(context.Background(), SourceTimer)

	got := cams.snapshot()
	want := []string{"flushRecording(2)", "startRecording(2)", "stopRecording(1)", "startFilesave(1)"}
	if !equal(actions(got), want) {
		t.Fatalf("expected %v, got %v", want, actions(got))
	}
	if got[3].Filename != firstTake {
		t.Errorf("expected save to use the take name %q, got %q", firstTake, got[3].Filename)
	}
	if s.active != 2 {
		t.Errorf("expected camera 2 active, got %d", s.active)
	}
}

func TestFailedStepDoesNotAbortSwitch(t *testing.T) {
	want := []string{"flushRecording(2)", "startRecording(2)", "stopRecording(1)", "startFilesave(1)"}
	for _, kind := range []device.Kind{device.Rejected, device.TimedOut, device.ConnectionError} {
		for pos := 0; pos < 4; pos++ {
			// index 0 is the start issued by prime
			cams := &fakeCameras{fail: map[int]device.Kind{1 + pos: kind}}
			s, _ := newSwitcher(testConfig(2), TimeCadence{IntervalSeconds: 1}, cams, fakeDrum{}, false)
			prime(s)

			s.handle(context.Background(), SourceTimer)

			got := actions(cams.snapshot()[1:])
			if !equal(got, want) {
				t.Errorf("%s at step %d: expected %v, got %v", kind, pos, want, got)
			}
		}
	}
}

func TestGuardsRefuseWithoutCalling(t *testing.T) {
	cams := &fakeCameras{}
	s, hook := newSwitcher(testConfig(2), TimeCadence{IntervalSeconds: 1}, cams, fakeDrum{}, false)
	prime(s)
	cams.reset()
	hook.Reset()

	ctx := context.Background()
	s.startSlot(ctx, 1)
	s.stopSlot(ctx, 2)
	s.flushSlot(ctx, 1)
	s.saveSlot(ctx, 1)

	if n := len(cams.snapshot()); n != 0 {
		t.Fatalf("expected no device calls, got %d", n)
	}
	if n := countLevel(hook, logrus.WarnLevel); n != 4 {
		t.Errorf("expected 4 warnings, got %d", n)
	}
}

func TestSaveFollowsFailedStop(t *testing.T) {
	cams := &fakeCameras{fail: map[int]device.Kind{1: device.Rejected}}
	s, _ := newSwitcher(testConfig(2), TimeCadence{IntervalSeconds: 1}, cams, fakeDrum{}, false)
	prime(s)

	ctx := context.Background()
	s.stopSlot(ctx, 1)
	if !s.slot(1).recording {
		t.Fatal("a rejected stop must leave the slot recording")
	}
	s.saveSlot(ctx, 1)

	got := actions(cams.snapshot())
	want := []string{"startRecording(1)", "stopRecording(1)", "startFilesave(1)"}
	if !equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestSingleCameraRecyclesSlotOne(t *testing.T) {
	cams := &fakeCameras{}
	s, _ := newSwitcher(testConfig(1), TimeCadence{IntervalSeconds: 1}, cams, fakeDrum{}, false)
	prime(s)
	cams.reset()

	s.handle(context.Background(), SourceTimer)

	got := actions(cams.snapshot())
	want := []string{"stopRecording(1)", "startFilesave(1)", "startRecording(1)"}
	if !equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if !s.conf.Camera.FlushOnSwitch {
		t.Fatal("expected flush on switch to be enabled for this case")
	}
	if s.active != 1 {
		t.Errorf("expected camera 1 to stay active, got %d", s.active)
	}
}

func TestSingleCameraRunNeverCallsSecondController(t *testing.T) {
	var mu sync.Mutex
	hits := map[string]int{}
	handler := func(name string) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			hits[name+r.URL.Path]++
			mu.Unlock()
			_, _ = w.Write([]byte(`{"rpm": 30}`))
		})
	}
	cam1 := httptest.NewServer(handler("cam1"))
	defer cam1.Close()
	cam2 := httptest.NewServer(handler("cam2"))
	defer cam2.Close()
	drum := httptest.NewServer(handler("drum"))
	defer drum.Close()

	conf := testConfig(1)
	conf.Camera.Controllers = [2]string{cam1.URL, cam2.URL}
	conf.Camera.ConfigureOnStart = true
	conf.Drum.URL = drum.URL
	conf.Recording.Cadence = 1

	base, _ := test.NewNullLogger()
	log := logger.New(base)
	m := metrics.New()
	client := device.NewClient(conf, log, m)
	s := New(conf, PolicyFromConfig(conf), client, client, nil, log, m)
	s.tick = 5 * time.Millisecond

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.Snapshot().Switchovers < 3 {
		if time.Now().After(deadline) {
			t.Fatal("no switch-overs within deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for key, n := range hits {
		if strings.HasPrefix(key, "cam2") {
			t.Errorf("camera 2 was called: %s x%d", key, n)
		}
	}
	if hits["cam1/p"] != 1 {
		t.Errorf("expected camera 1 configured once, got %d", hits["cam1/p"])
	}
	if hits["cam1/startFilesave"] < 4 {
		t.Errorf("expected at least 4 saves on camera 1, got %d", hits["cam1/startFilesave"])
	}
	if s.Armed() {
		t.Error("expected recorder to be idle after stop")
	}
}

func TestStartWithoutHardware(t *testing.T) {
	cams := &fakeCameras{}
	s, hook := newSwitcher(testConfig(2), RotationCount{Crossings: 2}, cams, fakeDrum{}, false)

	err := s.Start(context.Background())
	if !errors.Is(err, apperror.HardwareUnavailable) {
		t.Fatalf("expected HardwareUnavailable, got %v", err)
	}
	if s.Armed() || s.Snapshot().State != StateIdle {
		t.Error("expected recorder to stay idle")
	}
	if n := countLevel(hook, logrus.ErrorLevel); n != 1 {
		t.Errorf("expected one error line, got %d", n)
	}
	if s.crossings != nil || s.dues != nil {
		t.Error("expected no producers to be launched")
	}
	if n := len(cams.snapshot()); n != 0 {
		t.Errorf("expected no device calls, got %d", n)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	cams := &fakeCameras{}
	conf := testConfig(2)
	conf.Recording.Cadence = 3600
	s, _ := newSwitcher(conf, PolicyFromConfig(conf), cams, fakeDrum{}, false)

	ctx := context.Background()
	if err := s.Stop(ctx); !errors.Is(err, apperror.InvalidState) {
		t.Fatalf("expected InvalidState stopping an idle recorder, got %v", err)
	}
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	runID := s.Snapshot().RunID
	if runID == "" {
		t.Error("expected a run id")
	}
	if err := s.Start(ctx); !errors.Is(err, apperror.InvalidState) {
		t.Fatalf("expected InvalidState starting twice, got %v", err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	got := actions(cams.snapshot())
	want := []string{"startRecording(1)", "stopRecording(1)", "startFilesave(1)"}
	if !equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	if err := s.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if s.Snapshot().RunID == runID {
		t.Error("expected a fresh run id on restart")
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestSensorWindow(t *testing.T) {
	cams := &fakeCameras{}
	s, hook := newSwitcher(testConfig(2), SensorWindow{}, cams, fakeDrum{}, true)
	s.reset()
	s.take = s.filename()

	ctx := context.Background()
	s.handle(ctx, SensorStart)
	s.handle(ctx, SensorStart)
	s.handle(ctx, SensorEnd)

	got := actions(cams.snapshot())
	want := []string{"startRecording(1)", "stopRecording(1)", "startFilesave(1)"}
	if !equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if n := countLevel(hook, logrus.WarnLevel); n != 1 {
		t.Errorf("expected one warning for the repeated start, got %d", n)
	}
}

func TestConfigureCameras(t *testing.T) {
	tests := []struct {
		name   string
		drum   fakeDrum
		frames int
	}{
		{"spinning", fakeDrum{rpm: 30}, 2000},
		{"stationary", fakeDrum{rpm: 0.5}, 10000},
		{"drum timeout", fakeDrum{kind: device.TimedOut}, 10000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cams := &fakeCameras{}
			s, _ := newSwitcher(testConfig(2), TimeCadence{IntervalSeconds: 1}, cams, tt.drum, false)
			s.reset()
			s.configureCameras(context.Background())

			got := cams.snapshot()
			if len(got) != 2 {
				t.Fatalf("expected both cameras configured, got %d calls", len(got))
			}
			for i, c := range got {
				if c.ID != i+1 || c.Action != device.ActionConfigure {
					t.Errorf("unexpected call %+v", c)
				}
				if c.Settings.MaxFrames != tt.frames {
					t.Errorf("expected %d frames, got %d", tt.frames, c.Settings.MaxFrames)
				}
				if c.Settings.FramePeriod != 1000000 {
					t.Errorf("expected frame period 1000000, got %d", c.Settings.FramePeriod)
				}
				if c.Settings.RecMode != "normal" {
					t.Errorf("expected rec mode normal, got %q", c.Settings.RecMode)
				}
			}
		})
	}
}

// togglingPins holds every pin HIGH for a few reads then LOW for as many,
// giving one falling edge per cycle on each pin it is asked about.
type togglingPins struct {
	mu    sync.Mutex
	reads map[string]int
}

func (p *togglingPins) ReadPin(name string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := p.reads[name]
	p.reads[name] = n + 1
	return (n/4)%2 == 0, nil
}

func (p *togglingPins) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for name := range p.reads {
		out = append(out, name)
	}
	return out
}

func TestRotationRunFromSensors(t *testing.T) {
	conf := testConfig(2)
	conf.Recording.Mode = config.ModeRotation
	conf.Recording.Cadence = 1
	conf.Sensor.StartPin = "P_START"
	conf.Sensor.EndPin = "P_END"
	conf.Sensor.PollInterval = time.Millisecond
	conf.Sensor.Debounce = time.Millisecond

	pins := &togglingPins{reads: map[string]int{}}
	cams := &fakeCameras{}
	base, _ := test.NewNullLogger()
	s := New(conf, PolicyFromConfig(conf), cams, fakeDrum{}, pins, logger.New(base), metrics.New())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.Snapshot().Switchovers < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("expected switch-overs from sensor crossings, got %d", s.Snapshot().Switchovers)
		}
		time.Sleep(2 * time.Millisecond)
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	names := pins.names()
	sort.Strings(names)
	if !equal(names, []string{"P_END", "P_START"}) {
		t.Errorf("expected both sensor pins to be polled, got %v", names)
	}

	got := actions(cams.snapshot())
	want := []string{"startRecording(1)", "flushRecording(2)", "startRecording(2)", "stopRecording(1)", "startFilesave(1)"}
	if len(got) < len(want) || !equal(got[:len(want)], want) {
		t.Errorf("expected run to open with %v, got %v", want, got)
	}
}

func TestStopDropsQueuedEvents(t *testing.T) {
	cams := &fakeCameras{
		hold:    device.ActionFlush,
		held:    make(chan struct{}),
		release: make(chan struct{}),
	}
	conf := testConfig(2)
	conf.Recording.Cadence = 1
	s, _ := newSwitcher(conf, PolicyFromConfig(conf), cams, fakeDrum{}, false)
	s.tick = time.Hour

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	// the first switch parks on its flush while more events queue up
	s.dues <- cadence.Due{Tick: 1}
	<-cams.held
	for i := 2; i <= 6; i++ {
		s.dues <- cadence.Due{Tick: int64(i)}
	}

	stopped := make(chan error, 1)
	go func() { stopped <- s.Stop(context.Background()) }()

	deadline := time.After(time.Second)
	for waiting := true; waiting; {
		select {
		case <-s.done:
			waiting = false
		case <-deadline:
			t.Fatal("stop did not signal the consumer")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	close(cams.release)

	if err := <-stopped; err != nil {
		t.Fatalf("stop: %v", err)
	}

	got := actions(cams.snapshot())
	want := []string{
		"startRecording(1)",
		"flushRecording(2)", "startRecording(2)", "stopRecording(1)", "startFilesave(1)",
		"stopRecording(2)", "startFilesave(2)",
	}
	if !equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if s.Snapshot().Switchovers != 1 {
		t.Errorf("expected only the in-flight switch to complete, got %d", s.Snapshot().Switchovers)
	}
}

func TestPinForSensors(t *testing.T) {
	conf := testConfig(2)
	conf.Sensor.StartPin = "C0"
	conf.Sensor.EndPin = "C1"
	s, _ := newSwitcher(conf, RotationCount{Crossings: 2}, &fakeCameras{}, fakeDrum{}, true)

	if got := s.pinFor(SensorStart); got != "C0" {
		t.Errorf("start sensor on %q", got)
	}
	if got := s.pinFor(SensorEnd); got != "C1" {
		t.Errorf("end sensor on %q", got)
	}
}

func TestHardwareOnlyRequiredBySensorPolicies(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		wantErr bool
	}{
		{"rotation", RotationCount{Crossings: 2}, true},
		{"window", SensorWindow{}, true},
		{"timed", TimeCadence{IntervalSeconds: 3600}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cams := &fakeCameras{}
			s, _ := newSwitcher(testConfig(1), tt.policy, cams, fakeDrum{}, false)

			err := s.Start(context.Background())
			if tt.wantErr {
				if !errors.Is(err, apperror.HardwareUnavailable) {
					t.Fatalf("expected HardwareUnavailable, got %v", err)
				}
				if s.Armed() {
					t.Error("expected recorder to stay idle")
				}
				return
			}

			if err != nil {
				t.Fatalf("expected timed mode to start without GPIO, got %v", err)
			}
			if !s.Armed() {
				t.Error("expected recorder to be armed")
			}
			if err := s.Stop(context.Background()); err != nil {
				t.Fatalf("stop: %v", err)
			}
		})
	}
}
