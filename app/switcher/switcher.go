package switcher

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"

	"tombola/app/cadence"
	"tombola/app/device"
	"tombola/app/hardware"
	"tombola/app/sensor"
	"tombola/apperror"
	"tombola/config"
	"tombola/logger"
	"tombola/metrics"
)

const (
	StateIdle  = "idle"
	StateArmed = "armed"

	eventArm    = "arm"
	eventDisarm = "disarm"

	queueSize = 64
)

// Cameras is the subset of the device client the orchestrator drives.
type Cameras interface {
	StartRecording(ctx context.Context, id int) device.Outcome
	StopRecording(ctx context.Context, id int) device.Outcome
	Flush(ctx context.Context, id int) device.Outcome
	Save(ctx context.Context, id int, filename string) device.Outcome
	Configure(ctx context.Context, id int, s device.CameraSettings) device.Outcome
}

type Drum interface {
	GetDrumRPM(ctx context.Context) (float64, device.Outcome)
}

// Switcher hands recording from one camera to the other as the drum turns.
// Detectors and the cadence timer only produce events; a single consumer
// goroutine owns the slots, the counter and the take names while armed.
type Switcher struct {
	conf    config.Config
	policy  Policy
	cams    Cameras
	drum    Drum
	pins    hardware.PinReader
	logger  *logger.Logger
	metrics *metrics.Metrics
	machine *fsm.FSM

	// lifecycle serializes Start and Stop.
	lifecycle sync.Mutex

	log         *logger.Logger
	runID       string
	started     time.Time
	slots       [2]slot
	active      int
	count       int
	switchovers int
	take        string
	pending     string

	crossings chan sensor.Crossing
	dues      chan cadence.Due
	cancel    context.CancelFunc
	producers sync.WaitGroup
	done      chan struct{}
	finished  chan struct{}

	snapshot atomic.Pointer[Snapshot]

	now  func() time.Time
	tick time.Duration
}

// New builds an idle orchestrator. pins may be nil when no GPIO adapter is
// attached; sensor policies then refuse to start.
func New(conf config.Config, policy Policy, cams Cameras, drum Drum, pins hardware.PinReader, logger *logger.Logger, metrics *metrics.Metrics) *Switcher {
	s := &Switcher{
		conf:    conf,
		policy:  policy,
		cams:    cams,
		drum:    drum,
		pins:    pins,
		logger:  logger,
		metrics: metrics,
		log:     logger,
		now:     time.Now,
		tick:    time.Second,
	}
	for i := range s.slots {
		s.slots[i].id = i + 1
	}

	s.machine = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: eventArm, Src: []string{StateIdle}, Dst: StateArmed},
			{Name: eventDisarm, Src: []string{StateArmed}, Dst: StateIdle},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				s.metrics.SetArmed(e.Dst == StateArmed)
				s.log.LogInfo("recorder state changed", "from", e.Src, "to", e.Dst)
			},
		},
	)

	s.publish()
	return s
}

func (s *Switcher) Policy() Policy {
	return s.policy
}

func (s *Switcher) Armed() bool {
	return s.machine.Is(StateArmed)
}

func (s *Switcher) filename() string {
	return Filename(s.conf.Camera.FilePrefix, s.now())
}

func (s *Switcher) reset() {
	s.runID = uuid.NewString()
	s.log = s.logger.With("run_id", s.runID)
	s.started = s.now()
	for i := range s.slots {
		s.slots[i] = slot{id: i + 1}
	}
	s.active = 1
	s.count = 0
	s.switchovers = 0
	s.take = ""
	s.pending = ""
}

// Start arms the recorder: cameras are configured for the current drum
// speed, camera 1 starts recording and the producers for the policy are
// launched. Device calls made here outlive ctx.
func (s *Switcher) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if !s.machine.Is(StateIdle) {
		err := apperror.InvalidState.SetMessage("Recorder Is Already Running")
		s.log.LogWarning(err, "start requested while armed")
		return err
	}

	sensors := s.policy.Sensors()
	if len(sensors) > 0 && s.pins == nil {
		err := apperror.HardwareUnavailable
		s.logger.LogError(err, "Start with no GPIO board installed", "policy", s.policy.Name())
		return err
	}

	s.reset()
	calls := context.WithoutCancel(ctx)

	if s.conf.Camera.ConfigureOnStart {
		s.configureCameras(calls)
	}
	if _, ok := s.policy.(SensorWindow); !ok {
		s.startSlot(calls, s.active)
	}
	s.take = s.filename()

	if err := s.machine.Event(calls, eventArm); err != nil {
		s.log.LogError(err, "failed to arm recorder")
	}
	s.metrics.SetActiveCamera(s.active)
	s.log.LogInfo("recorder armed", "policy", s.policy.Name(), "cameras", s.conf.Camera.Qty, "filename", s.take)
	s.publish()

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.crossings = make(chan sensor.Crossing, queueSize)
	s.dues = make(chan cadence.Due, queueSize)
	s.done = make(chan struct{})
	s.finished = make(chan struct{})

	if len(sensors) > 0 {
		for _, name := range sensors {
			d := sensor.NewDetector(name, s.pinFor(name), s.pins, s.conf.Sensor.PollInterval, s.conf.Sensor.Debounce, s.log)
			s.producers.Add(1)
			go func() {
				defer s.producers.Done()
				d.Run(runCtx, s.crossings)
			}()
		}
	} else {
		t := cadence.NewTimer(s.conf.Recording.Cadence, s.log)
		t.Tick = s.tick
		s.producers.Add(1)
		go func() {
			defer s.producers.Done()
			t.Run(runCtx, s.dues)
		}()
	}

	go s.consume(calls)
	return nil
}

// Stop disarms the recorder. Producers are cancelled, the consumer finishes
// the event in hand and drops the rest, then both cameras are stopped and
// the last take is saved. The save goes to the camera that was active when
// Stop was called, which is camera 1 whenever only one is installed.
// Device calls already in flight are not cancelled.
func (s *Switcher) Stop(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if !s.machine.Is(StateArmed) {
		err := apperror.InvalidState.SetMessage("Recorder Is Not Running")
		s.log.LogWarning(err, "stop requested while idle")
		return err
	}

	s.cancel()
	s.producers.Wait()
	close(s.done)
	<-s.finished

	calls := context.WithoutCancel(ctx)
	last := s.active
	s.stopSlot(calls, 1)
	s.stopSlot(calls, 2)
	s.saveSlot(calls, last)

	if err := s.machine.Event(calls, eventDisarm); err != nil {
		s.log.LogError(err, "failed to disarm recorder")
	}
	s.metrics.SetActiveCamera(0)
	s.log.LogInfo("recorder stopped", "switchovers", s.switchovers)
	s.publish()
	return nil
}

func (s *Switcher) pinFor(sensorName string) string {
	if sensorName == SensorEnd {
		return s.conf.Sensor.EndPin
	}
	return s.conf.Sensor.StartPin
}

func (s *Switcher) consume(ctx context.Context) {
	defer close(s.finished)
	for {
		// a pending stop wins over queued events
		select {
		case <-s.done:
			return
		default:
		}

		select {
		case <-s.done:
			return
		case c := <-s.crossings:
			s.handle(ctx, c.Sensor)
		case d := <-s.dues:
			s.log.LogDebug("switch due", "tick", d.Tick)
			s.handle(ctx, SourceTimer)
		}
	}
}

func (s *Switcher) handle(ctx context.Context, source string) {
	s.metrics.IncCrossings(source)

	if _, ok := s.policy.(SensorWindow); ok {
		switch source {
		case SensorStart:
			s.startSlot(ctx, s.active)
		case SensorEnd:
			s.stopSlot(ctx, s.active)
			s.saveSlot(ctx, s.active)
		}
		s.publish()
		return
	}

	s.count++
	if s.count < s.policy.Threshold() {
		s.startSlot(ctx, s.active)
	} else {
		s.count = 0
		s.switchCamera(ctx)
	}
	s.publish()
}

// switchCamera starts the next camera before stopping the current one so
// coverage overlaps rather than gaps. Every step is attempted whatever the
// outcome of the previous one.
func (s *Switcher) switchCamera(ctx context.Context) {
	old := s.active
	if s.conf.Camera.Qty < 2 {
		s.recycle(ctx)
	} else {
		next := 3 - old
		if s.conf.Camera.FlushOnSwitch {
			s.flushSlot(ctx, next)
		}
		s.startSlot(ctx, next)
		s.stopSlot(ctx, old)
		s.saveSlot(ctx, old)
		s.active = next
	}

	s.switchovers++
	s.metrics.IncSwitchovers()
	s.metrics.SetActiveCamera(s.active)
	s.log.LogInfo("camera switch-over", "from", old, "to", s.active, "switchovers", s.switchovers)
}

// recycle closes the take on a lone camera and opens the next one on it.
// The camera is never flushed here: its buffer holds the take being saved.
func (s *Switcher) recycle(ctx context.Context) {
	s.stopSlot(ctx, s.active)
	s.saveSlot(ctx, s.active)
	s.startSlot(ctx, s.active)
}

func (s *Switcher) configureCameras(ctx context.Context) {
	rpm, o := s.drum.GetDrumRPM(ctx)
	if !o.OK() {
		rpm = 0
	}
	settings := device.CameraSettings{
		RecMode:     s.conf.Camera.RecMode,
		MaxFrames:   FramesFor(s.conf.Camera.FrameRate, s.conf.Camera.Degrees, rpm),
		FramePeriod: FramePeriod(s.conf.Camera.FrameRate),
	}
	s.log.LogDebug("configuring cameras", "rpm", rpm, "frames", settings.MaxFrames)
	for id := 1; id <= s.conf.Camera.Qty && id <= len(s.slots); id++ {
		s.cams.Configure(ctx, id, settings)
	}
}
