package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"tombola/app/device"
	"tombola/app/hardware"
	"tombola/app/helper"
	"tombola/app/switcher"
	"tombola/app/upload"
	"tombola/apperror"
	"tombola/config"
	"tombola/logger"
	"tombola/metrics"
	"tombola/models"
)

// drumStatusTTL bounds how often status requests query the drum.
const drumStatusTTL = 5 * time.Second

type App struct {
	store   *config.Store
	board   *hardware.Board
	logger  *logger.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	client   *device.Client
	recorder *switcher.Switcher

	drumMu     sync.Mutex
	drumRPM    float64
	drumReadAt time.Time
	now        func() time.Time
}

func NewApp(store *config.Store, logger *logger.Logger, metrics *metrics.Metrics) *App {
	conf := store.Get()

	logger.LogInfo("Initializing GPIO adapter", "start_pin", conf.Sensor.StartPin, "end_pin", conf.Sensor.EndPin)
	board, err := hardware.Open(conf.Sensor.StartPin, conf.Sensor.EndPin)

	if err != nil {
		logger.LogError(err, "GPIO adapter missing, sensor modes disabled")
		board = nil
	}

	if conf.S3Config.Bucket != "" {
		logger.LogInfo("Initializing uploader")
		uploader, err := upload.NewUploader(conf.S3Config, logger)

		if err != nil {
			logger.LogError(err, "Error initializing uploader")
		} else {
			uploader.UploadLogs(conf.LogFolder)
		}
	}

	return newApp(store, board, logger, metrics)
}

func newApp(store *config.Store, board *hardware.Board, logger *logger.Logger, metrics *metrics.Metrics) *App {
	a := &App{
		store:   store,
		board:   board,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
	a.build(store.Get())
	return a
}

// build replaces the device client and recorder for conf. Callers hold mu
// or have exclusive access.
func (a *App) build(conf config.Config) {
	var pins hardware.PinReader
	if a.board != nil {
		pins = a.board
	}

	a.client = device.NewClient(conf, a.logger, a.metrics)
	a.recorder = switcher.New(conf, switcher.PolicyFromConfig(conf), a.client, a.client, pins, a.logger, a.metrics)
}

func (a *App) current() (*device.Client, *switcher.Switcher) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.client, a.recorder
}

func (a *App) StartRecording(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.recorder.Start(ctx)
}

func (a *App) StopRecording(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.recorder.Stop(ctx)
}

// Shutdown stops a running recorder so the last take is saved.
func (a *App) Shutdown(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.recorder.Armed() {
		a.logger.LogInfo("Stopping recorder for shutdown")
		_ = a.recorder.Stop(ctx)
	}
}

func (a *App) DrumRPM(ctx context.Context) (float64, error) {
	client, _ := a.current()
	rpm, o := client.GetDrumRPM(ctx)

	a.remember(rpm)

	if !o.OK() {
		return 0, apperror.ServiceUnavailable.SetMessage("Drum Controller Did Not Answer: " + o.String())
	}

	return rpm, nil
}

func (a *App) remember(rpm float64) {
	a.drumMu.Lock()
	defer a.drumMu.Unlock()
	a.drumRPM = rpm
	a.drumReadAt = a.now()
}

// recentDrumRPM answers from the last reading when it is younger than
// drumStatusTTL, failed readings included, and queries the drum otherwise.
func (a *App) recentDrumRPM(ctx context.Context) float64 {
	a.drumMu.Lock()
	defer a.drumMu.Unlock()

	if !a.drumReadAt.IsZero() && a.now().Sub(a.drumReadAt) < drumStatusTTL {
		return a.drumRPM
	}

	client, _ := a.current()
	rpm, _ := client.GetDrumRPM(ctx)
	a.drumRPM = rpm
	a.drumReadAt = a.now()
	return rpm
}

func (a *App) SetDrumRPM(ctx context.Context, rpm float64) (float64, error) {
	maxRPM := a.store.Get().Drum.MaxRPM

	if rpm < 0 || rpm > maxRPM {
		return 0, apperror.InvalidRequest.SetMessage(fmt.Sprintf("rpm must be between 0 and %g", maxRPM))
	}

	client, _ := a.current()
	set, o := client.SetDrumRPM(ctx, rpm)

	if !o.OK() {
		return 0, apperror.ServiceUnavailable.SetMessage("Drum Controller Did Not Accept The Speed: " + o.String())
	}

	a.remember(set)
	a.logger.LogInfo("Drum speed set", "rpm", set)
	return set, nil
}

func (a *App) Settings() []config.Setting {
	return a.store.Settings()
}

// Reconfigure changes one setting. The new value is used from the next run,
// so changes are refused while the recorder is armed.
func (a *App) Reconfigure(key, value string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.recorder.Armed() {
		err := apperror.ServiceUnavailable.SetMessage("Cannot change settings while recording")
		a.logger.LogWarning(err, "Reconfigure refused", "key", key)
		return err
	}

	conf, err := a.store.Reconfigure(key, value)

	if err != nil {
		a.logger.LogWarning(err, "Reconfigure rejected", "key", key)
		return err
	}

	a.build(conf)
	a.logger.LogInfo("Setting changed", "key", key)
	return nil
}

func (a *App) AppStatus(ctx context.Context) *models.Status {
	conf := a.store.Get()
	_, recorder := a.current()
	snap := recorder.Snapshot()

	status := &models.Status{
		Armed:        snap.State == switcher.StateArmed,
		HardwareUp:   a.board != nil,
		Policy:       snap.Policy,
		RunID:        snap.RunID,
		ActiveCamera: snap.Active,
		Crossings:    snap.Crossings,
		Threshold:    snap.Threshold,
		Switchovers:  snap.Switchovers,
		Take:         snap.Take,
	}

	if status.Armed {
		status.Started = humanize.Time(snap.Started)
	}

	for _, sl := range snap.Slots {
		status.Cameras = append(status.Cameras, models.CameraStatus{
			ID:        sl.ID,
			Installed: sl.Installed,
			Recording: sl.Recording,
		})
	}

	status.DrumRPM = a.recentDrumRPM(ctx)

	usage, err := helper.DiskUsage(conf.LogFolder)

	if err != nil {
		a.logger.LogError(err, "Error getting disk usage", "folder", conf.LogFolder)
	}
	status.DiskUsage = usage

	return status
}
