package sensor

import (
	"context"
	"time"

	"tombola/app/hardware"
	"tombola/logger"
)

// Crossing is one accepted falling edge on a hall-effect sensor.
type Crossing struct {
	Sensor string
	At     time.Time
}

// Detector polls one active-low digital input and reports falling edges.
type Detector struct {
	Name     string
	Pin      string
	Poll     time.Duration
	Debounce time.Duration

	reader   hardware.PinReader
	logger   *logger.Logger
	previous bool

	// sleep returns false when ctx ended while waiting.
	sleep func(ctx context.Context, d time.Duration) bool
	now   func() time.Time
}

func NewDetector(name, pin string, reader hardware.PinReader, poll, debounce time.Duration, logger *logger.Logger) *Detector {
	return &Detector{
		Name:     name,
		Pin:      pin,
		Poll:     poll,
		Debounce: debounce,
		reader:   reader,
		logger:   logger,
		previous: true,
		sleep:    sleepCtx,
		now:      time.Now,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// observe advances the edge state with a fresh reading and reports whether
// it is a qualifying HIGH to LOW transition.
func (d *Detector) observe(level bool) bool {
	fired := d.previous != level && !level
	d.previous = level
	return fired
}

// Run polls until ctx is cancelled. Cancellation is checked once per poll
// and interrupts the poll and debounce waits.
func (d *Detector) Run(ctx context.Context, out chan<- Crossing) {
	d.logger.LogDebug("sensor monitor started", "sensor", d.Name, "pin", d.Pin)
	defer d.logger.LogDebug("sensor monitor exiting", "sensor", d.Name)

	for ctx.Err() == nil {
		level, err := d.reader.ReadPin(d.Pin)
		if err != nil {
			d.logger.LogWarning(err, "Failed to read sensor pin", "sensor", d.Name, "pin", d.Pin)
			level = d.previous
		}

		if d.observe(level) {
			d.logger.LogDebug("sensor triggered", "sensor", d.Name)
			select {
			case out <- Crossing{Sensor: d.Name, At: d.now()}:
			case <-ctx.Done():
				return
			}
			if !d.sleep(ctx, d.Debounce) {
				return
			}
		}

		if !d.sleep(ctx, d.Poll) {
			return
		}
	}
}
