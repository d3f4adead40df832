package cadence

import (
	"context"
	"sync/atomic"
	"time"

	"tombola/logger"
)

// Due is emitted each time the configured interval has elapsed.
type Due struct {
	Tick int64
	At   time.Time
}

// Timer counts ticks and requests a switch every Interval ticks.
type Timer struct {
	Interval int
	Tick     time.Duration

	elapsed atomic.Int64
	ticks   atomic.Int64
	logger  *logger.Logger
}

func NewTimer(interval int, logger *logger.Logger) *Timer {
	return &Timer{
		Interval: interval,
		Tick:     time.Second,
		logger:   logger,
	}
}

// Elapsed is the number of ticks since the last Due.
func (t *Timer) Elapsed() int {
	return int(t.elapsed.Load())
}

// advance records one tick and reports whether a switch is due.
func (t *Timer) advance() (int64, bool) {
	tick := t.ticks.Add(1)
	if t.elapsed.Add(1) >= int64(t.Interval) {
		t.elapsed.Store(0)
		return tick, true
	}
	return tick, false
}

// Run ticks until ctx is cancelled. The ticker keeps its own schedule, so a
// slow consumer delays delivery but never shifts later ticks.
func (t *Timer) Run(ctx context.Context, out chan<- Due) {
	t.elapsed.Store(0)
	t.ticks.Store(0)

	ticker := time.NewTicker(t.Tick)
	defer ticker.Stop()

	t.logger.LogDebug("cadence timer started", "interval", t.Interval, "tick", t.Tick.String())
	defer t.logger.LogDebug("cadence timer exiting")

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			tick, due := t.advance()
			if !due {
				continue
			}
			select {
			case out <- Due{Tick: tick, At: now}:
			case <-ctx.Done():
				return
			}
		}
	}
}
