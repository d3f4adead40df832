package switcher

import (
	"fmt"

	"tombola/config"
)

const (
	SensorStart = "start"
	SensorEnd   = "end"
	SourceTimer = "timer"
)

// Policy decides when the orchestrator switches cameras. It is one of
// RotationCount, TimeCadence or SensorWindow and never changes during a run.
type Policy interface {
	Name() string
	// Threshold is the number of events that trigger a switch-over.
	Threshold() int
	// Sensors lists the sensors that must be monitored; empty means the
	// policy runs off the cadence timer.
	Sensors() []string
}

// RotationCount switches after Crossings qualifying sensor crossings.
type RotationCount struct {
	Crossings int
}

func (p RotationCount) Name() string      { return fmt.Sprintf("rotation(%d crossings)", p.Crossings) }
func (p RotationCount) Threshold() int    { return p.Crossings }
func (p RotationCount) Sensors() []string { return []string{SensorStart, SensorEnd} }

// TimeCadence switches every IntervalSeconds.
type TimeCadence struct {
	IntervalSeconds int
}

func (p TimeCadence) Name() string      { return fmt.Sprintf("timed(%ds)", p.IntervalSeconds) }
func (p TimeCadence) Threshold() int    { return 1 }
func (p TimeCadence) Sensors() []string { return nil }

// SensorWindow records on the active camera between a start-sensor crossing
// and an end-sensor crossing, saving at the end of each window.
type SensorWindow struct{}

func (SensorWindow) Name() string      { return "window" }
func (SensorWindow) Threshold() int    { return 1 }
func (SensorWindow) Sensors() []string { return []string{SensorStart, SensorEnd} }

// PolicyFromConfig selects the policy for recording_mode. In rotation mode
// every sensor fires once per revolution, so the cadence in revolutions is
// multiplied by the number of sensors.
func PolicyFromConfig(conf config.Config) Policy {
	switch conf.Recording.Mode {
	case config.ModeRotation:
		p := RotationCount{}
		p.Crossings = conf.Recording.Cadence * len(p.Sensors())
		return p
	case config.ModeWindow:
		return SensorWindow{}
	default:
		return TimeCadence{IntervalSeconds: conf.Recording.Cadence}
	}
}
