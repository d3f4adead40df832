package switcher

import (
	"math"
	"time"
)

const filenameLayout = "D2006-01-02-T15-04-05"

// FramesFor sizes the camera buffer to hold the drum's travel through
// degrees at the given speed. Below 1 rpm the drum is treated as not yet
// spinning and ten seconds of frames are used instead.
func FramesFor(frameRate, degrees, rpm float64) int {
	if rpm <= 1 {
		return int(frameRate * 10)
	}
	secondsPerDegree := (60 / rpm) / 360
	return int(math.Round(frameRate * secondsPerDegree * degrees))
}

// FramePeriod is the interval between frames in nanoseconds.
func FramePeriod(frameRate float64) int64 {
	if frameRate <= 0 {
		return 0
	}
	return int64(math.Round(1e9 / frameRate))
}

// Filename names a take after the moment it began.
func Filename(prefix string, at time.Time) string {
	return prefix + "-" + at.Format(filenameLayout)
}
