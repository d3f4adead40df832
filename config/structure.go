package config

import "time"

const (
	ModeRotation = "rotation"
	ModeTimed    = "timed"
	ModeWindow   = "window"
)

type Config struct {
	Environment string
	LogFolder   string
	LogLevel    string
	Port        string
	S3Config    S3
	Drum        Drum
	Camera      Camera
	Recording   Recording
	Sensor      Sensor
}

type S3 struct {
	AccessKey   string
	SecretKey   string
	Region      string
	Bucket      string
	EndpointUrl string
}

type Drum struct {
	URL     string
	APIKey  string
	Timeout time.Duration
	MaxRPM  float64
}

type Camera struct {
	Controllers      [2]string
	Timeout          time.Duration
	Qty              int
	FrameRate        float64
	Degrees          float64
	RecMode          string
	Storage          string
	Format           string
	FilePrefix       string
	ConfigureOnStart bool
	FlushOnSwitch    bool
}

type Recording struct {
	Mode    string
	Cadence int
}

type Sensor struct {
	StartPin     string
	EndPin       string
	Debounce     time.Duration
	PollInterval time.Duration
}

// Setting is one line of the flat settings listing.
type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
