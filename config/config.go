package config

import (
	"fmt"
	"math"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"

	"tombola/apperror"
)

func defaultConfig() Config {
	return Config{
		Environment: "prod",
		LogFolder:   "./logs",
		LogLevel:    "info",
		Port:        "8080",
		Drum: Drum{
			URL:     "http://192.168.0.10/api",
			APIKey:  "<type-it-here>",
			Timeout: 500 * time.Millisecond,
			MaxRPM:  80,
		},
		Camera: Camera{
			Controllers:      [2]string{"http://192.168.0.20/control", "http://192.168.0.21/control"},
			Timeout:          500 * time.Millisecond,
			Qty:              1,
			FrameRate:        1000,
			Degrees:          360,
			RecMode:          "normal",
			Storage:          "sda1",
			Format:           "x264",
			FilePrefix:       "UCL-Tombola",
			ConfigureOnStart: true,
			FlushOnSwitch:    true,
		},
		Recording: Recording{
			Mode:    ModeTimed,
			Cadence: 10,
		},
		Sensor: Sensor{
			StartPin:     "C0",
			EndPin:       "C1",
			Debounce:     100 * time.Millisecond,
			PollInterval: time.Millisecond,
		},
	}
}

// Default returns the built-in settings used when nothing overrides them.
func Default() Config {
	return defaultConfig()
}

// Load reads .env when present, then applies every known environment
// variable over the defaults.
func Load(paths ...string) (Config, error) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", p, err)
		}
	}

	conf := defaultConfig()
	for _, s := range settingsTable {
		value, ok := os.LookupEnv(s.env)
		if !ok || value == "" {
			continue
		}
		if err := s.set(&conf, value); err != nil {
			return Config{}, fmt.Errorf("%s: %w", s.env, err)
		}
	}

	if err := conf.Validate(); err != nil {
		return Config{}, err
	}

	return conf, nil
}

// Validate checks the settings that the recorder cannot run without.
func (c Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return apperror.InvalidRequest.SetMessage(fmt.Sprintf(format, args...))
	}

	if err := validURL(c.Drum.URL); err != nil {
		return invalid("drum_controller: %v", err)
	}
	if c.Drum.Timeout <= 0 {
		return invalid("drum_controller_timeout must be positive")
	}
	if !positive(c.Drum.MaxRPM) {
		return invalid("drum_max_rpm must be positive")
	}

	if c.Camera.Qty != 1 && c.Camera.Qty != 2 {
		return invalid("camera_qty must be 1 or 2, got %d", c.Camera.Qty)
	}
	for i := 0; i < c.Camera.Qty; i++ {
		if err := validURL(c.Camera.Controllers[i]); err != nil {
			return invalid("camera_controller%d: %v", i+1, err)
		}
	}
	if c.Camera.Timeout <= 0 {
		return invalid("camera_controller_timeout must be positive")
	}
	if !positive(c.Camera.FrameRate) {
		return invalid("camera_frame_rate must be positive")
	}
	if !positive(c.Camera.Degrees) {
		return invalid("camera_degrees must be positive")
	}

	switch c.Recording.Mode {
	case ModeTimed:
	case ModeRotation, ModeWindow:
		if c.Sensor.StartPin == "" || c.Sensor.EndPin == "" {
			return invalid("sensor pins are required in %s mode", c.Recording.Mode)
		}
	default:
		return invalid("recording_mode must be one of %s, %s, %s", ModeRotation, ModeTimed, ModeWindow)
	}
	if c.Recording.Cadence < 1 {
		return invalid("recording_cadence must be at least 1")
	}

	if c.Sensor.Debounce < 0 {
		return invalid("sensor_debounce_time must not be negative")
	}
	if c.Sensor.PollInterval <= 0 {
		return invalid("sensor_poll_interval must be positive")
	}

	return nil
}

func positive(f float64) bool {
	return f > 0 && !math.IsInf(f, 0)
}

func validURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("missing url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%q is not an absolute url", raw)
	}
	return nil
}
