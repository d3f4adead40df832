package config

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"tombola/apperror"
)

type setting struct {
	key string
	env string
	// restart marks settings that only take effect when the process starts.
	restart bool
	secret  bool
	get     func(*Config) string
	set     func(*Config, string) error
}

var settingsTable = []setting{
	str("environment", "ENVIRONMENT", true, func(c *Config) *string { return &c.Environment }),
	str("log_folder", "LOG_FOLDER", true, func(c *Config) *string { return &c.LogFolder }),
	str("log_level", "LOG_LEVEL", true, func(c *Config) *string { return &c.LogLevel }),
	str("port", "PORT", true, func(c *Config) *string { return &c.Port }),
	str("s3_bucket_name", "S3_BUCKET_NAME", true, func(c *Config) *string { return &c.S3Config.Bucket }),
	str("s3_access_key", "S3_ACCESS_KEY", true, func(c *Config) *string { return &c.S3Config.AccessKey }),
	secret(str("s3_secret_key", "S3_SECRET_KEY", true, func(c *Config) *string { return &c.S3Config.SecretKey })),
	str("s3_region", "S3_REGION", true, func(c *Config) *string { return &c.S3Config.Region }),
	str("s3_endpoint_url", "S3_ENDPOINT_URL", true, func(c *Config) *string { return &c.S3Config.EndpointUrl }),

	secret(str("drum_apikey", "DRUM_APIKEY", false, func(c *Config) *string { return &c.Drum.APIKey })),
	str("drum_controller", "DRUM_CONTROLLER", false, func(c *Config) *string { return &c.Drum.URL }),
	seconds("drum_controller_timeout", "DRUM_CONTROLLER_TIMEOUT", func(c *Config) *time.Duration { return &c.Drum.Timeout }),
	float("drum_max_rpm", "DRUM_MAX_RPM", func(c *Config) *float64 { return &c.Drum.MaxRPM }),

	str("camera_controller1", "CAMERA_CONTROLLER1", false, func(c *Config) *string { return &c.Camera.Controllers[0] }),
	str("camera_controller2", "CAMERA_CONTROLLER2", false, func(c *Config) *string { return &c.Camera.Controllers[1] }),
	seconds("camera_controller_timeout", "CAMERA_CONTROLLER_TIMEOUT", func(c *Config) *time.Duration { return &c.Camera.Timeout }),
	integer("camera_qty", "CAMERA_QTY", func(c *Config) *int { return &c.Camera.Qty }),
	float("camera_frame_rate", "CAMERA_FRAME_RATE", func(c *Config) *float64 { return &c.Camera.FrameRate }),
	float("camera_degrees", "CAMERA_DEGREES", func(c *Config) *float64 { return &c.Camera.Degrees }),
	str("camera_rec_mode", "CAMERA_REC_MODE", false, func(c *Config) *string { return &c.Camera.RecMode }),
	str("camera_storage", "CAMERA_STORAGE", false, func(c *Config) *string { return &c.Camera.Storage }),
	str("camera_format", "CAMERA_FORMAT", false, func(c *Config) *string { return &c.Camera.Format }),
	str("camera_file_prefix", "CAMERA_FILE_PREFIX", false, func(c *Config) *string { return &c.Camera.FilePrefix }),
	boolean("camera_configure_on_start", "CAMERA_CONFIGURE_ON_START", func(c *Config) *bool { return &c.Camera.ConfigureOnStart }),
	boolean("camera_flush_on_switch", "CAMERA_FLUSH_ON_SWITCH", func(c *Config) *bool { return &c.Camera.FlushOnSwitch }),

	str("recording_mode", "RECORDING_MODE", false, func(c *Config) *string { return &c.Recording.Mode }),
	integer("recording_cadence", "RECORDING_CADENCE", func(c *Config) *int { return &c.Recording.Cadence }),

	str("sensor_start_pin", "SENSOR_START_PIN", true, func(c *Config) *string { return &c.Sensor.StartPin }),
	str("sensor_end_pin", "SENSOR_END_PIN", true, func(c *Config) *string { return &c.Sensor.EndPin }),
	seconds("sensor_debounce_time", "SENSOR_DEBOUNCE_TIME", func(c *Config) *time.Duration { return &c.Sensor.Debounce }),
	seconds("sensor_poll_interval", "SENSOR_POLL_INTERVAL", func(c *Config) *time.Duration { return &c.Sensor.PollInterval }),
}

func str(key, env string, restart bool, field func(*Config) *string) setting {
	return setting{
		key:     key,
		env:     env,
		restart: restart,
		get:     func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			*field(c) = v
			return nil
		},
	}
}

func secret(s setting) setting {
	s.secret = true
	return s
}

func integer(key, env string, field func(*Config) *int) setting {
	return setting{
		key: key,
		env: env,
		get: func(c *Config) string { return strconv.Itoa(*field(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%q is not an integer", v)
			}
			*field(c) = n
			return nil
		},
	}
}

func float(key, env string, field func(*Config) *float64) setting {
	return setting{
		key: key,
		env: env,
		get: func(c *Config) string { return strconv.FormatFloat(*field(c), 'f', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
				return fmt.Errorf("%q is not a number", v)
			}
			*field(c) = f
			return nil
		},
	}
}

// seconds stores fractional seconds ("0.5") as a duration.
func seconds(key, env string, field func(*Config) *time.Duration) setting {
	return setting{
		key: key,
		env: env,
		get: func(c *Config) string { return strconv.FormatFloat(field(c).Seconds(), 'f', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return fmt.Errorf("%q is not a number of seconds", v)
			}
			*field(c) = time.Duration(f * float64(time.Second))
			return nil
		},
	}
}

func boolean(key, env string, field func(*Config) *bool) setting {
	return setting{
		key: key,
		env: env,
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%q is not a boolean", v)
			}
			*field(c) = b
			return nil
		},
	}
}

func lookup(key string) (setting, bool) {
	for _, s := range settingsTable {
		if s.key == key {
			return s, true
		}
	}
	return setting{}, false
}

// Store holds the current configuration. Readers get a copy; writers
// validate a modified copy and swap it in whole.
type Store struct {
	mu  sync.Mutex
	cur atomic.Pointer[Config]
}

func NewStore(conf Config) *Store {
	s := &Store{}
	s.cur.Store(&conf)
	return s
}

func (s *Store) Get() Config {
	return *s.cur.Load()
}

// Reconfigure changes a single setting by its settings key.
func (s *Store) Reconfigure(key, value string) (Config, error) {
	st, ok := lookup(key)
	if !ok {
		return Config{}, apperror.NotFound.SetMessage(fmt.Sprintf("unknown setting %q", key))
	}
	if st.restart {
		return Config{}, apperror.InvalidRequest.SetMessage(fmt.Sprintf("setting %q can only be changed before startup", key))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := *s.cur.Load()
	if err := st.set(&next, value); err != nil {
		return Config{}, apperror.InvalidRequest.SetMessage(fmt.Sprintf("%s: %v", key, err))
	}
	if err := next.Validate(); err != nil {
		return Config{}, err
	}

	s.cur.Store(&next)
	return next, nil
}

// Settings lists every setting sorted by key with secrets masked.
func (s *Store) Settings() []Setting {
	conf := s.Get()
	out := make([]Setting, 0, len(settingsTable))
	for _, st := range settingsTable {
		v := st.get(&conf)
		if st.secret {
			v = mask(v)
		}
		out = append(out, Setting{Key: st.key, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func mask(v string) string {
	if len(v) <= 4 {
		return strings.Repeat("*", len(v))
	}
	return v[:2] + strings.Repeat("*", len(v)-4) + v[len(v)-2:]
}
