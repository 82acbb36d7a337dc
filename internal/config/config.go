// Package config holds the application configuration, its defaults and the
// TOML file that overrides them.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/dactilo/internal/detector"
	"github.com/ayusman/dactilo/internal/events"
	"github.com/ayusman/dactilo/internal/logging"
	"github.com/ayusman/dactilo/internal/session"
)

// Config is the fully resolved application configuration.
type Config struct {
	Session  session.Config
	Detector detector.Config
	Camera   CameraConfig
	Server   ServerConfig
	Store    StoreConfig
	Kafka    events.Config
	Log      logging.Config
	Plugins  PluginsConfig
}

// CameraConfig controls frame capture and motion gating.
type CameraConfig struct {
	Device          int
	IdleFPS         int
	ActiveFPS       int
	MotionThreshold float64       // Percent of pixels that must change
	IdleTimeout     time.Duration // Time without motion before dropping to IdleFPS
}

// ServerConfig controls the local HTTP API.
type ServerConfig struct {
	Addr string
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string
}

// PluginsConfig controls output plugin execution.
type PluginsConfig struct {
	Dir       string
	Timeout   time.Duration
	QueueSize int
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Session:  session.DefaultConfig(),
		Detector: detector.DefaultConfig(),
		Camera: CameraConfig{
			Device:          0,
			IdleFPS:         5,
			ActiveFPS:       15,
			MotionThreshold: 1.0,
			IdleTimeout:     2 * time.Second,
		},
		Server: ServerConfig{Addr: "127.0.0.1:8765"},
		Store:  StoreConfig{Path: DefaultDBPath()},
		Kafka:  events.DefaultConfig(),
		Log:    logging.DefaultConfig(),
		Plugins: PluginsConfig{
			Dir:       DefaultPluginDir(),
			Timeout:   5 * time.Second,
			QueueSize: 64,
		},
	}
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if err := c.Session.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("recognition: %w", err))
	}
	if c.Detector.MaxHands < 1 {
		errs = append(errs, fmt.Errorf("detector: max hands must be positive, got %d", c.Detector.MaxHands))
	}
	if c.Detector.MinConfidence < 0 || c.Detector.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("detector: min confidence must be in [0, 1], got %v", c.Detector.MinConfidence))
	}
	if c.Camera.IdleFPS < 1 || c.Camera.ActiveFPS < 1 {
		errs = append(errs, fmt.Errorf("camera: fps must be positive"))
	}
	if c.Store.Path == "" {
		errs = append(errs, fmt.Errorf("store: path is required"))
	}
	if c.Kafka.Enabled && c.Kafka.Topic == "" {
		errs = append(errs, fmt.Errorf("kafka: topic is required when enabled"))
	}
	if c.Plugins.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("plugins: timeout must be positive"))
	}
	return errors.Join(errs...)
}

// Load reads the TOML file at path over the defaults and validates the result.
// A missing file yields the defaults.
func Load(path string) (Config, error) {
	fc, err := LoadConfig(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	fc.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}
