package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ayusman/dactilo/internal/session"
)

// FileConfig represents the TOML configuration file. Every field is optional;
// unset fields keep their default.
type FileConfig struct {
	Recognition RecognitionFile `toml:"recognition"`
	Word        WordFile        `toml:"word"`
	Shortcut    ShortcutFile    `toml:"shortcut"`
	Camera      CameraFile      `toml:"camera"`
	Detector    DetectorFile    `toml:"detector"`
	Server      ServerFile      `toml:"server"`
	Store       StoreFile       `toml:"store"`
	Kafka       KafkaFile       `toml:"kafka"`
	Log         LogFile         `toml:"log"`
	Plugins     PluginsFile     `toml:"plugins"`
}

// RecognitionFile maps classifier and stabilizer settings.
type RecognitionFile struct {
	K                       *int     `toml:"k"`
	Strategy                *string  `toml:"strategy"`
	WindowSize              *int     `toml:"window_size"`
	MinStableFrames         *int     `toml:"min_stable_frames"`
	MinConfidence           *float64 `toml:"min_confidence"`
	ChangeFrames            *int     `toml:"change_frames"`
	NoConfidenceResetFrames *int     `toml:"no_confidence_reset_frames"`
	HandAbsentResetFrames   *int     `toml:"hand_absent_reset_frames"`
	RepeatFrames            *int     `toml:"repeat_frames"`
}

// WordFile maps word segmentation settings.
type WordFile struct {
	IdleGapMs  *int `toml:"idle_gap_ms"`
	CooldownMs *int `toml:"cooldown_ms"`
}

// ShortcutFile maps shortcut gesture settings.
type ShortcutFile struct {
	StableFrames    *int     `toml:"stable_frames"`
	ReleaseFrames   *int     `toml:"release_frames"`
	CooldownMs      *int     `toml:"cooldown_ms"`
	ThumbThreshold  *float64 `toml:"thumb_threshold"`
	FingerThreshold *float64 `toml:"finger_threshold"`
}

// CameraFile maps capture settings.
type CameraFile struct {
	Device          *int     `toml:"device"`
	IdleFPS         *int     `toml:"idle_fps"`
	ActiveFPS       *int     `toml:"active_fps"`
	MotionThreshold *float64 `toml:"motion_threshold"`
	IdleTimeoutMs   *int     `toml:"idle_timeout_ms"`
}

// DetectorFile maps pose estimator settings.
type DetectorFile struct {
	MaxHands              *int     `toml:"max_hands"`
	MinConfidence         *float64 `toml:"min_confidence"`
	MinTrackingConfidence *float64 `toml:"min_tracking_confidence"`
	ScriptPath            *string  `toml:"script_path"`
	Python                *string  `toml:"python"`
}

// ServerFile maps HTTP API settings.
type ServerFile struct {
	Addr *string `toml:"addr"`
}

// StoreFile maps persistence settings.
type StoreFile struct {
	Path       *string `toml:"path"`
	DatasetKey *string `toml:"dataset_key"`
}

// KafkaFile maps event streaming settings.
type KafkaFile struct {
	Enabled *bool    `toml:"enabled"`
	Brokers []string `toml:"brokers"`
	Topic   *string  `toml:"topic"`
}

// LogFile maps logging settings.
type LogFile struct {
	Level  *string `toml:"level"`
	Format *string `toml:"format"`
}

// PluginsFile maps plugin settings.
type PluginsFile struct {
	Dir       *string `toml:"dir"`
	TimeoutMs *int    `toml:"timeout_ms"`
	QueueSize *int    `toml:"queue_size"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setMillis(dst *time.Duration, v *int) {
	if v != nil {
		*dst = time.Duration(*v) * time.Millisecond
	}
}

// Apply overrides cfg with every field set in the file.
func (f FileConfig) Apply(cfg *Config) {
	s := &cfg.Session
	r := f.Recognition
	setInt(&s.K, r.K)
	if r.Strategy != nil {
		s.Strategy = session.Strategy(*r.Strategy)
	}
	setInt(&s.Stabilize.WindowSize, r.WindowSize)
	setInt(&s.Stabilize.MinStableFrames, r.MinStableFrames)
	setFloat(&s.Stabilize.MinConfidence, r.MinConfidence)
	setInt(&s.Stabilize.ChangeFrames, r.ChangeFrames)
	setInt(&s.Stabilize.NoConfidenceResetFrames, r.NoConfidenceResetFrames)
	setInt(&s.Stabilize.HandAbsentResetFrames, r.HandAbsentResetFrames)
	setInt(&s.RepeatFrames, r.RepeatFrames)

	setMillis(&s.Word.IdleGap, f.Word.IdleGapMs)
	setMillis(&s.Word.Cooldown, f.Word.CooldownMs)

	sc := f.Shortcut
	setInt(&s.Shortcut.StableFrames, sc.StableFrames)
	setInt(&s.Shortcut.ReleaseFrames, sc.ReleaseFrames)
	setMillis(&s.Shortcut.Cooldown, sc.CooldownMs)
	setFloat(&s.Shortcut.Thresholds.Thumb, sc.ThumbThreshold)
	setFloat(&s.Shortcut.Thresholds.Finger, sc.FingerThreshold)

	setInt(&cfg.Camera.Device, f.Camera.Device)
	setInt(&cfg.Camera.IdleFPS, f.Camera.IdleFPS)
	setInt(&cfg.Camera.ActiveFPS, f.Camera.ActiveFPS)
	setFloat(&cfg.Camera.MotionThreshold, f.Camera.MotionThreshold)
	setMillis(&cfg.Camera.IdleTimeout, f.Camera.IdleTimeoutMs)

	setInt(&cfg.Detector.MaxHands, f.Detector.MaxHands)
	setFloat(&cfg.Detector.MinConfidence, f.Detector.MinConfidence)
	setFloat(&cfg.Detector.MinTrackingConf, f.Detector.MinTrackingConfidence)
	setString(&cfg.Detector.ScriptPath, f.Detector.ScriptPath)
	setString(&cfg.Detector.Python, f.Detector.Python)

	setString(&cfg.Server.Addr, f.Server.Addr)
	setString(&cfg.Store.Path, f.Store.Path)
	setString(&s.DatasetKey, f.Store.DatasetKey)

	if f.Kafka.Enabled != nil {
		cfg.Kafka.Enabled = *f.Kafka.Enabled
	}
	if len(f.Kafka.Brokers) > 0 {
		cfg.Kafka.Brokers = f.Kafka.Brokers
	}
	setString(&cfg.Kafka.Topic, f.Kafka.Topic)

	setString(&cfg.Log.Level, f.Log.Level)
	setString(&cfg.Log.Format, f.Log.Format)

	setString(&cfg.Plugins.Dir, f.Plugins.Dir)
	setMillis(&cfg.Plugins.Timeout, f.Plugins.TimeoutMs)
	setInt(&cfg.Plugins.QueueSize, f.Plugins.QueueSize)
}

// Template returns a commented config file listing every default.
func Template() string {
	d := Default()
	s := d.Session
	return fmt.Sprintf(`# dactilo configuration. Uncomment a line to override its default.

[recognition]
# k = %d
# strategy = %q  # "window" or "repeat"
# window_size = %d
# min_stable_frames = %d
# min_confidence = %v
# change_frames = %d
# no_confidence_reset_frames = %d
# hand_absent_reset_frames = %d
# repeat_frames = %d

[word]
# idle_gap_ms = %d
# cooldown_ms = %d

[shortcut]
# stable_frames = %d
# release_frames = %d
# cooldown_ms = %d
# thumb_threshold = %v
# finger_threshold = %v

[camera]
# device = %d
# idle_fps = %d
# active_fps = %d
# motion_threshold = %v
# idle_timeout_ms = %d

[detector]
# max_hands = %d
# min_confidence = %v
# min_tracking_confidence = %v
# script_path = ""  # mediapipe_service.py, searched for when empty
# python = ""       # interpreter, a venv or python3 when empty

[server]
# addr = %q

[store]
# path = %q
# dataset_key = %q

[kafka]
# enabled = false
# brokers = ["localhost:9092"]
# topic = %q

[log]
# level = %q
# format = %q

[plugins]
# dir = %q
# timeout_ms = %d
# queue_size = %d
`,
		s.K, s.Strategy, s.Stabilize.WindowSize, s.Stabilize.MinStableFrames, s.Stabilize.MinConfidence,
		s.Stabilize.ChangeFrames, s.Stabilize.NoConfidenceResetFrames, s.Stabilize.HandAbsentResetFrames, s.RepeatFrames,
		s.Word.IdleGap.Milliseconds(), s.Word.Cooldown.Milliseconds(),
		s.Shortcut.StableFrames, s.Shortcut.ReleaseFrames, s.Shortcut.Cooldown.Milliseconds(),
		s.Shortcut.Thresholds.Thumb, s.Shortcut.Thresholds.Finger,
		d.Camera.Device, d.Camera.IdleFPS, d.Camera.ActiveFPS, d.Camera.MotionThreshold, d.Camera.IdleTimeout.Milliseconds(),
		d.Detector.MaxHands, d.Detector.MinConfidence, d.Detector.MinTrackingConf,
		d.Server.Addr,
		d.Store.Path, s.DatasetKey,
		d.Kafka.Topic,
		d.Log.Level, d.Log.Format,
		d.Plugins.Dir, d.Plugins.Timeout.Milliseconds(), d.Plugins.QueueSize,
	)
}
