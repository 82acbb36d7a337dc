package shortcut

import "time"

// Config holds the shortcut debounce parameters.
type Config struct {
	StableFrames  int           // Consecutive frames of one label required to fire
	ReleaseFrames int           // Frames without a label that re-arm the detector
	Cooldown      time.Duration // Minimum time between two shortcut events
	Thresholds    Thresholds
}

// DefaultConfig returns the default debounce configuration.
func DefaultConfig() Config {
	return Config{
		StableFrames:  5,
		ReleaseFrames: 4,
		Cooldown:      1200 * time.Millisecond,
		Thresholds:    DefaultThresholds(),
	}
}

// Detector debounces per-frame shortcut labels: a gesture must be held for
// StableFrames, fires once, and cannot fire again until it has been released
// for ReleaseFrames and the cooldown has passed.
type Detector struct {
	cfg           Config
	lastLabel     string
	stableCount   int
	nullFrames    int
	armed         bool
	cooldownUntil time.Time
}

// NewDetector creates an armed detector.
func NewDetector(cfg Config) *Detector {
	d := &Detector{cfg: cfg}
	d.Reset()
	return d
}

// Reset re-arms the detector and forgets the current gesture and cooldown.
func (d *Detector) Reset() {
	d.lastLabel = ""
	d.stableCount = 0
	d.nullFrames = 0
	d.armed = true
	d.cooldownUntil = time.Time{}
}

// Armed reports whether the next stable gesture may fire.
func (d *Detector) Armed() bool {
	return d.armed
}

// Observe advances the debounce state by one frame. ok is false for frames
// with no hand or no recognized gesture.
func (d *Detector) Observe(label string, ok bool, now time.Time) (string, bool) {
	if !ok {
		d.nullFrames++
		if d.nullFrames >= d.cfg.ReleaseFrames {
			d.armed = true
			d.lastLabel = ""
			d.stableCount = 0
		}
		return "", false
	}

	d.nullFrames = 0
	if label == d.lastLabel {
		d.stableCount++
	} else {
		d.lastLabel = label
		d.stableCount = 1
	}

	if d.stableCount >= d.cfg.StableFrames && d.armed && !now.Before(d.cooldownUntil) {
		d.armed = false
		d.cooldownUntil = now.Add(d.cfg.Cooldown)
		return label, true
	}
	return "", false
}
