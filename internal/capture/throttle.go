package capture

import (
	"sync"
	"time"
)

// Throttle switches the capture rate between an idle and an active FPS.
// Activity (motion or a visible hand) moves it to active immediately; it
// falls back to idle once no activity has been seen for the idle timeout.
type Throttle struct {
	mu           sync.Mutex
	idleFPS      int
	activeFPS    int
	timeout      time.Duration
	active       bool
	lastActivity time.Time
}

// NewThrottle creates a Throttle that starts idle.
func NewThrottle(idleFPS, activeFPS int, timeout time.Duration) *Throttle {
	if idleFPS <= 0 {
		idleFPS = DefaultFPS
	}
	if activeFPS < idleFPS {
		activeFPS = idleFPS
	}
	return &Throttle{
		idleFPS:   idleFPS,
		activeFPS: activeFPS,
		timeout:   timeout,
	}
}

// Observe records whether the latest frame showed activity and returns the
// FPS to use from now on. changed is true when the mode switched.
func (t *Throttle) Observe(activity bool, now time.Time) (fps int, changed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case activity:
		t.lastActivity = now
		if !t.active {
			t.active = true
			changed = true
		}
	case t.active && now.Sub(t.lastActivity) > t.timeout:
		t.active = false
		changed = true
	}

	return t.fpsLocked(), changed
}

// Active reports whether the throttle is in active mode.
func (t *Throttle) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// FPS returns the current frame rate.
func (t *Throttle) FPS() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fpsLocked()
}

// Interval returns the delay between frames at the current rate.
func (t *Throttle) Interval() time.Duration {
	return time.Second / time.Duration(t.FPS())
}

// Reset returns to idle mode.
func (t *Throttle) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = false
	t.lastActivity = time.Time{}
}

func (t *Throttle) fpsLocked() int {
	if t.active {
		return t.activeFPS
	}
	return t.idleFPS
}
