package capture

import (
	"testing"
	"time"
)

func TestThrottle(t *testing.T) {
	epoch := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	th := NewThrottle(5, 15, 2*time.Second)

	if th.Active() || th.FPS() != 5 {
		t.Fatalf("new throttle: active=%v fps=%d, want idle at 5", th.Active(), th.FPS())
	}
	if th.Interval() != 200*time.Millisecond {
		t.Errorf("Interval() = %v, want 200ms", th.Interval())
	}

	steps := []struct {
		at          time.Duration
		activity    bool
		wantFPS     int
		wantChanged bool
	}{
		{0, false, 5, false},
		{100 * time.Millisecond, true, 15, true},
		{200 * time.Millisecond, true, 15, false},
		{2 * time.Second, false, 15, false},
		{2200 * time.Millisecond, false, 15, false},
		{2201 * time.Millisecond, false, 5, true},
		{3 * time.Second, false, 5, false},
	}

	for _, s := range steps {
		fps, changed := th.Observe(s.activity, epoch.Add(s.at))
		if fps != s.wantFPS || changed != s.wantChanged {
			t.Errorf("at %v activity=%v: got (%d, %v), want (%d, %v)", s.at, s.activity, fps, changed, s.wantFPS, s.wantChanged)
		}
	}

	th.Observe(true, epoch)
	th.Reset()
	if th.Active() {
		t.Error("Reset should return to idle")
	}
}

func TestNewThrottle_Bounds(t *testing.T) {
	th := NewThrottle(0, 1, time.Second)
	if th.FPS() != DefaultFPS {
		t.Errorf("idle FPS = %d, want default %d", th.FPS(), DefaultFPS)
	}
	th.Observe(true, time.Now())
	if th.FPS() != DefaultFPS {
		t.Errorf("active FPS = %d, should not drop below idle", th.FPS())
	}
}
