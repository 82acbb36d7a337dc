package stabilize

import "testing"

func hand(label string, conf float64) Observation {
	return Observation{Hand: true, Predicted: true, Label: label, Confidence: conf}
}

var noHand = Observation{}

// feed pushes observations and returns every emitted symbol.
func feed(s Stabilizer, obs ...Observation) []string {
	var out []string
	for _, o := range obs {
		if sym, ok := s.Observe(o); ok {
			out = append(out, sym)
		}
	}
	return out
}

func repeat(o Observation, n int) []Observation {
	out := make([]Observation, n)
	for i := range out {
		out[i] = o
	}
	return out
}

func TestEngine_InitialState(t *testing.T) {
	e := NewEngine(DefaultConfig())

	if e.State() != StateIdle {
		t.Errorf("expected StateIdle, got %v", e.State())
	}
	if _, locked := e.Locked(); locked {
		t.Error("expected engine not to be locked")
	}
}

func TestEngine_SingleEmissionPerHold(t *testing.T) {
	e := NewEngine(DefaultConfig())

	got := feed(e, repeat(hand("A", 0.9), 3)...)
	if len(got) != 1 || got[0] != "A" {
		t.Fatalf("emitted %v, want [A]", got)
	}
	if e.State() != StateLocked {
		t.Errorf("expected StateLocked, got %v", e.State())
	}
	if sym, _ := e.Locked(); sym != "A" {
		t.Errorf("locked on %q, want A", sym)
	}
	if e.WindowLen() != 0 {
		t.Errorf("window should be cleared on lock, has %d", e.WindowLen())
	}
}

func TestEngine_NoRepeatWhileLocked(t *testing.T) {
	e := NewEngine(DefaultConfig())
	feed(e, repeat(hand("A", 0.9), 3)...)

	if got := feed(e, repeat(hand("A", 0.95), 50)...); len(got) != 0 {
		t.Errorf("emitted %v while locked, want nothing", got)
	}
}

func TestEngine_ReleaseAndRefire(t *testing.T) {
	cfg := DefaultConfig()
	e := NewEngine(cfg)
	feed(e, repeat(hand("A", 0.9), 3)...)

	// changeFrames-1 differing frames do not release.
	if got := feed(e, repeat(hand("B", 0.9), cfg.ChangeFrames-1)...); len(got) != 0 {
		t.Fatalf("emitted %v before release", got)
	}
	if e.State() != StateLocked {
		t.Fatal("released too early")
	}

	// The release frame itself is silent.
	if got := feed(e, hand("B", 0.9)); len(got) != 0 {
		t.Fatalf("release emitted %v", got)
	}
	if e.State() != StateIdle {
		t.Fatalf("expected StateIdle after %d differing frames, got %v", cfg.ChangeFrames, e.State())
	}

	got := feed(e, repeat(hand("B", 0.9), cfg.MinStableFrames)...)
	if len(got) != 1 || got[0] != "B" {
		t.Errorf("emitted %v, want [B]", got)
	}
}

func TestEngine_MatchingFrameResetsChangeCounter(t *testing.T) {
	cfg := DefaultConfig()
	e := NewEngine(cfg)
	feed(e, repeat(hand("A", 0.9), 3)...)

	for i := 0; i < 5; i++ {
		feed(e, repeat(hand("B", 0.9), cfg.ChangeFrames-1)...)
		feed(e, hand("A", 0.9))
	}

	if e.State() != StateLocked {
		t.Error("interleaved matching frames should keep the lock")
	}
}

func TestEngine_SameSymbolAfterRelease(t *testing.T) {
	cfg := DefaultConfig()
	e := NewEngine(cfg)

	first := feed(e, repeat(hand("L", 0.9), 3)...)
	feed(e, repeat(hand("X", 0.9), cfg.ChangeFrames)...)
	second := feed(e, repeat(hand("L", 0.9), 3)...)

	if len(first) != 1 || len(second) != 1 {
		t.Errorf("expected one emission per hold, got %v then %v", first, second)
	}
}

func TestEngine_LowConfidenceNeverEmits(t *testing.T) {
	e := NewEngine(DefaultConfig())

	if got := feed(e, repeat(hand("A", 0.3), 20)...); len(got) != 0 {
		t.Errorf("emitted %v from low-confidence frames", got)
	}
	if e.WindowLen() != 0 {
		t.Errorf("low-confidence frames entered the window: %d", e.WindowLen())
	}

	unpredicted := Observation{Hand: true}
	if got := feed(e, repeat(unpredicted, 20)...); len(got) != 0 {
		t.Errorf("emitted %v without predictions", got)
	}
}

func TestEngine_UnconfidentFramesReleaseLock(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChangeFrames = 100
	cfg.NoConfidenceResetFrames = 5
	e := NewEngine(cfg)
	feed(e, repeat(hand("A", 0.9), 3)...)

	feed(e, repeat(hand("A", 0.2), 4)...)
	if e.State() != StateLocked {
		t.Fatal("released before NoConfidenceResetFrames")
	}
	feed(e, hand("A", 0.2))
	if e.State() != StateIdle {
		t.Errorf("expected StateIdle after %d unconfident frames", cfg.NoConfidenceResetFrames)
	}
}

func TestEngine_HandAbsenceForcesIdle(t *testing.T) {
	cfg := DefaultConfig()
	e := NewEngine(cfg)
	feed(e, repeat(hand("A", 0.9), 3)...)

	feed(e, repeat(noHand, cfg.HandAbsentResetFrames-1)...)
	if e.State() != StateLocked {
		t.Fatal("released before HandAbsentResetFrames")
	}
	feed(e, noHand)
	if e.State() != StateIdle {
		t.Fatal("expected StateIdle after hand absence")
	}

	got := feed(e, repeat(hand("A", 0.9), 3)...)
	if len(got) != 1 {
		t.Errorf("same symbol after hand loss emitted %v, want one event", got)
	}
}

func TestEngine_HandAbsenceClearsWindow(t *testing.T) {
	cfg := DefaultConfig()
	e := NewEngine(cfg)

	feed(e, repeat(hand("A", 0.9), 2)...)
	feed(e, repeat(noHand, cfg.HandAbsentResetFrames)...)
	if e.WindowLen() != 0 {
		t.Fatalf("window not cleared: %d", e.WindowLen())
	}

	// One more frame is not enough once the earlier evidence is gone.
	if got := feed(e, hand("A", 0.9)); len(got) != 0 {
		t.Errorf("emitted %v from stale evidence", got)
	}
}

func TestEngine_BriefHandDropKeepsWindow(t *testing.T) {
	e := NewEngine(DefaultConfig())

	feed(e, repeat(hand("A", 0.9), 2)...)
	feed(e, noHand)
	if got := feed(e, hand("A", 0.9)); len(got) != 1 {
		t.Errorf("emitted %v, want [A] after a single dropped frame", got)
	}
}

func TestEngine_NoisyWindow(t *testing.T) {
	e := NewEngine(DefaultConfig())

	got := feed(e,
		hand("A", 0.9),
		hand("B", 0.8),
		hand("A", 0.9),
		hand("C", 0.7),
		hand("A", 0.85),
	)
	if len(got) != 1 || got[0] != "A" {
		t.Errorf("emitted %v, want [A]", got)
	}
}

func TestEngine_WindowCapDropsOldEvidence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WindowSize = 4
	cfg.MinStableFrames = 3
	e := NewEngine(cfg)

	// A, A, then B, B, B pushes the first A out before B wins.
	got := feed(e, hand("A", 0.9), hand("A", 0.9), hand("B", 0.9), hand("B", 0.9))
	if len(got) != 0 {
		t.Fatalf("emitted %v too early", got)
	}
	got = feed(e, hand("B", 0.9))
	if len(got) != 1 || got[0] != "B" {
		t.Errorf("emitted %v, want [B]", got)
	}
}

func TestEngine_MinStableClampedToWindow(t *testing.T) {
	e := NewEngine(Config{WindowSize: 2, MinStableFrames: 5, MinConfidence: 0.5, ChangeFrames: 2, NoConfidenceResetFrames: 2, HandAbsentResetFrames: 2})

	if got := feed(e, repeat(hand("A", 0.9), 2)...); len(got) != 1 {
		t.Errorf("emitted %v, want one event with MinStableFrames clamped to WindowSize", got)
	}
}

func TestEngine_Reset(t *testing.T) {
	e := NewEngine(DefaultConfig())
	feed(e, repeat(hand("A", 0.9), 3)...)

	e.Reset()
	if e.State() != StateIdle || e.WindowLen() != 0 {
		t.Errorf("Reset left state=%v window=%d", e.State(), e.WindowLen())
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "IDLE"},
		{StateLocked, "LOCKED"},
		{State(9), "UNKNOWN(9)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestWindow_Candidate(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		if _, ok := NewWindow(3).Candidate(); ok {
			t.Error("expected no candidate")
		}
	})

	t.Run("count tie broken by confidence", func(t *testing.T) {
		w := NewWindow(6)
		w.Push(Entry{"A", 0.7})
		w.Push(Entry{"B", 0.9})
		w.Push(Entry{"A", 0.7})
		w.Push(Entry{"B", 0.9})

		c, _ := w.Candidate()
		if c.Label != "B" || c.Count != 2 {
			t.Errorf("Candidate() = %+v, want B x2", c)
		}
	})

	t.Run("full tie keeps first seen", func(t *testing.T) {
		w := NewWindow(6)
		w.Push(Entry{"A", 0.8})
		w.Push(Entry{"B", 0.8})

		c, _ := w.Candidate()
		if c.Label != "A" {
			t.Errorf("Candidate() = %+v, want A", c)
		}
	})

	t.Run("capped", func(t *testing.T) {
		w := NewWindow(2)
		w.Push(Entry{"A", 1})
		w.Push(Entry{"B", 1})
		w.Push(Entry{"C", 1})

		if w.Len() != 2 {
			t.Errorf("Len() = %d, want 2", w.Len())
		}
	})
}

func TestRepeat(t *testing.T) {
	r := NewRepeat(4, 0.5)

	got := feed(r, repeat(hand("A", 0.9), 8)...)
	if len(got) != 2 {
		t.Errorf("held shape emitted %v, want two events over 8 frames", got)
	}

	r.Reset()
	got = feed(r, hand("A", 0.9), hand("A", 0.9), noHand, hand("A", 0.9), hand("A", 0.9))
	if len(got) != 0 {
		t.Errorf("hand loss should reset the run, emitted %v", got)
	}

	if r.State() != StateIdle {
		t.Error("Repeat should always report StateIdle")
	}

	var _ Stabilizer = r
	var _ Stabilizer = NewEngine(DefaultConfig())
}
