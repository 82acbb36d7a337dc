// Package stabilize turns the classifier's noisy per-frame predictions into
// discrete letter events.
package stabilize

import "fmt"

// Observation is what the stabilizer sees for one frame.
type Observation struct {
	Hand       bool    // A hand was present in the frame
	Predicted  bool    // The classifier produced a label
	Label      string  // Predicted label, valid when Predicted
	Confidence float64 // Prediction confidence, valid when Predicted
}

// Stabilizer consumes one observation per frame and reports at most one
// emitted symbol.
type Stabilizer interface {
	Observe(obs Observation) (symbol string, emitted bool)
	Reset()
	State() State
}

// State is the recognition state of the window engine.
type State int

const (
	// StateIdle - searching for the next stable symbol.
	StateIdle State = iota
	// StateLocked - a symbol was emitted; waiting for a visible change or hand loss.
	StateLocked
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateLocked:
		return "LOCKED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// Config holds the window engine's tuning parameters.
type Config struct {
	WindowSize              int     // Predictions kept while searching
	MinStableFrames         int     // Occurrences of a label needed to lock (<= WindowSize)
	MinConfidence           float64 // Per-frame and average confidence threshold
	ChangeFrames            int     // Consecutive non-matching frames that release a lock
	NoConfidenceResetFrames int     // Consecutive unconfident frames that release a lock
	HandAbsentResetFrames   int     // Consecutive hand-absent frames that force Idle
}

// DefaultConfig returns the default window engine configuration.
func DefaultConfig() Config {
	return Config{
		WindowSize:              6,
		MinStableFrames:         3,
		MinConfidence:           0.6,
		ChangeFrames:            4,
		NoConfidenceResetFrames: 8,
		HandAbsentResetFrames:   5,
	}
}

// Engine is the window + lock stabilizer.
//
// State transitions:
//
//	IDLE ──(stable candidate in window)──→ LOCKED(symbol)   emits symbol
//	LOCKED ──(ChangeFrames differing)────→ IDLE             silent
//	LOCKED ──(NoConfidenceResetFrames)───→ IDLE             silent
//	any ─────(HandAbsentResetFrames)─────→ IDLE             silent
//
// Rules:
//   - Only the IDLE path emits, so each sustained hold yields one event
//   - A repeated symbol needs a visible change or a release before it can fire again
//   - Low confidence never advances IDLE, so noise degrades to silence
type Engine struct {
	cfg         Config
	state       State
	symbol      string
	window      *Window
	differing   int
	unconfident int
	absent      int
}

// NewEngine creates an engine in the Idle state.
func NewEngine(cfg Config) *Engine {
	if cfg.MinStableFrames > cfg.WindowSize {
		cfg.MinStableFrames = cfg.WindowSize
	}
	return &Engine{
		cfg:    cfg,
		state:  StateIdle,
		window: NewWindow(cfg.WindowSize),
	}
}

// State returns the current state.
func (e *Engine) State() State {
	return e.state
}

// Locked returns the symbol the engine is locked on, if any.
func (e *Engine) Locked() (string, bool) {
	return e.symbol, e.state == StateLocked
}

// WindowLen returns how many predictions the search window holds.
func (e *Engine) WindowLen() int {
	return e.window.Len()
}

// Reset returns the engine to Idle with an empty window.
func (e *Engine) Reset() {
	e.release()
	e.absent = 0
}

// Observe advances the state machine by one frame.
func (e *Engine) Observe(obs Observation) (string, bool) {
	if !obs.Hand {
		e.absent++
		if e.absent >= e.cfg.HandAbsentResetFrames {
			e.release()
		}
		return "", false
	}
	e.absent = 0

	confident := obs.Predicted && obs.Confidence >= e.cfg.MinConfidence

	switch e.state {
	case StateIdle:
		if !confident {
			return "", false
		}
		e.window.Push(Entry{Label: obs.Label, Confidence: obs.Confidence})

		c, ok := e.window.Candidate()
		if !ok || c.Count < e.cfg.MinStableFrames || c.AvgConfidence < e.cfg.MinConfidence {
			return "", false
		}

		e.state = StateLocked
		e.symbol = c.Label
		e.window.Clear()
		e.differing = 0
		e.unconfident = 0
		return c.Label, true

	case StateLocked:
		if confident && obs.Label == e.symbol {
			e.differing = 0
			e.unconfident = 0
			return "", false
		}

		e.differing++
		if confident {
			e.unconfident = 0
		} else {
			e.unconfident++
		}

		if e.differing >= e.cfg.ChangeFrames || e.unconfident >= e.cfg.NoConfidenceResetFrames {
			e.release()
		}
	}

	return "", false
}

// release moves to Idle without emitting.
func (e *Engine) release() {
	e.state = StateIdle
	e.symbol = ""
	e.window.Clear()
	e.differing = 0
	e.unconfident = 0
}
