package session

import (
	"fmt"
	"time"

	"github.com/ayusman/dactilo/internal/detector"
	"github.com/ayusman/dactilo/internal/gesture"
	"github.com/ayusman/dactilo/internal/shortcut"
	"github.com/ayusman/dactilo/internal/stabilize"
	"github.com/ayusman/dactilo/internal/word"
)

// Strategy selects the letter stabilizer.
type Strategy string

// Stabilization strategies.
const (
	StrategyWindow Strategy = "window" // Window + lock state machine
	StrategyRepeat Strategy = "repeat" // N identical predictions, then emit
)

// Config holds every recognition parameter of a session.
type Config struct {
	K            int // Neighbours consulted by the classifier
	Strategy     Strategy
	Stabilize    stabilize.Config
	RepeatFrames int // Used by StrategyRepeat
	Word         word.Config
	Shortcut     shortcut.Config

	// DatasetKey is the store key the dataset is saved under.
	DatasetKey string
	// RetryDelay is how long the frame loop waits after a not-ready frame or
	// a source error before asking again.
	RetryDelay time.Duration
}

// DefaultConfig returns the default recognition configuration.
func DefaultConfig() Config {
	return Config{
		K:            gesture.DefaultK,
		Strategy:     StrategyWindow,
		Stabilize:    stabilize.DefaultConfig(),
		RepeatFrames: 5,
		Word:         word.DefaultConfig(),
		Shortcut:     shortcut.DefaultConfig(),
		DatasetKey:   "fs_knn_v1",
		RetryDelay:   30 * time.Millisecond,
	}
}

// Validate reports configuration values the pipeline cannot run with.
func (c Config) Validate() error {
	switch {
	case c.K < 1:
		return fmt.Errorf("k must be positive, got %d", c.K)
	case c.Stabilize.WindowSize < 1:
		return fmt.Errorf("window size must be positive, got %d", c.Stabilize.WindowSize)
	case c.Stabilize.MinStableFrames < 1 || c.Stabilize.MinStableFrames > c.Stabilize.WindowSize:
		return fmt.Errorf("min stable frames must be in [1, %d], got %d", c.Stabilize.WindowSize, c.Stabilize.MinStableFrames)
	case c.Stabilize.MinConfidence < 0 || c.Stabilize.MinConfidence > 1:
		return fmt.Errorf("min confidence must be in [0, 1], got %v", c.Stabilize.MinConfidence)
	case c.Stabilize.ChangeFrames < 1:
		return fmt.Errorf("change frames must be positive, got %d", c.Stabilize.ChangeFrames)
	case c.Stabilize.NoConfidenceResetFrames < 1:
		return fmt.Errorf("no-confidence reset frames must be positive, got %d", c.Stabilize.NoConfidenceResetFrames)
	case c.Stabilize.HandAbsentResetFrames < 1:
		return fmt.Errorf("hand-absent reset frames must be positive, got %d", c.Stabilize.HandAbsentResetFrames)
	case c.Strategy != StrategyWindow && c.Strategy != StrategyRepeat:
		return fmt.Errorf("unknown stabilization strategy %q", c.Strategy)
	case c.Strategy == StrategyRepeat && c.RepeatFrames < 1:
		return fmt.Errorf("repeat frames must be positive, got %d", c.RepeatFrames)
	case c.Shortcut.StableFrames < 1 || c.Shortcut.ReleaseFrames < 1:
		return fmt.Errorf("shortcut stable and release frames must be positive")
	case c.Word.IdleGap <= 0:
		return fmt.Errorf("word idle gap must be positive, got %v", c.Word.IdleGap)
	case c.Word.Cooldown < 0 || c.Shortcut.Cooldown < 0:
		return fmt.Errorf("cooldowns must not be negative")
	case c.DatasetKey == "":
		return fmt.Errorf("dataset key is required")
	}
	return nil
}

// Outcome classifies how a frame was handled.
type Outcome string

// Frame outcomes.
const (
	OutcomeHand     Outcome = "hand"
	OutcomeNoHand   Outcome = "no_hand"
	OutcomeNotReady Outcome = "not_ready"
	OutcomeInvalid  Outcome = "invalid"
)

// Input is one frame as seen by the pipeline.
type Input struct {
	Now   time.Time
	Ready bool                    // The frame source had a usable frame
	Hand  *detector.HandLandmarks // nil when no hand was detected
}

// Step is the result of processing one frame.
type Step struct {
	Outcome    Outcome
	Err        error // Set for OutcomeInvalid
	Prediction gesture.Prediction
	Predicted  bool
	Confident  bool
	Suppressed string // Word dropped by duplicate suppression, if any
	Events     []Event
}

// Pipeline owns the per-run recognition state and advances it one frame at a
// time. It is not safe for concurrent use; a session drives it from a single
// goroutine.
type Pipeline struct {
	cfg        Config
	classifier gesture.Classifier
	stabilizer stabilize.Stabilizer
	segmenter  *word.Segmenter
	shortcuts  *shortcut.Detector
}

// NewPipeline creates a pipeline reading predictions from classifier.
func NewPipeline(cfg Config, classifier gesture.Classifier) *Pipeline {
	var stab stabilize.Stabilizer
	if cfg.Strategy == StrategyRepeat {
		stab = stabilize.NewRepeat(cfg.RepeatFrames, cfg.Stabilize.MinConfidence)
	} else {
		stab = stabilize.NewEngine(cfg.Stabilize)
	}

	return &Pipeline{
		cfg:        cfg,
		classifier: classifier,
		stabilizer: stab,
		segmenter:  word.NewSegmenter(cfg.Word),
		shortcuts:  shortcut.NewDetector(cfg.Shortcut),
	}
}

// Reset clears all ephemeral state. The classifier's dataset is untouched.
func (p *Pipeline) Reset(now time.Time) {
	p.stabilizer.Reset()
	p.segmenter.Reset(now)
	p.shortcuts.Reset()
}

// State returns the letter stabilizer's state.
func (p *Pipeline) State() stabilize.State {
	return p.stabilizer.State()
}

// Buffer returns the word spelled so far.
func (p *Pipeline) Buffer() string {
	return p.segmenter.Buffer()
}

// Process advances every recognizer by one frame and returns the events it
// produced, ordered letter, word, shortcut.
//
// Not-ready frames and malformed frames change no state. Frames without a
// hand feed the hand-absence counters and may flush the word buffer.
func (p *Pipeline) Process(in Input) Step {
	if !in.Ready {
		return Step{Outcome: OutcomeNotReady}
	}

	if in.Hand == nil {
		return p.processAbsent(in.Now)
	}

	vec, err := in.Hand.Features()
	if err != nil {
		return Step{Outcome: OutcomeInvalid, Err: err}
	}

	step := Step{Outcome: OutcomeHand}
	p.segmenter.HandSeen(in.Now)

	pred, ok := p.classifier.Predict(vec, p.cfg.K)
	step.Prediction, step.Predicted = pred, ok
	step.Confident = ok && pred.Confidence >= p.cfg.Stabilize.MinConfidence

	symbol, emitted := p.stabilizer.Observe(stabilize.Observation{
		Hand:       true,
		Predicted:  ok,
		Label:      pred.Label,
		Confidence: pred.Confidence,
	})
	if emitted {
		p.segmenter.Letter(symbol)
		step.Events = append(step.Events, Event{Kind: KindLetter, Text: symbol, At: in.Now})
	}

	label, matched := shortcut.Classify(in.Hand, p.cfg.Shortcut.Thresholds)
	if sc, fired := p.shortcuts.Observe(label, matched, in.Now); fired {
		step.Events = append(step.Events, Event{Kind: KindShortcut, Text: sc, At: in.Now})
	}

	return step
}

func (p *Pipeline) processAbsent(now time.Time) Step {
	step := Step{Outcome: OutcomeNoHand}

	p.stabilizer.Observe(stabilize.Observation{Hand: false})

	if f, ok := p.segmenter.HandAbsent(now); ok {
		if f.Suppressed {
			step.Suppressed = f.Word
		} else {
			step.Events = append(step.Events, Event{Kind: KindWord, Text: f.Word, At: now})
		}
	}

	p.shortcuts.Observe("", false, now)
	return step
}
