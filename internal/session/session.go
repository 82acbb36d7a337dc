// Package session drives the fingerspelling recognition pipeline for one
// frame source and owns the training dataset across runs.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayusman/dactilo/internal/detector"
	"github.com/ayusman/dactilo/internal/gesture"
	"github.com/ayusman/dactilo/internal/logging"
	"github.com/ayusman/dactilo/internal/metrics"
	"github.com/ayusman/dactilo/internal/stabilize"
)

// Lifecycle and persistence errors.
var (
	ErrAlreadyRunning = errors.New("session already running")
	ErrNotRunning     = errors.New("session not running")
	ErrInvalidSource  = errors.New("invalid frame source")
	ErrStore          = errors.New("dataset store error")
	ErrNoStore        = errors.New("no dataset store configured")
)

// Frame is what a frame source yields for one video frame.
type Frame struct {
	Ready bool                    // The video frame had usable dimensions
	Hand  *detector.HandLandmarks // First detected hand, nil when none
}

// FrameSource produces frames for the session. Next blocks until the next
// frame is available or ctx is cancelled.
type FrameSource interface {
	Next(ctx context.Context) (Frame, error)
}

// FrameSourceFunc adapts a function to FrameSource.
type FrameSourceFunc func(ctx context.Context) (Frame, error)

// Next implements FrameSource.
func (f FrameSourceFunc) Next(ctx context.Context) (Frame, error) {
	return f(ctx)
}

// Status is a snapshot of the session for status displays.
type Status struct {
	Running   bool              `json:"running"`
	State     string            `json:"state"`
	Buffer    string            `json:"buffer"`
	Samples   int               `json:"samples"`
	Labels    []string          `json:"labels"`
	Recording *gesture.Progress `json:"recording,omitempty"`
}

// Session owns the dataset and, while running, one recognition pipeline fed
// by a frame source. Callbacks run synchronously on the frame goroutine in
// frame order; anything slow should be queued by the subscriber.
type Session struct {
	cfg        Config
	store      Store
	classifier gesture.Classifier
	pipeline   *Pipeline
	clock      func() time.Time
	metrics    *metrics.Metrics
	log        zerolog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	state   stabilize.State
	buffer  string

	dispatching atomic.Bool

	subMu       sync.RWMutex
	onLetter    []func(string)
	onWord      []func(string)
	onShortcut  []func(string)
	subscribers []func(Event)

	recMu     sync.Mutex
	recording *gesture.Recording
}

// New creates a stopped session with an empty dataset. store may be nil, in
// which case Save and Load return ErrNoStore.
func New(cfg Config, store Store) *Session {
	classifier := gesture.NewKNN()
	return &Session{
		cfg:        cfg,
		store:      store,
		classifier: classifier,
		pipeline:   NewPipeline(cfg, classifier),
		clock:      time.Now,
		log:        logging.WithComponent("session"),
	}
}

// SetClock replaces the time source. Call before Start.
func (s *Session) SetClock(clock func() time.Time) {
	s.clock = clock
}

// SetMetrics attaches Prometheus metrics. Call before Start.
func (s *Session) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
	m.SetDatasetSize(s.classifier.Len())
}

// OnLetter registers a callback for stabilized letters.
func (s *Session) OnLetter(fn func(symbol string)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.onLetter = append(s.onLetter, fn)
}

// OnWord registers a callback for completed words.
func (s *Session) OnWord(fn func(word string)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.onWord = append(s.onWord, fn)
}

// OnShortcut registers a callback for shortcut gestures.
func (s *Session) OnShortcut(fn func(label string)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.onShortcut = append(s.onShortcut, fn)
}

// Subscribe registers a callback that receives every event after the
// kind-specific callbacks have run.
func (s *Session) Subscribe(fn func(Event)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Start resets all ephemeral recognition state and begins pulling frames from
// src. The dataset is kept. Returns ErrAlreadyRunning if the session is
// running, in which case nothing changes. If a stopped loop is still inside a
// callback, the new run reads its first frame after that loop has exited.
func (s *Session) Start(ctx context.Context, src FrameSource) error {
	if src == nil {
		return ErrInvalidSource
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	s.state = stabilize.StateIdle
	s.buffer = ""

	loopCtx, cancel := context.WithCancel(ctx)
	prev, done := s.done, make(chan struct{})
	s.running = true
	s.cancel = cancel
	s.done = done

	s.metrics.RecordSessionStart()
	go s.run(loopCtx, src, prev, done)

	s.log.Info().Int("samples", s.classifier.Len()).Msg("Recognition started")
	return nil
}

// Stop cancels the pending frame request and any recording in progress, then
// waits for the frame loop to exit. While a callback is running Stop returns
// without waiting: the loop delivers no further events and exits once the
// callback returns, and a following Start reads no frame before that. Stop is
// idempotent.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	s.CancelRecording()
	if !s.dispatching.Load() {
		<-done
	}
	s.log.Info().Msg("Recognition stopped")
}

// Running reports whether the frame loop is active.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	st := Status{
		Running: s.running,
		State:   s.state.String(),
		Buffer:  s.buffer,
	}
	s.mu.Unlock()

	st.Samples = s.classifier.Len()
	st.Labels = s.classifier.Labels()
	if p, ok := s.Recording(); ok {
		st.Recording = &p
	}
	return st
}

// run is the frame loop. prev is the previous run's loop, which may still be
// inside a callback; frames are read only after it has exited.
func (s *Session) run(ctx context.Context, src FrameSource, prev, done chan struct{}) {
	defer func() {
		s.mu.Lock()
		if s.done == done {
			s.running = false
		}
		s.mu.Unlock()
		s.metrics.RecordSessionEnd()
		close(done)
	}()

	if prev != nil {
		// done must not close before prev, so runs finish in start order.
		<-prev
		if ctx.Err() != nil {
			return
		}
	}

	s.mu.Lock()
	s.pipeline.Reset(s.clock())
	s.state = s.pipeline.State()
	s.buffer = ""
	s.mu.Unlock()

	for ctx.Err() == nil {
		frame, err := src.Next(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.metrics.RecordFrameError()
			s.log.Debug().Err(err).Msg("Frame source error")
			s.backoff(ctx)
			continue
		}

		s.handle(ctx, frame)
		if !frame.Ready {
			s.backoff(ctx)
		}
	}
}

func (s *Session) backoff(ctx context.Context) {
	if s.cfg.RetryDelay <= 0 {
		return
	}
	t := time.NewTimer(s.cfg.RetryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// handle runs one frame through the pipeline and dispatches its events.
func (s *Session) handle(ctx context.Context, frame Frame) {
	start := time.Now()

	if frame.Ready && frame.Hand != nil && s.takeSample(frame.Hand) {
		return
	}

	step := s.pipeline.Process(Input{Now: s.clock(), Ready: frame.Ready, Hand: frame.Hand})
	s.metrics.RecordFrame(string(step.Outcome), time.Since(start).Seconds())

	switch step.Outcome {
	case OutcomeInvalid:
		s.log.Debug().Err(step.Err).Msg("Skipping invalid frame")
		return
	case OutcomeNotReady:
		return
	case OutcomeHand:
		if step.Predicted {
			s.metrics.RecordPrediction(step.Confident)
		}
	}

	if step.Suppressed != "" {
		s.metrics.RecordWord(true)
		s.log.Debug().Str("word", step.Suppressed).Msg("Duplicate word suppressed")
	}

	s.mu.Lock()
	s.state = s.pipeline.State()
	s.buffer = s.pipeline.Buffer()
	s.mu.Unlock()

	s.dispatch(ctx, step.Events)
}

// dispatch delivers events in order. Once ctx is cancelled, by a Stop from
// a callback or elsewhere, the remaining events are dropped.
func (s *Session) dispatch(ctx context.Context, events []Event) {
	if len(events) == 0 {
		return
	}

	s.subMu.RLock()
	onLetter, onWord, onShortcut := s.onLetter, s.onWord, s.onShortcut
	subscribers := s.subscribers
	s.subMu.RUnlock()

	s.dispatching.Store(true)
	defer s.dispatching.Store(false)

	for _, ev := range events {
		if ctx.Err() != nil {
			return
		}

		var fns []func(string)
		switch ev.Kind {
		case KindLetter:
			s.metrics.RecordLetter()
			fns = onLetter
		case KindWord:
			s.metrics.RecordWord(false)
			fns = onWord
		case KindShortcut:
			s.metrics.RecordShortcut(ev.Text)
			fns = onShortcut
		}
		s.log.Debug().Str("kind", string(ev.Kind)).Str("text", ev.Text).Msg("Event")

		for _, fn := range fns {
			s.call(func() { fn(ev.Text) })
		}
		for _, fn := range subscribers {
			s.call(func() { fn(ev) })
		}
	}
}

// call runs a callback, logging a panic instead of ending the frame loop.
func (s *Session) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("Event callback panicked")
		}
	}()
	fn()
}

// AddExample appends one training sample for label built from frame.
func (s *Session) AddExample(label string, frame *detector.HandLandmarks) error {
	label = gesture.NormalizeLabel(label)
	if label == "" {
		return gesture.ErrEmptyLabel
	}

	vec, err := frame.Features()
	if err != nil {
		return err
	}

	s.classifier.AddExample(label, vec)
	s.metrics.SetDatasetSize(s.classifier.Len())
	return nil
}

// Record captures the next n hand frames of the running session as samples
// for label. Frames consumed by a recording are not used for recognition.
// A new request replaces any recording in progress.
func (s *Session) Record(label string, n int) (gesture.Progress, error) {
	if !s.Running() {
		return gesture.Progress{}, ErrNotRunning
	}

	rec, err := gesture.NewRecording(label, n)
	if err != nil {
		return gesture.Progress{}, err
	}

	s.recMu.Lock()
	if s.recording != nil {
		s.recording.Cancel()
	}
	s.recording = rec
	s.recMu.Unlock()

	p := rec.Progress()
	s.log.Info().Str("label", p.Label).Int("samples", p.Target).Msg("Recording samples")
	return p, nil
}

// Recording returns the progress of the active recording.
func (s *Session) Recording() (gesture.Progress, bool) {
	s.recMu.Lock()
	defer s.recMu.Unlock()
	if s.recording == nil {
		return gesture.Progress{}, false
	}
	return s.recording.Progress(), true
}

// CancelRecording stops the active recording, keeping samples already taken.
func (s *Session) CancelRecording() {
	s.recMu.Lock()
	defer s.recMu.Unlock()
	if s.recording != nil {
		s.recording.Cancel()
		s.recording = nil
	}
}

// takeSample feeds hand to the active recording. It reports whether the frame
// was consumed.
func (s *Session) takeSample(hand *detector.HandLandmarks) bool {
	s.recMu.Lock()
	defer s.recMu.Unlock()

	if s.recording == nil {
		return false
	}

	vec, err := hand.Features()
	if err != nil {
		return true
	}

	if s.recording.Take(s.classifier, vec) {
		p := s.recording.Progress()
		s.recording = nil
		s.log.Info().Str("label", p.Label).Int("taken", p.Taken).Msg("Recording complete")
	}
	s.metrics.SetDatasetSize(s.classifier.Len())
	return true
}

// Labels returns the distinct labels in the dataset, sorted.
func (s *Session) Labels() []string {
	return s.classifier.Labels()
}

// Samples returns a copy of the dataset.
func (s *Session) Samples() []gesture.Sample {
	return s.classifier.Samples()
}

// Replace swaps the in-memory dataset for samples. Samples without a label or
// vector are dropped. Call Save to persist the result.
func (s *Session) Replace(samples []gesture.Sample) {
	s.classifier.Replace(samples)
	s.metrics.SetDatasetSize(s.classifier.Len())
}

// Counts returns the number of samples per label.
func (s *Session) Counts() map[string]int {
	return s.classifier.Counts()
}

// Predict classifies a single frame against the dataset without touching the
// recognition state.
func (s *Session) Predict(frame *detector.HandLandmarks) (gesture.Prediction, bool, error) {
	vec, err := frame.Features()
	if err != nil {
		return gesture.Prediction{}, false, err
	}
	p, ok := s.classifier.Predict(vec, s.cfg.K)
	return p, ok, nil
}

// Save writes the dataset to the store as a JSON list of samples.
func (s *Session) Save() error {
	err := s.save()
	s.metrics.RecordStoreOp("save", err)
	if err != nil {
		s.log.Error().Err(err).Str("key", s.cfg.DatasetKey).Msg("Failed to save dataset")
		return err
	}
	s.log.Info().Int("samples", s.classifier.Len()).Msg("Dataset saved")
	return nil
}

func (s *Session) save() error {
	if s.store == nil {
		return ErrNoStore
	}

	samples := s.classifier.Samples()
	if samples == nil {
		samples = []gesture.Sample{}
	}
	data, err := json.Marshal(samples)
	if err != nil {
		return fmt.Errorf("%w: encode dataset: %w", ErrStore, err)
	}

	if err := s.store.Set(s.cfg.DatasetKey, string(data)); err != nil {
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
	return nil
}

// Load replaces the dataset with the stored one. A missing key is not an
// error and leaves the dataset unchanged; so does any failure.
func (s *Session) Load() error {
	n, err := s.load()
	s.metrics.RecordStoreOp("load", err)
	if err != nil {
		s.log.Error().Err(err).Str("key", s.cfg.DatasetKey).Msg("Failed to load dataset")
		return err
	}
	if n >= 0 {
		s.metrics.SetDatasetSize(n)
		s.log.Info().Int("samples", n).Msg("Dataset loaded")
	}
	return nil
}

// load returns the number of samples loaded, or -1 if nothing was stored.
func (s *Session) load() (int, error) {
	if s.store == nil {
		return -1, ErrNoStore
	}

	raw, found, err := s.store.Get(s.cfg.DatasetKey)
	if err != nil {
		return -1, fmt.Errorf("%w: %w", ErrStore, err)
	}
	if !found {
		return -1, nil
	}

	var samples []gesture.Sample
	if err := json.Unmarshal([]byte(raw), &samples); err != nil {
		return -1, fmt.Errorf("%w: decode dataset: %w", ErrStore, err)
	}

	s.classifier.Replace(samples)
	return s.classifier.Len(), nil
}

// Reset clears the dataset and deletes it from the store. The in-memory
// dataset is cleared even when the store fails.
func (s *Session) Reset() error {
	s.CancelRecording()
	s.classifier.Reset()
	s.metrics.SetDatasetSize(0)

	if s.store == nil {
		return nil
	}

	err := s.store.Delete(s.cfg.DatasetKey)
	s.metrics.RecordStoreOp("reset", err)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrStore, err)
		s.log.Error().Err(err).Msg("Failed to delete stored dataset")
		return err
	}
	s.log.Info().Msg("Dataset reset")
	return nil
}
