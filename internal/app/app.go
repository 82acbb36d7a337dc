// Package app wires the camera, the recognition session and the outputs
// (history, plugins, Kafka and live listeners) into one running service.
package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ayusman/dactilo/internal/capture"
	"github.com/ayusman/dactilo/internal/config"
	"github.com/ayusman/dactilo/internal/detector"
	"github.com/ayusman/dactilo/internal/events"
	"github.com/ayusman/dactilo/internal/logging"
	"github.com/ayusman/dactilo/internal/metrics"
	"github.com/ayusman/dactilo/internal/plugin"
	"github.com/ayusman/dactilo/internal/session"
	"github.com/ayusman/dactilo/internal/store"
)

// recordQueueSize bounds the events waiting for delivery.
const recordQueueSize = 256

// Options configures an App. Zero-valued fields get production defaults.
type Options struct {
	Config    config.Config
	Store     *store.Store // Optional; without it the dataset lives in memory
	Metrics   *metrics.Metrics
	Camera    capture.Camera
	Detector  detector.Detector
	Publisher Publisher
}

// App is the main application that runs recognition on the camera and routes
// the results.
type App struct {
	cfg        config.Config
	store      *store.Store
	session    *session.Session
	camera     capture.Camera
	motion     *capture.MotionDetector
	throttle   *capture.Throttle
	detector   detector.Detector
	plugins    *plugin.Manager
	dispatcher *plugin.Dispatcher
	publisher  Publisher
	metrics    *metrics.Metrics
	records    chan Record
	log        zerolog.Logger

	mu        sync.RWMutex
	ctx       context.Context
	sessionID string
	listeners []Listener
}

// New creates an App. The stored dataset is loaded and plugins are
// discovered; failures of either are logged and do not prevent startup.
func New(opts Options) *App {
	cfg := opts.Config
	a := &App{
		cfg:       cfg,
		store:     opts.Store,
		camera:    opts.Camera,
		detector:  opts.Detector,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		throttle:  capture.NewThrottle(cfg.Camera.IdleFPS, cfg.Camera.ActiveFPS, cfg.Camera.IdleTimeout),
		records:   make(chan Record, recordQueueSize),
		ctx:       context.Background(),
		log:       logging.WithComponent("app"),
	}

	if a.camera == nil {
		a.camera = capture.NewCamera(cfg.Camera.Device)
	}
	if cfg.Camera.MotionThreshold > 0 {
		a.motion = capture.NewMotionDetector(cfg.Camera.MotionThreshold)
	}

	if a.detector == nil {
		if mp, err := detector.NewMediaPipeDetector(cfg.Detector); err == nil {
			a.detector = mp
			a.log.Info().Msg("Using MediaPipe hand detection")
		} else {
			a.log.Warn().Err(err).Msg("MediaPipe not available, no hands will be detected")
			a.detector = detector.NewMockDetector()
		}
	}

	if a.publisher == nil {
		a.publisher = events.New(cfg.Kafka, a.metrics)
	}

	var dataset session.Store = session.NewMemoryStore()
	if a.store != nil {
		dataset = a.store.Settings()
	}
	a.session = session.New(cfg.Session, dataset)
	a.session.SetMetrics(a.metrics)
	a.session.Subscribe(a.enqueue)

	if err := a.session.Load(); err != nil {
		a.log.Warn().Err(err).Msg("Failed to load dataset, starting empty")
	}

	a.plugins = plugin.NewManager(cfg.Plugins.Dir)
	if err := a.plugins.Discover(); err != nil {
		a.log.Warn().Err(err).Str("dir", cfg.Plugins.Dir).Msg("Failed to discover plugins")
	}
	a.dispatcher = plugin.NewDispatcher(a.plugins, plugin.NewExecutor(cfg.Plugins.Timeout), cfg.Plugins.QueueSize, 1, a.metrics)

	return a
}

// Run delivers events and runs plugin jobs until ctx is cancelled, then
// stops recognition. Sessions started while Run is active are bound to ctx.
func (a *App) Run(ctx context.Context) error {
	a.mu.Lock()
	a.ctx = ctx
	a.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.dispatcher.Run(ctx) })
	g.Go(func() error { return a.deliverLoop(ctx) })
	g.Go(func() error {
		<-ctx.Done()
		a.Stop()
		return nil
	})
	return g.Wait()
}

// Start opens the camera and begins recognition under a new session id.
func (a *App) Start() error {
	if a.session.Running() {
		return session.ErrAlreadyRunning
	}

	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	a.throttle.Reset()
	a.camera.SetFPS(a.throttle.FPS())
	if a.motion != nil {
		a.motion.Reset()
	}

	id := uuid.New().String()
	log := logging.WithSession("app", id)
	src := &cameraSource{
		camera:   a.camera,
		detector: a.detector,
		throttle: a.throttle,
		log:      log,
	}
	if a.motion != nil {
		src.motion = a.motion
	}

	a.mu.Lock()
	a.sessionID = id
	ctx := a.ctx
	a.mu.Unlock()

	if err := a.session.Start(ctx, src); err != nil {
		a.camera.Close()
		return err
	}

	log.Info().Int("device", a.cfg.Camera.Device).Msg("Recognition session started")
	return nil
}

// Stop ends recognition and releases the camera. Stop is idempotent.
func (a *App) Stop() {
	wasRunning := a.session.Running()
	a.session.Stop()

	if err := a.camera.Close(); err != nil {
		a.log.Error().Err(err).Msg("Error closing camera")
	}
	if wasRunning {
		a.log.Info().Str("sessionId", a.SessionID()).Msg("Recognition session stopped")
	}
}

// Toggle starts recognition when stopped and stops it when running. It
// reports whether recognition is running afterwards.
func (a *App) Toggle() (bool, error) {
	if a.session.Running() {
		a.Stop()
		return false, nil
	}
	if err := a.Start(); err != nil {
		return false, err
	}
	return true, nil
}

// Close stops recognition and releases the detector, motion detector and
// publisher.
func (a *App) Close() error {
	a.Stop()

	if a.motion != nil {
		a.motion.Close()
	}

	var firstErr error
	if err := a.detector.Close(); err != nil {
		firstErr = fmt.Errorf("close detector: %w", err)
	}
	if err := a.publisher.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close publisher: %w", err)
	}
	return firstErr
}

// SessionID returns the id of the current or most recent recognition run.
func (a *App) SessionID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sessionID
}

// Session returns the recognition session.
func (a *App) Session() *session.Session {
	return a.session
}

// Store returns the database, which may be nil.
func (a *App) Store() *store.Store {
	return a.store
}

// Plugins returns the plugin manager.
func (a *App) Plugins() *plugin.Manager {
	return a.plugins
}

// Dispatcher returns the plugin job dispatcher.
func (a *App) Dispatcher() *plugin.Dispatcher {
	return a.dispatcher
}
