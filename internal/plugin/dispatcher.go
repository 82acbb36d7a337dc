package plugin

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ayusman/dactilo/internal/logging"
	"github.com/ayusman/dactilo/internal/metrics"
)

// ErrUnknownAction is returned when a job names an action the plugin's
// manifest does not declare.
var ErrUnknownAction = errors.New("action not declared by plugin")

// Resolver looks plugins up by name.
type Resolver interface {
	Get(name string) (*Plugin, error)
}

// Runner executes a single plugin request.
type Runner interface {
	Execute(ctx context.Context, plugin *Plugin, req *Request) (*Response, error)
}

// Job is one plugin invocation waiting in the dispatch queue.
type Job struct {
	Plugin  string
	Request Request
}

// Dispatcher runs plugin jobs off the recognition path. Jobs are queued
// without blocking and executed by a fixed set of workers.
type Dispatcher struct {
	plugins Resolver
	runner  Runner
	jobs    chan Job
	workers int
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewDispatcher creates a Dispatcher with a queue of queueSize jobs.
func NewDispatcher(plugins Resolver, runner Runner, queueSize, workers int, m *metrics.Metrics) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		plugins: plugins,
		runner:  runner,
		jobs:    make(chan Job, queueSize),
		workers: workers,
		metrics: m,
		logger:  logging.WithComponent("dispatcher"),
	}
}

// Enqueue queues job and reports whether it was accepted. A full queue
// drops the job.
func (d *Dispatcher) Enqueue(job Job) bool {
	select {
	case d.jobs <- job:
		return true
	default:
		d.metrics.RecordDropped("plugin")
		d.logger.Warn().
			Str("plugin", job.Plugin).
			Str("action", job.Request.Action).
			Msg("plugin queue full, dropping job")
		return false
	}
}

// Run executes queued jobs until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < d.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case job := <-d.jobs:
					if err := d.Do(ctx, job); err != nil {
						d.logger.Error().Err(err).
							Str("plugin", job.Plugin).
							Str("action", job.Request.Action).
							Str("text", job.Request.Text).
							Msg("plugin job failed")
					}
				}
			}
		})
	}
	return g.Wait()
}

// Do runs a single job synchronously.
func (d *Dispatcher) Do(ctx context.Context, job Job) error {
	err := d.do(ctx, job)
	d.metrics.RecordPluginRun(job.Plugin, err)
	return err
}

func (d *Dispatcher) do(ctx context.Context, job Job) error {
	p, err := d.plugins.Get(job.Plugin)
	if err != nil {
		return fmt.Errorf("%s: %w", job.Plugin, err)
	}
	if !p.Manifest.HasAction(job.Request.Action) {
		return fmt.Errorf("%s/%s: %w", job.Plugin, job.Request.Action, ErrUnknownAction)
	}

	resp, err := d.runner.Execute(ctx, p, &job.Request)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%s/%s: %s", job.Plugin, job.Request.Action, resp.Error)
	}

	d.logger.Debug().
		Str("plugin", job.Plugin).
		Str("action", job.Request.Action).
		Str("text", job.Request.Text).
		Msg("plugin job done")
	return nil
}
