package tester

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"sse-perftool/bench/internal/provider"
)

// RunConfig is the load shape the orchestrator executes.
type RunConfig struct {
	Threads  int
	RampUp   time.Duration // window over which worker starts are staggered
	Duration time.Duration // 0 means single-shot: one request per worker
	Verbose  bool          // print the periodic status table
}

// Runner owns the lifecycle of one test run: worker ramp-up, the stop
// signal, the duration timer and the background aggregator.
type Runner struct {
	cfg       RunConfig
	client    *SSEClient
	queries   *provider.RoundRobin
	apiKeys   *provider.RoundRobin // nil when a static key is used
	staticKey string
	log       *zap.Logger

	registry *Registry

	results   []*Result
	resultsMu sync.Mutex

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRunner wires a run together. apiKeys may be nil, in which case
// staticKey is used for every request.
func NewRunner(cfg RunConfig, client *SSEClient, queries, apiKeys *provider.RoundRobin, staticKey string, log *zap.Logger) *Runner {
	if cfg.Threads < 1 {
		cfg.Threads = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		cfg:       cfg,
		client:    client,
		queries:   queries,
		apiKeys:   apiKeys,
		staticKey: staticKey,
		log:       log,
		registry:  NewRegistry(cfg.Threads),
		stopCh:    make(chan struct{}),
	}
}

// Registry exposes the run's shared stats for reporting.
func (r *Runner) Registry() *Registry {
	return r.registry
}

// stop fires the shared stop signal exactly once.
func (r *Runner) stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
}

// Run executes the test and returns all collected results. It blocks
// until every worker has exited and the aggregator has stopped. The
// context cancels the run early (workers notice between iterations).
func (r *Runner) Run(ctx context.Context) []*Result {
	agg := NewAggregator(r.registry, r.cfg.Verbose)
	agg.Start()

	start := time.Now()
	var endTime time.Time
	if r.cfg.Duration > 0 {
		endTime = start.Add(r.cfg.Duration)

		// Duration timer, measured from test start, independent of ramp-up.
		go func() {
			select {
			case <-time.After(r.cfg.Duration):
				r.stop()
			case <-r.stopCh:
			}
		}()
	}

	// Propagate external cancellation into the stop signal.
	go func() {
		select {
		case <-ctx.Done():
			r.stop()
		case <-r.stopCh:
		}
	}()

	// Linear ramp-up: worker i starts i*RampUp/Threads after the first.
	rampStep := time.Duration(0)
	if r.cfg.RampUp > 0 {
		rampStep = r.cfg.RampUp / time.Duration(r.cfg.Threads)
	}

spawn:
	for i := 0; i < r.cfg.Threads; i++ {
		if i > 0 && rampStep > 0 {
			select {
			case <-r.stopCh:
				// Stop fired during ramp-up: no more workers start.
				break spawn
			case <-time.After(rampStep):
			}
		}
		r.wg.Add(1)
		go r.worker(i+1, endTime)
	}

	r.wg.Wait()
	r.stop()
	agg.Stop(2 * time.Second)

	return r.snapshotResults()
}

func (r *Runner) snapshotResults() []*Result {
	r.resultsMu.Lock()
	defer r.resultsMu.Unlock()
	out := make([]*Result, len(r.results))
	copy(out, r.results)
	return out
}
