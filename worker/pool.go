package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/execq/execq/id"
)

// Pool manages a set of concurrent worker goroutines that poll the queue
// for claimable jobs and execute them through the Executor.
type Pool struct {
	queue        Queue
	executor     *Executor
	concurrency  int
	pollInterval time.Duration
	workerID     id.WorkerID
	limiter      *rate.Limiter
	logger       *slog.Logger

	claimCtx    context.Context
	claimCancel context.CancelFunc

	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
	activeJobs map[string]context.CancelFunc
	activeMu   sync.Mutex
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolConcurrency sets the number of concurrent worker goroutines.
func WithPoolConcurrency(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithPollInterval sets how long workers sleep when the queue is empty.
func WithPollInterval(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d > 0 {
			p.pollInterval = d
		}
	}
}

// WithClaimLimit caps the pool-wide claim rate. Useful when many pools
// share one store and polling pressure matters.
func WithClaimLimit(perSecond float64, burst int) PoolOption {
	return func(p *Pool) {
		if perSecond > 0 {
			p.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
		}
	}
}

// WithPoolLogger sets the pool's logger.
func WithPoolLogger(logger *slog.Logger) PoolOption {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPool creates a worker pool. It does not start polling until Start
// is called.
func NewPool(queue Queue, executor *Executor, opts ...PoolOption) *Pool {
	p := &Pool{
		queue:        queue,
		executor:     executor,
		concurrency:  4,
		pollInterval: time.Second,
		workerID:     id.NewWorkerID(),
		logger:       slog.Default(),
		stopCh:       make(chan struct{}),
		activeJobs:   make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WorkerID returns the pool's unique worker identifier.
func (p *Pool) WorkerID() id.WorkerID { return p.workerID }

// Start launches the worker goroutines. It returns immediately. A pool
// stopped with Stop can be started again.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true

	// Fresh stop channel and claim context per run; the previous run's
	// loops have exited (Stop waits on the group) but hold the old ones.
	p.stopCh = make(chan struct{})
	p.claimCtx, p.claimCancel = context.WithCancel(context.Background())

	p.logger.Info("worker pool starting",
		slog.String("worker_id", p.workerID.String()),
		slog.Int("concurrency", p.concurrency),
	)

	for range p.concurrency {
		p.wg.Add(1)
		go p.claimLoop(p.claimCtx, p.stopCh)
	}

	return nil
}

// Stop signals all workers to stop and waits for in-flight jobs to
// drain. If the context expires first, the running commands are killed
// via their contexts.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	stopCh, claimCancel := p.stopCh, p.claimCancel
	p.mu.Unlock()

	p.logger.Info("worker pool stopping", slog.String("worker_id", p.workerID.String()))

	close(stopCh)
	claimCancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out, killing active jobs")
		p.cancelActiveJobs()
		p.wg.Wait()
	}

	return nil
}

// claimLoop is run by each worker goroutine: claim, execute, repeat.
// The claim context and stop channel are passed in rather than read off
// the struct so a restart cannot race the loops of the previous run.
func (p *Pool) claimLoop(claimCtx context.Context, stopCh <-chan struct{}) {
	defer p.wg.Done()

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		if p.limiter != nil {
			if err := p.limiter.Wait(claimCtx); err != nil {
				return
			}
		}

		j, err := p.queue.Claim(claimCtx)
		if err != nil {
			if claimCtx.Err() != nil {
				return
			}
			p.logger.Error("claim error", slog.String("error", err.Error()))
			p.sleep(stopCh)
			continue
		}

		if j == nil {
			p.sleep(stopCh)
			continue
		}

		// Execution gets its own context so a claimed job drains fully
		// during graceful shutdown; cancelActiveJobs kills it only when
		// the shutdown deadline passes.
		ctx, cancel := context.WithCancel(context.Background())
		p.trackJob(j.ID.String(), cancel)

		if execErr := p.executor.Execute(ctx, j); execErr != nil {
			p.logger.Debug("job execution reported failure",
				slog.String("job_id", j.ID.String()),
				slog.String("error", execErr.Error()),
			)
		}

		p.untrackJob(j.ID.String())
		cancel()
	}
}

func (p *Pool) sleep(stopCh <-chan struct{}) {
	select {
	case <-time.After(p.pollInterval):
	case <-stopCh:
	}
}

func (p *Pool) trackJob(jobID string, cancel context.CancelFunc) {
	p.activeMu.Lock()
	p.activeJobs[jobID] = cancel
	p.activeMu.Unlock()
}

func (p *Pool) untrackJob(jobID string) {
	p.activeMu.Lock()
	delete(p.activeJobs, jobID)
	p.activeMu.Unlock()
}

func (p *Pool) cancelActiveJobs() {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	for jobID, cancel := range p.activeJobs {
		p.logger.Warn("killing active job", slog.String("job_id", jobID))
		cancel()
	}
}
