package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/codeready-toolchain/wafcore/pkg/models"
	"github.com/codeready-toolchain/wafcore/pkg/store"
)

// Pool owns N Workers for one queue (single-event or grouped).
type Pool struct {
	queue    models.Queue
	store    *store.Store
	executor JobExecutor
	cfg      Config
	workers  []*Worker
	stopCh   chan struct{}
	wg       sync.WaitGroup
	logger   *slog.Logger
}

// NewPool constructs a Pool for one queue.
func NewPool(queue models.Queue, st *store.Store, executor JobExecutor, cfg Config) *Pool {
	return &Pool{
		queue:    queue,
		store:    st,
		executor: executor,
		cfg:      cfg,
		stopCh:   make(chan struct{}),
		logger:   slog.Default().With("component", "worker-pool", "queue", string(queue)),
	}
}

// Start launches cfg.WorkerCount workers, each running an indefinite poll
// loop until Stop is called.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.cfg.WorkerCount; i++ {
		w := newWorker(i, p.queue, p.store, p.executor, p.cfg, p.stopCh)
		p.workers = append(p.workers, w)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			w.run(ctx)
		}()
	}
	if p.cfg.Metrics != nil {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.sampleDepth(ctx)
		}()
	}
	p.logger.Info("worker pool started", "worker_count", p.cfg.WorkerCount)
}

// sampleDepth periodically reports the queue's pending and running job
// counts as a gauge, at the same cadence workers poll for work.
func (p *Pool) sampleDepth(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			for _, status := range []models.JobStatus{models.JobStatusPending, models.JobStatusRunning} {
				jobs, err := p.store.ListJobs(ctx, p.queue, string(status), 10000)
				if err != nil {
					continue
				}
				p.cfg.Metrics.QueueDepth.WithLabelValues(string(p.queue), string(status)).Set(float64(len(jobs)))
			}
		}
	}
}

// Stop signals every worker to finish its current job and exit, then blocks
// until they have all returned.
func (p *Pool) Stop() {
	close(p.stopCh)
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// Health reports the pool's current running-job count against its
// concurrency cap.
func (p *Pool) Health(ctx context.Context) PoolHealth {
	jobs, err := p.store.ListJobs(ctx, p.queue, string(models.JobStatusRunning), 1000)
	running := 0
	if err == nil {
		running = len(jobs)
	}
	return PoolHealth{
		QueueName:      string(p.queue),
		WorkerCount:    len(p.workers),
		RunningCount:   running,
		ConcurrencyCap: p.cfg.ConcurrencyCap,
	}
}
