package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/wafcore/pkg/models"
	"github.com/codeready-toolchain/wafcore/pkg/store"
)

func (w *Worker) observeLeaseDuration(startedAt time.Time) {
	if w.cfg.Metrics == nil {
		return
	}
	w.cfg.Metrics.JobLeaseDuration.WithLabelValues(string(w.queue)).Observe(time.Since(startedAt).Seconds())
}

// Worker is one goroutine leasing and executing jobs from a single queue.
type Worker struct {
	id       int
	queue    models.Queue
	store    *store.Store
	executor JobExecutor
	cfg      Config
	stopCh   <-chan struct{}
	logger   *slog.Logger
}

func newWorker(id int, queue models.Queue, st *store.Store, executor JobExecutor, cfg Config, stopCh <-chan struct{}) *Worker {
	return &Worker{
		id:       id,
		queue:    queue,
		store:    st,
		executor: executor,
		cfg:      cfg,
		stopCh:   stopCh,
		logger:   slog.Default().With("component", "worker", "queue", string(queue), "worker_id", id),
	}
}

// run is the worker's indefinite poll loop: lease, execute, apply, sleep.
// It observes the shutdown signal between jobs only — an in-flight job runs
// to completion before the worker exits.
func (w *Worker) run(ctx context.Context) {
	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		processed, err := w.pollAndProcess(ctx)
		if err != nil && err != store.ErrNoneAvailable {
			w.logger.Error("poll and process failed", "error", err)
		}

		if !processed {
			select {
			case <-w.stopCh:
				return
			case <-ctx.Done():
				return
			case <-time.After(w.cfg.PollInterval):
			}
		}
	}
}

// pollAndProcess leases at most one job and, if one was available, runs it
// to completion. Returns processed=true if a job was leased (regardless of
// outcome), so the caller skips its poll-interval sleep.
func (w *Worker) pollAndProcess(ctx context.Context) (processed bool, err error) {
	job, err := w.store.LeaseNext(ctx, w.queue, w.cfg.ConcurrencyCap)
	if err != nil {
		if err == store.ErrNoneAvailable {
			return false, nil
		}
		return false, err
	}

	if w.cfg.Metrics != nil {
		w.cfg.Metrics.JobsLeasedTotal.WithLabelValues(string(w.queue)).Inc()
	}

	if err := w.store.MarkRunning(ctx, w.queue, job.ID); err != nil {
		w.logger.Error("mark_running failed", "job_id", job.ID, "error", err)
		return true, err
	}

	startedAt := time.Now()
	w.logger.Info("job started", "job_id", job.ID)
	result := w.executor.Execute(ctx, job.ID)
	w.observeLeaseDuration(startedAt)
	w.applyResult(ctx, job, result)
	return true, nil
}

// applyResult handles a finished execution: on failure, either revert to
// pending with an incremented attempt count (recoverable, attempts left) or
// fail terminally (attempts exhausted or non-retryable error).
func (w *Worker) applyResult(ctx context.Context, job *models.Job, result ExecutionResult) {
	if result.Err == nil {
		w.logger.Info("job completed", "job_id", job.ID)
		w.countCompletion("completed")
		return
	}

	if result.Recoverable && job.Attempts < job.MaxAttempts-1 {
		if err := w.store.MarkFailedRecoverable(ctx, w.queue, job.ID, result.Err.Error()); err != nil {
			w.logger.Error("mark_failed_recoverable failed", "job_id", job.ID, "error", err)
		}
		w.logger.Warn("job failed, will retry", "job_id", job.ID, "error", result.Err)
		w.countCompletion("retry")
		return
	}

	if err := w.store.MarkFailedTerminal(ctx, w.queue, job.ID, result.Err.Error()); err != nil {
		w.logger.Error("mark_failed_terminal failed", "job_id", job.ID, "error", err)
	}
	w.logger.Error("job failed terminally", "job_id", job.ID, "error", result.Err)
	w.countCompletion("failed")
}

func (w *Worker) countCompletion(outcome string) {
	if w.cfg.Metrics == nil {
		return
	}
	w.cfg.Metrics.JobsCompletedTotal.WithLabelValues(string(w.queue), outcome).Inc()
}
