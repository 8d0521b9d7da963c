package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/codeready-toolchain/wafcore/pkg/models"
)

// Enqueue creates a job for the given target, unless a non-terminal job
// already references it, in which case the existing job is returned with
// ErrAlreadyExists.
func (s *Store) Enqueue(ctx context.Context, queue models.Queue, targetID int64, priority int) (*models.Job, error) {
	table := jobTable(queue)
	col := targetColumn(queue)

	insertQ := fmt.Sprintf(`
		INSERT INTO %s (%s, status, priority, max_attempts)
		SELECT $1, 'pending', $2, $3
		WHERE NOT EXISTS (
			SELECT 1 FROM %s WHERE %s = $1 AND status IN ('pending','queued','running','on_hold')
		)
		RETURNING *`, table, col, table, col)

	var job models.Job
	err := s.db.GetContext(ctx, &job, insertQ, targetID, priority, models.DefaultMaxAttempts)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			existing, getErr := s.getNonTerminalJob(ctx, queue, targetID)
			if getErr != nil {
				return nil, NewTransientError("enqueue_lookup_existing", getErr)
			}
			return existing, ErrAlreadyExists
		}
		return nil, NewTransientError("enqueue", err)
	}
	job.Queue = queue
	return &job, nil
}

func (s *Store) getNonTerminalJob(ctx context.Context, queue models.Queue, targetID int64) (*models.Job, error) {
	table, col := jobTable(queue), targetColumn(queue)
	q := fmt.Sprintf(`SELECT * FROM %s WHERE %s = $1 AND status IN ('pending','queued','running','on_hold')
		ORDER BY created_at DESC LIMIT 1`, table, col)
	var job models.Job
	if err := s.db.GetContext(ctx, &job, q, targetID); err != nil {
		return nil, translateGetErr(err)
	}
	job.Queue = queue
	return &job, nil
}

// LeaseNext atomically selects the oldest pending job with the highest
// priority whose attempts < max_attempts and transitions it to queued,
// using SELECT ... FOR UPDATE SKIP LOCKED so concurrent leasers never select
// the same job. If the queue's running count is already at its concurrency
// cap, it returns ErrNoneAvailable without side effects.
func (s *Store) LeaseNext(ctx context.Context, queue models.Queue, configuredCap int) (*models.Job, error) {
	table := jobTable(queue)
	capN := concurrencyCapFor(queue, configuredCap)

	var job models.Job
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var running int
		runningQ := fmt.Sprintf(`SELECT count(*) FROM %s WHERE status = 'running'`, table)
		if err := tx.GetContext(ctx, &running, runningQ); err != nil {
			return NewTransientError("lease_next_count_running", err)
		}
		if running >= capN {
			return ErrNoneAvailable
		}

		selectQ := fmt.Sprintf(`
			SELECT * FROM %s
			WHERE status = 'pending' AND attempts < max_attempts
			ORDER BY priority DESC, created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED`, table)
		if err := tx.GetContext(ctx, &job, selectQ); err != nil {
			if err.Error() == "sql: no rows in result set" {
				return ErrNoneAvailable
			}
			return NewTransientError("lease_next_select", err)
		}

		updateQ := fmt.Sprintf(`UPDATE %s SET status = 'queued' WHERE id = $1`, table)
		if _, err := tx.ExecContext(ctx, updateQ, job.ID); err != nil {
			return NewTransientError("lease_next_update", err)
		}
		job.Status = string(models.JobStatusQueued)
		return nil
	})
	if err != nil {
		return nil, err
	}
	job.Queue = queue
	return &job, nil
}

// MarkRunning transitions a leased (queued) job to running and records
// started_at. Split from LeaseNext, so a leaser crash between lease and run
// leaves the job in queued; ResetIfStuck acts on running jobs only and does
// not recover it.
func (s *Store) MarkRunning(ctx context.Context, queue models.Queue, jobID int64) error {
	table := jobTable(queue)
	q := fmt.Sprintf(`UPDATE %s SET status = 'running', started_at = now() WHERE id = $1 AND status = 'queued'`, table)
	res, err := s.db.ExecContext(ctx, q, jobID)
	if err != nil {
		return NewTransientError("mark_running", err)
	}
	return requireOneRow(res)
}

// MarkCompleted transitions a running job to completed, recording result
// fields.
func (s *Store) MarkCompleted(ctx context.Context, queue models.Queue, jobID int64, v models.Verdict) error {
	table := jobTable(queue)
	q := fmt.Sprintf(`
		UPDATE %s
		SET status = 'completed', completed_at = now(),
			result_severity = $1, result_analysis = $2, result_follow_up = $3
		WHERE id = $4 AND status = 'running'`, table)
	res, err := s.db.ExecContext(ctx, q, v.Severity, v.AnalysisText, v.FollowUpText, jobID)
	if err != nil {
		return NewTransientError("mark_completed", err)
	}
	return requireOneRow(res)
}

// MarkFailedRecoverable reverts a running job to pending with an
// incremented attempt count and the error recorded.
func (s *Store) MarkFailedRecoverable(ctx context.Context, queue models.Queue, jobID int64, lastErr string) error {
	table := jobTable(queue)
	q := fmt.Sprintf(`
		UPDATE %s SET status = 'pending', attempts = attempts + 1, last_error = $1
		WHERE id = $2 AND status = 'running'`, table)
	res, err := s.db.ExecContext(ctx, q, lastErr, jobID)
	if err != nil {
		return NewTransientError("mark_failed_recoverable", err)
	}
	return requireOneRow(res)
}

// MarkFailedTerminal transitions a running job to failed, leaving the
// target Event/Group unchanged (no partial verdict).
func (s *Store) MarkFailedTerminal(ctx context.Context, queue models.Queue, jobID int64, lastErr string) error {
	table := jobTable(queue)
	q := fmt.Sprintf(`
		UPDATE %s SET status = 'failed', completed_at = now(), last_error = $1
		WHERE id = $2 AND status = 'running'`, table)
	res, err := s.db.ExecContext(ctx, q, lastErr, jobID)
	if err != nil {
		return NewTransientError("mark_failed_terminal", err)
	}
	return requireOneRow(res)
}

// Cancel removes a job that has not yet started running.
func (s *Store) Cancel(ctx context.Context, queue models.Queue, jobID int64) error {
	table := jobTable(queue)
	q := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND status IN ('pending','queued','on_hold')`, table)
	res, err := s.db.ExecContext(ctx, q, jobID)
	if err != nil {
		return NewTransientError("cancel", err)
	}
	return requireOneRow(res)
}

// Retry resets a failed job back to pending with attempts cleared, per the
// operator retry_job action.
func (s *Store) Retry(ctx context.Context, queue models.Queue, jobID int64) error {
	table := jobTable(queue)
	q := fmt.Sprintf(`
		UPDATE %s SET status = 'pending', attempts = 0, last_error = ''
		WHERE id = $1 AND status = 'failed'`, table)
	res, err := s.db.ExecContext(ctx, q, jobID)
	if err != nil {
		return NewTransientError("retry", err)
	}
	return requireOneRow(res)
}

// BulkPause moves every pending job in a queue to on_hold.
func (s *Store) BulkPause(ctx context.Context, queue models.Queue) (int64, error) {
	table := jobTable(queue)
	q := fmt.Sprintf(`UPDATE %s SET status = 'on_hold' WHERE status = 'pending'`, table)
	res, err := s.db.ExecContext(ctx, q)
	if err != nil {
		return 0, NewTransientError("bulk_pause", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// BulkResume moves every on_hold job in a queue back to pending.
func (s *Store) BulkResume(ctx context.Context, queue models.Queue) (int64, error) {
	table := jobTable(queue)
	q := fmt.Sprintf(`UPDATE %s SET status = 'pending' WHERE status = 'on_hold'`, table)
	res, err := s.db.ExecContext(ctx, q)
	if err != nil {
		return 0, NewTransientError("bulk_resume", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ResetIfStuck promotes any job running for >= minRunningAge into failed
// with the canonical message, making it eligible for operator retry.
func (s *Store) ResetIfStuck(ctx context.Context, queue models.Queue, minRunningAge time.Duration) (int64, error) {
	table := jobTable(queue)
	q := fmt.Sprintf(`
		UPDATE %s
		SET status = 'failed', completed_at = now(), last_error = $1
		WHERE status = 'running' AND started_at <= $2`, table)
	cutoff := time.Now().UTC().Add(-minRunningAge)
	res, err := s.db.ExecContext(ctx, q, models.StuckJobMessage, cutoff)
	if err != nil {
		return 0, NewTransientError("reset_if_stuck", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// GetJob looks up a job by id within a queue.
func (s *Store) GetJob(ctx context.Context, queue models.Queue, jobID int64) (*models.Job, error) {
	table := jobTable(queue)
	q := fmt.Sprintf(`SELECT * FROM %s WHERE id = $1`, table)
	var job models.Job
	if err := s.db.GetContext(ctx, &job, q, jobID); err != nil {
		return nil, translateGetErr(err)
	}
	job.Queue = queue
	return &job, nil
}

// ListJobs returns jobs in a queue, optionally filtered by status.
func (s *Store) ListJobs(ctx context.Context, queue models.Queue, status string, limit int) ([]*models.Job, error) {
	table := jobTable(queue)
	var out []*models.Job
	var err error
	if status == "" {
		q := fmt.Sprintf(`SELECT * FROM %s ORDER BY created_at DESC LIMIT $1`, table)
		err = s.db.SelectContext(ctx, &out, q, limit)
	} else {
		q := fmt.Sprintf(`SELECT * FROM %s WHERE status = $1 ORDER BY created_at DESC LIMIT $2`, table)
		err = s.db.SelectContext(ctx, &out, q, status, limit)
	}
	if err != nil {
		return nil, NewTransientError("list_jobs", err)
	}
	for _, j := range out {
		j.Queue = queue
	}
	return out, nil
}
