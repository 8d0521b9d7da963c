// Package worker implements the long-running worker pools that lease jobs
// from the single-event and grouped-analysis queues, invoke the Agent
// Client, and apply results (verdict write-back, timeline entries,
// escalation creation).
package worker

import (
	"context"
	"time"

	"github.com/codeready-toolchain/wafcore/pkg/metrics"
)

// JobExecutor is the capability set shared by the single-job and group-job
// execution paths: the polling/leasing machinery in Worker is identical
// across queues, only the payload-building and verdict-apply step differs.
type JobExecutor interface {
	// Execute builds the agent payload for jobID, invokes the Agent Client,
	// and applies the verdict on success. It never returns a "retry" signal
	// directly — ExecutionResult.Recoverable tells the Worker whether to
	// revert the job to pending or fail it terminally.
	Execute(ctx context.Context, jobID int64) ExecutionResult
}

// ExecutionResult is the outcome of one job execution attempt.
type ExecutionResult struct {
	Err         error
	Recoverable bool
}

// PoolHealth reports the aggregate state of a Pool's workers.
type PoolHealth struct {
	QueueName      string
	WorkerCount    int
	RunningCount   int
	ConcurrencyCap int
}

// Config configures a Pool.
type Config struct {
	WorkerCount    int
	ConcurrencyCap int
	PollInterval   time.Duration
	ShutdownGrace  time.Duration

	// Metrics is optional; a nil Metrics disables instrumentation rather
	// than panicking, so tests and the CLI don't need to construct one.
	Metrics *metrics.Metrics
}

// DefaultConfig returns conservative defaults sized for this domain's job
// durations.
func DefaultConfig() Config {
	return Config{
		WorkerCount:    2,
		ConcurrencyCap: 5,
		PollInterval:   3 * time.Second,
		ShutdownGrace:  10 * time.Minute,
	}
}
