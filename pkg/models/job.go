package models

import (
	"encoding/json"
	"time"
)

// JobStatus is the shared state machine for both single-jobs and group-jobs.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusOnHold    JobStatus = "on_hold"
)

// NonTerminalJobStatuses lists the statuses that count against the
// "at most one non-terminal job per target" uniqueness invariant.
var NonTerminalJobStatuses = []JobStatus{
	JobStatusPending, JobStatusQueued, JobStatusRunning, JobStatusOnHold,
}

// Queue names the two job queues. They share a schema shape but live in
// separate tables.
type Queue string

const (
	QueueSingle Queue = "single"
	QueueGroup  Queue = "group"
)

// Job is a unit of work for a worker. A single-job references one Event
// (TargetEventID set); a group-job references one Group (TargetGroupID set).
type Job struct {
	ID            int64      `db:"id" json:"id"`
	Queue         Queue      `db:"-" json:"queue"`
	TargetEventID *int64     `db:"target_event_id" json:"target_event_id,omitempty"`
	TargetGroupID *int64     `db:"target_group_id" json:"target_group_id,omitempty"`
	Status        string     `db:"status" json:"status"`
	Priority      int        `db:"priority" json:"priority"`
	Attempts      int        `db:"attempts" json:"attempts"`
	MaxAttempts   int        `db:"max_attempts" json:"max_attempts"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	StartedAt     *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt   *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	LastError     string     `db:"last_error" json:"last_error,omitempty"`

	// Result fields, populated on success.
	ResultSeverity     *int            `db:"result_severity" json:"result_severity,omitempty"`
	ResultAnalysis     string          `db:"result_analysis" json:"result_analysis,omitempty"`
	ResultFollowUp     string          `db:"result_follow_up" json:"result_follow_up,omitempty"`
	ResultTriageJSON   json.RawMessage `db:"result_triage_json" json:"result_triage_json,omitempty"`
}

// DefaultMaxAttempts is the max_attempts assigned to a newly enqueued job
// when the caller does not specify one.
const DefaultMaxAttempts = 3

// StuckJobThreshold is the minimum running-age after which reset_if_stuck
// forces a running job to failed.
const StuckJobThreshold = 5 * time.Minute

// StuckJobMessage is the canonical error message recorded by reset_if_stuck.
const StuckJobMessage = "Job manually reset - was stuck in running status"

// GroupQueueConcurrencyCap is the hard cap on concurrently running group-jobs,
// fixed by design (bounds load on the upstream AI service for heavy
// multi-event analyses).
const GroupQueueConcurrencyCap = 2
