package models

import "time"

// Event is an ingested WAF record.
type Event struct {
	ID        int64     `db:"id" json:"id"`
	RequestID string    `db:"request_id" json:"request_id"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
	SourceIP  string    `db:"source_ip" json:"source_ip"`
	Country   string    `db:"country" json:"country"`
	Host      string    `db:"host" json:"host"`
	URI       string    `db:"uri" json:"uri"`
	Method    string    `db:"method" json:"method"`
	UserAgent string    `db:"user_agent" json:"user_agent"`
	RuleID    string    `db:"rule_id" json:"rule_id"`
	RuleName  string    `db:"rule_name" json:"rule_name"`
	Action    string    `db:"action" json:"action"` // BLOCK, ALLOW, COUNT, ...
	RawPayload []byte   `db:"raw_payload" json:"-"`

	// Verdict-derived fields. Severity is nullable until a verdict is applied.
	Severity      *int       `db:"severity" json:"severity,omitempty"`
	AnalysisText  string     `db:"analysis_text" json:"analysis_text,omitempty"`
	FollowUpText  string     `db:"follow_up_text" json:"follow_up_text,omitempty"`
	Status        string     `db:"status" json:"status"`
	Processed     bool       `db:"processed" json:"processed"`
	AnalyzedAt    *time.Time `db:"analyzed_at" json:"analyzed_at,omitempty"`
	AnalyzedBy    string     `db:"analyzed_by" json:"analyzed_by,omitempty"`
	LinkedJobID   *int64     `db:"linked_job_id" json:"linked_job_id,omitempty"`
	LinkedGroupID *int64     `db:"linked_group_id" json:"linked_group_id,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// UnlinkedBucket is one row of the Grouper's scan over unlinked open events:
// a distinct (source_ip, time_bucket) key with aggregate metadata.
type UnlinkedBucket struct {
	SourceIP   string    `db:"source_ip"`
	TimeBucket string    `db:"time_bucket"`
	Country    string    `db:"country"`
	Count      int       `db:"count"`
	MinTS      time.Time `db:"min_ts"`
	MaxTS      time.Time `db:"max_ts"`
}

// Verdict is the normalized analysis result returned by the Agent Client,
// independent of which agent backend or response envelope produced it.
type Verdict struct {
	Severity        int    `json:"severity"`
	AnalysisText    string `json:"analysis_text"`
	FollowUpText    string `json:"follow_up_or_actions_text"`
	AttackType      string `json:"attack_type,omitempty"`
}

// TimeBucket truncates a timestamp to the minute and encodes it as
// YYYYMMDD-HHMM, the Group natural key's second component.
func TimeBucket(ts time.Time) string {
	t := ts.UTC().Truncate(time.Minute)
	return t.Format("20060102-1504")
}
