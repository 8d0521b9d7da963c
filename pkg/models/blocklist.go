package models

import "time"

// BlocklistEntry is an IP in the managed blocklist.
type BlocklistEntry struct {
	ID                 int64      `db:"id" json:"id"`
	IPAddress          string     `db:"ip_address" json:"ip_address"`
	Reason             string     `db:"reason" json:"reason"`
	Severity           int        `db:"severity" json:"severity"`
	SourceEscalationID *int64     `db:"source_escalation_id" json:"source_escalation_id,omitempty"`
	SourceEventID      *int64     `db:"source_event_id" json:"source_event_id,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	LastSeenAt         time.Time  `db:"last_seen_at" json:"last_seen_at"`
	BlockCount         int        `db:"block_count" json:"block_count"`
	IsActive           bool       `db:"is_active" json:"is_active"`
	RemovedAt          *time.Time `db:"removed_at" json:"removed_at,omitempty"`
}

// TimelineEntry is an append-only audit log row per Event.
type TimelineEntry struct {
	ID          int64     `db:"id" json:"id"`
	EventID     int64     `db:"event_id" json:"event_id"`
	Type        string    `db:"type" json:"type"`
	ActorKind   string    `db:"actor_kind" json:"actor_kind"` // system, user
	ActorIdentity string  `db:"actor_identity" json:"actor_identity,omitempty"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description,omitempty"`
	MetadataJSON []byte   `db:"metadata_json" json:"metadata_json,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

const (
	ActorKindSystem = "system"
	ActorKindUser   = "user"
)

// TimelineTypeAIAnalysis is the timeline entry type appended by workers after
// a successful verdict write-back.
const TimelineTypeAIAnalysis = "ai_analysis"
