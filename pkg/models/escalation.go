package models

import (
	"encoding/json"
	"time"
)

// SourceType identifies what kind of finding produced an Escalation.
type SourceType string

const (
	SourceTypeEvent    SourceType = "waf_event"
	SourceTypeGroup    SourceType = "group"
	SourceTypeCampaign SourceType = "campaign"
)

// SinkName identifies one of the three escalation fan-out sinks.
type SinkName string

const (
	SinkNotification SinkName = "notification"
	SinkTicket       SinkName = "ticket"
	SinkBlocklist    SinkName = "blocklist"
)

// Escalation is a high-severity finding requiring external fan-out.
type Escalation struct {
	ID            int64           `db:"id" json:"id"`
	Title         string          `db:"title" json:"title"`
	Message       string          `db:"message" json:"message"`
	DetailPayload json.RawMessage `db:"detail_payload" json:"detail_payload,omitempty"`
	Severity      int             `db:"severity" json:"severity"`
	SourceType    string          `db:"source_type" json:"source_type"`
	SourceEventID *int64          `db:"source_event_id" json:"source_event_id,omitempty"`
	SourceGroupID *int64          `db:"source_group_id" json:"source_group_id,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`

	CompletedNotification  bool       `db:"completed_notification" json:"completed_notification"`
	NotificationSuccessAt  *time.Time `db:"notification_success_at" json:"notification_success_at,omitempty"`
	NotificationExternalID string     `db:"notification_external_id" json:"notification_external_id,omitempty"`
	NotificationError      string     `db:"notification_error" json:"notification_error,omitempty"`

	CompletedTicket  bool       `db:"completed_ticket" json:"completed_ticket"`
	TicketSuccessAt  *time.Time `db:"ticket_success_at" json:"ticket_success_at,omitempty"`
	TicketExternalID string     `db:"ticket_external_id" json:"ticket_external_id,omitempty"`
	TicketError      string     `db:"ticket_error" json:"ticket_error,omitempty"`

	CompletedBlocklist  bool       `db:"completed_blocklist" json:"completed_blocklist"`
	BlocklistSuccessAt  *time.Time `db:"blocklist_success_at" json:"blocklist_success_at,omitempty"`
	BlocklistExternalID string     `db:"blocklist_external_id" json:"blocklist_external_id,omitempty"`
	BlocklistError      string     `db:"blocklist_error" json:"blocklist_error,omitempty"`
}

// DetailPayload is the structured content of Escalation.DetailPayload. Not
// every field is populated for every source_type: AffectedEventIDs is used
// by group/campaign escalations, IPAddress backs the blocklist sink,
// DetectionID correlates a campaign escalation back to the monitor run
// that produced it.
type DetailPayload struct {
	AffectedEventIDs  []int64 `json:"affected_event_ids,omitempty"`
	IPAddress         string  `json:"ip_address,omitempty"`
	AttackType        string  `json:"attack_type,omitempty"`
	RecommendedAction string  `json:"recommended_action,omitempty"`
	DetectionID       string  `json:"detection_id,omitempty"`
}

// EscalationSpec is the input to Store.CreateEscalation.
type EscalationSpec struct {
	Title         string
	Message       string
	Detail        DetailPayload
	Severity      int
	SourceType    SourceType
	SourceEventID *int64
	SourceGroupID *int64
}

// Applicable reports whether the given sink applies to this escalation.
// Notification and ticket apply to every escalation; blocklist only when
// severity crosses the threshold and an IP address is derivable.
func (e *Escalation) Applicable(sink SinkName, ip string) bool {
	switch sink {
	case SinkNotification, SinkTicket:
		return true
	case SinkBlocklist:
		return e.Severity >= EscalationSeverityThreshold && ip != ""
	default:
		return false
	}
}

// Done reports whether every applicable sink flag is true.
func (e *Escalation) Done(ip string) bool {
	if !e.CompletedNotification || !e.CompletedTicket {
		return false
	}
	if e.Applicable(SinkBlocklist, ip) && !e.CompletedBlocklist {
		return false
	}
	return true
}
