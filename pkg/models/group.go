package models

import "time"

// GroupStatus is the lifecycle status of a Group.
type GroupStatus string

const (
	GroupStatusOpen      GroupStatus = "open"
	GroupStatusInReview  GroupStatus = "in_review"
	GroupStatusCompleted GroupStatus = "completed"
	GroupStatusClosed    GroupStatus = "closed"
)

// Group is a grouped-analysis task: the set of Events sharing
// (source_ip, minute bucket).
type Group struct {
	ID                int64   `db:"id" json:"id"`
	SourceIP          string  `db:"source_ip" json:"source_ip"`
	TimeBucket        string  `db:"time_bucket" json:"time_bucket"`
	MemberCount       int     `db:"member_count" json:"member_count"`
	Severity          *int    `db:"severity" json:"severity,omitempty"`
	AnalysisText      string  `db:"analysis_text" json:"analysis_text,omitempty"`
	RecommendedAction string  `db:"recommended_actions" json:"recommended_actions,omitempty"`
	AttackType        string  `db:"attack_type" json:"attack_type,omitempty"`
	Status            string  `db:"status" json:"status"`
	RawPrompt         string  `db:"raw_prompt" json:"-"`
	RawResponse       string  `db:"raw_response" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// GroupSummary is the aggregate payload built for the group-analysis agent
// call: key fields only, never raw payloads.
type GroupSummary struct {
	Total           int            `json:"total"`
	UniqueURIs      []string       `json:"unique_uris"`
	UniqueRules     []string       `json:"unique_rules"`
	ActionBreakdown map[string]int `json:"action_breakdown"`
	MethodBreakdown map[string]int `json:"method_breakdown"`
	Country         string         `json:"country"`
	TimeRangeStart  time.Time      `json:"time_range_start"`
	TimeRangeEnd    time.Time      `json:"time_range_end"`
	DurationMinutes float64        `json:"duration_minutes"`
}

// GroupMemberFields is the key-fields-only projection of an Event sent to
// the group analyzer agent (no raw_payload).
type GroupMemberFields struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	RuleID    string    `json:"rule_id"`
	RuleName  string    `json:"rule_name"`
	URI       string    `json:"uri"`
	Method    string    `json:"method"`
	UserAgent string    `json:"user_agent"`
	Host      string    `json:"host"`
}

const (
	maxUniqueURIs  = 20
	maxUniqueRules = 10
)

// BuildGroupSummary computes the aggregate summary the worker sends alongside
// the capped member-field list, per the bulk_analyze payload shape.
func BuildGroupSummary(events []*Event) GroupSummary {
	s := GroupSummary{
		ActionBreakdown: map[string]int{},
		MethodBreakdown: map[string]int{},
	}
	s.Total = len(events)

	uriSeen := map[string]bool{}
	ruleSeen := map[string]bool{}
	countryCounts := map[string]int{}

	for i, e := range events {
		if i == 0 || e.Timestamp.Before(s.TimeRangeStart) {
			s.TimeRangeStart = e.Timestamp
		}
		if i == 0 || e.Timestamp.After(s.TimeRangeEnd) {
			s.TimeRangeEnd = e.Timestamp
		}
		s.ActionBreakdown[e.Action]++
		s.MethodBreakdown[e.Method]++
		countryCounts[e.Country]++

		if !uriSeen[e.URI] && len(s.UniqueURIs) < maxUniqueURIs {
			uriSeen[e.URI] = true
			s.UniqueURIs = append(s.UniqueURIs, e.URI)
		}
		key := e.RuleID + ":" + e.RuleName
		if !ruleSeen[key] && len(s.UniqueRules) < maxUniqueRules {
			ruleSeen[key] = true
			s.UniqueRules = append(s.UniqueRules, key)
		}
	}

	s.DurationMinutes = s.TimeRangeEnd.Sub(s.TimeRangeStart).Minutes()
	s.Country = modeCountry(countryCounts)
	return s
}

func modeCountry(counts map[string]int) string {
	best, bestN := "", -1
	for c, n := range counts {
		if n > bestN {
			best, bestN = c, n
		}
	}
	return best
}

// ProjectMemberFields strips a member Event down to the key-fields-only
// projection sent to the group analyzer.
func ProjectMemberFields(e *Event) GroupMemberFields {
	return GroupMemberFields{
		ID:        e.ID,
		Timestamp: e.Timestamp,
		Action:    e.Action,
		RuleID:    e.RuleID,
		RuleName:  e.RuleName,
		URI:       e.URI,
		Method:    e.Method,
		UserAgent: e.UserAgent,
		Host:      e.Host,
	}
}
