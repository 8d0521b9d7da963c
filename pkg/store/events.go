package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/codeready-toolchain/wafcore/pkg/models"
)

// CreateEvent inserts a new Event. Duplicate request_id ingestion is
// idempotent: on conflict the existing row is returned with ErrAlreadyExists.
func (s *Store) CreateEvent(ctx context.Context, e *models.Event) (*models.Event, error) {
	if e.RequestID == "" {
		return nil, NewValidationError("request_id", "must not be empty")
	}
	if e.SourceIP == "" {
		return nil, NewValidationError("source_ip", "must not be empty")
	}

	const q = `
		INSERT INTO event (request_id, timestamp, source_ip, country, host, uri, method,
			user_agent, rule_id, rule_name, action, raw_payload, status)
		VALUES (:request_id, :timestamp, :source_ip, :country, :host, :uri, :method,
			:user_agent, :rule_id, :rule_name, :action, :raw_payload, 'open')
		RETURNING *`

	rows, err := s.db.NamedQueryContext(ctx, q, e)
	if err != nil {
		if isUniqueViolation(err) {
			existing, getErr := s.GetEventByRequestID(ctx, e.RequestID)
			if getErr != nil {
				return nil, NewTransientError("create_event_lookup_existing", getErr)
			}
			return existing, ErrAlreadyExists
		}
		return nil, NewTransientError("create_event", err)
	}
	defer rows.Close()

	var out models.Event
	if rows.Next() {
		if err := rows.StructScan(&out); err != nil {
			return nil, NewTransientError("create_event_scan", err)
		}
	}
	return &out, nil
}

// GetEventByRequestID looks up an Event by its natural key.
func (s *Store) GetEventByRequestID(ctx context.Context, requestID string) (*models.Event, error) {
	var e models.Event
	err := s.db.GetContext(ctx, &e, `SELECT * FROM event WHERE request_id = $1`, requestID)
	if err != nil {
		return nil, translateGetErr(err)
	}
	return &e, nil
}

// GetEvent looks up an Event by id.
func (s *Store) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	var e models.Event
	err := s.db.GetContext(ctx, &e, `SELECT * FROM event WHERE id = $1`, id)
	if err != nil {
		return nil, translateGetErr(err)
	}
	return &e, nil
}

// UpdateVerdict applies a verdict to a single Event: severity, analysis text,
// follow-up text, derived status, processed=true, analyzed_at/by.
func (s *Store) UpdateVerdict(ctx context.Context, eventID int64, v models.Verdict, analyzedBy string) error {
	status := models.StatusForSeverity(v.Severity)
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE event
		SET severity = $1, analysis_text = $2, follow_up_text = $3, status = $4,
			processed = TRUE, analyzed_at = $5, analyzed_by = $6, updated_at = now()
		WHERE id = $7`,
		v.Severity, v.AnalysisText, v.FollowUpText, string(status), now, analyzedBy, eventID)
	if err != nil {
		return NewTransientError("update_verdict", err)
	}
	return requireOneRow(res)
}

// bulkUpdateVerdictTx applies the same verdict to every event in eventIDs,
// used by the group worker's atomic write-back. Must be called within the
// same transaction as the Group's own update (see UpdateGroupVerdict).
func bulkUpdateVerdictTx(ctx context.Context, tx *sqlx.Tx, eventIDs []int64, v models.Verdict, analyzedBy string) error {
	if len(eventIDs) == 0 {
		return nil
	}
	status := models.StatusForSeverity(v.Severity)
	now := time.Now().UTC()

	query, args, err := sqlx.In(`
		UPDATE event
		SET severity = ?, analysis_text = ?, follow_up_text = ?, status = ?,
			processed = TRUE, analyzed_at = ?, analyzed_by = ?, updated_at = now()
		WHERE id IN (?)`,
		v.Severity, v.AnalysisText, v.FollowUpText, string(status), now, analyzedBy, eventIDs)
	if err != nil {
		return NewTransientError("bulk_update_verdict_build", err)
	}
	query = tx.Rebind(query)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return NewTransientError("bulk_update_verdict", err)
	}
	return nil
}

// linkToGroupTx sets an Event's linked_group_id. Write-once per event: the
// WHERE clause only matches rows where linked_group_id is still NULL, so a
// second call for the same event is a no-op rather than a reassignment.
func linkToGroupTx(ctx context.Context, tx *sqlx.Tx, eventID, groupID int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE event SET linked_group_id = $1, updated_at = now()
		WHERE id = $2 AND linked_group_id IS NULL`, groupID, eventID)
	if err != nil {
		return NewTransientError("link_to_group", err)
	}
	return nil
}

// FindUnlinkedGroupsSnapshot returns the Grouper's scan: distinct
// (source_ip, time_bucket) keys over open, unlinked events, with aggregate
// metadata, ordered oldest bucket first.
func (s *Store) FindUnlinkedGroupsSnapshot(ctx context.Context) ([]models.UnlinkedBucket, error) {
	const q = `
		SELECT
			source_ip,
			to_char(date_trunc('minute', timestamp), 'YYYYMMDD-HH24MI') AS time_bucket,
			mode() WITHIN GROUP (ORDER BY country) AS country,
			count(*) AS count,
			min(timestamp) AS min_ts,
			max(timestamp) AS max_ts
		FROM event
		WHERE status = 'open' AND linked_group_id IS NULL
		GROUP BY source_ip, date_trunc('minute', timestamp)
		ORDER BY min(timestamp) ASC`

	var out []models.UnlinkedBucket
	if err := s.db.SelectContext(ctx, &out, q); err != nil {
		return nil, NewTransientError("find_unlinked_groups_snapshot", err)
	}
	return out, nil
}

// FindUnlinkedEventsInBucket returns the full event set for one
// (source_ip, time_bucket) key, no cap.
func (s *Store) FindUnlinkedEventsInBucket(ctx context.Context, sourceIP, timeBucket string) ([]*models.Event, error) {
	const q = `
		SELECT * FROM event
		WHERE status = 'open' AND linked_group_id IS NULL
			AND source_ip = $1
			AND to_char(date_trunc('minute', timestamp), 'YYYYMMDD-HH24MI') = $2
		ORDER BY timestamp ASC`

	var out []*models.Event
	if err := s.db.SelectContext(ctx, &out, q, sourceIP, timeBucket); err != nil {
		return nil, NewTransientError("find_unlinked_events_in_bucket", err)
	}
	return out, nil
}

func requireOneRow(res interface{ RowsAffected() (int64, error) }) error {
	n, err := res.RowsAffected()
	if err != nil {
		return NewTransientError("rows_affected", err)
	}
	if n == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func translateGetErr(err error) error {
	if err == nil {
		return nil
	}
	if err.Error() == "sql: no rows in result set" {
		return ErrNotFound
	}
	return NewTransientError("get", err)
}
