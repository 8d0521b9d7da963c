package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/codeready-toolchain/wafcore/pkg/models"
)

// CreateEscalation persists a high-severity finding for fan-out.
func (s *Store) CreateEscalation(ctx context.Context, spec models.EscalationSpec) (*models.Escalation, error) {
	detail, err := json.Marshal(spec.Detail)
	if err != nil {
		return nil, NewValidationError("detail", err.Error())
	}

	const q = `
		INSERT INTO escalation (title, message, detail_payload, severity, source_type,
			source_event_id, source_group_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *`

	var e models.Escalation
	err = s.db.GetContext(ctx, &e, q, spec.Title, spec.Message, detail, spec.Severity,
		string(spec.SourceType), spec.SourceEventID, spec.SourceGroupID)
	if err != nil {
		return nil, NewTransientError("create_escalation", err)
	}
	return &e, nil
}

// GetEscalation looks up an Escalation by id.
func (s *Store) GetEscalation(ctx context.Context, id int64) (*models.Escalation, error) {
	var e models.Escalation
	err := s.db.GetContext(ctx, &e, `SELECT * FROM escalation WHERE id = $1`, id)
	if err != nil {
		return nil, translateGetErr(err)
	}
	return &e, nil
}

// ListPendingEscalations returns escalations whose given sink's completion
// flag is false, applying the blocklist sink's extra severity/IP filter at
// the call site (it needs detail_payload inspection the Escalation
// Processor already performs).
func (s *Store) ListPendingEscalations(ctx context.Context, sink models.SinkName, limit int) ([]*models.Escalation, error) {
	col, err := completionColumn(sink)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT * FROM escalation WHERE %s = FALSE ORDER BY created_at ASC LIMIT $1`, col)
	var out []*models.Escalation
	if err := s.db.SelectContext(ctx, &out, q, limit); err != nil {
		return nil, NewTransientError("list_pending_escalations", err)
	}
	return out, nil
}

// MarkSinkSuccess records a sink's successful delivery: external handle,
// success timestamp, and clears any prior error.
func (s *Store) MarkSinkSuccess(ctx context.Context, id int64, sink models.SinkName, externalID string) error {
	col, errCol, err := sinkColumns(sink)
	if err != nil {
		return err
	}
	prefix := sinkPrefix(sink)
	q := fmt.Sprintf(`
		UPDATE escalation
		SET %s = TRUE, %s_success_at = now(), %s_external_id = $1, %s = ''
		WHERE id = $2`, col, prefix, prefix, errCol)
	res, execErr := s.db.ExecContext(ctx, q, externalID, id)
	if execErr != nil {
		return NewTransientError("mark_sink_success", execErr)
	}
	return requireOneRow(res)
}

// MarkSinkFailed records a sink delivery failure. The completion flag stays
// false so the next Escalation Processor run retries.
func (s *Store) MarkSinkFailed(ctx context.Context, id int64, sink models.SinkName, lastErr string) error {
	_, errCol, err := sinkColumns(sink)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`UPDATE escalation SET %s = $1 WHERE id = $2`, errCol)
	res, execErr := s.db.ExecContext(ctx, q, lastErr, id)
	if execErr != nil {
		return NewTransientError("mark_sink_failed", execErr)
	}
	return requireOneRow(res)
}

// RetrySink resets a sink's completion flag and clears its error so the
// next scheduler tick re-attempts delivery (operator retry_escalation_sink).
func (s *Store) RetrySink(ctx context.Context, id int64, sink models.SinkName) error {
	col, errCol, err := sinkColumns(sink)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`UPDATE escalation SET %s = FALSE, %s = '' WHERE id = $1`, col, errCol)
	res, execErr := s.db.ExecContext(ctx, q, id)
	if execErr != nil {
		return NewTransientError("retry_sink", execErr)
	}
	return requireOneRow(res)
}

// MarkSinkCompleteManual allows manual closeout when a sink succeeded
// out-of-band.
func (s *Store) MarkSinkCompleteManual(ctx context.Context, id int64, sink models.SinkName, externalID string) error {
	return s.MarkSinkSuccess(ctx, id, sink, externalID)
}

func sinkPrefix(sink models.SinkName) string {
	return string(sink)
}

func completionColumn(sink models.SinkName) (string, error) {
	switch sink {
	case models.SinkNotification:
		return "completed_notification", nil
	case models.SinkTicket:
		return "completed_ticket", nil
	case models.SinkBlocklist:
		return "completed_blocklist", nil
	default:
		return "", NewValidationError("sink", "unknown sink: "+string(sink))
	}
}

func sinkColumns(sink models.SinkName) (completedCol, errCol string, err error) {
	switch sink {
	case models.SinkNotification:
		return "completed_notification", "notification_error", nil
	case models.SinkTicket:
		return "completed_ticket", "ticket_error", nil
	case models.SinkBlocklist:
		return "completed_blocklist", "blocklist_error", nil
	default:
		return "", "", NewValidationError("sink", "unknown sink: "+string(sink))
	}
}
