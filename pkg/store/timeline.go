package store

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/codeready-toolchain/wafcore/pkg/models"
)

// Append adds one append-only TimelineEntry for an Event.
func (s *Store) Append(ctx context.Context, entry models.TimelineEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO timeline (event_id, type, actor_kind, actor_identity, title, description, metadata_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.EventID, entry.Type, entry.ActorKind, entry.ActorIdentity, entry.Title, entry.Description, entry.MetadataJSON)
	if err != nil {
		return NewTransientError("append_timeline", err)
	}
	return nil
}

// BulkAppend appends the same entry template to every event id, within one
// transaction so the group worker's timeline fan-out is all-or-nothing.
func (s *Store) BulkAppend(ctx context.Context, eventIDs []int64, template models.TimelineEntry) error {
	if len(eventIDs) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, id := range eventIDs {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO timeline (event_id, type, actor_kind, actor_identity, title, description, metadata_json)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				id, template.Type, template.ActorKind, template.ActorIdentity, template.Title, template.Description, template.MetadataJSON)
			if err != nil {
				return NewTransientError("bulk_append_timeline", err)
			}
		}
		return nil
	})
}

// ListTimeline returns an Event's timeline entries in insertion order.
func (s *Store) ListTimeline(ctx context.Context, eventID int64) ([]*models.TimelineEntry, error) {
	var out []*models.TimelineEntry
	err := s.db.SelectContext(ctx, &out, `SELECT * FROM timeline WHERE event_id = $1 ORDER BY created_at ASC`, eventID)
	if err != nil {
		return nil, NewTransientError("list_timeline", err)
	}
	return out, nil
}
