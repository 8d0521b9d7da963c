package store

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/codeready-toolchain/wafcore/pkg/models"
)

// FindOrCreateGroup implements the Grouper's concurrency boundary: it relies
// on the unique constraint on (source_ip, time_bucket). On conflict it
// returns the existing row; the caller treats that as "already grouped".
func (s *Store) FindOrCreateGroup(ctx context.Context, sourceIP, timeBucket string, initialCount int) (group *models.Group, created bool, err error) {
	const insertQ = `
		INSERT INTO "group" (source_ip, time_bucket, member_count, status)
		VALUES ($1, $2, $3, 'open')
		RETURNING *`

	var g models.Group
	err = s.db.GetContext(ctx, &g, insertQ, sourceIP, timeBucket, initialCount)
	if err == nil {
		return &g, true, nil
	}
	if !isUniqueViolation(err) {
		return nil, false, NewTransientError("find_or_create_group", err)
	}

	existing, getErr := s.GetGroupByKey(ctx, sourceIP, timeBucket)
	if getErr != nil {
		return nil, false, NewTransientError("find_or_create_group_lookup_existing", getErr)
	}
	return existing, false, nil
}

// GetGroupByKey looks up a Group by its natural key.
func (s *Store) GetGroupByKey(ctx context.Context, sourceIP, timeBucket string) (*models.Group, error) {
	var g models.Group
	err := s.db.GetContext(ctx, &g, `SELECT * FROM "group" WHERE source_ip = $1 AND time_bucket = $2`, sourceIP, timeBucket)
	if err != nil {
		return nil, translateGetErr(err)
	}
	return &g, nil
}

// GetGroup looks up a Group by id.
func (s *Store) GetGroup(ctx context.Context, id int64) (*models.Group, error) {
	var g models.Group
	err := s.db.GetContext(ctx, &g, `SELECT * FROM "group" WHERE id = $1`, id)
	if err != nil {
		return nil, translateGetErr(err)
	}
	return &g, nil
}

// ListGroupMembers returns every Event currently linked to a Group.
func (s *Store) ListGroupMembers(ctx context.Context, groupID int64) ([]*models.Event, error) {
	var out []*models.Event
	err := s.db.SelectContext(ctx, &out, `SELECT * FROM event WHERE linked_group_id = $1 ORDER BY timestamp ASC`, groupID)
	if err != nil {
		return nil, NewTransientError("list_group_members", err)
	}
	return out, nil
}

// LinkMembersToGroup links every unlinked event in the bucket to the group:
// sets linked_group_id on each (write-once, enforced by WHERE linked_group_id
// IS NULL), inserts the membership link row (unique on event_id so
// double-linking is impossible), and updates member_count to the current
// linked total. Safe to call repeatedly as new unlinked members appear in
// the bucket across Grouper runs.
func (s *Store) LinkMembersToGroup(ctx context.Context, groupID int64, events []*models.Event) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, e := range events {
			if err := linkToGroupTx(ctx, tx, e.ID, groupID); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO group_event_link (group_id, event_id) VALUES ($1, $2)
				 ON CONFLICT (event_id) DO NOTHING`, groupID, e.ID)
			if err != nil {
				return NewTransientError("insert_group_event_link", err)
			}
		}

		_, err := tx.ExecContext(ctx, `
			UPDATE "group" SET member_count = (
				SELECT count(*) FROM group_event_link WHERE group_id = $1
			), updated_at = now()
			WHERE id = $1`, groupID)
		if err != nil {
			return NewTransientError("update_member_count", err)
		}
		return nil
	})
}

// UpdateGroupVerdict applies a group verdict atomically: the Group row and
// every member Event row update in one transaction. Member status is
// derived from severity via models.StatusForSeverity, shared with the
// single-event path so the two never drift.
func (s *Store) UpdateGroupVerdict(ctx context.Context, groupID int64, v models.Verdict, analyzedBy string) ([]int64, error) {
	var memberIDs []int64

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.SelectContext(ctx, &memberIDs,
			`SELECT event_id FROM group_event_link WHERE group_id = $1`, groupID); err != nil {
			return NewTransientError("list_member_ids", err)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE "group"
			SET severity = $1, analysis_text = $2, recommended_actions = $3,
				attack_type = $4, status = 'completed', updated_at = now()
			WHERE id = $5`,
			v.Severity, v.AnalysisText, v.FollowUpText, v.AttackType, groupID)
		if err != nil {
			return NewTransientError("update_group_verdict", err)
		}
		if err := requireOneRow(res); err != nil {
			return err
		}

		return bulkUpdateVerdictTx(ctx, tx, memberIDs, v, analyzedBy)
	})
	if err != nil {
		return nil, err
	}
	return memberIDs, nil
}
