package store

import "context"

// UpsertBlocklistSources carries the optional provenance fields recorded on
// a blocklist upsert.
type UpsertBlocklistSources struct {
	EscalationID *int64
	EventID      *int64
}

// UpsertBlocklist race-safely inserts or refreshes a BlocklistEntry.
// Relies on the unique constraint on ip_address: on conflict, last_seen_at
// and block_count advance in the same atomic statement. Returns whether
// the row was newly inserted.
func (s *Store) UpsertBlocklist(ctx context.Context, ip, reason string, severity int, sources UpsertBlocklistSources) (inserted bool, err error) {
	const q = `
		INSERT INTO blocklist (ip_address, reason, severity, source_escalation_id, source_event_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (ip_address) DO UPDATE
			SET last_seen_at = now(), block_count = blocklist.block_count + 1
		RETURNING (xmax = 0) AS inserted`

	err = s.db.GetContext(ctx, &inserted, q, ip, reason, severity, sources.EscalationID, sources.EventID)
	if err != nil {
		return false, NewTransientError("upsert_blocklist", err)
	}
	return inserted, nil
}
