package store

import (
	"fmt"

	"github.com/codeready-toolchain/wafcore/pkg/models"
)

// jobTable returns the table name backing a queue.
func jobTable(q models.Queue) string {
	if q == models.QueueGroup {
		return "group_job"
	}
	return "single_job"
}

// targetColumn returns the column name holding the queue's target foreign key.
func targetColumn(q models.Queue) string {
	if q == models.QueueGroup {
		return "target_group_id"
	}
	return "target_event_id"
}

// concurrencyCapFor returns the hard cap on concurrently running jobs for a
// queue. Only the group queue has a fixed design-level cap (2); the single
// queue's cap is the caller-supplied configured value.
func concurrencyCapFor(q models.Queue, configuredCap int) int {
	if q == models.QueueGroup {
		return models.GroupQueueConcurrencyCap
	}
	return configuredCap
}

func scanErr(op string, err error) error {
	return NewTransientError(fmt.Sprintf("jobs.%s", op), err)
}
