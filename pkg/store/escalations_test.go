package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/wafcore/pkg/models"
)

var escalationColumns = []string{
	"id", "title", "message", "detail_payload", "severity", "source_type", "source_event_id", "source_group_id", "created_at",
	"completed_notification", "notification_success_at", "notification_external_id", "notification_error",
	"completed_ticket", "ticket_success_at", "ticket_external_id", "ticket_error",
	"completed_blocklist", "blocklist_success_at", "blocklist_external_id", "blocklist_error",
}

func escalationRow(id int64, severity int) []interface{} {
	now := time.Now()
	return []interface{}{
		id, "title", "message", nil, severity, "group", nil, nil, now,
		false, nil, "", "",
		false, nil, "", "",
		false, nil, "", "",
	}
}

func TestCreateEscalation_InsertsAndReturnsRow(t *testing.T) {
	st, mock := newSQLMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO escalation")).
		WillReturnRows(sqlmock.NewRows(escalationColumns).AddRow(escalationRow(1, 5)...))

	esc, err := st.CreateEscalation(context.Background(), models.EscalationSpec{
		Title:      "Repeated SQLi",
		Message:    "body",
		Severity:   5,
		SourceType: models.SourceTypeGroup,
	})

	require.NoError(t, err)
	assert.Equal(t, int64(1), esc.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetEscalation_NotFoundTranslatesToErrNotFound(t *testing.T) {
	st, mock := newSQLMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM escalation WHERE id")).
		WillReturnError(errors.New("sql: no rows in result set"))

	_, err := st.GetEscalation(context.Background(), 99)

	require.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPendingEscalations_FiltersByCompletionColumn(t *testing.T) {
	st, mock := newSQLMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE completed_blocklist = FALSE")).
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows(escalationColumns).AddRow(escalationRow(2, 5)...))

	out, err := st.ListPendingEscalations(context.Background(), models.SinkBlocklist, 50)

	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPendingEscalations_UnknownSinkReturnsValidationError(t *testing.T) {
	st, _ := newSQLMockStore(t)

	_, err := st.ListPendingEscalations(context.Background(), models.SinkName("carrier-pigeon"), 10)

	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestMarkSinkSuccess_SetsCompletionAndExternalID(t *testing.T) {
	st, mock := newSQLMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("SET completed_ticket = TRUE, ticket_success_at = now(), ticket_external_id = $1, ticket_error = ''")).
		WithArgs("42", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := st.MarkSinkSuccess(context.Background(), 1, models.SinkTicket, "42")

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkSinkFailed_RecordsError(t *testing.T) {
	st, mock := newSQLMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("SET notification_error = $1")).
		WithArgs("slack: rate limited", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := st.MarkSinkFailed(context.Background(), 1, models.SinkNotification, "slack: rate limited")

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetrySink_ResetsCompletionFlagAndClearsError(t *testing.T) {
	st, mock := newSQLMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("SET completed_blocklist = FALSE, blocklist_error = ''")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := st.RetrySink(context.Background(), 3, models.SinkBlocklist)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetrySink_NoMatchingRowIsConcurrentModification(t *testing.T) {
	st, mock := newSQLMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("SET completed_blocklist = FALSE, blocklist_error = ''")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := st.RetrySink(context.Background(), 3, models.SinkBlocklist)

	require.ErrorIs(t, err, ErrConcurrentModification)
	assert.NoError(t, mock.ExpectationsWereMet())
}
