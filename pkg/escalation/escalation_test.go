package escalation

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/wafcore/pkg/models"
	"github.com/codeready-toolchain/wafcore/pkg/store"
)

type fakeSink struct {
	name       models.SinkName
	err        error
	externalID string
	delivered  []int64
}

func (f *fakeSink) Name() models.SinkName { return f.name }

func (f *fakeSink) Deliver(ctx context.Context, esc *models.Escalation) (string, error) {
	f.delivered = append(f.delivered, esc.ID)
	if f.err != nil {
		return "", f.err
	}
	return f.externalID, nil
}

func newMockStore(t *testing.T) (*store.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sqlxDB := sqlx.NewDb(db, "postgres")
	return store.NewFromSQLX(sqlxDB), mock
}

func baseEscalationRow(id int64, severity int, detail []byte) []interface{} {
	now := time.Now()
	return []interface{}{
		id, "Repeated SQLi attempts", "message body", detail, severity, "group", nil, nil, now,
		false, nil, "", "",
		false, nil, "", "",
		false, nil, "", "",
	}
}

var escalationColumns = []string{
	"id", "title", "message", "detail_payload", "severity", "source_type", "source_event_id", "source_group_id", "created_at",
	"completed_notification", "notification_success_at", "notification_external_id", "notification_error",
	"completed_ticket", "ticket_success_at", "ticket_external_id", "ticket_error",
	"completed_blocklist", "blocklist_success_at", "blocklist_external_id", "blocklist_error",
}

func TestRunOnce_DeliversToEachSinkIndependently(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("completed_notification = FALSE")).
		WillReturnRows(sqlmock.NewRows(escalationColumns).AddRow(baseEscalationRow(1, 5, nil)...))
	mock.ExpectExec(regexp.QuoteMeta("SET completed_notification = TRUE")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery(regexp.QuoteMeta("completed_ticket = FALSE")).
		WillReturnRows(sqlmock.NewRows(escalationColumns).AddRow(baseEscalationRow(1, 5, nil)...))
	mock.ExpectExec(regexp.QuoteMeta("SET ticket_error = $1")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	notif := &fakeSink{name: models.SinkNotification, externalID: "msg-1"}
	ticket := &fakeSink{name: models.SinkTicket, err: errors.New("github: 503")}

	proc := New(st, []Sink{notif, ticket}, Config{Limit: 10})
	err := proc.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []int64{1}, notif.delivered)
	assert.Equal(t, []int64{1}, ticket.delivered)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunOnce_BlocklistSinkSkipsBelowThresholdSeverity(t *testing.T) {
	st, mock := newMockStore(t)

	detail, _ := json.Marshal(models.DetailPayload{IPAddress: "203.0.113.9"})
	mock.ExpectQuery(regexp.QuoteMeta("completed_blocklist = FALSE")).
		WillReturnRows(sqlmock.NewRows(escalationColumns).AddRow(baseEscalationRow(2, 2, detail)...))

	blocklist := &fakeSink{name: models.SinkBlocklist, externalID: "row-1"}
	proc := New(st, []Sink{blocklist}, Config{Limit: 10})

	err := proc.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Empty(t, blocklist.delivered)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunOnce_BlocklistSinkSkipsWithoutDerivableIP(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("completed_blocklist = FALSE")).
		WillReturnRows(sqlmock.NewRows(escalationColumns).AddRow(baseEscalationRow(3, 5, nil)...))

	blocklist := &fakeSink{name: models.SinkBlocklist, externalID: "row-1"}
	proc := New(st, []Sink{blocklist}, Config{Limit: 10})

	err := proc.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Empty(t, blocklist.delivered)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunOnce_BlocklistSinkDeliversWhenApplicable(t *testing.T) {
	st, mock := newMockStore(t)

	detail, _ := json.Marshal(models.DetailPayload{IPAddress: "203.0.113.9"})
	mock.ExpectQuery(regexp.QuoteMeta("completed_blocklist = FALSE")).
		WillReturnRows(sqlmock.NewRows(escalationColumns).AddRow(baseEscalationRow(4, 5, detail)...))
	mock.ExpectExec(regexp.QuoteMeta("SET completed_blocklist = TRUE")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	blocklist := &fakeSink{name: models.SinkBlocklist, externalID: "row-1"}
	proc := New(st, []Sink{blocklist}, Config{Limit: 10})

	err := proc.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []int64{4}, blocklist.delivered)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunOnce_OneEscalationFailureDoesNotStopOthers(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("completed_notification = FALSE")).
		WillReturnRows(sqlmock.NewRows(escalationColumns).
			AddRow(baseEscalationRow(1, 5, nil)...).
			AddRow(baseEscalationRow(2, 5, nil)...))
	mock.ExpectExec(regexp.QuoteMeta("SET notification_error = $1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET completed_notification = TRUE")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	notif := &failFirstSink{name: models.SinkNotification, failOn: 1}
	proc := New(st, []Sink{notif}, Config{Limit: 10})

	err := proc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, notif.delivered)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type failFirstSink struct {
	name      models.SinkName
	failOn    int64
	delivered []int64
}

func (f *failFirstSink) Name() models.SinkName { return f.name }

func (f *failFirstSink) Deliver(ctx context.Context, esc *models.Escalation) (string, error) {
	f.delivered = append(f.delivered, esc.ID)
	if esc.ID == f.failOn {
		return "", errors.New("slack: rate limited")
	}
	return "msg-" + time.Now().Format("150405"), nil
}

func TestDerivedIP_ExtractsFromDetailPayload(t *testing.T) {
	detail, _ := json.Marshal(models.DetailPayload{IPAddress: "198.51.100.4"})
	esc := &models.Escalation{DetailPayload: detail}

	assert.Equal(t, "198.51.100.4", derivedIP(esc))
}

func TestDerivedIP_EmptyPayloadReturnsEmptyString(t *testing.T) {
	esc := &models.Escalation{}
	assert.Equal(t, "", derivedIP(esc))
}
