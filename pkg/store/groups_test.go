package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/wafcore/pkg/models"
)

var groupColumns = []string{
	"id", "source_ip", "time_bucket", "member_count", "severity", "analysis_text",
	"recommended_actions", "attack_type", "status", "raw_prompt", "raw_response",
	"created_at", "updated_at",
}

func groupRow(id int64, sourceIP, timeBucket string, memberCount int) []interface{} {
	now := time.Now()
	return []interface{}{
		id, sourceIP, timeBucket, memberCount, nil, "", "", "", "open", "", "", now, now,
	}
}

func TestFindOrCreateGroup_InsertsNewGroup(t *testing.T) {
	st, mock := newSQLMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "group"`)).
		WillReturnRows(sqlmock.NewRows(groupColumns).AddRow(groupRow(1, "203.0.113.7", "20260801-1200", 3)...))

	g, created, err := st.FindOrCreateGroup(context.Background(), "203.0.113.7", "20260801-1200", 3)

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(1), g.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOrCreateGroup_ConflictReturnsExistingRow(t *testing.T) {
	st, mock := newSQLMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "group"`)).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "group" WHERE source_ip`)).
		WillReturnRows(sqlmock.NewRows(groupColumns).AddRow(groupRow(5, "203.0.113.7", "20260801-1200", 4)...))

	g, created, err := st.FindOrCreateGroup(context.Background(), "203.0.113.7", "20260801-1200", 1)

	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(5), g.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetGroup_NotFoundTranslatesToErrNotFound(t *testing.T) {
	st, mock := newSQLMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "group" WHERE id`)).
		WillReturnError(errors.New("sql: no rows in result set"))

	_, err := st.GetGroup(context.Background(), 42)

	require.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListGroupMembers_ReturnsLinkedEvents(t *testing.T) {
	st, mock := newSQLMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM event WHERE linked_group_id")).
		WillReturnRows(sqlmock.NewRows(eventColumns).AddRow(eventRow(1, "req-1", "203.0.113.7")...))

	members, err := st.ListGroupMembers(context.Background(), 5)

	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkMembersToGroup_LinksEachEventAndUpdatesMemberCount(t *testing.T) {
	st, mock := newSQLMockStore(t)

	events := []*models.Event{{ID: 10}, {ID: 11}}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE event SET linked_group_id")).
		WithArgs(int64(5), int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO group_event_link")).
		WithArgs(int64(5), int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE event SET linked_group_id")).
		WithArgs(int64(5), int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO group_event_link")).
		WithArgs(int64(5), int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "group" SET member_count`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := st.LinkMembersToGroup(context.Background(), 5, events)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkMembersToGroup_RollsBackOnFailure(t *testing.T) {
	st, mock := newSQLMockStore(t)

	events := []*models.Event{{ID: 10}}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE event SET linked_group_id")).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := st.LinkMembersToGroup(context.Background(), 5, events)

	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateGroupVerdict_UpdatesGroupAndMembersAtomically(t *testing.T) {
	st, mock := newSQLMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT event_id FROM group_event_link")).
		WillReturnRows(sqlmock.NewRows([]string{"event_id"}).AddRow(int64(10)).AddRow(int64(11)))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "group"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE event")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	memberIDs, err := st.UpdateGroupVerdict(context.Background(), 5, models.Verdict{Severity: 4, AnalysisText: "campaign"}, "group_analyzer")

	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11}, memberIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateGroupVerdict_NoMatchingGroupRollsBack(t *testing.T) {
	st, mock := newSQLMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT event_id FROM group_event_link")).
		WillReturnRows(sqlmock.NewRows([]string{"event_id"}))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "group"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := st.UpdateGroupVerdict(context.Background(), 5, models.Verdict{Severity: 4}, "group_analyzer")

	require.ErrorIs(t, err, ErrConcurrentModification)
	assert.NoError(t, mock.ExpectationsWereMet())
}
