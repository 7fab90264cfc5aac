package audit

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockLogger(t *testing.T) (*DBLogger, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_log").
		WillReturnResult(sqlmock.NewResult(0, 0))

	logger, err := NewDBLogger(db)
	require.NoError(t, err)
	return logger, mock
}

func TestDBLoggerRecord(t *testing.T) {
	logger, mock := newMockLogger(t)

	entry := &Entry{
		EventType:    "BRANCH_CREATED",
		ResourceType: "branch",
		ResourceID:   "b-1",
		ResourceName: "Downtown",
		Actor:        "Dana Ops",
		BranchID:     "b-1",
		Timestamp:    time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO audit_log").
		WithArgs(entry.EventType, entry.ResourceType, entry.ResourceID, entry.ResourceName,
			entry.Actor, entry.BranchID, entry.Timestamp).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, logger.Record(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func auditRows(entries ...*Entry) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "event_type", "resource_type", "resource_id", "resource_name",
		"actor", "branch_id", "timestamp",
	})
	for _, e := range entries {
		rows.AddRow(e.ID, e.EventType, e.ResourceType, e.ResourceID, e.ResourceName,
			e.Actor, e.BranchID, e.Timestamp)
	}
	return rows
}

func TestDBLoggerSearchDefaultLimit(t *testing.T) {
	logger, mock := newMockLogger(t)

	e := &Entry{ID: 1, EventType: "BRANCH_CREATED", ResourceType: "branch", ResourceID: "b-1", Timestamp: time.Now().UTC()}
	mock.ExpectQuery("SELECT (.+) FROM audit_log ORDER BY timestamp DESC LIMIT").
		WithArgs(100).
		WillReturnRows(auditRows(e))

	entries, err := logger.Search(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "BRANCH_CREATED", entries[0].EventType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBLoggerSearchFilters(t *testing.T) {
	logger, mock := newMockLogger(t)

	start := time.Now().Add(-time.Hour).UTC()
	end := time.Now().UTC()

	mock.ExpectQuery(`SELECT (.+) FROM audit_log WHERE timestamp >= \$1 AND timestamp <= \$2 AND event_type IN \(\$3, \$4\) AND actor = \$5`).
		WithArgs(start, end, "BRANCH_CREATED", "BRANCH_DELETED", "Dana Ops", 10, 20).
		WillReturnRows(auditRows())

	entries, err := logger.Search(context.Background(), Filter{
		StartTime:  &start,
		EndTime:    &end,
		EventTypes: []string{"BRANCH_CREATED", "BRANCH_DELETED"},
		Actor:      "Dana Ops",
		Limit:      10,
		Offset:     20,
	})
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBLoggerDeleteThrough(t *testing.T) {
	logger, mock := newMockLogger(t)

	cutoff := time.Now().UTC().AddDate(0, 0, -90)
	mock.ExpectExec("DELETE FROM audit_log WHERE timestamp").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 42))

	removed, err := logger.DeleteThrough(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(42), removed)
}
