package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeArchiver struct {
	keys   []string
	bodies [][]byte
	err    error
}

func (a *fakeArchiver) Archive(ctx context.Context, key string, body []byte) error {
	if a.err != nil {
		return a.err
	}
	a.keys = append(a.keys, key)
	a.bodies = append(a.bodies, body)
	return nil
}

func TestRetentionRunOnceWithoutArchive(t *testing.T) {
	logger, mock := newMockLogger(t)

	mock.ExpectExec("DELETE FROM audit_log WHERE timestamp").
		WillReturnResult(sqlmock.NewResult(0, 7))

	r := NewRetention(logger, nil, RetentionPolicy{RetentionDays: 30}, nil)
	removed, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetentionRunOnceArchivesBeforeDelete(t *testing.T) {
	logger, mock := newMockLogger(t)

	expired := &Entry{
		ID:           1,
		EventType:    "BRANCH_DELETED",
		ResourceType: "branch",
		ResourceID:   "b-1",
		Timestamp:    time.Now().UTC().AddDate(0, 0, -120),
	}
	mock.ExpectQuery("SELECT (.+) FROM audit_log WHERE timestamp").
		WillReturnRows(auditRows(expired))
	mock.ExpectExec("DELETE FROM audit_log WHERE timestamp").
		WillReturnResult(sqlmock.NewResult(0, 1))

	archiver := &fakeArchiver{}
	r := NewRetention(logger, archiver, RetentionPolicy{
		RetentionDays:  90,
		ArchiveEnabled: true,
		ArchivePrefix:  "audit-archive",
	}, nil)

	removed, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	require.Len(t, archiver.keys, 1)
	assert.True(t, strings.HasPrefix(archiver.keys[0], "audit-archive/"))
	assert.True(t, strings.HasSuffix(archiver.keys[0], ".ndjson"))
	assert.Contains(t, string(archiver.bodies[0]), `"event_type":"BRANCH_DELETED"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetentionArchivesEveryBatchBeforeDelete(t *testing.T) {
	logger, mock := newMockLogger(t)

	old := time.Now().UTC().AddDate(0, 0, -120)
	fullBatch := sqlmock.NewRows([]string{
		"id", "event_type", "resource_type", "resource_id", "resource_name",
		"actor", "branch_id", "timestamp",
	})
	for i := 0; i < archiveBatchSize; i++ {
		fullBatch.AddRow(int64(i+1), "BRANCH_DELETED", "branch", fmt.Sprintf("b-%d", i+1), "", "", "", old)
	}
	last := &Entry{
		ID:           int64(archiveBatchSize + 1),
		EventType:    "LEDGER_ENTRY_POSTED",
		ResourceType: "ledger_entry",
		ResourceID:   "l-1",
		Timestamp:    old,
	}

	// A full first page forces a second Search; every page must be
	// archived before the single delete runs.
	mock.ExpectQuery("SELECT (.+) FROM audit_log WHERE timestamp").
		WillReturnRows(fullBatch)
	mock.ExpectQuery("SELECT (.+) FROM audit_log WHERE timestamp").
		WillReturnRows(auditRows(last))
	mock.ExpectExec("DELETE FROM audit_log WHERE timestamp").
		WillReturnResult(sqlmock.NewResult(0, int64(archiveBatchSize+1)))

	archiver := &fakeArchiver{}
	r := NewRetention(logger, archiver, RetentionPolicy{
		RetentionDays:  90,
		ArchiveEnabled: true,
		ArchivePrefix:  "audit-archive",
	}, nil)

	removed, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(archiveBatchSize+1), removed)

	require.Len(t, archiver.keys, 2)
	assert.NotEqual(t, archiver.keys[0], archiver.keys[1])
	assert.Contains(t, string(archiver.bodies[1]), `"event_type":"LEDGER_ENTRY_POSTED"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetentionKeepsRowsWhenArchiveFails(t *testing.T) {
	logger, mock := newMockLogger(t)

	expired := &Entry{ID: 1, EventType: "BRANCH_DELETED", ResourceType: "branch", ResourceID: "b-1", Timestamp: time.Now().UTC().AddDate(0, 0, -120)}
	mock.ExpectQuery("SELECT (.+) FROM audit_log WHERE timestamp").
		WillReturnRows(auditRows(expired))
	// No DELETE expected when the archive upload fails.

	r := NewRetention(logger, &fakeArchiver{err: errors.New("bucket unavailable")},
		RetentionPolicy{RetentionDays: 90, ArchiveEnabled: true, ArchivePrefix: "audit-archive"}, nil)

	_, err := r.RunOnce(context.Background())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetentionSkipsEmptyArchive(t *testing.T) {
	logger, mock := newMockLogger(t)

	mock.ExpectQuery("SELECT (.+) FROM audit_log WHERE timestamp").
		WillReturnRows(auditRows())
	mock.ExpectExec("DELETE FROM audit_log WHERE timestamp").
		WillReturnResult(sqlmock.NewResult(0, 0))

	archiver := &fakeArchiver{}
	r := NewRetention(logger, archiver,
		RetentionPolicy{RetentionDays: 90, ArchiveEnabled: true, ArchivePrefix: "audit-archive"}, nil)

	removed, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed)
	assert.Empty(t, archiver.keys)
}
