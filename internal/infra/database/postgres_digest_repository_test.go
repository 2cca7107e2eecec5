package database

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"group_question_service/internal/domain/digest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigestCreateAndGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresDigestRepository(db)
	ctx := context.Background()

	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	to := from.Add(7 * 24 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO digests")).
		WithArgs(int64(3), from, to, "{11,12}", "pending").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(8), to, to))

	d := &digest.Digest{GroupID: 3, WindowStart: from, WindowEnd: to, RecordIDs: []int64{11, 12}, Status: digest.StatusPending}
	require.NoError(t, repo.Create(ctx, d))
	assert.Equal(t, int64(8), d.ID)

	mock.ExpectQuery(regexp.QuoteMeta("FROM digests WHERE id = $1")).
		WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "group_id", "window_start", "window_end", "record_ids", "status", "error", "sent_at", "created_at", "updated_at",
		}).AddRow(int64(8), int64(3), from, to, []byte("{11,12}"), "sent", nil, to, to, to))

	got, err := repo.GetByID(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, []int64{11, 12}, got.RecordIDs)
	assert.Equal(t, digest.StatusSent, got.Status)
	assert.True(t, got.SentAt.Valid)
	assert.False(t, got.Error.Valid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDigestUpdateNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE digests")).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}))

	d := &digest.Digest{ID: 99, Status: digest.StatusFailed, Error: sql.NullString{String: "smtp down", Valid: true}}
	err = NewPostgresDigestRepository(db).Update(context.Background(), d)
	assert.ErrorIs(t, err, ErrDigestNotFound)
}

func TestDigestUpdateRewritesRecords(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE digests")).
		WithArgs(from, to, "{11,13}", "processing", nil, nil, int64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(to))

	d := &digest.Digest{ID: 8, WindowStart: from, WindowEnd: to, RecordIDs: []int64{11, 13}, Status: digest.StatusProcessing}
	require.NoError(t, NewPostgresDigestRepository(db).Update(context.Background(), d))
	assert.Equal(t, to, d.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDigestListByRecords(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE group_id = $1 AND record_ids && $2::bigint[] ORDER BY id")).
		WithArgs(int64(3), "{11,12}").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "group_id", "window_start", "window_end", "record_ids", "status", "error", "sent_at", "created_at", "updated_at",
		}).
			AddRow(int64(8), int64(3), from, from, []byte("{11}"), "failed", "smtp down", nil, from, from).
			AddRow(int64(9), int64(3), from, from, []byte("{12}"), "sent", nil, from, from, from))

	digests, err := NewPostgresDigestRepository(db).ListByRecords(context.Background(), 3, []int64{11, 12})
	require.NoError(t, err)
	require.Len(t, digests, 2)
	assert.Equal(t, digest.StatusFailed, digests[0].Status)
	assert.Equal(t, "smtp down", digests[0].Error.String)
	assert.Equal(t, []int64{12}, digests[1].RecordIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}
