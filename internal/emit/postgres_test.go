package emit

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/arremate/ingestor/internal/pipeline"
)

// upsertArgs mirrors the argument list Emit binds to upsertRecordSQL.
func upsertArgs(rec pipeline.CanonicalRecord) []interface{} {
	return []interface{}{
		rec.InternalID,
		rec.City,
		rec.State,
		rec.AuctionDate,
		rec.PublishedDate,
		rec.SourceURL,
		rec.NoticeURL,
		rec.Title,
		rec.Description,
		rec.Entity,
		rec.Tags,
		rec.EstimatedValue,
		string(rec.Status),
	}
}

func TestPostgresSinkUpsertsRecord(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sink, err := NewPostgresSinkWithPool(mock)
	require.NoError(t, err)

	rec := validRecord("lot-aaaa")
	mock.ExpectExec("INSERT INTO canonical_records").
		WithArgs(
			rec.InternalID,
			rec.City,
			rec.State,
			rec.AuctionDate,
			rec.PublishedDate,
			rec.SourceURL,
			rec.NoticeURL,
			rec.Title,
			rec.Description,
			rec.Entity,
			rec.Tags,
			rec.EstimatedValue,
			string(rec.Status),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, sink.Emit(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSinkRetriesTransientFailure(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sink, err := NewPostgresSinkWithPool(mock)
	require.NoError(t, err)

	rec := validRecord("lot-aaaa")
	mock.ExpectExec("INSERT INTO canonical_records").
		WithArgs(upsertArgs(rec)...).
		WillReturnError(errors.New("connection reset by peer"))
	mock.ExpectExec("INSERT INTO canonical_records").
		WithArgs(upsertArgs(rec)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, sink.Emit(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSinkSurfacesPersistentFailure(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sink, err := NewPostgresSinkWithPool(mock)
	require.NoError(t, err)

	rec := validRecord("lot-aaaa")
	for i := 0; i < persistAttempts; i++ {
		mock.ExpectExec("INSERT INTO canonical_records").
			WithArgs(upsertArgs(rec)...).
			WillReturnError(errors.New("relation does not exist"))
	}

	err = sink.Emit(context.Background(), rec)
	require.Error(t, err)
	require.Contains(t, err.Error(), "lot-aaaa")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSinkRequiresIdentity(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sink, err := NewPostgresSinkWithPool(mock)
	require.NoError(t, err)

	require.Error(t, sink.Emit(context.Background(), pipeline.CanonicalRecord{}))
	require.NoError(t, mock.ExpectationsWereMet())
}
