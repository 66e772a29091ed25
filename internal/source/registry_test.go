package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

type stubTokens struct {
	tokens []string
	next   int
}

func (s *stubTokens) NewToken() (string, error) {
	tok := s.tokens[s.next]
	s.next++
	return tok, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestRegistry(t *testing.T) (*Registry, pgxmock.PgxPoolIface, time.Time) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	reg := NewRegistry(mock, &stubTokens{tokens: []string{"tok-a", "tok-b"}}, nil).
		WithClock(fixedClock(now))
	return reg, mock, now
}

func sourceRow(id int64, foreignID string, label *string, at time.Time) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "foreign_id", "label", "created_at", "updated_at"}).
		AddRow(id, foreignID, label, at, at)
}

func TestCreateOrGetInsertsFreshSource(t *testing.T) {
	t.Parallel()

	reg, mock, now := newTestRegistry(t)

	mock.ExpectQuery("SELECT id, foreign_id, label, created_at, updated_at FROM sources WHERE foreign_id").
		WithArgs("src-1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("INSERT INTO sources").
		WithArgs("src-1", pgxmock.AnyArg(), now).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))

	src, err := reg.CreateOrGet(context.Background(), CreateInput{ForeignID: "src-1", Label: "Test"})
	require.NoError(t, err)
	require.Equal(t, int64(1), src.ID)
	require.Equal(t, "src-1", src.ForeignID)
	require.Equal(t, "Test", src.Label)
	require.Equal(t, now, src.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrGetIsIdempotent(t *testing.T) {
	t.Parallel()

	reg, mock, now := newTestRegistry(t)

	label := "Test"
	mock.ExpectQuery("SELECT id, foreign_id, label, created_at, updated_at FROM sources WHERE foreign_id").
		WithArgs("src-1").
		WillReturnRows(sourceRow(1, "src-1", &label, now))
	mock.ExpectExec("UPDATE sources SET label").
		WithArgs(pgxmock.AnyArg(), now, int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	src, err := reg.CreateOrGet(context.Background(), CreateInput{ForeignID: "src-1", Label: "Renamed"})
	require.NoError(t, err)
	require.Equal(t, int64(1), src.ID, "existing row must be reused, not duplicated")
	require.Equal(t, "Renamed", src.Label, "label must be updated in place")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrGetGeneratesDistinctForeignIDs(t *testing.T) {
	t.Parallel()

	reg, mock, now := newTestRegistry(t)

	mock.ExpectQuery("INSERT INTO sources").
		WithArgs("tok-a", pgxmock.AnyArg(), now).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery("INSERT INTO sources").
		WithArgs("tok-b", pgxmock.AnyArg(), now).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(2)))

	first, err := reg.CreateOrGet(context.Background(), CreateInput{})
	require.NoError(t, err)
	second, err := reg.CreateOrGet(context.Background(), CreateInput{})
	require.NoError(t, err)

	require.NotEqual(t, first.ID, second.ID)
	require.NotEqual(t, first.ForeignID, second.ForeignID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrGetRetriesLookupOnUniqueViolation(t *testing.T) {
	t.Parallel()

	reg, mock, now := newTestRegistry(t)

	mock.ExpectQuery("SELECT id, foreign_id, label, created_at, updated_at FROM sources WHERE foreign_id").
		WithArgs("src-1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("INSERT INTO sources").
		WithArgs("src-1", pgxmock.AnyArg(), now).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	// The losing racer retries the lookup and finds the winner's row.
	mock.ExpectQuery("SELECT id, foreign_id, label, created_at, updated_at FROM sources WHERE foreign_id").
		WithArgs("src-1").
		WillReturnRows(sourceRow(7, "src-1", nil, now))
	mock.ExpectExec("UPDATE sources SET label").
		WithArgs(pgxmock.AnyArg(), now, int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	src, err := reg.CreateOrGet(context.Background(), CreateInput{ForeignID: "src-1", Label: "Test"})
	require.NoError(t, err, "constraint violation must not surface to the caller")
	require.Equal(t, int64(7), src.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrGetRejectsMalformedInput(t *testing.T) {
	t.Parallel()

	reg, mock, _ := newTestRegistry(t)

	cases := []struct {
		name  string
		input CreateInput
	}{
		{"surrounding whitespace", CreateInput{ForeignID: " src-1 "}},
		{"embedded whitespace", CreateInput{ForeignID: "src 1"}},
		{"oversized foreign id", CreateInput{ForeignID: string(make([]byte, 300))}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := reg.CreateOrGet(context.Background(), tc.input)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}
	// Malformed input is rejected before any storage round trip.
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestByForeignIDEmptyShortCircuits(t *testing.T) {
	t.Parallel()

	reg, mock, _ := newTestRegistry(t)

	_, found, err := reg.ByForeignID(context.Background(), "")
	require.NoError(t, err)
	require.False(t, found)
	// No expectations were registered: an empty foreign ID must not
	// issue a storage query.
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestByIDNotFoundIsSoft(t *testing.T) {
	t.Parallel()

	reg, mock, _ := newTestRegistry(t)

	mock.ExpectQuery("SELECT id, foreign_id, label, created_at, updated_at FROM sources WHERE id").
		WithArgs(int64(42)).
		WillReturnError(pgx.ErrNoRows)

	_, found, err := reg.ByID(context.Background(), 42)
	require.NoError(t, err, "a missing row is a normal outcome, not an error")
	require.False(t, found)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAllFiltersByIDs(t *testing.T) {
	t.Parallel()

	reg, mock, now := newTestRegistry(t)

	label := "Court Filings"
	mock.ExpectQuery(`SELECT id, foreign_id, label, created_at, updated_at FROM sources WHERE id = ANY`).
		WithArgs([]int64{1, 2}).
		WillReturnRows(sourceRow(1, "src-1", &label, now).AddRow(int64(2), "src-2", (*string)(nil), now, now))

	sources, err := reg.All(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	require.Equal(t, "Court Filings", sources[0].Label)
	require.Empty(t, sources[1].Label)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAllLabelsProjection(t *testing.T) {
	t.Parallel()

	reg, mock, _ := newTestRegistry(t)

	label := "Leaks"
	mock.ExpectQuery("SELECT id, label FROM sources").
		WillReturnRows(pgxmock.NewRows([]string{"id", "label"}).
			AddRow(int64(1), &label).
			AddRow(int64(2), (*string)(nil)))

	labels, err := reg.AllLabels(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[int64]string{1: "Leaks", 2: ""}, labels)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteCascadesInOneTransaction(t *testing.T) {
	t.Parallel()

	reg, mock, _ := newTestRegistry(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM pages WHERE document_id IN").
		WithArgs(int64(3)).
		WillReturnResult(pgxmock.NewResult("DELETE", 12))
	mock.ExpectExec("DELETE FROM document_references WHERE document_id IN").
		WithArgs(int64(3)).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))
	mock.ExpectExec("DELETE FROM documents WHERE source_id").
		WithArgs(int64(3)).
		WillReturnResult(pgxmock.NewResult("DELETE", 5))
	mock.ExpectExec("DELETE FROM sources WHERE id").
		WithArgs(int64(3)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	err := reg.Delete(context.Background(), Source{ID: 3, ForeignID: "src-3"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRollsBackOnMidTransactionFailure(t *testing.T) {
	t.Parallel()

	reg, mock, _ := newTestRegistry(t)

	boom := errors.New("connection reset")
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM pages WHERE document_id IN").
		WithArgs(int64(3)).
		WillReturnResult(pgxmock.NewResult("DELETE", 12))
	// Failure injected after the page delete: everything must roll back.
	mock.ExpectExec("DELETE FROM document_references WHERE document_id IN").
		WithArgs(int64(3)).
		WillReturnError(boom)
	mock.ExpectRollback()

	err := reg.Delete(context.Background(), Source{ID: 3, ForeignID: "src-3"})
	var derr *DeleteError
	require.ErrorAs(t, err, &derr)
	require.Equal(t, int64(3), derr.SourceID)
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteSurfacesBeginFailure(t *testing.T) {
	t.Parallel()

	reg, mock, _ := newTestRegistry(t)

	mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))

	err := reg.Delete(context.Background(), Source{ID: 9})
	var derr *DeleteError
	require.ErrorAs(t, err, &derr)
	require.NoError(t, mock.ExpectationsWereMet())
}
