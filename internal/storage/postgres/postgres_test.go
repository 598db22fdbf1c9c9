package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"sportoase-service/internal/models"
	"sportoase-service/internal/storage"
	"sportoase-service/pkg/response"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var monday = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

func newMock(t *testing.T, lockTimeout time.Duration) (*Storage, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewWithDB(db, lockTimeout), mock
}

func TestWithTx_Commit(t *testing.T) {
	s, mock := newMock(t, 3*time.Second)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT set_config('lock_timeout', $1, true)`)).
		WithArgs("3000ms").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock(hashtext($1))`)).
		WithArgs("slot:2025-03-03:3").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(SUM(student_count), 0) FROM bookings WHERE date=$1 AND period=$2`)).
		WithArgs("2025-03-03", 3).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(7))
	mock.ExpectCommit()

	var count int
	err := s.WithTx(context.Background(), func(ctx context.Context, repos storage.Repos) error {
		key := models.NewSlotKey(monday, 3)
		if err := repos.Guard.LockSlot(ctx, key); err != nil {
			return err
		}
		var err error
		count, err = repos.Bookings.CountStudents(ctx, key)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 7, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollbackOnError(t *testing.T) {
	s, mock := newMock(t, 0)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := s.WithTx(context.Background(), func(ctx context.Context, repos storage.Repos) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLockSlot_TimeoutIsUnavailable(t *testing.T) {
	s, mock := newMock(t, 0)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock(hashtext($1))`)).
		WillReturnError(&pq.Error{Code: "55P03", Message: "canceling statement due to lock timeout"})
	mock.ExpectRollback()

	err := s.WithTx(context.Background(), func(ctx context.Context, repos storage.Repos) error {
		return repos.Guard.LockSlot(ctx, models.NewSlotKey(monday, 1))
	})
	require.ErrorIs(t, err, response.ErrUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTimeslot(t *testing.T) {
	s, mock := newMock(t, 0)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM timeslots WHERE weekday=$1 AND period=$2`)).
		WithArgs("Mon", 3).
		WillReturnRows(sqlmock.NewRows([]string{"weekday", "period", "label", "start_time", "end_time", "max_students"}).
			AddRow("Mon", 3, "3. Stunde", "09:55:00", "10:40:00", 200))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM timeslots WHERE weekday=$1 AND period=$2`)).
		WithArgs("Sat", 1).
		WillReturnRows(sqlmock.NewRows([]string{"weekday", "period", "label", "start_time", "end_time", "max_students"}))
	mock.ExpectRollback()

	err := s.WithReadTx(context.Background(), func(ctx context.Context, repos storage.Repos) error {
		ts, err := repos.Catalog.GetTimeslot(ctx, models.Mon, 3)
		require.NoError(t, err)
		assert.Equal(t, models.ClockTime{Hour: 9, Minute: 55}, ts.StartTime)
		assert.Equal(t, "10:40", ts.EndTime.String())
		assert.Equal(t, 200, ts.MaxStudents)

		_, err = repos.Catalog.GetTimeslot(ctx, models.Sat, 1)
		require.ErrorIs(t, err, response.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBooking(t *testing.T) {
	s, mock := newMock(t, 0)
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO bookings`)).
		WithArgs("2025-03-03", "Mon", 3, "sport", "Basketball", "Frau Meier", nil,
			`[{"name":"Anna","klasse":"5a"},{"name":"Bob","klasse":"5a"}]`, 2, "meier").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(42), created))
	mock.ExpectCommit()

	b := &models.Booking{
		Date:        monday.Add(9 * time.Hour),
		Weekday:     models.Mon,
		Period:      3,
		OfferType:   models.OfferSport,
		OfferLabel:  "Basketball",
		TeacherName: "Frau Meier",
		Students:    []models.Student{{Name: "Anna", Klasse: "5a"}, {Name: "Bob", Klasse: "5a"}},
		Owner:       "meier",
	}

	err := s.WithTx(context.Background(), func(ctx context.Context, repos storage.Repos) error {
		return repos.Bookings.InsertBooking(ctx, b)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), b.ID)
	assert.Equal(t, created, b.CreatedAt)
	assert.Equal(t, monday, b.Date)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListBookings_OwnerAndLimit(t *testing.T) {
	s, mock := newMock(t, 0)
	owner := "meier"
	class := "5a"

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM bookings WHERE owner = $1 AND date >= $2 ORDER BY date DESC, period, id LIMIT $3`)).
		WithArgs("meier", "2025-03-03", 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "date", "weekday", "period", "offer_type", "offer_label",
			"teacher_name", "teacher_class", "students", "owner", "created_at"}).
			AddRow(int64(1), monday, "Mon", 3, "games", "Völkerball", "Frau Meier", class,
				[]byte(`[{"name":"Anna","klasse":"5a"}]`), "meier", monday))
	mock.ExpectRollback()

	err := s.WithReadTx(context.Background(), func(ctx context.Context, repos storage.Repos) error {
		out, err := repos.Bookings.ListBookings(ctx, models.BookingFilter{Owner: &owner, From: &monday, Limit: 10})
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, models.OfferGames, out[0].OfferType)
		require.NotNil(t, out[0].TeacherClass)
		assert.Equal(t, "5a", *out[0].TeacherClass)
		assert.Equal(t, 1, out[0].StudentCount())
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBlock_DuplicateIsConflict(t *testing.T) {
	s, mock := newMock(t, 0)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO blocked_slots`)).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	err := s.WithTx(context.Background(), func(ctx context.Context, repos storage.Repos) error {
		return repos.Blocks.InsertBlock(ctx, &models.BlockedSlot{Date: monday, Weekday: models.Mon, Period: 2, Reason: "Beratung", BlockedBy: "admin"})
	})
	require.ErrorIs(t, err, response.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteBlock_Missing(t *testing.T) {
	s, mock := newMock(t, 0)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM blocked_slots WHERE date=$1 AND period=$2`)).
		WithArgs("2025-03-03", 2).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	var deleted bool
	err := s.WithTx(context.Background(), func(ctx context.Context, repos storage.Repos) error {
		var err error
		deleted, err = repos.Blocks.DeleteBlock(ctx, models.NewSlotKey(monday, 2))
		return err
	})
	require.NoError(t, err)
	assert.False(t, deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBlock_NoneIsNil(t *testing.T) {
	s, mock := newMock(t, 0)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM blocked_slots WHERE date=$1 AND period=$2`)).
		WithArgs("2025-03-03", 4).
		WillReturnRows(sqlmock.NewRows([]string{"id", "date", "weekday", "period", "reason", "blocked_by", "created_at"}))
	mock.ExpectRollback()

	err := s.WithReadTx(context.Background(), func(ctx context.Context, repos storage.Repos) error {
		b, err := repos.Blocks.GetBlock(ctx, models.NewSlotKey(monday, 4))
		require.NoError(t, err)
		assert.Nil(t, b)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteBlock_PeriodOutOfRangeIsNotFound(t *testing.T) {
	s, mock := newMock(t, 0)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM blocked_slots WHERE date=$1 AND period=$2`)).
		WithArgs("2025-03-03", 70000).
		WillReturnError(&pq.Error{Code: "22003", Message: "value \"70000\" is out of range for type smallint"})
	mock.ExpectRollback()

	err := s.WithTx(context.Background(), func(ctx context.Context, repos storage.Repos) error {
		_, err := repos.Blocks.DeleteBlock(ctx, models.NewSlotKey(monday, 70000))
		return err
	})
	require.ErrorIs(t, err, response.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListTimeslotsByWeekday(t *testing.T) {
	s, mock := newMock(t, 0)

	cols := []string{"weekday", "period", "label", "start_time", "end_time", "max_students"}
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM timeslots WHERE weekday=$1 ORDER BY period`)).
		WithArgs("Tue").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("Tue", 1, "1. Stunde", "08:00:00", "08:45:00", 200).
			AddRow("Tue", 2, "Schwimmen", "08:50:00", "09:35:00", 25))
	mock.ExpectRollback()

	err := s.WithReadTx(context.Background(), func(ctx context.Context, repos storage.Repos) error {
		slots, err := repos.Catalog.ListTimeslotsByWeekday(ctx, models.Tue)
		require.NoError(t, err)
		require.Len(t, slots, 2)
		assert.Equal(t, models.ClockTime{Hour: 8, Minute: 50}, slots[1].StartTime)
		assert.Equal(t, "09:35", slots[1].EndTime.String())
		assert.Equal(t, 25, slots[1].MaxStudents)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
