package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"sportoase-service/internal/models"
	"sportoase-service/internal/storage"
	"sportoase-service/pkg/response"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var monday = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

func TestWithTx_RollbackDiscardsWrites(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(ctx context.Context, repos storage.Repos) error {
		b := &models.Booking{Date: monday, Weekday: models.Mon, Period: 3, Students: []models.Student{{Name: "Anna"}}}
		require.NoError(t, repos.Bookings.InsertBooking(ctx, b))
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = s.WithReadTx(ctx, func(ctx context.Context, repos storage.Repos) error {
		n, err := repos.Bookings.CountStudents(ctx, models.NewSlotKey(monday, 3))
		require.NoError(t, err)
		assert.Zero(t, n)
		return nil
	})
	require.NoError(t, err)
}

func TestWithReadTx_RejectsWrites(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.WithReadTx(ctx, func(ctx context.Context, repos storage.Repos) error {
		return repos.Blocks.InsertBlock(ctx, &models.BlockedSlot{Date: monday, Period: 1})
	})
	require.ErrorIs(t, err, errReadOnly)
}

func TestCatalog_SeedIsIdempotentAndOrdered(t *testing.T) {
	s := New()
	ctx := context.Background()

	seed := []models.Timeslot{
		{Weekday: models.Tue, Period: 1, Label: "1. Stunde", MaxStudents: 20},
		{Weekday: models.Mon, Period: 2, Label: "2. Stunde", MaxStudents: 20},
		{Weekday: models.Mon, Period: 1, Label: "1. Stunde", MaxStudents: 20},
	}

	err := s.WithTx(ctx, func(ctx context.Context, repos storage.Repos) error {
		n, err := repos.Catalog.SeedTimeslots(ctx, seed)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		_, err = repos.Catalog.UpdateTimeslotLabel(ctx, models.Mon, 1, "Basketball")
		require.NoError(t, err)

		n, err = repos.Catalog.SeedTimeslots(ctx, seed)
		require.NoError(t, err)
		assert.Zero(t, n)
		return nil
	})
	require.NoError(t, err)

	err = s.WithReadTx(ctx, func(ctx context.Context, repos storage.Repos) error {
		slots, err := repos.Catalog.ListTimeslots(ctx)
		require.NoError(t, err)
		require.Len(t, slots, 3)
		assert.Equal(t, models.Mon, slots[0].Weekday)
		assert.Equal(t, 1, slots[0].Period)
		assert.Equal(t, "Basketball", slots[0].Label, "seeding must not overwrite labels")
		assert.Equal(t, models.Tue, slots[2].Weekday)

		_, err = repos.Catalog.GetTimeslot(ctx, models.Sat, 1)
		require.ErrorIs(t, err, response.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestBlocks_UniquePerSlot(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.WithTx(ctx, func(ctx context.Context, repos storage.Repos) error {
		require.NoError(t, repos.Blocks.InsertBlock(ctx, &models.BlockedSlot{Date: monday, Weekday: models.Mon, Period: 2}))
		err := repos.Blocks.InsertBlock(ctx, &models.BlockedSlot{Date: monday, Weekday: models.Mon, Period: 2})
		require.ErrorIs(t, err, response.ErrConflict)

		deleted, err := repos.Blocks.DeleteBlock(ctx, models.NewSlotKey(monday, 2))
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = repos.Blocks.DeleteBlock(ctx, models.NewSlotKey(monday, 2))
		require.NoError(t, err)
		assert.False(t, deleted)
		return nil
	})
	require.NoError(t, err)
}

func TestBookings_ListFilterAndOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	anna := "anna"

	err := s.WithTx(ctx, func(ctx context.Context, repos storage.Repos) error {
		for _, b := range []models.Booking{
			{Date: monday, Period: 3, Owner: "anna", Students: []models.Student{{Name: "A"}}},
			{Date: monday.AddDate(0, 0, 1), Period: 1, Owner: "anna", Students: []models.Student{{Name: "B"}}},
			{Date: monday, Period: 1, Owner: "bob", Students: []models.Student{{Name: "C"}, {Name: "D"}}},
		} {
			b := b
			require.NoError(t, repos.Bookings.InsertBooking(ctx, &b))
		}
		return nil
	})
	require.NoError(t, err)

	err = s.WithReadTx(ctx, func(ctx context.Context, repos storage.Repos) error {
		all, err := repos.Bookings.ListBookings(ctx, models.BookingFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, int64(2), all[0].ID, "latest date first")
		assert.Equal(t, 1, all[1].Period)
		assert.Equal(t, 3, all[2].Period)

		mine, err := repos.Bookings.ListBookings(ctx, models.BookingFilter{Owner: &anna, To: &monday})
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, int64(1), mine[0].ID)

		limited, err := repos.Bookings.ListBookings(ctx, models.BookingFilter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, limited, 2)

		n, err := repos.Bookings.CountStudents(ctx, models.NewSlotKey(monday, 1))
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		return nil
	})
	require.NoError(t, err)
}

func TestNotifications_MarkRead(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.WithTx(ctx, func(ctx context.Context, repos storage.Repos) error {
		require.NoError(t, repos.Notifications.InsertNotification(ctx, &models.Notification{Type: models.NotificationNewBooking, Message: "one"}))
		require.NoError(t, repos.Notifications.InsertNotification(ctx, &models.Notification{Type: models.NotificationSlotBlocked, Message: "two"}))

		ok, err := repos.Notifications.MarkNotificationRead(ctx, 1, time.Now())
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repos.Notifications.MarkNotificationRead(ctx, 99, time.Now())
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)

	err = s.WithReadTx(ctx, func(ctx context.Context, repos storage.Repos) error {
		unread, err := repos.Notifications.ListNotifications(ctx, true, 50)
		require.NoError(t, err)
		require.Len(t, unread, 1)
		assert.Equal(t, "two", unread[0].Message)

		all, err := repos.Notifications.ListNotifications(ctx, false, 50)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, int64(2), all[0].ID, "newest first")
		assert.True(t, all[1].IsRead)
		assert.NotNil(t, all[1].ReadAt)
		return nil
	})
	require.NoError(t, err)
}
