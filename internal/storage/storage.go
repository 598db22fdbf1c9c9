// Package storage defines the transactional store the scheduling engine runs on.
// Every repository handed to a TxManager callback is bound to the same transaction.
package storage

import (
	"context"
	"time"

	"sportoase-service/internal/models"
)

type CatalogRepository interface {
	ListTimeslots(ctx context.Context) ([]models.Timeslot, error)
	ListTimeslotsByWeekday(ctx context.Context, weekday models.Weekday) ([]models.Timeslot, error)
	// GetTimeslot returns response.ErrNotFound when (weekday, period) is not in the catalog.
	GetTimeslot(ctx context.Context, weekday models.Weekday, period int) (*models.Timeslot, error)
	UpdateTimeslotLabel(ctx context.Context, weekday models.Weekday, period int, label string) (*models.Timeslot, error)
	// SeedTimeslots inserts missing catalog rows and leaves existing ones untouched.
	SeedTimeslots(ctx context.Context, slots []models.Timeslot) (int, error)
}

type BlockRepository interface {
	// GetBlock returns nil, nil when the slot-instance is not blocked.
	GetBlock(ctx context.Context, key models.SlotKey) (*models.BlockedSlot, error)
	ListBlocks(ctx context.Context, filter models.BlockFilter) ([]models.BlockedSlot, error)
	ListBlocksByDates(ctx context.Context, dates []time.Time) ([]models.BlockedSlot, error)
	InsertBlock(ctx context.Context, block *models.BlockedSlot) error
	DeleteBlock(ctx context.Context, key models.SlotKey) (bool, error)
}

type BookingRepository interface {
	// GetBooking returns response.ErrNotFound for unknown ids.
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error)
	ListBookingsBySlot(ctx context.Context, key models.SlotKey) ([]models.Booking, error)
	ListBookingsByDates(ctx context.Context, dates []time.Time) ([]models.Booking, error)
	CountStudents(ctx context.Context, key models.SlotKey) (int, error)
	InsertBooking(ctx context.Context, booking *models.Booking) error
	DeleteBooking(ctx context.Context, id int64) (bool, error)
}

type NotificationRepository interface {
	InsertNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id int64, at time.Time) (bool, error)
}

// SlotGuard serializes transactions touching the same slot-instance at the store level.
// The lock is held until the surrounding transaction ends.
type SlotGuard interface {
	LockSlot(ctx context.Context, key models.SlotKey) error
}

type Repos struct {
	Catalog       CatalogRepository
	Blocks        BlockRepository
	Bookings      BookingRepository
	Notifications NotificationRepository
	Guard         SlotGuard
}

type TxManager interface {
	// WithTx runs fn in a read-write transaction, committing when fn returns nil.
	WithTx(ctx context.Context, fn func(ctx context.Context, repos Repos) error) error
	// WithReadTx runs fn against one consistent read-only snapshot.
	WithReadTx(ctx context.Context, fn func(ctx context.Context, repos Repos) error) error
}
