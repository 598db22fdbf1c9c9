package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"sportoase-service/internal/events"
	"sportoase-service/internal/models"
	"sportoase-service/internal/storage"
	"sportoase-service/pkg/response"
)

const (
	maxOfferLabelLength   = 100
	maxTeacherNameLength  = 100
	maxTeacherClassLength = 50
	maxStudentNameLength  = 100
)

type BookingInput struct {
	Date time.Time
	// Weekday is optional. When set it must match Date.
	Weekday      models.Weekday
	Period       int
	OfferType    models.OfferType
	OfferLabel   string
	TeacherName  string
	TeacherClass string
	Students     []models.Student
}

// normalize validates the request on its own, before any state is read.
func (in BookingInput) normalize(actor models.Actor) (*models.Booking, error) {
	if in.Date.IsZero() {
		return nil, response.Invalid("date is required")
	}
	if err := validPeriod(in.Period); err != nil {
		return nil, err
	}

	date := models.TruncateToDate(in.Date)
	weekday, err := checkWeekday(date, in.Weekday)
	if err != nil {
		return nil, err
	}

	if !in.OfferType.Valid() {
		return nil, response.Invalid("offer_type must be one of sport, games, outdoor, other")
	}

	label := strings.TrimSpace(in.OfferLabel)
	if label == "" {
		return nil, response.Invalid("offer_label is required")
	}
	if utf8.RuneCountInString(label) > maxOfferLabelLength {
		return nil, response.Invalid("offer_label must be at most %d characters", maxOfferLabelLength)
	}

	teacher := strings.TrimSpace(in.TeacherName)
	if teacher == "" {
		teacher = actor.DisplayName
	}
	if teacher == "" {
		teacher = actor.Username
	}
	if utf8.RuneCountInString(teacher) > maxTeacherNameLength {
		return nil, response.Invalid("teacher_name must be at most %d characters", maxTeacherNameLength)
	}

	var teacherClass *string
	if c := strings.TrimSpace(in.TeacherClass); c != "" {
		if utf8.RuneCountInString(c) > maxTeacherClassLength {
			return nil, response.Invalid("teacher_class must be at most %d characters", maxTeacherClassLength)
		}
		teacherClass = &c
	}

	if len(in.Students) == 0 {
		return nil, response.Invalid("at least one student is required")
	}

	students := make([]models.Student, 0, len(in.Students))
	for i, st := range in.Students {
		st.Name = strings.TrimSpace(st.Name)
		st.Klasse = strings.TrimSpace(st.Klasse)
		if st.Name == "" {
			return nil, response.Invalid("student %d has no name", i+1)
		}
		if utf8.RuneCountInString(st.Name) > maxStudentNameLength {
			return nil, response.Invalid("student %d: name must be at most %d characters", i+1, maxStudentNameLength)
		}
		for _, prev := range students {
			if prev.SameAs(st) {
				return nil, response.Invalid("student %s (%s) is listed twice", st.Name, st.Klasse)
			}
		}
		students = append(students, st)
	}

	return &models.Booking{
		Date:         date,
		Weekday:      weekday,
		Period:       in.Period,
		OfferType:    in.OfferType,
		OfferLabel:   label,
		TeacherName:  teacher,
		TeacherClass: teacherClass,
		Students:     students,
		Owner:        actor.Username,
	}, nil
}

// CreateBooking books students into a slot-instance. Capacity, blocks and student double
// booking are checked inside the slot's transaction.
func (s *Service) CreateBooking(ctx context.Context, actor models.Actor, in BookingInput) (*models.Booking, error) {
	const op = "service.CreateBooking"
	const operation = "create_booking"

	if err := requireUser(actor); err != nil {
		return nil, s.finish(op, operation, err)
	}

	booking, err := in.normalize(actor)
	if err != nil {
		return nil, s.finish(op, operation, err)
	}

	key := booking.Key()

	err = s.withSlot(ctx, key, func(ctx context.Context, repos storage.Repos) error {
		ts, err := offeredTimeslot(ctx, repos, booking.Weekday, booking.Period)
		if err != nil {
			return err
		}

		block, err := repos.Blocks.GetBlock(ctx, key)
		if err != nil {
			return err
		}
		if block != nil {
			return response.Conflictf("slot %s is blocked: %s", key, block.Reason)
		}

		existing, err := repos.Bookings.ListBookingsBySlot(ctx, key)
		if err != nil {
			return err
		}

		current := 0
		for _, b := range existing {
			current += b.StudentCount()
			for _, booked := range b.Students {
				for _, st := range booking.Students {
					if st.SameAs(booked) {
						return response.Conflictf("%s (%s) is already booked in '%s' by %s",
							st.Name, st.Klasse, b.OfferLabel, b.TeacherName)
					}
				}
			}
		}

		if current+booking.StudentCount() > ts.MaxStudents {
			return response.Conflictf("slot %s has %d of %d spots left, requested %d",
				key, max(0, ts.MaxStudents-current), ts.MaxStudents, booking.StudentCount())
		}

		if err := repos.Bookings.InsertBooking(ctx, booking); err != nil {
			return err
		}

		id := booking.ID
		return repos.Notifications.InsertNotification(ctx, &models.Notification{
			Type:      models.NotificationNewBooking,
			BookingID: &id,
			Message: fmt.Sprintf("Neue Buchung: %s von %s am %s - %d. Stunde",
				booking.OfferLabel, booking.TeacherName, booking.Date.Format("02.01.2006"), booking.Period),
			Metadata: map[string]string{
				"owner":         booking.Owner,
				"student_count": strconv.Itoa(booking.StudentCount()),
			},
		})
	})
	if err != nil {
		return nil, s.finish(op, operation, err)
	}

	s.log.Info("booking created",
		slog.Int64("booking_id", booking.ID),
		slog.String("slot", key.String()),
		slog.Int("students", booking.StudentCount()),
		slog.String("owner", booking.Owner),
	)
	s.publish(ctx, events.BookingCreated(*booking, s.now()))

	return booking, s.finish(op, operation, nil)
}

// DeleteBooking removes a booking and frees its capacity at once. Only the owner or an
// administrator may delete.
func (s *Service) DeleteBooking(ctx context.Context, actor models.Actor, id int64) error {
	const op = "service.DeleteBooking"
	const operation = "delete_booking"

	if err := requireUser(actor); err != nil {
		return s.finish(op, operation, err)
	}
	if id <= 0 {
		return s.finish(op, operation, fmt.Errorf("%w: booking %d", response.ErrNotFound, id))
	}

	var booking *models.Booking
	err := s.store.WithReadTx(ctx, func(ctx context.Context, repos storage.Repos) error {
		var err error
		booking, err = repos.Bookings.GetBooking(ctx, id)
		return err
	})
	if err != nil {
		return s.finish(op, operation, err)
	}
	if err := authorizeDelete(actor, booking); err != nil {
		return s.finish(op, operation, err)
	}

	err = s.withSlot(ctx, booking.Key(), func(ctx context.Context, repos storage.Repos) error {
		deleted, err := repos.Bookings.DeleteBooking(ctx, id)
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("%w: booking %d", response.ErrNotFound, id)
		}

		return repos.Notifications.InsertNotification(ctx, &models.Notification{
			Type: models.NotificationBookingDeleted,
			Message: fmt.Sprintf("Buchung gelöscht: %s von %s am %s",
				booking.OfferLabel, booking.TeacherName, booking.Date.Format("02.01.2006")),
			Metadata: map[string]string{
				"booking_id": strconv.FormatInt(id, 10),
				"deleted_by": actor.Username,
			},
		})
	})
	if err != nil {
		return s.finish(op, operation, err)
	}

	s.log.Info("booking deleted",
		slog.Int64("booking_id", id),
		slog.String("slot", booking.Key().String()),
		slog.String("by", actor.Username),
	)
	s.publish(ctx, events.BookingDeleted(*booking, actor.Username, s.now()))

	return s.finish(op, operation, nil)
}

func authorizeDelete(actor models.Actor, b *models.Booking) error {
	if actor.IsAdmin || b.Owner == actor.Username {
		return nil
	}
	return fmt.Errorf("%w: booking %d belongs to another user", response.ErrForbidden, b.ID)
}

// ListMyBookings returns the actor's bookings, newest date first.
func (s *Service) ListMyBookings(ctx context.Context, actor models.Actor, from, to *time.Time) ([]models.Booking, error) {
	const op = "service.ListMyBookings"

	if err := requireUser(actor); err != nil {
		return nil, classify(op, err)
	}
	if err := checkRange(from, to); err != nil {
		return nil, classify(op, err)
	}

	owner := actor.Username
	return s.listBookings(ctx, op, models.BookingFilter{Owner: &owner, From: from, To: to})
}

// ListAllBookings is the administrative view: one date ordered by period, or the most recent
// bookings up to the configured limit.
func (s *Service) ListAllBookings(ctx context.Context, actor models.Actor, date *time.Time) ([]models.Booking, error) {
	const op = "service.ListAllBookings"

	if err := requireAdmin(actor); err != nil {
		return nil, classify(op, err)
	}

	filter := models.BookingFilter{Limit: s.opts.ListLimit}
	if date != nil {
		d := models.TruncateToDate(*date)
		filter = models.BookingFilter{From: &d, To: &d}
	}

	return s.listBookings(ctx, op, filter)
}

func (s *Service) listBookings(ctx context.Context, op string, filter models.BookingFilter) ([]models.Booking, error) {
	var bookings []models.Booking
	err := s.store.WithReadTx(ctx, func(ctx context.Context, repos storage.Repos) error {
		var err error
		bookings, err = repos.Bookings.ListBookings(ctx, filter)
		return err
	})
	if err != nil {
		return nil, classify(op, err)
	}

	return bookings, nil
}
