package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"sportoase-service/internal/models"
	"sportoase-service/pkg/response"

	"github.com/lib/pq"
)

const bookingColumns = `id, date, weekday, period, offer_type, offer_label, teacher_name, teacher_class, students, owner, created_at`

func scanBooking(row rowScanner) (models.Booking, error) {
	var b models.Booking
	var weekday, offerType string
	var teacherClass sql.NullString
	var students []byte

	if err := row.Scan(
		&b.ID,
		&b.Date,
		&weekday,
		&b.Period,
		&offerType,
		&b.OfferLabel,
		&b.TeacherName,
		&teacherClass,
		&students,
		&b.Owner,
		&b.CreatedAt,
	); err != nil {
		return b, err
	}

	if err := json.Unmarshal(students, &b.Students); err != nil {
		return b, fmt.Errorf("decode students of booking %d: %w", b.ID, err)
	}

	b.Date = models.TruncateToDate(b.Date)
	b.Weekday = models.Weekday(weekday)
	b.OfferType = models.OfferType(offerType)
	if teacherClass.Valid {
		b.TeacherClass = &teacherClass.String
	}

	return b, nil
}

func (r *repo) queryBookings(ctx context.Context, query string, args ...any) ([]models.Booking, error) {
	rows, err := r.ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	bookings := make([]models.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return bookings, nil
}

func (r *repo) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	const op = "storage.postgres.GetBooking"

	b, err := scanBooking(r.ex.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}

	return &b, nil
}

func (r *repo) ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	const op = "storage.postgres.ListBookings"

	var conds []string
	var args []any

	if filter.Owner != nil {
		args = append(args, *filter.Owner)
		conds = append(conds, fmt.Sprintf("owner = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, dateArg(*filter.From))
		conds = append(conds, fmt.Sprintf("date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, dateArg(*filter.To))
		conds = append(conds, fmt.Sprintf("date <= $%d", len(args)))
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY date DESC, period, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	bookings, err := r.queryBookings(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return bookings, nil
}

func (r *repo) ListBookingsBySlot(ctx context.Context, key models.SlotKey) ([]models.Booking, error) {
	const op = "storage.postgres.ListBookingsBySlot"

	bookings, err := r.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE date=$1 AND period=$2 ORDER BY id`,
		dateArg(key.Date), key.Period)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return bookings, nil
}

func (r *repo) ListBookingsByDates(ctx context.Context, dates []time.Time) ([]models.Booking, error) {
	const op = "storage.postgres.ListBookingsByDates"

	bookings, err := r.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE date = ANY($1::date[]) ORDER BY date, period, id`,
		pq.Array(dateArgs(dates)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return bookings, nil
}

func (r *repo) CountStudents(ctx context.Context, key models.SlotKey) (int, error) {
	const op = "storage.postgres.CountStudents"

	var total int
	err := r.ex.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(student_count), 0) FROM bookings WHERE date=$1 AND period=$2`,
		dateArg(key.Date), key.Period).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, mapError(err))
	}

	return total, nil
}

func (r *repo) InsertBooking(ctx context.Context, booking *models.Booking) error {
	const op = "storage.postgres.InsertBooking"

	students, err := json.Marshal(booking.Students)
	if err != nil {
		return fmt.Errorf("%s: encode students: %w", op, err)
	}

	var teacherClass sql.NullString
	if booking.TeacherClass != nil {
		teacherClass = sql.NullString{String: *booking.TeacherClass, Valid: true}
	}

	err = r.ex.QueryRowContext(ctx,
		`INSERT INTO bookings
		(date, weekday, period, offer_type, offer_label, teacher_name, teacher_class, students, student_count, owner)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`,
		dateArg(booking.Date),
		string(booking.Weekday),
		booking.Period,
		string(booking.OfferType),
		booking.OfferLabel,
		booking.TeacherName,
		teacherClass,
		string(students),
		booking.StudentCount(),
		booking.Owner,
	).Scan(&booking.ID, &booking.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}

	booking.Date = models.TruncateToDate(booking.Date)

	return nil
}

func (r *repo) DeleteBooking(ctx context.Context, id int64) (bool, error) {
	const op = "storage.postgres.DeleteBooking"

	res, err := r.ex.ExecContext(ctx, `DELETE FROM bookings WHERE id=$1`, id)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, mapError(err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return n > 0, nil
}
