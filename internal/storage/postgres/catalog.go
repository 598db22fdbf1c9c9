package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sportoase-service/internal/models"
	"sportoase-service/pkg/response"
)

const timeslotColumns = `weekday, period, label, start_time, end_time, max_students`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTimeslot(row rowScanner) (models.Timeslot, error) {
	var ts models.Timeslot
	var weekday, start, end string

	if err := row.Scan(&weekday, &ts.Period, &ts.Label, &start, &end, &ts.MaxStudents); err != nil {
		return ts, err
	}

	var err error
	if ts.StartTime, err = models.ParseClockTime(start); err != nil {
		return ts, fmt.Errorf("parse start_time %q: %w", start, err)
	}
	if ts.EndTime, err = models.ParseClockTime(end); err != nil {
		return ts, fmt.Errorf("parse end_time %q: %w", end, err)
	}

	ts.Weekday = models.Weekday(weekday)

	return ts, nil
}

func (r *repo) queryTimeslots(ctx context.Context, query string, args ...any) ([]models.Timeslot, error) {
	rows, err := r.ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var slots []models.Timeslot
	for rows.Next() {
		ts, err := scanTimeslot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return slots, nil
}

// weekdayOrder sorts Mon..Sun instead of alphabetically.
const weekdayOrder = `array_position(ARRAY['Mon','Tue','Wed','Thu','Fri','Sat','Sun']::varchar[], weekday)`

func (r *repo) ListTimeslots(ctx context.Context) ([]models.Timeslot, error) {
	const op = "storage.postgres.ListTimeslots"

	slots, err := r.queryTimeslots(ctx,
		`SELECT `+timeslotColumns+` FROM timeslots ORDER BY `+weekdayOrder+`, period`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return slots, nil
}

func (r *repo) ListTimeslotsByWeekday(ctx context.Context, weekday models.Weekday) ([]models.Timeslot, error) {
	const op = "storage.postgres.ListTimeslotsByWeekday"

	slots, err := r.queryTimeslots(ctx,
		`SELECT `+timeslotColumns+` FROM timeslots WHERE weekday=$1 ORDER BY period`, string(weekday))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return slots, nil
}

func (r *repo) GetTimeslot(ctx context.Context, weekday models.Weekday, period int) (*models.Timeslot, error) {
	const op = "storage.postgres.GetTimeslot"

	ts, err := scanTimeslot(r.ex.QueryRowContext(ctx,
		`SELECT `+timeslotColumns+` FROM timeslots WHERE weekday=$1 AND period=$2`, string(weekday), period))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}

	return &ts, nil
}

func (r *repo) UpdateTimeslotLabel(ctx context.Context, weekday models.Weekday, period int, label string) (*models.Timeslot, error) {
	const op = "storage.postgres.UpdateTimeslotLabel"

	ts, err := scanTimeslot(r.ex.QueryRowContext(ctx,
		`UPDATE timeslots SET label=$1 WHERE weekday=$2 AND period=$3 RETURNING `+timeslotColumns,
		label, string(weekday), period))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}

	return &ts, nil
}

func (r *repo) SeedTimeslots(ctx context.Context, slots []models.Timeslot) (int, error) {
	const op = "storage.postgres.SeedTimeslots"

	created := 0
	for _, ts := range slots {
		res, err := r.ex.ExecContext(ctx,
			`INSERT INTO timeslots (`+timeslotColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (weekday, period) DO NOTHING`,
			string(ts.Weekday),
			ts.Period,
			ts.Label,
			ts.StartTime.String(),
			ts.EndTime.String(),
			ts.MaxStudents,
		)
		if err != nil {
			return created, fmt.Errorf("%s: %w", op, mapError(err))
		}

		n, err := res.RowsAffected()
		if err != nil {
			return created, fmt.Errorf("%s: %w", op, err)
		}
		created += int(n)
	}

	return created, nil
}
