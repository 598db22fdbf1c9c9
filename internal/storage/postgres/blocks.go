package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"sportoase-service/internal/models"

	"github.com/lib/pq"
)

const blockColumns = `id, date, weekday, period, reason, blocked_by, created_at`

func scanBlock(row rowScanner) (models.BlockedSlot, error) {
	var b models.BlockedSlot
	var weekday string

	if err := row.Scan(&b.ID, &b.Date, &weekday, &b.Period, &b.Reason, &b.BlockedBy, &b.CreatedAt); err != nil {
		return b, err
	}

	b.Date = models.TruncateToDate(b.Date)
	b.Weekday = models.Weekday(weekday)

	return b, nil
}

func (r *repo) queryBlocks(ctx context.Context, query string, args ...any) ([]models.BlockedSlot, error) {
	rows, err := r.ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	blocks := make([]models.BlockedSlot, 0)
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return blocks, nil
}

func (r *repo) GetBlock(ctx context.Context, key models.SlotKey) (*models.BlockedSlot, error) {
	const op = "storage.postgres.GetBlock"

	b, err := scanBlock(r.ex.QueryRowContext(ctx,
		`SELECT `+blockColumns+` FROM blocked_slots WHERE date=$1 AND period=$2`,
		dateArg(key.Date), key.Period))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}

	return &b, nil
}

func (r *repo) ListBlocks(ctx context.Context, filter models.BlockFilter) ([]models.BlockedSlot, error) {
	const op = "storage.postgres.ListBlocks"

	var conds []string
	var args []any

	if filter.From != nil {
		args = append(args, dateArg(*filter.From))
		conds = append(conds, fmt.Sprintf("date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, dateArg(*filter.To))
		conds = append(conds, fmt.Sprintf("date <= $%d", len(args)))
	}

	query := `SELECT ` + blockColumns + ` FROM blocked_slots`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY date DESC, period`

	blocks, err := r.queryBlocks(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return blocks, nil
}

func (r *repo) ListBlocksByDates(ctx context.Context, dates []time.Time) ([]models.BlockedSlot, error) {
	const op = "storage.postgres.ListBlocksByDates"

	blocks, err := r.queryBlocks(ctx,
		`SELECT `+blockColumns+` FROM blocked_slots WHERE date = ANY($1::date[]) ORDER BY date, period`,
		pq.Array(dateArgs(dates)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return blocks, nil
}

func (r *repo) InsertBlock(ctx context.Context, block *models.BlockedSlot) error {
	const op = "storage.postgres.InsertBlock"

	err := r.ex.QueryRowContext(ctx,
		`INSERT INTO blocked_slots (date, weekday, period, reason, blocked_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		dateArg(block.Date),
		string(block.Weekday),
		block.Period,
		block.Reason,
		block.BlockedBy,
	).Scan(&block.ID, &block.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}

	block.Date = models.TruncateToDate(block.Date)

	return nil
}

func (r *repo) DeleteBlock(ctx context.Context, key models.SlotKey) (bool, error) {
	const op = "storage.postgres.DeleteBlock"

	res, err := r.ex.ExecContext(ctx,
		`DELETE FROM blocked_slots WHERE date=$1 AND period=$2`, dateArg(key.Date), key.Period)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, mapError(err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return n > 0, nil
}

func dateArgs(dates []time.Time) []string {
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, dateArg(d))
	}
	return out
}
