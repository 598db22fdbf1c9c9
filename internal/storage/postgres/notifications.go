package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"sportoase-service/internal/models"
)

func (r *repo) InsertNotification(ctx context.Context, n *models.Notification) error {
	const op = "storage.postgres.InsertNotification"

	metadata := n.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("%s: encode metadata: %w", op, err)
	}

	var bookingID sql.NullInt64
	if n.BookingID != nil {
		bookingID = sql.NullInt64{Int64: *n.BookingID, Valid: true}
	}

	err = r.ex.QueryRowContext(ctx,
		`INSERT INTO notifications (notification_type, booking_id, message, metadata)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		string(n.Type),
		bookingID,
		n.Message,
		string(raw),
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}

	return nil
}

func (r *repo) ListNotifications(ctx context.Context, unreadOnly bool, limit int) ([]models.Notification, error) {
	const op = "storage.postgres.ListNotifications"

	query := `SELECT id, notification_type, booking_id, message, is_read, read_at, metadata, created_at
		FROM notifications`
	if unreadOnly {
		query += ` WHERE is_read = FALSE`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT $1`

	rows, err := r.ex.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	defer rows.Close()

	out := make([]models.Notification, 0)
	for rows.Next() {
		var n models.Notification
		var kind string
		var bookingID sql.NullInt64
		var readAt sql.NullTime
		var metadata []byte

		if err := rows.Scan(&n.ID, &kind, &bookingID, &n.Message, &n.IsRead, &readAt, &metadata, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		n.Type = models.NotificationType(kind)
		if bookingID.Valid {
			id := bookingID.Int64
			n.BookingID = &id
		}
		if readAt.Valid {
			at := readAt.Time
			n.ReadAt = &at
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &n.Metadata); err != nil {
				return nil, fmt.Errorf("%s: decode metadata: %w", op, err)
			}
		}

		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

func (r *repo) MarkNotificationRead(ctx context.Context, id int64, at time.Time) (bool, error) {
	const op = "storage.postgres.MarkNotificationRead"

	res, err := r.ex.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE, read_at = COALESCE(read_at, $2) WHERE id=$1`, id, at)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, mapError(err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return n > 0, nil
}
