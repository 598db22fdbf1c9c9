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

const maxReasonLength = 200

type BlockInput struct {
	Date time.Time
	// Weekday is optional. When set it must match Date.
	Weekday models.Weekday
	Period  int
	Reason  string
}

// BlockSlot reserves a slot-instance for the administration. It fails with ErrConflict when the
// slot-instance already holds a booking or a block.
func (s *Service) BlockSlot(ctx context.Context, actor models.Actor, in BlockInput) (*models.BlockedSlot, error) {
	const op = "service.BlockSlot"
	const operation = "block_slot"

	if err := requireAdmin(actor); err != nil {
		return nil, s.finish(op, operation, err)
	}
	if in.Date.IsZero() {
		return nil, s.finish(op, operation, response.Invalid("date is required"))
	}
	if err := validPeriod(in.Period); err != nil {
		return nil, s.finish(op, operation, err)
	}

	date := models.TruncateToDate(in.Date)
	weekday, err := checkWeekday(date, in.Weekday)
	if err != nil {
		return nil, s.finish(op, operation, err)
	}

	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		reason = s.opts.DefaultBlockReason
	}
	if utf8.RuneCountInString(reason) > maxReasonLength {
		return nil, s.finish(op, operation, response.Invalid("reason must be at most %d characters", maxReasonLength))
	}

	key := models.NewSlotKey(date, in.Period)
	block := &models.BlockedSlot{
		Date:      date,
		Weekday:   weekday,
		Period:    in.Period,
		Reason:    reason,
		BlockedBy: actor.Username,
	}

	err = s.withSlot(ctx, key, func(ctx context.Context, repos storage.Repos) error {
		if _, err := offeredTimeslot(ctx, repos, weekday, in.Period); err != nil {
			return err
		}

		existing, err := repos.Blocks.GetBlock(ctx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			return response.Conflictf("slot %s is already blocked", key)
		}

		booked, err := repos.Bookings.CountStudents(ctx, key)
		if err != nil {
			return err
		}
		if booked > 0 {
			return response.Conflictf("slot %s has bookings for %d students", key, booked)
		}

		if err := repos.Blocks.InsertBlock(ctx, block); err != nil {
			return err
		}

		return repos.Notifications.InsertNotification(ctx, &models.Notification{
			Type: models.NotificationSlotBlocked,
			Message: fmt.Sprintf("Slot blockiert: %s - %d. Stunde (%s)",
				date.Format("02.01.2006"), in.Period, reason),
			Metadata: map[string]string{
				"date":       date.Format(models.DateLayout),
				"period":     strconv.Itoa(in.Period),
				"blocked_by": actor.Username,
			},
		})
	})
	if err != nil {
		return nil, s.finish(op, operation, err)
	}

	s.log.Info("slot blocked",
		slog.String("slot", key.String()),
		slog.String("by", actor.Username),
	)
	s.publish(ctx, events.SlotBlocked(*block, s.now()))

	return block, s.finish(op, operation, nil)
}

// UnblockSlot removes the block of a slot-instance. ErrNotFound when there is none.
func (s *Service) UnblockSlot(ctx context.Context, actor models.Actor, date time.Time, period int) error {
	const op = "service.UnblockSlot"
	const operation = "unblock_slot"

	if err := requireAdmin(actor); err != nil {
		return s.finish(op, operation, err)
	}
	if date.IsZero() {
		return s.finish(op, operation, response.Invalid("date is required"))
	}

	key := models.NewSlotKey(date, period)
	if validPeriod(period) != nil {
		return s.finish(op, operation, fmt.Errorf("%w: slot %s is not blocked", response.ErrNotFound, key))
	}

	err := s.withSlot(ctx, key, func(ctx context.Context, repos storage.Repos) error {
		deleted, err := repos.Blocks.DeleteBlock(ctx, key)
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("%w: slot %s is not blocked", response.ErrNotFound, key)
		}

		return repos.Notifications.InsertNotification(ctx, &models.Notification{
			Type: models.NotificationSlotUnblocked,
			Message: fmt.Sprintf("Slot freigegeben: %s - %d. Stunde",
				key.Date.Format("02.01.2006"), period),
			Metadata: map[string]string{
				"date":   key.Date.Format(models.DateLayout),
				"period": strconv.Itoa(period),
			},
		})
	})
	if err != nil {
		return s.finish(op, operation, err)
	}

	s.log.Info("slot unblocked",
		slog.String("slot", key.String()),
		slog.String("by", actor.Username),
	)
	s.publish(ctx, events.SlotUnblocked(key, actor.Username, s.now()))

	return s.finish(op, operation, nil)
}

// ListBlockedSlots returns the active blocks, optionally limited to [from, to]. Admin only.
func (s *Service) ListBlockedSlots(ctx context.Context, actor models.Actor, from, to *time.Time) ([]models.BlockedSlot, error) {
	const op = "service.ListBlockedSlots"

	if err := requireAdmin(actor); err != nil {
		return nil, classify(op, err)
	}
	if err := checkRange(from, to); err != nil {
		return nil, classify(op, err)
	}

	var blocks []models.BlockedSlot
	err := s.store.WithReadTx(ctx, func(ctx context.Context, repos storage.Repos) error {
		var err error
		blocks, err = repos.Blocks.ListBlocks(ctx, models.BlockFilter{From: from, To: to})
		return err
	})
	if err != nil {
		return nil, classify(op, err)
	}

	return blocks, nil
}
