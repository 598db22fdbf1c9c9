package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"sportoase-service/internal/models"
	"sportoase-service/internal/storage"
	"sportoase-service/pkg/response"
)

const maxLabelLength = 200

// periodBounds are the school's bell times for periods 1..6.
var periodBounds = [models.MaxPeriod][2]models.ClockTime{
	{{Hour: 8, Minute: 0}, {Hour: 8, Minute: 45}},
	{{Hour: 8, Minute: 50}, {Hour: 9, Minute: 35}},
	{{Hour: 9, Minute: 55}, {Hour: 10, Minute: 40}},
	{{Hour: 10, Minute: 45}, {Hour: 11, Minute: 30}},
	{{Hour: 11, Minute: 50}, {Hour: 12, Minute: 35}},
	{{Hour: 12, Minute: 40}, {Hour: 13, Minute: 25}},
}

// DefaultTimeslots is the Mon..Fri catalog the service is seeded with.
func DefaultTimeslots(maxStudents int) []models.Timeslot {
	weekdays := []models.Weekday{models.Mon, models.Tue, models.Wed, models.Thu, models.Fri}

	slots := make([]models.Timeslot, 0, len(weekdays)*models.MaxPeriod)
	for _, wd := range weekdays {
		for i, bounds := range periodBounds {
			period := i + 1
			slots = append(slots, models.Timeslot{
				Weekday:     wd,
				Period:      period,
				StartTime:   bounds[0],
				EndTime:     bounds[1],
				Label:       fmt.Sprintf("%d. Stunde", period),
				MaxStudents: maxStudents,
			})
		}
	}

	return slots
}

// SeedCatalog inserts the catalog rows that do not exist yet and returns how many were added.
func (s *Service) SeedCatalog(ctx context.Context, slots []models.Timeslot) (int, error) {
	const op = "service.SeedCatalog"

	for _, ts := range slots {
		if !ts.Weekday.Valid() {
			return 0, fmt.Errorf("%s: %w", op, response.Invalid("unknown weekday %q", ts.Weekday))
		}
		if err := validPeriod(ts.Period); err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
		if !ts.StartTime.Before(ts.EndTime) {
			return 0, fmt.Errorf("%s: %w", op, response.Invalid("%s period %d ends before it starts", ts.Weekday, ts.Period))
		}
		if ts.MaxStudents < 1 {
			return 0, fmt.Errorf("%s: %w", op, response.Invalid("%s period %d has no capacity", ts.Weekday, ts.Period))
		}
	}

	var added int
	err := s.store.WithTx(ctx, func(ctx context.Context, repos storage.Repos) error {
		var err error
		added, err = repos.Catalog.SeedTimeslots(ctx, slots)
		return err
	})
	if err != nil {
		return 0, classify(op, err)
	}

	if added > 0 {
		s.log.Info("timeslot catalog seeded", slog.Int("added", added))
	}

	return added, nil
}

func (s *Service) ListTimeslots(ctx context.Context) ([]models.Timeslot, error) {
	const op = "service.ListTimeslots"

	var slots []models.Timeslot
	err := s.store.WithReadTx(ctx, func(ctx context.Context, repos storage.Repos) error {
		var err error
		slots, err = repos.Catalog.ListTimeslots(ctx)
		return err
	})
	if err != nil {
		return nil, classify(op, err)
	}

	return slots, nil
}

// RenameTimeslotLabel changes the display label of a catalog entry. Admin only.
func (s *Service) RenameTimeslotLabel(ctx context.Context, actor models.Actor, weekday models.Weekday, period int, label string) (*models.Timeslot, error) {
	const op = "service.RenameTimeslotLabel"

	if err := requireAdmin(actor); err != nil {
		return nil, s.finish(op, "rename_timeslot", err)
	}

	label = strings.TrimSpace(label)
	if label == "" {
		return nil, s.finish(op, "rename_timeslot", response.Invalid("label must not be empty"))
	}
	if utf8.RuneCountInString(label) > maxLabelLength {
		return nil, s.finish(op, "rename_timeslot", response.Invalid("label must be at most %d characters", maxLabelLength))
	}
	if !weekday.Valid() || validPeriod(period) != nil {
		return nil, s.finish(op, "rename_timeslot", fmt.Errorf("%w: timeslot %s/%d", response.ErrNotFound, weekday, period))
	}

	var updated *models.Timeslot
	err := s.store.WithTx(ctx, func(ctx context.Context, repos storage.Repos) error {
		var err error
		updated, err = repos.Catalog.UpdateTimeslotLabel(ctx, weekday, period, label)
		return err
	})
	if err != nil {
		return nil, s.finish(op, "rename_timeslot", err)
	}

	s.log.Info("timeslot renamed",
		slog.String("weekday", string(weekday)),
		slog.Int("period", period),
		slog.String("by", actor.Username),
	)

	return updated, s.finish(op, "rename_timeslot", nil)
}
