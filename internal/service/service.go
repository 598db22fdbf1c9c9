// Package service is the scheduling engine. Every mutation of a slot-instance runs under that
// slot's lock and inside one store transaction that re-reads, validates and writes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sportoase-service/internal/events"
	"sportoase-service/internal/lock"
	"sportoase-service/internal/metrics"
	"sportoase-service/internal/models"
	"sportoase-service/internal/storage"
	"sportoase-service/pkg/response"
	"sportoase-service/pkg/sl"
)

type Options struct {
	LockTTL            time.Duration
	LockWait           time.Duration
	WeekDays           int
	ListLimit          int
	DefaultBlockReason string
	NotificationLimit  int
	Location           *time.Location
}

func (o Options) withDefaults() Options {
	if o.LockTTL <= 0 {
		o.LockTTL = 10 * time.Second
	}
	if o.LockWait <= 0 {
		o.LockWait = 2 * time.Second
	}
	if o.WeekDays <= 0 || o.WeekDays > 7 {
		o.WeekDays = 5
	}
	if o.ListLimit <= 0 {
		o.ListLimit = 100
	}
	if o.DefaultBlockReason == "" {
		o.DefaultBlockReason = "Beratung"
	}
	if o.NotificationLimit <= 0 {
		o.NotificationLimit = 50
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	return o
}

type Service struct {
	log       *slog.Logger
	store     storage.TxManager
	locker    lock.Locker
	publisher events.Publisher
	metrics   *metrics.Metrics
	opts      Options
	now       func() time.Time
}

func NewService(
	log *slog.Logger,
	store storage.TxManager,
	locker lock.Locker,
	publisher events.Publisher,
	m *metrics.Metrics,
	opts Options,
) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	return &Service{
		log:       log,
		store:     store,
		locker:    locker,
		publisher: publisher,
		metrics:   m,
		opts:      opts.withDefaults(),
		now:       time.Now,
	}
}

// today is the current calendar date in the school's timezone.
func (s *Service) today() time.Time {
	return models.TruncateToDate(s.now().In(s.opts.Location))
}

// withSlot runs fn in a write transaction that holds the slot-instance's lock, first the
// keyed lock with bounded wait and then the store-level guard.
func (s *Service) withSlot(ctx context.Context, key models.SlotKey, fn func(ctx context.Context, repos storage.Repos) error) error {
	const op = "service.withSlot"

	start := time.Now()
	release, err := lock.Acquire(ctx, s.locker, "slot:"+key.String(), s.opts.LockTTL, s.opts.LockWait)
	s.metrics.ObserveLockWait(time.Since(start), err == nil)
	if err != nil {
		switch {
		case errors.Is(err, lock.ErrNotAcquired),
			errors.Is(err, context.DeadlineExceeded),
			errors.Is(err, context.Canceled):
			return fmt.Errorf("%s: %w: slot %s is busy", op, response.ErrUnavailable, key)
		default:
			return fmt.Errorf("%s: %w: %w", op, response.ErrInternal, err)
		}
	}
	defer release()

	return s.store.WithTx(ctx, func(ctx context.Context, repos storage.Repos) error {
		if err := repos.Guard.LockSlot(ctx, key); err != nil {
			return err
		}
		return fn(ctx, repos)
	})
}

var knownErrors = []error{
	response.ErrInvalidInput,
	response.ErrUnauthorized,
	response.ErrForbidden,
	response.ErrNotFound,
	response.ErrConflict,
	response.ErrUnavailable,
	response.ErrInternal,
}

// classify passes domain errors through and reports everything else as ErrInternal.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	for _, known := range knownErrors {
		if errors.Is(err, known) {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, response.ErrUnavailable, err)
	}

	return fmt.Errorf("%s: %w: %w", op, response.ErrInternal, err)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, response.ErrConflict):
		return metrics.OutcomeConflict
	case errors.Is(err, response.ErrUnavailable):
		return metrics.OutcomeBusy
	case errors.Is(err, response.ErrInternal):
		return metrics.OutcomeError
	default:
		return metrics.OutcomeRejected
	}
}

// finish classifies err and records the operation outcome.
func (s *Service) finish(op, operation string, err error) error {
	err = classify(op, err)
	s.metrics.ObserveOperation(operation, outcome(err))
	return err
}

func requireUser(actor models.Actor) error {
	if actor.Username == "" {
		return response.ErrUnauthorized
	}
	return nil
}

func requireAdmin(actor models.Actor) error {
	if err := requireUser(actor); err != nil {
		return err
	}
	if !actor.IsAdmin {
		return fmt.Errorf("%w: administrator role required", response.ErrForbidden)
	}
	return nil
}

// publish is best effort. The mutation is already committed.
func (s *Service) publish(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(context.WithoutCancel(ctx), e); err != nil {
		s.log.Warn("failed to publish event",
			slog.String("event_type", e.Type),
			sl.Err(err),
		)
	}
}

func validPeriod(period int) error {
	if period < models.MinPeriod || period > models.MaxPeriod {
		return response.Invalid("period must be between %d and %d", models.MinPeriod, models.MaxPeriod)
	}
	return nil
}

// checkWeekday rejects a caller-supplied weekday that disagrees with the date.
func checkWeekday(date time.Time, given models.Weekday) (models.Weekday, error) {
	derived := models.WeekdayOf(date)
	if given == "" {
		return derived, nil
	}
	if given != derived {
		return "", response.Invalid("weekday %s does not match date %s (%s)", given, date.Format(models.DateLayout), derived)
	}
	return derived, nil
}

// offeredTimeslot resolves the catalog entry of a slot-instance. A missing entry is invalid input.
func offeredTimeslot(ctx context.Context, repos storage.Repos, weekday models.Weekday, period int) (*models.Timeslot, error) {
	ts, err := repos.Catalog.GetTimeslot(ctx, weekday, period)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, response.Invalid("period %d is not offered on %s", period, weekday)
		}
		return nil, err
	}
	return ts, nil
}

func checkRange(from, to *time.Time) error {
	if from != nil && to != nil && models.TruncateToDate(*to).Before(models.TruncateToDate(*from)) {
		return response.Invalid("end date is before start date")
	}
	return nil
}
