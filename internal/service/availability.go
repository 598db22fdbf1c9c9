package service

import (
	"context"
	"sort"
	"time"

	"sportoase-service/internal/models"
	"sportoase-service/internal/storage"
	"sportoase-service/pkg/response"
)

// GetDay projects every catalog period of the date's weekday onto that date.
// Weekend dates without catalog entries yield an empty slot list.
func (s *Service) GetDay(ctx context.Context, date time.Time) (*models.DayOverview, error) {
	const op = "service.GetDay"

	if date.IsZero() {
		return nil, classify(op, response.Invalid("date is required"))
	}

	days, err := s.project(ctx, []time.Time{models.TruncateToDate(date)})
	if err != nil {
		return nil, classify(op, err)
	}

	return &days[0], nil
}

// GetWeek projects the configured number of weekdays starting at the Monday of start's week.
// A nil start means the current week.
func (s *Service) GetWeek(ctx context.Context, start *time.Time) (*models.WeekOverview, error) {
	const op = "service.GetWeek"

	anchor := s.today()
	if start != nil {
		if start.IsZero() {
			return nil, classify(op, response.Invalid("start_date is invalid"))
		}
		anchor = *start
	}
	monday := models.WeekStart(anchor)

	dates := make([]time.Time, s.opts.WeekDays)
	for i := range dates {
		dates[i] = monday.AddDate(0, 0, i)
	}

	days, err := s.project(ctx, dates)
	if err != nil {
		return nil, classify(op, err)
	}

	return &models.WeekOverview{StartDate: monday, Days: days}, nil
}

// project reads catalog, ledger and bookings from one snapshot and composes the slot-instances.
func (s *Service) project(ctx context.Context, dates []time.Time) ([]models.DayOverview, error) {
	var (
		catalog  []models.Timeslot
		blocks   []models.BlockedSlot
		bookings []models.Booking
	)

	err := s.store.WithReadTx(ctx, func(ctx context.Context, repos storage.Repos) error {
		var err error
		if len(dates) == 1 {
			catalog, err = repos.Catalog.ListTimeslotsByWeekday(ctx, models.WeekdayOf(dates[0]))
		} else {
			catalog, err = repos.Catalog.ListTimeslots(ctx)
		}
		if err != nil {
			return err
		}
		if blocks, err = repos.Blocks.ListBlocksByDates(ctx, dates); err != nil {
			return err
		}
		bookings, err = repos.Bookings.ListBookingsByDates(ctx, dates)
		return err
	})
	if err != nil {
		return nil, err
	}

	byWeekday := make(map[models.Weekday][]models.Timeslot)
	for _, ts := range catalog {
		byWeekday[ts.Weekday] = append(byWeekday[ts.Weekday], ts)
	}
	for wd := range byWeekday {
		slots := byWeekday[wd]
		sort.Slice(slots, func(i, j int) bool { return slots[i].Period < slots[j].Period })
	}

	blockBySlot := make(map[string]models.BlockedSlot, len(blocks))
	for _, b := range blocks {
		blockBySlot[models.NewSlotKey(b.Date, b.Period).String()] = b
	}

	bookingsBySlot := make(map[string][]models.Booking)
	for _, b := range bookings {
		k := b.Key().String()
		bookingsBySlot[k] = append(bookingsBySlot[k], b)
	}

	days := make([]models.DayOverview, 0, len(dates))
	for _, date := range dates {
		weekday := models.WeekdayOf(date)
		day := models.DayOverview{
			Date:    date,
			Weekday: weekday,
			Slots:   make([]models.SlotInstance, 0, len(byWeekday[weekday])),
		}

		for _, ts := range byWeekday[weekday] {
			k := models.NewSlotKey(date, ts.Period).String()
			var block *models.BlockedSlot
			if b, ok := blockBySlot[k]; ok {
				block = &b
			}
			day.Slots = append(day.Slots, slotInstance(date, ts, block, bookingsBySlot[k]))
		}

		days = append(days, day)
	}

	return days, nil
}

func slotInstance(date time.Time, ts models.Timeslot, block *models.BlockedSlot, bookings []models.Booking) models.SlotInstance {
	sort.Slice(bookings, func(i, j int) bool { return bookings[i].ID < bookings[j].ID })

	si := models.SlotInstance{
		Date:        date,
		Weekday:     ts.Weekday,
		Period:      ts.Period,
		Label:       ts.Label,
		StartTime:   ts.StartTime,
		EndTime:     ts.EndTime,
		MaxStudents: ts.MaxStudents,
		Bookings:    make([]models.BookingSummary, 0, len(bookings)),
	}

	for _, b := range bookings {
		si.CurrentStudents += b.StudentCount()
		si.Bookings = append(si.Bookings, models.BookingSummary{
			ID:           b.ID,
			OfferLabel:   b.OfferLabel,
			OfferType:    b.OfferType,
			TeacherName:  b.TeacherName,
			StudentCount: b.StudentCount(),
		})
	}

	si.AvailableSpots = max(0, ts.MaxStudents-si.CurrentStudents)
	if block != nil {
		si.IsBlocked = true
		si.BlockedReason = block.Reason
	}
	si.IsAvailable = !si.IsBlocked && si.AvailableSpots > 0

	switch {
	case si.IsBlocked:
		si.State = models.SlotBlocked
	case si.CurrentStudents == 0:
		si.State = models.SlotOpen
	case si.AvailableSpots == 0:
		si.State = models.SlotFull
	default:
		si.State = models.SlotPartiallyBooked
	}

	return si
}
