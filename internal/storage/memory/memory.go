// Package memory keeps the whole store in process. Write transactions work on a copy of the
// state that replaces the live state on commit, so readers never see a half-applied mutation.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"sportoase-service/internal/models"
	"sportoase-service/internal/storage"
	"sportoase-service/pkg/response"
)

var errReadOnly = errors.New("write in read-only transaction")

type catalogKey struct {
	weekday models.Weekday
	period  int
}

type state struct {
	timeslots     map[catalogKey]models.Timeslot
	bookings      map[int64]models.Booking
	blocks        map[string]models.BlockedSlot
	notifications []models.Notification

	nextBookingID      int64
	nextBlockID        int64
	nextNotificationID int64
}

func (s *state) clone() *state {
	c := &state{
		timeslots:          make(map[catalogKey]models.Timeslot, len(s.timeslots)),
		bookings:           make(map[int64]models.Booking, len(s.bookings)),
		blocks:             make(map[string]models.BlockedSlot, len(s.blocks)),
		notifications:      append([]models.Notification(nil), s.notifications...),
		nextBookingID:      s.nextBookingID,
		nextBlockID:        s.nextBlockID,
		nextNotificationID: s.nextNotificationID,
	}
	for k, v := range s.timeslots {
		c.timeslots[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	for k, v := range s.blocks {
		c.blocks[k] = v
	}
	return c
}

type Storage struct {
	mu    sync.RWMutex
	state *state
	now   func() time.Time
}

func New() *Storage {
	return &Storage{
		state: &state{
			timeslots: make(map[catalogKey]models.Timeslot),
			bookings:  make(map[int64]models.Booking),
			blocks:    make(map[string]models.BlockedSlot),
		},
		now: time.Now,
	}
}

func (s *Storage) Close() error {
	return nil
}

func (s *Storage) WithTx(ctx context.Context, fn func(ctx context.Context, repos storage.Repos) error) error {
	const op = "storage.memory.WithTx"

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	work := s.state.clone()
	if err := fn(ctx, s.repos(work, false)); err != nil {
		return err
	}

	s.state = work
	return nil
}

func (s *Storage) WithReadTx(ctx context.Context, fn func(ctx context.Context, repos storage.Repos) error) error {
	const op = "storage.memory.WithReadTx"

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return fn(ctx, s.repos(s.state, true))
}

func (s *Storage) repos(st *state, readOnly bool) storage.Repos {
	r := &repo{st: st, readOnly: readOnly, now: s.now}
	return storage.Repos{
		Catalog:       r,
		Blocks:        r,
		Bookings:      r,
		Notifications: r,
		Guard:         r,
	}
}

type repo struct {
	st       *state
	readOnly bool
	now      func() time.Time
}

func (r *repo) writable(op string) error {
	if r.readOnly {
		return fmt.Errorf("%s: %w", op, errReadOnly)
	}
	return nil
}

// The store mutex already serializes every write transaction.
func (r *repo) LockSlot(context.Context, models.SlotKey) error {
	return nil
}

// #### catalog ####

func (r *repo) ListTimeslots(_ context.Context) ([]models.Timeslot, error) {
	slots := make([]models.Timeslot, 0, len(r.st.timeslots))
	for _, ts := range r.st.timeslots {
		slots = append(slots, ts)
	}
	sortTimeslots(slots)
	return slots, nil
}

func (r *repo) ListTimeslotsByWeekday(_ context.Context, weekday models.Weekday) ([]models.Timeslot, error) {
	var slots []models.Timeslot
	for k, ts := range r.st.timeslots {
		if k.weekday == weekday {
			slots = append(slots, ts)
		}
	}
	sortTimeslots(slots)
	return slots, nil
}

func (r *repo) GetTimeslot(_ context.Context, weekday models.Weekday, period int) (*models.Timeslot, error) {
	const op = "storage.memory.GetTimeslot"

	ts, ok := r.st.timeslots[catalogKey{weekday, period}]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}
	return &ts, nil
}

func (r *repo) UpdateTimeslotLabel(_ context.Context, weekday models.Weekday, period int, label string) (*models.Timeslot, error) {
	const op = "storage.memory.UpdateTimeslotLabel"

	if err := r.writable(op); err != nil {
		return nil, err
	}

	k := catalogKey{weekday, period}
	ts, ok := r.st.timeslots[k]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}
	ts.Label = label
	r.st.timeslots[k] = ts
	return &ts, nil
}

func (r *repo) SeedTimeslots(_ context.Context, slots []models.Timeslot) (int, error) {
	const op = "storage.memory.SeedTimeslots"

	if err := r.writable(op); err != nil {
		return 0, err
	}

	created := 0
	for _, ts := range slots {
		k := catalogKey{ts.Weekday, ts.Period}
		if _, ok := r.st.timeslots[k]; ok {
			continue
		}
		r.st.timeslots[k] = ts
		created++
	}
	return created, nil
}

// #### blocks ####

func (r *repo) GetBlock(_ context.Context, key models.SlotKey) (*models.BlockedSlot, error) {
	b, ok := r.st.blocks[key.String()]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (r *repo) ListBlocks(_ context.Context, filter models.BlockFilter) ([]models.BlockedSlot, error) {
	blocks := make([]models.BlockedSlot, 0)
	for _, b := range r.st.blocks {
		if !inRange(b.Date, filter.From, filter.To) {
			continue
		}
		blocks = append(blocks, b)
	}
	sort.Slice(blocks, func(i, j int) bool {
		if !blocks[i].Date.Equal(blocks[j].Date) {
			return blocks[i].Date.After(blocks[j].Date)
		}
		return blocks[i].Period < blocks[j].Period
	})
	return blocks, nil
}

func (r *repo) ListBlocksByDates(_ context.Context, dates []time.Time) ([]models.BlockedSlot, error) {
	var blocks []models.BlockedSlot
	for _, b := range r.st.blocks {
		if containsDate(dates, b.Date) {
			blocks = append(blocks, b)
		}
	}
	sort.Slice(blocks, func(i, j int) bool {
		if !blocks[i].Date.Equal(blocks[j].Date) {
			return blocks[i].Date.Before(blocks[j].Date)
		}
		return blocks[i].Period < blocks[j].Period
	})
	return blocks, nil
}

func (r *repo) InsertBlock(_ context.Context, block *models.BlockedSlot) error {
	const op = "storage.memory.InsertBlock"

	if err := r.writable(op); err != nil {
		return err
	}

	key := models.NewSlotKey(block.Date, block.Period)
	if _, ok := r.st.blocks[key.String()]; ok {
		return fmt.Errorf("%s: %w", op, response.ErrConflict)
	}

	r.st.nextBlockID++
	block.ID = r.st.nextBlockID
	block.Date = key.Date
	block.CreatedAt = r.now().UTC()
	r.st.blocks[key.String()] = *block
	return nil
}

func (r *repo) DeleteBlock(_ context.Context, key models.SlotKey) (bool, error) {
	const op = "storage.memory.DeleteBlock"

	if err := r.writable(op); err != nil {
		return false, err
	}

	if _, ok := r.st.blocks[key.String()]; !ok {
		return false, nil
	}
	delete(r.st.blocks, key.String())
	return true, nil
}

// #### bookings ####

func (r *repo) GetBooking(_ context.Context, id int64) (*models.Booking, error) {
	const op = "storage.memory.GetBooking"

	b, ok := r.st.bookings[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}
	return &b, nil
}

func (r *repo) ListBookings(_ context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	bookings := make([]models.Booking, 0)
	for _, b := range r.st.bookings {
		if filter.Owner != nil && b.Owner != *filter.Owner {
			continue
		}
		if !inRange(b.Date, filter.From, filter.To) {
			continue
		}
		bookings = append(bookings, b)
	}
	sort.Slice(bookings, func(i, j int) bool {
		bi, bj := bookings[i], bookings[j]
		if !bi.Date.Equal(bj.Date) {
			return bi.Date.After(bj.Date)
		}
		if bi.Period != bj.Period {
			return bi.Period < bj.Period
		}
		return bi.ID < bj.ID
	})
	if filter.Limit > 0 && len(bookings) > filter.Limit {
		bookings = bookings[:filter.Limit]
	}
	return bookings, nil
}

func (r *repo) ListBookingsBySlot(_ context.Context, key models.SlotKey) ([]models.Booking, error) {
	var bookings []models.Booking
	for _, b := range r.st.bookings {
		if sameSlot(b.Key(), key) {
			bookings = append(bookings, b)
		}
	}
	sort.Slice(bookings, func(i, j int) bool { return bookings[i].ID < bookings[j].ID })
	return bookings, nil
}

func (r *repo) ListBookingsByDates(_ context.Context, dates []time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	for _, b := range r.st.bookings {
		if containsDate(dates, b.Date) {
			bookings = append(bookings, b)
		}
	}
	sort.Slice(bookings, func(i, j int) bool {
		bi, bj := bookings[i], bookings[j]
		if !bi.Date.Equal(bj.Date) {
			return bi.Date.Before(bj.Date)
		}
		if bi.Period != bj.Period {
			return bi.Period < bj.Period
		}
		return bi.ID < bj.ID
	})
	return bookings, nil
}

func (r *repo) CountStudents(_ context.Context, key models.SlotKey) (int, error) {
	total := 0
	for _, b := range r.st.bookings {
		if sameSlot(b.Key(), key) {
			total += b.StudentCount()
		}
	}
	return total, nil
}

func (r *repo) InsertBooking(_ context.Context, booking *models.Booking) error {
	const op = "storage.memory.InsertBooking"

	if err := r.writable(op); err != nil {
		return err
	}

	r.st.nextBookingID++
	booking.ID = r.st.nextBookingID
	booking.Date = models.TruncateToDate(booking.Date)
	booking.CreatedAt = r.now().UTC()
	r.st.bookings[booking.ID] = *booking
	return nil
}

func (r *repo) DeleteBooking(_ context.Context, id int64) (bool, error) {
	const op = "storage.memory.DeleteBooking"

	if err := r.writable(op); err != nil {
		return false, err
	}

	if _, ok := r.st.bookings[id]; !ok {
		return false, nil
	}
	delete(r.st.bookings, id)
	return true, nil
}

// #### notifications ####

func (r *repo) InsertNotification(_ context.Context, n *models.Notification) error {
	const op = "storage.memory.InsertNotification"

	if err := r.writable(op); err != nil {
		return err
	}

	r.st.nextNotificationID++
	n.ID = r.st.nextNotificationID
	n.CreatedAt = r.now().UTC()
	r.st.notifications = append(r.st.notifications, *n)
	return nil
}

func (r *repo) ListNotifications(_ context.Context, unreadOnly bool, limit int) ([]models.Notification, error) {
	out := make([]models.Notification, 0)
	for i := len(r.st.notifications) - 1; i >= 0; i-- {
		n := r.st.notifications[i]
		if unreadOnly && n.IsRead {
			continue
		}
		out = append(out, n)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *repo) MarkNotificationRead(_ context.Context, id int64, at time.Time) (bool, error) {
	const op = "storage.memory.MarkNotificationRead"

	if err := r.writable(op); err != nil {
		return false, err
	}

	for i := range r.st.notifications {
		if r.st.notifications[i].ID != id {
			continue
		}
		if !r.st.notifications[i].IsRead {
			at := at.UTC()
			r.st.notifications[i].IsRead = true
			r.st.notifications[i].ReadAt = &at
		}
		return true, nil
	}
	return false, nil
}

func sortTimeslots(slots []models.Timeslot) {
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Weekday != slots[j].Weekday {
			return slots[i].Weekday.Index() < slots[j].Weekday.Index()
		}
		return slots[i].Period < slots[j].Period
	})
}

func inRange(d time.Time, from, to *time.Time) bool {
	if from != nil && d.Before(models.TruncateToDate(*from)) {
		return false
	}
	if to != nil && d.After(models.TruncateToDate(*to)) {
		return false
	}
	return true
}

func containsDate(dates []time.Time, d time.Time) bool {
	for _, x := range dates {
		if models.TruncateToDate(x).Equal(d) {
			return true
		}
	}
	return false
}

func sameSlot(a, b models.SlotKey) bool {
	return a.Period == b.Period && a.Date.Equal(models.TruncateToDate(b.Date))
}
