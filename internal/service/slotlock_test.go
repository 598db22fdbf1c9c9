package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"sportoase-service/internal/lock"
	"sportoase-service/internal/metrics"
	"sportoase-service/internal/models"
	"sportoase-service/internal/storage"
	"sportoase-service/pkg/response"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// looseStore applies every write immediately and never serializes transactions. Reads of a
// slot's occupants pause so that concurrent writers interleave unless something else keeps
// them apart.
type looseStore struct {
	mu       sync.Mutex
	slot     models.Timeslot
	bookings []models.Booking
	blocks   []models.BlockedSlot
	nextID   int64
	pause    time.Duration
}

func newLooseStore(maxStudents int) *looseStore {
	return &looseStore{
		slot: models.Timeslot{
			Weekday:     models.Mon,
			Period:      3,
			StartTime:   models.ClockTime{Hour: 9, Minute: 55},
			EndTime:     models.ClockTime{Hour: 10, Minute: 40},
			Label:       "3. Stunde",
			MaxStudents: maxStudents,
		},
		pause: 5 * time.Millisecond,
	}
}

func (s *looseStore) WithTx(ctx context.Context, fn func(ctx context.Context, repos storage.Repos) error) error {
	return fn(ctx, s.repos())
}

func (s *looseStore) WithReadTx(ctx context.Context, fn func(ctx context.Context, repos storage.Repos) error) error {
	return fn(ctx, s.repos())
}

func (s *looseStore) repos() storage.Repos {
	r := &looseRepo{s: s}
	return storage.Repos{Catalog: r, Blocks: r, Bookings: r, Notifications: r, Guard: r}
}

func (s *looseStore) counts() (students, blocks int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		students += b.StudentCount()
	}
	return students, len(s.blocks)
}

// looseRepo implements the calls a slot mutation makes. Anything else panics.
type looseRepo struct {
	storage.CatalogRepository
	storage.BlockRepository
	storage.BookingRepository
	storage.NotificationRepository

	s *looseStore
}

func (r *looseRepo) LockSlot(context.Context, models.SlotKey) error { return nil }

func (r *looseRepo) GetTimeslot(_ context.Context, weekday models.Weekday, period int) (*models.Timeslot, error) {
	if weekday != r.s.slot.Weekday || period != r.s.slot.Period {
		return nil, response.ErrNotFound
	}
	ts := r.s.slot
	return &ts, nil
}

func (r *looseRepo) GetBlock(_ context.Context, key models.SlotKey) (*models.BlockedSlot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.blocks {
		if models.NewSlotKey(b.Date, b.Period) == key {
			out := b
			return &out, nil
		}
	}
	return nil, nil
}

func (r *looseRepo) InsertBlock(_ context.Context, block *models.BlockedSlot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextID++
	block.ID = r.s.nextID
	r.s.blocks = append(r.s.blocks, *block)
	return nil
}

func (r *looseRepo) ListBookingsBySlot(_ context.Context, key models.SlotKey) ([]models.Booking, error) {
	r.s.mu.Lock()
	var out []models.Booking
	for _, b := range r.s.bookings {
		if b.Key() == key {
			out = append(out, b)
		}
	}
	r.s.mu.Unlock()

	time.Sleep(r.s.pause)
	return out, nil
}

func (r *looseRepo) CountStudents(ctx context.Context, key models.SlotKey) (int, error) {
	bookings, err := r.ListBookingsBySlot(ctx, key)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, b := range bookings {
		n += b.StudentCount()
	}
	return n, nil
}

func (r *looseRepo) InsertBooking(_ context.Context, booking *models.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextID++
	booking.ID = r.s.nextID
	booking.CreatedAt = fixedNow
	r.s.bookings = append(r.s.bookings, *booking)
	return nil
}

func (r *looseRepo) InsertNotification(context.Context, *models.Notification) error { return nil }

// grantAll hands out every lock, so nothing is serialized.
type grantAll struct{}

func (grantAll) Lock(context.Context, string, time.Duration) (string, bool, error) {
	return "token", true, nil
}

func (grantAll) Unlock(context.Context, string, string) error { return nil }

// failingStore errors on every transaction.
type failingStore struct{}

var errStoreReached = errors.New("store reached")

func (failingStore) WithTx(context.Context, func(ctx context.Context, repos storage.Repos) error) error {
	return errStoreReached
}

func (failingStore) WithReadTx(context.Context, func(ctx context.Context, repos storage.Repos) error) error {
	return errStoreReached
}

func newLooseService(store storage.TxManager, locker lock.Locker) *Service {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(log, store, locker, nil, metrics.New(), Options{LockWait: 5 * time.Second})
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func raceBookings(t *testing.T, svc *Service, contenders int) (ok, conflict int) {
	t.Helper()

	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		mu    sync.Mutex
	)

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := svc.CreateBooking(context.Background(), meier,
				basketball(nextMonday, 3, students(12, fmt.Sprintf("k%d", i))))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, response.ErrConflict):
				conflict++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}

	close(start)
	wg.Wait()

	return ok, conflict
}

func TestConcurrentBookings_KeyedLockOnUnserializedStore(t *testing.T) {
	store := newLooseStore(20)
	svc := newLooseService(store, lock.NewLocalLock())

	ok, conflict := raceBookings(t, svc, 8)

	assert.Equal(t, 1, ok)
	assert.Equal(t, 7, conflict)

	booked, _ := store.counts()
	assert.Equal(t, 12, booked)
}

func TestConcurrentBookings_UnserializedStoreOverbooksWithoutLock(t *testing.T) {
	store := newLooseStore(20)
	svc := newLooseService(store, grantAll{})

	ok, _ := raceBookings(t, svc, 8)

	booked, _ := store.counts()
	assert.Greater(t, ok, 1)
	assert.Greater(t, booked, 20)
}

func TestConcurrentBlockAndBooking_KeyedLockOnUnserializedStore(t *testing.T) {
	for round := 0; round < 10; round++ {
		store := newLooseStore(20)
		svc := newLooseService(store, lock.NewLocalLock())

		var (
			wg       sync.WaitGroup
			start    = make(chan struct{})
			bookErr  error
			blockErr error
		)

		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			_, bookErr = svc.CreateBooking(context.Background(), meier, basketball(nextMonday, 3, students(1, "5a")))
		}()
		go func() {
			defer wg.Done()
			<-start
			_, blockErr = svc.BlockSlot(context.Background(), admin, BlockInput{Date: nextMonday, Period: 3})
		}()

		close(start)
		wg.Wait()

		if bookErr == nil {
			require.ErrorIs(t, blockErr, response.ErrConflict)
		} else {
			require.ErrorIs(t, bookErr, response.ErrConflict)
			require.NoError(t, blockErr)
		}

		booked, blocks := store.counts()
		assert.False(t, booked > 0 && blocks > 0, "round %d: booked=%d blocks=%d", round, booked, blocks)
	}
}

func TestWithSlot_SerializesSameKeyOnly(t *testing.T) {
	svc := newLooseService(newLooseStore(20), lock.NewLocalLock())
	ctx := context.Background()

	t.Run("same key", func(t *testing.T) {
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			active  int
			overlap bool
		)
		key := models.NewSlotKey(nextMonday, 2)

		for i := 0; i < 6; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := svc.withSlot(ctx, key, func(context.Context, storage.Repos) error {
					mu.Lock()
					active++
					if active > 1 {
						overlap = true
					}
					mu.Unlock()

					time.Sleep(2 * time.Millisecond)

					mu.Lock()
					active--
					mu.Unlock()
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		assert.False(t, overlap)
	})

	t.Run("different keys", func(t *testing.T) {
		var wg sync.WaitGroup
		arrived := []chan struct{}{make(chan struct{}), make(chan struct{})}
		met := make([]bool, 2)

		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := svc.withSlot(ctx, models.NewSlotKey(nextMonday, i+1), func(context.Context, storage.Repos) error {
					close(arrived[i])
					select {
					case <-arrived[1-i]:
						met[i] = true
					case <-time.After(time.Second):
					}
					return nil
				})
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		assert.Equal(t, []bool{true, true}, met)
	})
}

func TestImpossiblePeriod_NotFoundWithoutStoreCall(t *testing.T) {
	svc := newLooseService(failingStore{}, lock.NewLocalLock())
	ctx := context.Background()

	err := svc.UnblockSlot(ctx, admin, nextMonday, 70000)
	require.ErrorIs(t, err, response.ErrNotFound)
	assert.NotErrorIs(t, err, errStoreReached)

	err = svc.UnblockSlot(ctx, admin, nextMonday, 0)
	require.ErrorIs(t, err, response.ErrNotFound)

	_, err = svc.RenameTimeslotLabel(ctx, admin, models.Mon, 70000, "Turnier")
	require.ErrorIs(t, err, response.ErrNotFound)
	assert.NotErrorIs(t, err, errStoreReached)

	_, err = svc.RenameTimeslotLabel(ctx, admin, models.Mon, -1, "Turnier")
	require.ErrorIs(t, err, response.ErrNotFound)
}
