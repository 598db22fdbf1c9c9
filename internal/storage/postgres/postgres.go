package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sportoase-service/internal/models"
	"sportoase-service/internal/storage"
	"sportoase-service/pkg/response"

	"github.com/lib/pq"
)

type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Storage struct {
	db          *sql.DB
	lockTimeout time.Duration
}

func New(storagePath string, lockTimeout time.Duration) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("postgres", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return NewWithDB(db, lockTimeout), nil
}

// NewWithDB wraps an already opened pool.
func NewWithDB(db *sql.DB, lockTimeout time.Duration) *Storage {
	return &Storage{db: db, lockTimeout: lockTimeout}
}

func (s *Storage) DB() *sql.DB {
	return s.db
}

func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

func (s *Storage) WithTx(ctx context.Context, fn func(ctx context.Context, repos storage.Repos) error) error {
	const op = "storage.postgres.WithTx"

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("%s: begin tx: %w", op, mapError(err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if s.lockTimeout > 0 {
		timeout := fmt.Sprintf("%dms", s.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, `SELECT set_config('lock_timeout', $1, true)`, timeout); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("%s: set lock_timeout: %w", op, mapError(err))
		}
	}

	if err := fn(ctx, newRepos(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, mapError(err))
	}

	return nil
}

func (s *Storage) WithReadTx(ctx context.Context, fn func(ctx context.Context, repos storage.Repos) error) error {
	const op = "storage.postgres.WithReadTx"

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return fmt.Errorf("%s: begin tx: %w", op, mapError(err))
	}

	defer func() {
		_ = tx.Rollback()
	}()

	return fn(ctx, newRepos(tx))
}

func newRepos(ex Execer) storage.Repos {
	r := &repo{ex: ex}
	return storage.Repos{
		Catalog:       r,
		Blocks:        r,
		Bookings:      r,
		Notifications: r,
		Guard:         r,
	}
}

type repo struct {
	ex Execer
}

// LockSlot takes a transaction-scoped advisory lock on the slot-instance. It waits at most
// lock_timeout and then fails with ErrUnavailable.
func (r *repo) LockSlot(ctx context.Context, key models.SlotKey) error {
	const op = "storage.postgres.LockSlot"

	if _, err := r.ex.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "slot:"+key.String()); err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}

	return nil
}

// mapError turns contention and uniqueness failures into domain errors and leaves the rest alone.
func mapError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch pqErr.Code {
	case "55P03", "40001", "40P01", "57014":
		return fmt.Errorf("%w: %s", response.ErrUnavailable, pqErr.Message)
	case "23505":
		return fmt.Errorf("%w: %s", response.ErrConflict, pqErr.Message)
	case "22003":
		return fmt.Errorf("%w: %s", response.ErrNotFound, pqErr.Message)
	case "23503", "23514":
		return fmt.Errorf("%w: %s", response.ErrInvalidInput, pqErr.Message)
	default:
		return err
	}
}

func dateArg(d time.Time) string {
	return models.TruncateToDate(d).Format(models.DateLayout)
}
