// Package events publishes booking and ledger changes to NATS after they are committed.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"sportoase-service/internal/models"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const (
	SubjectBookingCreated = "sportoase.booking.created"
	SubjectBookingDeleted = "sportoase.booking.deleted"
	SubjectSlotBlocked    = "sportoase.slot.blocked"
	SubjectSlotUnblocked  = "sportoase.slot.unblocked"
)

type Event struct {
	ID         uuid.UUID `json:"event_id"`
	Type       string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	Date       string    `json:"date"`
	Period     int       `json:"period"`
	BookingID  *int64    `json:"booking_id,omitempty"`
	Actor      string    `json:"actor"`
	Students   int       `json:"students,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}

func newEvent(subject string, key models.SlotKey, actor string, at time.Time) Event {
	return Event{
		ID:         uuid.New(),
		Type:       subject,
		OccurredAt: at.UTC(),
		Date:       key.Date.Format(models.DateLayout),
		Period:     key.Period,
		Actor:      actor,
	}
}

func BookingCreated(b models.Booking, at time.Time) Event {
	e := newEvent(SubjectBookingCreated, b.Key(), b.Owner, at)
	id := b.ID
	e.BookingID = &id
	e.Students = b.StudentCount()
	return e
}

func BookingDeleted(b models.Booking, actor string, at time.Time) Event {
	e := newEvent(SubjectBookingDeleted, b.Key(), actor, at)
	id := b.ID
	e.BookingID = &id
	e.Students = b.StudentCount()
	return e
}

func SlotBlocked(b models.BlockedSlot, at time.Time) Event {
	e := newEvent(SubjectSlotBlocked, models.NewSlotKey(b.Date, b.Period), b.BlockedBy, at)
	e.Reason = b.Reason
	return e
}

func SlotUnblocked(key models.SlotKey, actor string, at time.Time) Event {
	return newEvent(SubjectSlotUnblocked, key, actor, at)
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type NatsPublisher struct {
	conn *nats.Conn
	log  *slog.Logger
}

func NewNatsPublisher(natsURL string, log *slog.Logger) (*NatsPublisher, error) {
	const op = "events.NewNatsPublisher"

	nc, err := nats.Connect(natsURL, nats.Name("sportoase-service"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &NatsPublisher{conn: nc, log: log}, nil
}

func (p *NatsPublisher) Publish(ctx context.Context, e Event) error {
	const op = "events.NatsPublisher.Publish"

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := p.conn.Publish(e.Type, payload); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p.log.Debug("event published", slog.String("subject", e.Type), slog.String("event_id", e.ID.String()))

	return nil
}

func (p *NatsPublisher) Close() {
	if p.conn != nil {
		_ = p.conn.Drain()
	}
}

// NopPublisher drops every event. Used when no NATS URL is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
