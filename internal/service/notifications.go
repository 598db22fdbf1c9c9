package service

import (
	"context"
	"fmt"

	"sportoase-service/internal/models"
	"sportoase-service/internal/storage"
	"sportoase-service/pkg/response"
)

// ListNotifications returns the admin inbox, newest first.
func (s *Service) ListNotifications(ctx context.Context, actor models.Actor, unreadOnly bool) ([]models.Notification, error) {
	const op = "service.ListNotifications"

	if err := requireAdmin(actor); err != nil {
		return nil, classify(op, err)
	}

	var out []models.Notification
	err := s.store.WithReadTx(ctx, func(ctx context.Context, repos storage.Repos) error {
		var err error
		out, err = repos.Notifications.ListNotifications(ctx, unreadOnly, s.opts.NotificationLimit)
		return err
	})
	if err != nil {
		return nil, classify(op, err)
	}

	return out, nil
}

func (s *Service) MarkNotificationRead(ctx context.Context, actor models.Actor, id int64) error {
	const op = "service.MarkNotificationRead"

	if err := requireAdmin(actor); err != nil {
		return classify(op, err)
	}

	err := s.store.WithTx(ctx, func(ctx context.Context, repos storage.Repos) error {
		ok, err := repos.Notifications.MarkNotificationRead(ctx, id, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: notification %d", response.ErrNotFound, id)
		}
		return nil
	})

	return classify(op, err)
}
