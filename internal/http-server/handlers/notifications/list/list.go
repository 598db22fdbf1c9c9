package list

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"sportoase-service/api"
	"sportoase-service/internal/models"
	"sportoase-service/pkg/middleware/mwAuth"
	"sportoase-service/pkg/response"
	"sportoase-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type NotificationLister interface {
	ListNotifications(ctx context.Context, actor models.Actor, unreadOnly bool) ([]models.Notification, error)
}

type Response struct {
	response.Response
	Notifications []api.NotificationResponse `json:"notifications"`
}

func New(log *slog.Logger, lister NotificationLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.notifications.list.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		actor, ok := mwAuth.ActorFrom(r.Context())
		if !ok {
			response.WriteError(w, r, response.ErrUnauthorized)
			return
		}

		unreadOnly := false
		if raw := r.URL.Query().Get("unread_only"); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				response.WriteError(w, r, response.Invalid("unread_only must be true or false"))
				return
			}
			unreadOnly = v
		}

		ns, err := lister.ListNotifications(r.Context(), actor, unreadOnly)
		if err != nil {
			if status := response.WriteError(w, r, err); status >= http.StatusInternalServerError {
				log.Error("failed to list notifications", sl.Err(err))
			}
			return
		}

		render.JSON(w, r, Response{Notifications: api.FromNotifications(ns)})
	}
}
