package read

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"sportoase-service/internal/models"
	"sportoase-service/pkg/middleware/mwAuth"
	"sportoase-service/pkg/response"
	"sportoase-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
)

type NotificationMarker interface {
	MarkNotificationRead(ctx context.Context, actor models.Actor, id int64) error
}

func New(log *slog.Logger, marker NotificationMarker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.notifications.read.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		actor, ok := mwAuth.ActorFrom(r.Context())
		if !ok {
			response.WriteError(w, r, response.ErrUnauthorized)
			return
		}

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || id <= 0 {
			response.WriteError(w, r, response.Invalid("id must be a positive integer"))
			return
		}

		if err := marker.MarkNotificationRead(r.Context(), actor, id); err != nil {
			if status := response.WriteError(w, r, err); status >= http.StatusInternalServerError {
				log.Error("failed to mark notification", sl.Err(err))
			}
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
