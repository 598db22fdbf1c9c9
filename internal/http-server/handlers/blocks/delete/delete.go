package delete

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"sportoase-service/internal/models"
	"sportoase-service/pkg/middleware/mwAuth"
	"sportoase-service/pkg/response"
	"sportoase-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
)

type SlotUnblocker interface {
	UnblockSlot(ctx context.Context, actor models.Actor, date time.Time, period int) error
}

func New(log *slog.Logger, unblocker SlotUnblocker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.blocks.delete.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		actor, ok := mwAuth.ActorFrom(r.Context())
		if !ok {
			response.WriteError(w, r, response.ErrUnauthorized)
			return
		}

		date, err := models.ParseDate(chi.URLParam(r, "date"))
		if err != nil {
			response.WriteError(w, r, response.Invalid("date must be YYYY-MM-DD"))
			return
		}
		period, err := strconv.Atoi(chi.URLParam(r, "period"))
		if err != nil {
			response.WriteError(w, r, response.Invalid("period must be a number"))
			return
		}

		if err := unblocker.UnblockSlot(r.Context(), actor, date, period); err != nil {
			if status := response.WriteError(w, r, err); status >= http.StatusInternalServerError {
				log.Error("failed to unblock slot", sl.Err(err))
			} else {
				log.Info("unblock rejected", sl.Err(err))
			}
			return
		}

		log.Info("slot unblocked", slog.String("date", date.Format(models.DateLayout)), slog.Int("period", period))
		w.WriteHeader(http.StatusNoContent)
	}
}
