package list

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"sportoase-service/api"
	"sportoase-service/internal/models"
	"sportoase-service/pkg/middleware/mwAuth"
	"sportoase-service/pkg/response"
	"sportoase-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type BookingLister interface {
	ListAllBookings(ctx context.Context, actor models.Actor, date *time.Time) ([]models.Booking, error)
}

type Response struct {
	response.Response
	Bookings []api.BookingResponse `json:"bookings"`
}

func New(log *slog.Logger, lister BookingLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.list.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		actor, ok := mwAuth.ActorFrom(r.Context())
		if !ok {
			response.WriteError(w, r, response.ErrUnauthorized)
			return
		}

		date, err := api.ParseOptionalDate(r.URL.Query().Get("date"))
		if err != nil {
			response.WriteError(w, r, response.Invalid("date must be YYYY-MM-DD"))
			return
		}

		bookings, err := lister.ListAllBookings(r.Context(), actor, date)
		if err != nil {
			if status := response.WriteError(w, r, err); status >= http.StatusInternalServerError {
				log.Error("failed to list bookings", sl.Err(err))
			} else {
				log.Info("listing rejected", sl.Err(err))
			}
			return
		}

		render.JSON(w, r, Response{Bookings: api.FromBookings(bookings)})
	}
}
