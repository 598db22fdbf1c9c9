package mine

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

type MyBookingsLister interface {
	ListMyBookings(ctx context.Context, actor models.Actor, from, to *time.Time) ([]models.Booking, error)
}

type Response struct {
	response.Response
	Bookings []api.BookingResponse `json:"bookings"`
}

func New(log *slog.Logger, lister MyBookingsLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.mine.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		actor, ok := mwAuth.ActorFrom(r.Context())
		if !ok {
			response.WriteError(w, r, response.ErrUnauthorized)
			return
		}

		from, err := api.ParseOptionalDate(r.URL.Query().Get("start_date"))
		if err != nil {
			response.WriteError(w, r, response.Invalid("start_date must be YYYY-MM-DD"))
			return
		}
		to, err := api.ParseOptionalDate(r.URL.Query().Get("end_date"))
		if err != nil {
			response.WriteError(w, r, response.Invalid("end_date must be YYYY-MM-DD"))
			return
		}

		bookings, err := lister.ListMyBookings(r.Context(), actor, from, to)
		if err != nil {
			if status := response.WriteError(w, r, err); status >= http.StatusInternalServerError {
				log.Error("failed to list bookings", sl.Err(err))
			}
			return
		}

		render.JSON(w, r, Response{Bookings: api.FromBookings(bookings)})
	}
}
