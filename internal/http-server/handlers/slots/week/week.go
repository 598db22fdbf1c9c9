package week

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"sportoase-service/api"
	"sportoase-service/internal/models"
	"sportoase-service/pkg/response"
	"sportoase-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type WeekGetter interface {
	GetWeek(ctx context.Context, start *time.Time) (*models.WeekOverview, error)
}

type Response struct {
	response.Response
	api.WeekResponse
}

func New(log *slog.Logger, getter WeekGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.slots.week.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		start, err := api.ParseOptionalDate(r.URL.Query().Get("start_date"))
		if err != nil {
			response.WriteError(w, r, response.Invalid("start_date must be YYYY-MM-DD"))
			return
		}

		week, err := getter.GetWeek(r.Context(), start)
		if err != nil {
			if status := response.WriteError(w, r, err); status >= http.StatusInternalServerError {
				log.Error("failed to get week", sl.Err(err))
			}
			return
		}

		render.JSON(w, r, Response{WeekResponse: api.FromWeek(*week)})
	}
}
