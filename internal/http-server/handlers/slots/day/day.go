package day

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

type DayGetter interface {
	GetDay(ctx context.Context, date time.Time) (*models.DayOverview, error)
}

type Response struct {
	response.Response
	api.DayResponse
}

func New(log *slog.Logger, getter DayGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.slots.day.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		raw := r.URL.Query().Get("date")
		if raw == "" {
			response.WriteError(w, r, response.Invalid("date is required"))
			return
		}
		date, err := models.ParseDate(raw)
		if err != nil {
			response.WriteError(w, r, response.Invalid("date must be YYYY-MM-DD"))
			return
		}

		day, err := getter.GetDay(r.Context(), date)
		if err != nil {
			if status := response.WriteError(w, r, err); status >= http.StatusInternalServerError {
				log.Error("failed to get slots", sl.Err(err))
			}
			return
		}

		render.JSON(w, r, Response{DayResponse: api.FromDay(*day)})
	}
}
