package list

import (
	"context"
	"log/slog"
	"net/http"

	"sportoase-service/api"
	"sportoase-service/internal/models"
	"sportoase-service/pkg/response"
	"sportoase-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type TimeslotLister interface {
	ListTimeslots(ctx context.Context) ([]models.Timeslot, error)
}

type Response struct {
	response.Response
	Timeslots []api.TimeslotResponse `json:"timeslots"`
}

func New(log *slog.Logger, lister TimeslotLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.timeslots.list.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		slots, err := lister.ListTimeslots(r.Context())
		if err != nil {
			log.Error("failed to list timeslots", sl.Err(err))
			response.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, Response{Timeslots: api.FromTimeslots(slots)})
	}
}
