package rename

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"sportoase-service/api"
	"sportoase-service/internal/models"
	"sportoase-service/pkg/middleware/mwAuth"
	"sportoase-service/pkg/response"
	"sportoase-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type TimeslotRenamer interface {
	RenameTimeslotLabel(ctx context.Context, actor models.Actor, weekday models.Weekday, period int, label string) (*models.Timeslot, error)
}

type Request struct {
	api.RenameTimeslotRequest
}

type Response struct {
	response.Response
	Timeslot *api.TimeslotResponse `json:"timeslot,omitempty"`
}

func New(log *slog.Logger, renamer TimeslotRenamer) http.HandlerFunc {
	validate := validator.New()

	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.timeslots.rename.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		actor, ok := mwAuth.ActorFrom(r.Context())
		if !ok {
			response.WriteError(w, r, response.ErrUnauthorized)
			return
		}

		weekday, ok := models.ParseWeekday(chi.URLParam(r, "weekday"))
		if !ok {
			response.WriteError(w, r, response.Invalid("unknown weekday %q", chi.URLParam(r, "weekday")))
			return
		}
		period, err := strconv.Atoi(chi.URLParam(r, "period"))
		if err != nil {
			response.WriteError(w, r, response.Invalid("period must be a number"))
			return
		}

		var req Request
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("failed to decode request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to decode request"))
			return
		}

		if err := validate.Struct(&req.RenameTimeslotRequest); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				w.WriteHeader(http.StatusBadRequest)
				render.JSON(w, r, response.ValidationError(verrs))
				return
			}
			response.WriteError(w, r, response.Invalid("%s", err.Error()))
			return
		}

		ts, err := renamer.RenameTimeslotLabel(r.Context(), actor, weekday, period, req.Label)
		if err != nil {
			if status := response.WriteError(w, r, err); status >= http.StatusInternalServerError {
				log.Error("failed to rename timeslot", sl.Err(err))
			} else {
				log.Info("rename rejected", sl.Err(err))
			}
			return
		}

		log.Info("timeslot renamed", slog.String("weekday", string(weekday)), slog.Int("period", period))

		resp := api.FromTimeslot(*ts)
		render.JSON(w, r, Response{Timeslot: &resp})
	}
}
