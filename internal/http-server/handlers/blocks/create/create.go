package create

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"sportoase-service/api"
	"sportoase-service/internal/models"
	"sportoase-service/internal/service"
	"sportoase-service/pkg/middleware/mwAuth"
	"sportoase-service/pkg/response"
	"sportoase-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type SlotBlocker interface {
	BlockSlot(ctx context.Context, actor models.Actor, in service.BlockInput) (*models.BlockedSlot, error)
}

type Request struct {
	api.BlockRequest
}

type Response struct {
	response.Response
	BlockedSlot *api.BlockedSlotResponse `json:"blocked_slot,omitempty"`
}

func New(log *slog.Logger, blocker SlotBlocker) http.HandlerFunc {
	validate := validator.New()

	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.blocks.create.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		actor, ok := mwAuth.ActorFrom(r.Context())
		if !ok {
			response.WriteError(w, r, response.ErrUnauthorized)
			return
		}

		var req Request
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("failed to decode request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to decode request"))
			return
		}

		if err := validate.Struct(&req.BlockRequest); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				w.WriteHeader(http.StatusBadRequest)
				render.JSON(w, r, response.ValidationError(verrs))
				return
			}
			response.WriteError(w, r, response.Invalid("%s", err.Error()))
			return
		}

		date, err := models.ParseDate(req.Date)
		if err != nil {
			response.WriteError(w, r, response.Invalid("date must be YYYY-MM-DD"))
			return
		}

		in := service.BlockInput{Date: date, Period: req.Period, Reason: req.Reason}
		if strings.TrimSpace(req.Weekday) != "" {
			wd, ok := models.ParseWeekday(req.Weekday)
			if !ok {
				response.WriteError(w, r, response.Invalid("unknown weekday %q", req.Weekday))
				return
			}
			in.Weekday = wd
		}

		block, err := blocker.BlockSlot(r.Context(), actor, in)
		if err != nil {
			if status := response.WriteError(w, r, err); status >= http.StatusInternalServerError {
				log.Error("failed to block slot", sl.Err(err))
			} else {
				log.Info("block rejected", sl.Err(err))
			}
			return
		}

		log.Info("slot blocked", slog.Int64("block_id", block.ID))

		resp := api.FromBlockedSlot(*block)
		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, Response{BlockedSlot: &resp})
	}
}
