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

type BlockLister interface {
	ListBlockedSlots(ctx context.Context, actor models.Actor, from, to *time.Time) ([]models.BlockedSlot, error)
}

type Response struct {
	response.Response
	BlockedSlots []api.BlockedSlotResponse `json:"blocked_slots"`
}

func New(log *slog.Logger, lister BlockLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.blocks.list.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		actor, ok := mwAuth.ActorFrom(r.Context())
		if !ok {
			response.WriteError(w, r, response.ErrUnauthorized)
			return
		}

		from, err := api.ParseOptionalDate(r.URL.Query().Get("from"))
		if err != nil {
			response.WriteError(w, r, response.Invalid("from must be YYYY-MM-DD"))
			return
		}
		to, err := api.ParseOptionalDate(r.URL.Query().Get("to"))
		if err != nil {
			response.WriteError(w, r, response.Invalid("to must be YYYY-MM-DD"))
			return
		}

		blocks, err := lister.ListBlockedSlots(r.Context(), actor, from, to)
		if err != nil {
			if status := response.WriteError(w, r, err); status >= http.StatusInternalServerError {
				log.Error("failed to list blocked slots", sl.Err(err))
			}
			return
		}

		render.JSON(w, r, Response{BlockedSlots: api.FromBlockedSlots(blocks)})
	}
}
