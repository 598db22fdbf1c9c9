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

type BookingCreator interface {
	CreateBooking(ctx context.Context, actor models.Actor, in service.BookingInput) (*models.Booking, error)
}

type Request struct {
	api.BookingRequest
}

type Response struct {
	response.Response
	Booking *api.BookingResponse `json:"booking,omitempty"`
}

func New(log *slog.Logger, creator BookingCreator) http.HandlerFunc {
	validate := validator.New()

	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.bookings.create.New"

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

		if err := validate.Struct(&req.BookingRequest); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				log.Info("invalid request", sl.Err(err))
				w.WriteHeader(http.StatusBadRequest)
				render.JSON(w, r, response.ValidationError(verrs))
				return
			}
			response.WriteError(w, r, response.Invalid("%s", err.Error()))
			return
		}

		in, err := toInput(req.BookingRequest)
		if err != nil {
			log.Info("invalid request", sl.Err(err))
			response.WriteError(w, r, err)
			return
		}

		booking, err := creator.CreateBooking(r.Context(), actor, in)
		if err != nil {
			if status := response.WriteError(w, r, err); status >= http.StatusInternalServerError {
				log.Error("failed to create booking", sl.Err(err))
			} else {
				log.Info("booking rejected", sl.Err(err))
			}
			return
		}

		log.Info("booking created", slog.Int64("booking_id", booking.ID))

		resp := api.FromBooking(*booking)
		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, Response{Booking: &resp})
	}
}

func toInput(req api.BookingRequest) (service.BookingInput, error) {
	date, err := models.ParseDate(req.Date)
	if err != nil {
		return service.BookingInput{}, response.Invalid("date must be YYYY-MM-DD")
	}

	var weekday models.Weekday
	if strings.TrimSpace(req.Weekday) != "" {
		wd, ok := models.ParseWeekday(req.Weekday)
		if !ok {
			return service.BookingInput{}, response.Invalid("unknown weekday %q", req.Weekday)
		}
		weekday = wd
	}

	students := make([]models.Student, 0, len(req.Students))
	for _, st := range req.Students {
		students = append(students, models.Student{Name: st.Name, Klasse: st.Klasse})
	}

	in := service.BookingInput{
		Date:        date,
		Weekday:     weekday,
		Period:      req.Period,
		OfferType:   models.OfferType(req.OfferType),
		OfferLabel:  req.OfferLabel,
		TeacherName: req.TeacherName,
		Students:    students,
	}
	if req.TeacherClass != nil {
		in.TeacherClass = *req.TeacherClass
	}

	return in, nil
}
