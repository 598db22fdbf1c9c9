package delete

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"sportoase-service/internal/models"
	"sportoase-service/pkg/middleware/mwAuth"
	"sportoase-service/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDeleter struct {
	id  int64
	err error
}

func (f *fakeDeleter) DeleteBooking(_ context.Context, _ models.Actor, id int64) error {
	f.id = id
	return f.err
}

func route(d BookingDeleter) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(mwAuth.WithActor(r.Context(), models.Actor{Username: "schulze"})))
		})
	})
	r.Delete("/api/bookings/{id}", New(slog.New(slog.NewTextHandler(io.Discard, nil)), d))
	return r
}

func TestDelete(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		err        error
		wantStatus int
	}{
		{name: "deleted", path: "/api/bookings/7", wantStatus: http.StatusNoContent},
		{name: "not a number", path: "/api/bookings/abc", wantStatus: http.StatusBadRequest},
		{name: "not owner", path: "/api/bookings/7", err: fmt.Errorf("x: %w", response.ErrForbidden), wantStatus: http.StatusForbidden},
		{name: "gone", path: "/api/bookings/7", err: fmt.Errorf("x: %w", response.ErrNotFound), wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDeleter{err: tt.err}
			rr := httptest.NewRecorder()
			route(d).ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, tt.path, nil))

			require.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus != http.StatusBadRequest {
				assert.Equal(t, int64(7), d.id)
			}
		})
	}
}
