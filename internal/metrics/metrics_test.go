package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	m := New()

	router := chi.NewRouter()
	router.Use(m.Middleware)
	router.Get("/api/bookings/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/bookings/17", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)

	got := testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodGet, "/api/bookings/{id}", "404"))
	assert.Equal(t, 1.0, got)
}

func TestObserveOperation(t *testing.T) {
	m := New()
	m.ObserveOperation("create_booking", OutcomeOK)
	m.ObserveOperation("create_booking", OutcomeOK)
	m.ObserveOperation("create_booking", OutcomeConflict)
	m.ObserveLockWait(20*time.Millisecond, true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("create_booking", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("create_booking", OutcomeConflict)))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.ObserveOperation("x", OutcomeOK) })
}

func TestHandler_Exposes(t *testing.T) {
	m := New()
	m.ObserveOperation("block_slot", OutcomeOK)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "sportoase_operations_total"))
}
