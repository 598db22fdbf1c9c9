package mwAuth

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"sportoase-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var opts = Options{
	UserHeader:   "X-Iserv-User",
	NameHeader:   "X-Iserv-Name",
	GroupsHeader: "X-Iserv-Groups",
	AdminGroup:   "sportoase-admin",
}

func serve(t *testing.T, headers map[string]string) (*httptest.ResponseRecorder, models.Actor, bool) {
	t.Helper()

	var (
		got    models.Actor
		called bool
	)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, called = ActorFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/bookings/mine", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()

	New(slog.New(slog.NewTextHandler(io.Discard, nil)), opts)(next).ServeHTTP(rr, req)

	return rr, got, called
}

func TestAuth_MissingUser(t *testing.T) {
	rr, _, called := serve(t, nil)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, called)
	assert.Contains(t, rr.Body.String(), "UNAUTHORIZED")
}

func TestAuth_Teacher(t *testing.T) {
	rr, actor, called := serve(t, map[string]string{
		"X-Iserv-User":   "m.schulze",
		"X-Iserv-Name":   "Maria Schulze",
		"X-Iserv-Groups": "lehrer, fachschaft-sport",
	})

	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, called)
	assert.Equal(t, models.Actor{Username: "m.schulze", DisplayName: "Maria Schulze"}, actor)
}

func TestAuth_AdminGroup(t *testing.T) {
	_, actor, called := serve(t, map[string]string{
		"X-Iserv-User":   "admin",
		"X-Iserv-Groups": "lehrer, SportOase-Admin",
	})

	require.True(t, called)
	assert.True(t, actor.IsAdmin)
	assert.Equal(t, "admin", actor.DisplayName)
}

func TestHasGroup(t *testing.T) {
	assert.False(t, hasGroup("sportoase-admin", ""))
	assert.False(t, hasGroup("", "sportoase-admin"))
	assert.False(t, hasGroup("sportoase-admins", "sportoase-admin"))
	assert.True(t, hasGroup("a, sportoase-admin ,b", "sportoase-admin"))
}
