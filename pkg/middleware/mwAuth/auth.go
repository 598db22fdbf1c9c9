// Package mwAuth trusts the identity headers injected by the school portal's reverse proxy.
// Session and CSRF handling stay with the portal.
package mwAuth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"sportoase-service/internal/models"
	"sportoase-service/pkg/response"

	"github.com/go-chi/render"
)

type ctxKey struct{}

type Options struct {
	UserHeader   string
	NameHeader   string
	GroupsHeader string
	AdminGroup   string
}

func New(log *slog.Logger, opts Options) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		log := log.With(
			slog.String("component", "middleware/auth"),
		)

		fn := func(w http.ResponseWriter, r *http.Request) {
			username := strings.TrimSpace(r.Header.Get(opts.UserHeader))
			if username == "" {
				log.Warn("request without identity", slog.String("path", r.URL.Path))
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, response.Error(string(response.UNAUTHORIZED), "authentication required"))
				return
			}

			actor := models.Actor{
				Username:    username,
				DisplayName: strings.TrimSpace(r.Header.Get(opts.NameHeader)),
				IsAdmin:     hasGroup(r.Header.Get(opts.GroupsHeader), opts.AdminGroup),
			}
			if actor.DisplayName == "" {
				actor.DisplayName = username
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		}

		return http.HandlerFunc(fn)
	}
}

func hasGroup(header, group string) bool {
	if group == "" {
		return false
	}
	for _, g := range strings.Split(header, ",") {
		if strings.EqualFold(strings.TrimSpace(g), group) {
			return true
		}
	}
	return false
}

func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, actor)
}

func ActorFrom(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(ctxKey{}).(models.Actor)
	return actor, ok
}
