package authenticate

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"wedlink/entity"
	"wedlink/lib/api/cont"
	"wedlink/lib/api/response"
	"wedlink/lib/sl"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type Authenticate interface {
	AuthenticateByToken(ctx context.Context, token string) (*entity.User, error)
}

// New requires a bearer token and puts the user it belongs to into the request context.
func New(log *slog.Logger, auth Authenticate) func(next http.Handler) http.Handler {
	mod := sl.Module("middleware.authenticate")
	log.With(mod).Info("authenticate middleware initialized")

	return func(next http.Handler) http.Handler {

		fn := func(w http.ResponseWriter, r *http.Request) {
			id := middleware.GetReqID(r.Context())
			logger := log.With(
				mod,
				slog.String("path", r.URL.Path),
				slog.String("request_id", id),
			)

			header := r.Header.Get("Authorization")
			if len(header) == 0 {
				authFailed(w, r, "Authorization header not found")
				return
			}
			token, ok := bearer(header)
			if !ok {
				authFailed(w, r, "Token not found")
				return
			}

			if auth == nil {
				authFailed(w, r, "Unauthorized: authentication not enabled")
				return
			}

			user, err := auth.AuthenticateByToken(r.Context(), token)
			if err != nil {
				logger.With(sl.Secret("token", token)).Debug("authentication failed", sl.Err(err))
				authFailed(w, r, "Unauthorized: invalid token")
				return
			}
			ctx := cont.PutUser(r.Context(), user)

			w.Header().Set("X-Request-ID", id)
			w.Header().Set("X-User", user.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		}

		return http.HandlerFunc(fn)
	}
}

func bearer(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func authFailed(w http.ResponseWriter, r *http.Request, message string) {
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, response.Error(message))
}
