package public

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"wedlink/entity"
	"wedlink/lib/api/response"
	"wedlink/lib/sl"

	"github.com/go-chi/render"

	fail "wedlink/internal/http-server/handlers/errors"
)

type Core interface {
	ResolvePublic(ctx context.Context, raw string) (*entity.Invitation, error)
}

// Document is what the renderer gets for a published invitation.
type Document struct {
	ID      string         `json:"id"`
	Slug    string         `json:"slug"`
	Content entity.Content `json:"content"`
	Country string         `json:"country_code,omitempty"`
}

// Resolve serves the approved invitation behind the address segment as it arrived.
// Anything else is a plain 404.
func Resolve(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := segment(r)
		inv, err := handler.ResolvePublic(r.Context(), raw)
		if err != nil {
			fail.Respond(w, r, log.With(sl.Module("http.handlers.public"), slog.String("slug", raw)), err)
			return
		}
		render.JSON(w, r, response.Ok(Document{
			ID:      inv.ID,
			Slug:    inv.Slug,
			Content: inv.Content,
			Country: inv.Content.Venue.CountryCode(),
		}))
	}
}

// segment is the last path segment still percent-encoded as the client sent it;
// the router's parameter is already decoded.
func segment(r *http.Request) string {
	path := r.URL.EscapedPath()
	return path[strings.LastIndex(path, "/")+1:]
}
