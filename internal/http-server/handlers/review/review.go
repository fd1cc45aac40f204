package review

import (
	"context"
	"log/slog"
	"net/http"
	"wedlink/entity"
	"wedlink/lib/api/cont"
	"wedlink/lib/api/response"
	"wedlink/lib/sl"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	fail "wedlink/internal/http-server/handlers/errors"
)

type Core interface {
	PendingRequests(ctx context.Context, user *entity.User) ([]*entity.ApprovalRequest, error)
}

// Pending lists the open approval requests, oldest first. Admins only.
func Pending(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := handler.PendingRequests(r.Context(), cont.GetUser(r.Context()))
		if err != nil {
			fail.Respond(w, r, log.With(
				sl.Module("http.handlers.review"),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			), err)
			return
		}
		if list == nil {
			list = []*entity.ApprovalRequest{}
		}
		render.JSON(w, r, response.Ok(list))
	}
}
