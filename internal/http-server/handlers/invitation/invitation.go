package invitation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"wedlink/entity"
	"wedlink/internal/lifecycle"
	"wedlink/internal/notify"
	"wedlink/internal/validation"
	"wedlink/lib/api/cont"
	"wedlink/lib/api/response"
	"wedlink/lib/sl"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	fail "wedlink/internal/http-server/handlers/errors"
)

type Core interface {
	ListInvitations(ctx context.Context, user *entity.User) ([]*entity.Invitation, error)
	CreateInvitation(ctx context.Context, user *entity.User, req *entity.NewInvitationRequest) (*entity.Invitation, error)
	GetInvitation(ctx context.Context, user *entity.User, id string) (*entity.Invitation, error)
	DeleteInvitation(ctx context.Context, user *entity.User, id string) error
	ValidateInvitation(ctx context.Context, user *entity.User, id string) ([]entity.Issue, error)
	Transition(ctx context.Context, user *entity.User, id string, action lifecycle.Action, reason string) (*entity.Invitation, error)
	Notification(ctx context.Context, user *entity.User, id string) (notify.Notification, error)
	Requests(ctx context.Context, user *entity.User, id string) ([]*entity.ApprovalRequest, error)
}

// ValidationResult is the response of the validate call.
type ValidationResult struct {
	Valid    bool           `json:"valid"`
	Issues   []entity.Issue `json:"issues"`
	Sections []string       `json:"sections,omitempty"`
}

func logger(log *slog.Logger, r *http.Request) *slog.Logger {
	return log.With(
		sl.Module("http.handlers.invitation"),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

func List(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := cont.GetUser(r.Context())
		list, err := handler.ListInvitations(r.Context(), user)
		if err != nil {
			fail.Respond(w, r, logger(log, r), err)
			return
		}
		if list == nil {
			list = []*entity.Invitation{}
		}
		render.JSON(w, r, response.Ok(list))
	}
}

func Create(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := logger(log, r)
		user := cont.GetUser(r.Context())

		var req entity.NewInvitationRequest
		if err := render.Bind(r, &req); err != nil && !errors.Is(err, io.EOF) {
			logger.Debug("bind request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}

		inv, err := handler.CreateInvitation(r.Context(), user, &req)
		if err != nil {
			fail.Respond(w, r, logger, err)
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.Ok(inv))
	}
}

func Get(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, err := handler.GetInvitation(r.Context(), cont.GetUser(r.Context()), chi.URLParam(r, "id"))
		if err != nil {
			fail.Respond(w, r, logger(log, r), err)
			return
		}
		render.JSON(w, r, response.Ok(inv))
	}
}

func Delete(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := handler.DeleteInvitation(r.Context(), cont.GetUser(r.Context()), id); err != nil {
			fail.Respond(w, r, logger(log, r).With(sl.Invitation(id)), err)
			return
		}
		render.JSON(w, r, response.Ok(nil))
	}
}

func Validate(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		issues, err := handler.ValidateInvitation(r.Context(), cont.GetUser(r.Context()), chi.URLParam(r, "id"))
		if err != nil {
			fail.Respond(w, r, logger(log, r), err)
			return
		}
		if issues == nil {
			issues = []entity.Issue{}
		}
		render.JSON(w, r, response.Ok(ValidationResult{
			Valid:    len(issues) == 0,
			Issues:   issues,
			Sections: validation.Sections(issues),
		}))
	}
}

// Transition runs action on the invitation. Approve, reject and revoke read an optional
// {"reason": ...} body; reject fails without one.
func Transition(log *slog.Logger, handler Core, action lifecycle.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		logger := logger(log, r).With(sl.Invitation(id), slog.String("action", string(action)))

		var body entity.ReviewRequest
		if takesReason(action) {
			if err := render.Bind(r, &body); err != nil && !errors.Is(err, io.EOF) {
				logger.Debug("bind request", sl.Err(err))
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
				return
			}
		}

		inv, err := handler.Transition(r.Context(), cont.GetUser(r.Context()), id, action, body.Reason)
		if err != nil {
			fail.Respond(w, r, logger, err)
			return
		}
		render.JSON(w, r, response.Ok(inv))
	}
}

func takesReason(action lifecycle.Action) bool {
	return action == lifecycle.ActionApprove || action == lifecycle.ActionReject || action == lifecycle.ActionRevoke
}

func Notification(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := handler.Notification(r.Context(), cont.GetUser(r.Context()), chi.URLParam(r, "id"))
		if err != nil {
			fail.Respond(w, r, logger(log, r), err)
			return
		}
		render.JSON(w, r, response.Ok(n))
	}
}

func Requests(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := handler.Requests(r.Context(), cont.GetUser(r.Context()), chi.URLParam(r, "id"))
		if err != nil {
			fail.Respond(w, r, logger(log, r), err)
			return
		}
		if list == nil {
			list = []*entity.ApprovalRequest{}
		}
		render.JSON(w, r, response.Ok(list))
	}
}
