package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"wedlink/entity"
	"wedlink/internal/editor"
	"wedlink/lib/api/cont"
	"wedlink/lib/api/response"
	"wedlink/lib/sl"
	"wedlink/lib/validate"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	fail "wedlink/internal/http-server/handlers/errors"
)

const formField = "file"

type Core interface {
	OpenSession(ctx context.Context, user *entity.User, invitationID string) (*editor.Session, error)
	Save(ctx context.Context, user *entity.User, sessionID, trigger string, snapshot entity.Snapshot) (editor.Result, error)
	Upload(ctx context.Context, user *entity.User, sessionID string, open editor.Opener) (string, error)
	CloseSession(user *entity.User, sessionID string) error
}

type OpenRequest struct {
	InvitationID string `json:"invitation_id" validate:"required"`
}

func (o *OpenRequest) Bind(_ *http.Request) error {
	return validate.Struct(o)
}

type Opened struct {
	SessionID    string `json:"session_id"`
	InvitationID string `json:"invitation_id"`
}

type Uploaded struct {
	URL string `json:"url"`
}

func logger(log *slog.Logger, r *http.Request) *slog.Logger {
	return log.With(
		sl.Module("http.handlers.session"),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

func badRequest(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	logger.Debug("bind request", sl.Err(err))
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
}

func Open(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := logger(log, r)

		var req OpenRequest
		if err := render.Bind(r, &req); err != nil {
			badRequest(w, r, logger, err)
			return
		}
		s, err := handler.OpenSession(r.Context(), cont.GetUser(r.Context()), req.InvitationID)
		if err != nil {
			fail.Respond(w, r, logger, err)
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.Ok(Opened{SessionID: s.ID, InvitationID: s.InvitationID}))
	}
}

// Save runs the save pipeline. The trigger query parameter names the editor path that
// fired it (button, shortcut, autosave) and only shows up in logs.
func Save(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid := chi.URLParam(r, "sid")
		logger := logger(log, r).With(sl.Session(sid))

		var snapshot entity.Snapshot
		if err := render.Bind(r, &snapshot); err != nil {
			badRequest(w, r, logger, err)
			return
		}
		trigger := r.URL.Query().Get("trigger")
		if trigger == "" {
			trigger = "api"
		}

		res, err := handler.Save(r.Context(), cont.GetUser(r.Context()), sid, trigger, snapshot)
		if err != nil {
			fail.Respond(w, r, logger, err)
			return
		}
		if res.Dropped {
			render.Status(r, http.StatusAccepted)
		}
		render.JSON(w, r, response.Ok(res))
	}
}

// formError is a malformed upload form.
type formError struct {
	err error
}

func (e *formError) Error() string { return e.err.Error() }
func (e *formError) Unwrap() error { return e.err }

// Upload streams a multipart image to the asset host and returns its durable URL.
// The body is read only inside the session's upload, so saves are refused from the
// first byte on.
func Upload(log *slog.Logger, handler Core, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid := chi.URLParam(r, "sid")
		logger := logger(log, r).With(sl.Session(sid))

		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		open := func() (string, io.Reader, error) {
			form, err := r.MultipartReader()
			if err != nil {
				return "", nil, &formError{err}
			}
			for {
				part, err := form.NextPart()
				if errors.Is(err, io.EOF) {
					return "", nil, &formError{fmt.Errorf("missing %q field", formField)}
				}
				if err != nil {
					return "", nil, &formError{err}
				}
				if part.FormName() == formField {
					return part.FileName(), part, nil
				}
			}
		}

		url, err := handler.Upload(r.Context(), cont.GetUser(r.Context()), sid, open)
		if err != nil {
			var tooLarge *http.MaxBytesError
			var form *formError
			switch {
			case errors.As(err, &tooLarge):
				render.Status(r, http.StatusRequestEntityTooLarge)
				render.JSON(w, r, response.Error(fmt.Sprintf("Image is larger than %d MB", maxBytes>>20)))
			case errors.As(err, &form):
				badRequest(w, r, logger, form.err)
			default:
				fail.Respond(w, r, logger, err)
			}
			return
		}
		render.JSON(w, r, response.Ok(Uploaded{URL: url}))
	}
}

func Close(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := handler.CloseSession(cont.GetUser(r.Context()), chi.URLParam(r, "sid")); err != nil {
			fail.Respond(w, r, logger(log, r), err)
			return
		}
		render.JSON(w, r, response.Ok(nil))
	}
}
