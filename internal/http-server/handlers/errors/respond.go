package errors

import (
	goerrors "errors"
	"log/slog"
	"net/http"
	"wedlink/entity"
	"wedlink/internal/assets"
	"wedlink/internal/database"
	"wedlink/internal/editor"
	"wedlink/internal/lifecycle"
	"wedlink/internal/slug"
	"wedlink/internal/validation"
	"wedlink/lib/api/response"
	"wedlink/lib/sl"

	"github.com/go-chi/render"
)

// Issues is the data of a validation failure response.
type Issues struct {
	Issues   []entity.Issue `json:"issues"`
	Sections []string       `json:"sections"`
}

// Status maps a domain error to the HTTP status and the one message shown to the user.
// Unknown errors map to 500 with a generic message.
func Status(err error) (int, string) {
	var locked *editor.LockedError
	switch {
	case goerrors.Is(err, validation.ErrFailed):
		return http.StatusUnprocessableEntity, err.Error()
	case goerrors.Is(err, editor.ErrUploadInProgress):
		return http.StatusConflict, editor.ErrUploadInProgress.Error()
	case goerrors.As(err, &locked):
		return http.StatusLocked, locked.Error()
	case goerrors.Is(err, editor.ErrLockedForApproval):
		return http.StatusLocked, editor.ErrLockedForApproval.Error()
	case goerrors.Is(err, editor.ErrSlugImmutable):
		return http.StatusConflict, editor.ErrSlugImmutable.Error()
	case goerrors.Is(err, database.ErrSlugTaken):
		return http.StatusConflict, "This address is already taken, please choose another one"
	case goerrors.Is(err, editor.ErrPersistenceFailed):
		return http.StatusInternalServerError, editor.ErrPersistenceFailed.Error()
	case goerrors.Is(err, lifecycle.ErrReasonRequired):
		return http.StatusBadRequest, "A reason is required"
	case goerrors.Is(err, lifecycle.ErrInvalidTransition):
		return http.StatusConflict, "This action is not available for the invitation right now"
	case goerrors.Is(err, lifecycle.ErrForbidden):
		return http.StatusForbidden, "Not allowed"
	case goerrors.Is(err, database.ErrNotFound),
		goerrors.Is(err, slug.ErrNotFound),
		goerrors.Is(err, editor.ErrSessionNotFound):
		return http.StatusNotFound, "Requested resource not found"
	case goerrors.Is(err, assets.ErrNotImage):
		return http.StatusUnsupportedMediaType, assets.ErrNotImage.Error()
	case goerrors.Is(err, assets.ErrNotConfigured):
		return http.StatusServiceUnavailable, "Image uploads are not available"
	}
	return http.StatusInternalServerError, "Internal error, please try again later"
}

// Respond renders err with the status from Status. Validation failures carry the full
// issue list; unexpected errors are logged.
func Respond(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status, message := Status(err)
	render.Status(r, status)

	var verr *validation.Error
	if goerrors.As(err, &verr) {
		log.Debug("validation failed", slog.Int("issues", len(verr.Issues)))
		render.JSON(w, r, response.Fail(message, Issues{Issues: verr.Issues, Sections: validation.Sections(verr.Issues)}))
		return
	}
	if status == http.StatusInternalServerError {
		log.Error("request failed", sl.Err(err))
	} else {
		log.Debug("request refused", slog.Int("status", status), sl.Err(err))
	}
	render.JSON(w, r, response.Error(message))
}
