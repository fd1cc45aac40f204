package errors

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"wedlink/entity"
	"wedlink/internal/assets"
	"wedlink/internal/database"
	"wedlink/internal/editor"
	"wedlink/internal/lifecycle"
	"wedlink/internal/slug"
	"wedlink/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{&validation.Error{Issues: []entity.Issue{{Message: "x"}}}, http.StatusUnprocessableEntity},
		{editor.ErrUploadInProgress, http.StatusConflict},
		{&editor.LockedError{Status: entity.StatusPendingApproval}, http.StatusLocked},
		{editor.ErrSlugImmutable, http.StatusConflict},
		{database.ErrSlugTaken, http.StatusConflict},
		{editor.ErrPersistenceFailed, http.StatusInternalServerError},
		{lifecycle.ErrReasonRequired, http.StatusBadRequest},
		{fmt.Errorf("%w: approve from draft", lifecycle.ErrInvalidTransition), http.StatusConflict},
		{lifecycle.ErrForbidden, http.StatusForbidden},
		{database.ErrNotFound, http.StatusNotFound},
		{slug.ErrNotFound, http.StatusNotFound},
		{editor.ErrSessionNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: text/plain", assets.ErrNotImage), http.StatusUnsupportedMediaType},
		{assets.ErrNotConfigured, http.StatusServiceUnavailable},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			status, message := Status(tt.err)
			assert.Equal(t, tt.status, status)
			assert.NotEmpty(t, message)
		})
	}
}

func TestStatusHidesTransitionDetail(t *testing.T) {
	_, message := Status(fmt.Errorf("%w: approve requires admin, acting as owner", lifecycle.ErrInvalidTransition))
	assert.NotContains(t, message, "admin")
}

func TestRespondValidation(t *testing.T) {
	issues := []entity.Issue{
		{SectionKey: entity.SectionNames, FieldID: "groom-name", Message: "Enter the groom's name."},
		{SectionKey: entity.SectionGallery, FieldID: "gallery", Message: "Add at least one photo."},
	}
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	Respond(w, r, slog.New(slog.NewTextHandler(io.Discard, nil)), &validation.Error{Issues: issues})

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var body struct {
		Data          Issues `json:"data"`
		Success       bool   `json:"success"`
		StatusMessage string `json:"status_message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "Enter the groom's name.", body.StatusMessage)
	assert.Equal(t, issues, body.Data.Issues)
	assert.Equal(t, []string{entity.SectionNames, entity.SectionGallery}, body.Data.Sections)
}
