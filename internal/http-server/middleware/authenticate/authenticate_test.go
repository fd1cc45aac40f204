package authenticate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"wedlink/entity"
	"wedlink/lib/api/cont"

	"github.com/stretchr/testify/assert"
)

type authFunc func(ctx context.Context, token string) (*entity.User, error)

func (f authFunc) AuthenticateByToken(ctx context.Context, token string) (*entity.User, error) {
	return f(ctx, token)
}

func TestBearer(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer  abc ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"Bearer   ", "", false},
	}
	for _, tt := range tests {
		token, ok := bearer(tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.token, token, tt.header)
	}
}

func TestMiddleware(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	auth := authFunc(func(_ context.Context, token string) (*entity.User, error) {
		if token == "good" {
			return &entity.User{ID: "u1"}, nil
		}
		return nil, errors.New("invalid")
	})
	var seen *entity.User
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = cont.GetUser(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := New(log, auth)(next)

	for header, want := range map[string]int{
		"":            http.StatusUnauthorized,
		"Token good":  http.StatusUnauthorized,
		"Bearer bad":  http.StatusUnauthorized,
		"Bearer good": http.StatusNoContent,
	} {
		seen = nil
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, want, w.Code, header)
		if want == http.StatusNoContent {
			assert.Equal(t, "u1", seen.ID)
			assert.Equal(t, "u1", w.Header().Get("X-User"))
		} else {
			assert.Nil(t, seen)
		}
	}
}
