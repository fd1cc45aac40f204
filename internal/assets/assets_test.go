package assets

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"wedlink/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 1x1 transparent png
var pixel, _ = base64.StdEncoding.DecodeString("iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII=")

func TestSniffImage(t *testing.T) {
	r, err := SniffImage(bytes.NewReader(pixel))
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, pixel, data, "sniffing must not consume the content")

	_, err = SniffImage(strings.NewReader("just some text"))
	assert.ErrorIs(t, err, ErrNotImage)

	_, err = SniffImage(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestNilCloudinary(t *testing.T) {
	c, err := NewCloudinary(config.CloudinaryConfig{}, slog.Default())
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = c.Upload(context.Background(), "a.png", bytes.NewReader(pixel))
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCloudinaryUpload(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/demo/image/upload"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"public_id":"invitations/x","bytes":68,"secure_url":"https://res.cloudinary.com/demo/image/upload/invitations/x.png"}`)
	}))
	defer server.Close()

	c, err := NewCloudinary(config.CloudinaryConfig{CloudName: "demo", ApiKey: "key", ApiSecret: "secret", Folder: "invitations"}, slog.Default())
	require.NoError(t, err)
	c.cld.Config.API.UploadPrefix = server.URL

	url, err := c.Upload(context.Background(), "photo.png", bytes.NewReader(pixel))
	require.NoError(t, err)
	assert.Equal(t, "https://res.cloudinary.com/demo/image/upload/invitations/x.png", url)
	assert.EqualValues(t, 1, calls.Load())

	_, err = c.Upload(context.Background(), "notes.txt", strings.NewReader("hello"))
	assert.ErrorIs(t, err, ErrNotImage)
	assert.EqualValues(t, 1, calls.Load(), "rejected before reaching the host")
}
