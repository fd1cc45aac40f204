package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"wedlink/entity"
	"wedlink/lib/sl"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	msg   string
	level slog.Level
	topic string
}

type recorder struct {
	messages []sent
}

func (r *recorder) SendMessageWithTopic(msg string, level slog.Level, topic string) {
	r.messages = append(r.messages, sent{msg: msg, level: level, topic: topic})
}

func newTestLogger(rec *recorder, buf *bytes.Buffer) *slog.Logger {
	base := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(NewTelegramHandler(base, rec, nil, slog.LevelWarn))
}

func TestTelegramHandlerMirrorsAboveMinLevel(t *testing.T) {
	rec := &recorder{}
	buf := &bytes.Buffer{}
	log := newTestLogger(rec, buf)

	log.Info("saved")
	log.With(sl.Module("editor")).Error("write failed", sl.Err(errors.New("timeout")))

	require.Len(t, rec.messages, 1)
	assert.Equal(t, entity.TopicError, rec.messages[0].topic)
	assert.Contains(t, rec.messages[0].msg, "write failed")
	assert.Contains(t, rec.messages[0].msg, "timeout")
	assert.Contains(t, rec.messages[0].msg, "mod: editor")
	assert.Contains(t, buf.String(), "saved")
}

func TestTelegramHandlerRoutesTopic(t *testing.T) {
	rec := &recorder{}
	log := newTestLogger(rec, &bytes.Buffer{})

	log.Warn("review requested", sl.Topic(entity.TopicReview))

	require.Len(t, rec.messages, 1)
	assert.Equal(t, entity.TopicReview, rec.messages[0].topic)
	assert.NotContains(t, rec.messages[0].msg, "tg_topic")
}

func TestTelegramHandlerGroup(t *testing.T) {
	rec := &recorder{}
	log := newTestLogger(rec, &bytes.Buffer{}).WithGroup("api")

	log.Warn("slow")

	require.Len(t, rec.messages, 1)
	assert.Contains(t, rec.messages[0].msg, "api.slow")
	assert.Equal(t, entity.TopicSystem, rec.messages[0].topic)
}
