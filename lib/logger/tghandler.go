package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"wedlink/entity"
)

const topicKey = "tg_topic"

// Sender delivers a formatted record to subscribed admins; implemented by bot.TgBot.
type Sender interface {
	SendMessageWithTopic(msg string, level slog.Level, topic string)
}

// TelegramHandler is a slog.Handler that mirrors records at or above minLevel to Telegram.
// A record tagged with sl.Topic is routed to that topic, otherwise the level decides.
type TelegramHandler struct {
	handler  slog.Handler
	sender   Sender
	escape   func(string) string
	minLevel slog.Level
	mu       *sync.Mutex
	attrs    []slog.Attr
	group    string
}

// NewTelegramHandler wraps handler; escape makes free text safe for the chat markup.
func NewTelegramHandler(handler slog.Handler, sender Sender, escape func(string) string, minLevel slog.Level) *TelegramHandler {
	if escape == nil {
		escape = func(s string) string { return s }
	}
	return &TelegramHandler{
		handler:  handler,
		sender:   sender,
		escape:   escape,
		minLevel: minLevel,
		mu:       &sync.Mutex{},
		attrs:    make([]slog.Attr, 0),
	}
}

// Enabled keeps the wrapped handler's level: records below minLevel still reach the log file.
func (h *TelegramHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *TelegramHandler) Handle(ctx context.Context, record slog.Record) error {
	err := h.handler.Handle(ctx, record)
	if err != nil {
		return err
	}
	if record.Level < h.minLevel || h.sender == nil {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	msg, topic := h.format(record)
	h.sender.SendMessageWithTopic(msg, record.Level, topic)
	return nil
}

func (h *TelegramHandler) format(record slog.Record) (string, string) {
	var sb strings.Builder
	name := record.Message
	if h.group != "" {
		name = h.group + "." + name
	}
	sb.WriteString(fmt.Sprintf("*%s* `%s`", record.Level.String(), h.escape(name)))

	topic := ""
	write := func(attr slog.Attr) {
		if attr.Key == topicKey {
			topic = attr.Value.String()
			return
		}
		if attr.Key == "error" {
			sb.WriteString(fmt.Sprintf("\n%s: ```error %s ```", attr.Key, h.escape(attr.Value.String())))
			return
		}
		sb.WriteString(h.escape(fmt.Sprintf("\n%s: %v", attr.Key, attr.Value)))
	}
	for _, attr := range h.attrs {
		write(attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		write(attr)
		return true
	})

	if topic == "" || !entity.IsValidTopic(topic) {
		topic = entity.TopicSystem
		if record.Level >= slog.LevelError {
			topic = entity.TopicError
		}
	}
	return sb.String(), topic
}

func (h *TelegramHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	copy(newAttrs[len(h.attrs):], attrs)

	c := *h
	c.handler = h.handler.WithAttrs(attrs)
	c.attrs = newAttrs
	return &c
}

func (h *TelegramHandler) WithGroup(name string) slog.Handler {
	c := *h
	c.handler = h.handler.WithGroup(name)
	if h.group != "" {
		c.group = h.group + "." + name
	} else {
		c.group = name
	}
	return &c
}
