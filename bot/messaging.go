package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"wedlink/entity"
	"wedlink/internal/lifecycle"
	"wedlink/internal/richtext"
)

const reasonPreviewLen = 300

func (t *TgBot) SendMessage(msg string) {
	t.SendMessageWithLevel(msg, t.minLogLevel)
}

// SendMessageWithLevel sends a message to enabled admins filtered by log level.
// Delegates to SendMessageWithTopic with an inferred topic.
func (t *TgBot) SendMessageWithLevel(msg string, level slog.Level) {
	topic := entity.TopicSystem
	if level >= slog.LevelError {
		topic = entity.TopicError
	}
	t.SendMessageWithTopic(msg, level, topic)
}

// SendMessageWithTopic sends msg to every enabled admin subscribed to topic.
func (t *TgBot) SendMessageWithTopic(msg string, level slog.Level, topic string) {
	if level < t.minLogLevel {
		return
	}
	for _, admin := range t.adminList() {
		if !admin.TelegramEnabled || !admin.HasTopic(topic) {
			continue
		}
		for _, part := range splitMessage(msg, maxTelegramMessageLen) {
			t.plainResponse(admin.TelegramId, part)
		}
	}
}

// Notify turns lifecycle events into admin messages: submissions arrive as review
// cards with buttons, everything else as a one-line note. Sending happens off the caller.
func (t *TgBot) Notify(_ context.Context, event lifecycle.Event) {
	if event.Invitation == nil {
		return
	}
	admins := t.adminList()
	if len(admins) == 0 {
		return
	}

	go func() {
		for _, admin := range admins {
			if !admin.TelegramEnabled || !admin.HasTopic(entity.TopicReview) {
				continue
			}
			if event.Action == lifecycle.ActionSubmit {
				t.sendWithKeyboard(admin.TelegramId, reviewCard(event.Invitation, event.Request, t.baseURL), buildReviewButtons(event.Invitation.ID))
				continue
			}
			// the reviewer already sees the outcome of their own action
			if event.Actor != nil && event.Actor.TelegramId == admin.TelegramId {
				continue
			}
			t.plainResponse(admin.TelegramId, eventText(event))
		}
	}()
}

// reviewCard describes an invitation waiting for review.
func reviewCard(inv *entity.Invitation, req *entity.ApprovalRequest, baseURL string) string {
	c := inv.Content
	var sb strings.Builder
	sb.WriteString("*Review requested*\n")
	sb.WriteString(fmt.Sprintf("%s & %s\n", Sanitize(c.Groom.Name), Sanitize(c.Bride.Name)))
	if c.Event.Date != "" {
		sb.WriteString(Sanitize(strings.TrimSpace(c.Event.Date+" "+c.Event.Time)) + "\n")
	}
	if c.Venue.Name != "" {
		sb.WriteString(Sanitize(c.Venue.Name) + "\n")
	}
	sb.WriteString(fmt.Sprintf("\nID: `%s`\n", Sanitize(inv.ID)))
	if inv.Slug != "" {
		sb.WriteString(fmt.Sprintf("Slug: `%s`\n", Sanitize(inv.Slug)))
	}
	if req != nil && !req.CreatedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("Submitted: %s\n", Sanitize(req.CreatedAt.Format("2006-01-02 15:04"))))
	}
	if baseURL != "" {
		sb.WriteString(Sanitize(strings.TrimRight(baseURL, "/")+"/invitations/"+inv.ID) + "\n")
	}
	return sb.String()
}

// eventText is the one-line note sent for decisions and owner actions.
func eventText(event lifecycle.Event) string {
	inv := event.Invitation
	who := "owner"
	if event.Actor != nil {
		who = event.Actor.DisplayName()
	}
	text := fmt.Sprintf("%s `%s` by %s", pastTense(event.Action), Sanitize(inv.ID), Sanitize(who))

	if req := event.Request; req != nil {
		reason := req.RejectionReason
		if event.Action == lifecycle.ActionApprove {
			reason = req.Note
		}
		reason = strings.TrimSpace(richtext.Strip(reason))
		if reason != "" {
			if r := []rune(reason); len(r) > reasonPreviewLen {
				reason = string(r[:reasonPreviewLen]) + "..."
			}
			text += "\n" + Sanitize(reason)
		}
	}
	return text
}
