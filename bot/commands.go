package bot

import (
	"errors"
	"fmt"
	"strings"
	"wedlink/internal/database"
	"wedlink/internal/lifecycle"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
)

// start enables review notifications for a known admin.
func (t *TgBot) start(_ *tgbotapi.Bot, ctx *ext.Context) error {
	if t.db == nil {
		return nil
	}
	chatId := ctx.EffectiveUser.Id
	if !t.setEnabled(chatId, "/start", true) {
		return nil
	}
	t.plainResponse(chatId, "Review notifications ENABLED")
	t.setAdminCommands(chatId)
	return nil
}

func (t *TgBot) stop(_ *tgbotapi.Bot, ctx *ext.Context) error {
	if t.db == nil {
		return nil
	}
	chatId := ctx.EffectiveUser.Id
	if !t.setEnabled(chatId, "/stop", false) {
		return nil
	}
	t.plainResponse(chatId, "Review notifications DISABLED")
	return nil
}

// setEnabled switches notifications for the admin with chatId; non-admins are told off.
func (t *TgBot) setEnabled(chatId int64, command string, enabled bool) bool {
	c, cancel := requestContext()
	defer cancel()

	user, err := t.db.GetUserByTelegramId(c, chatId)
	if errors.Is(err, database.ErrNotFound) || (err == nil && !user.IsAdmin()) {
		t.plainResponse(chatId, "This bot is for reviewers only\\. Ask an admin to link your Telegram account\\.")
		return false
	}
	if err != nil {
		t.reportError(chatId, command, err)
		return false
	}
	if err = t.db.SetTelegramEnabled(c, chatId, enabled); err != nil {
		t.reportError(chatId, command, err)
		return false
	}
	t.loadAdmins()
	return true
}

func (t *TgBot) help(_ *tgbotapi.Bot, ctx *ext.Context) error {
	t.plainResponse(ctx.EffectiveUser.Id, helpText())
	return nil
}

func helpText() string {
	var sb strings.Builder
	sb.WriteString("*Invitation review*\n\n")
	for _, c := range commandsAdmin {
		sb.WriteString(fmt.Sprintf("/%s \\- %s\n", c.Command, Sanitize(c.Description)))
	}
	sb.WriteString("\nUse the buttons under a review card to approve or reject quickly\\.")
	return sb.String()
}

// pending lists the review queue, one card with buttons per request.
func (t *TgBot) pending(_ *tgbotapi.Bot, ctx *ext.Context) error {
	admin := t.actor(ctx)
	if admin == nil || t.reviewer == nil {
		return nil
	}
	chatId := ctx.EffectiveUser.Id
	c, cancel := requestContext()
	defer cancel()

	requests, err := t.reviewer.PendingRequests(c, admin)
	if err != nil {
		t.reportError(chatId, "/pending", err)
		return nil
	}
	if len(requests) == 0 {
		t.plainResponse(chatId, "No invitations are waiting for review\\.")
		return nil
	}

	t.plainResponse(chatId, fmt.Sprintf("*%d* waiting for review:", len(requests)))
	for _, req := range requests {
		inv, err := t.reviewer.GetInvitation(c, admin, req.InvitationID)
		if err != nil {
			t.log.Warn("pending invitation", "invitation_id", req.InvitationID, "error", err)
			continue
		}
		t.sendWithKeyboard(chatId, reviewCard(inv, req, t.baseURL), buildReviewButtons(inv.ID))
	}
	return nil
}

func (t *TgBot) approve(_ *tgbotapi.Bot, ctx *ext.Context) error {
	return t.review(ctx, "/approve", lifecycle.ActionApprove, false)
}

func (t *TgBot) reject(_ *tgbotapi.Bot, ctx *ext.Context) error {
	return t.review(ctx, "/reject", lifecycle.ActionReject, true)
}

func (t *TgBot) revoke(_ *tgbotapi.Bot, ctx *ext.Context) error {
	return t.review(ctx, "/revoke", lifecycle.ActionRevoke, false)
}

// review runs "/<command> <invitation id> [reason]".
func (t *TgBot) review(ctx *ext.Context, command string, action lifecycle.Action, needReason bool) error {
	admin := t.actor(ctx)
	if admin == nil || t.reviewer == nil {
		return nil
	}
	chatId := ctx.EffectiveUser.Id

	id, reason := commandArgs(ctx.EffectiveMessage.Text)
	if id == "" || (needReason && reason == "") {
		usage := fmt.Sprintf("Usage: `%s <invitation id>`", command)
		if needReason {
			usage = fmt.Sprintf("Usage: `%s <invitation id> <reason>`", command)
		}
		t.plainResponse(chatId, usage)
		return nil
	}

	c, cancel := requestContext()
	defer cancel()
	inv, err := t.reviewer.Transition(c, admin, id, action, reason)
	if err != nil {
		t.plainResponse(chatId, reviewFailure(id, err))
		if !expectedReviewError(err) {
			t.log.Error("review command", "command", command, "invitation_id", id, "error", err)
		}
		return nil
	}
	t.plainResponse(chatId, fmt.Sprintf("%s: `%s` is now *%s*",
		Sanitize(pastTense(action)), Sanitize(inv.ID), Sanitize(string(inv.Status))))
	return nil
}

func expectedReviewError(err error) bool {
	return errors.Is(err, lifecycle.ErrInvalidTransition) || errors.Is(err, database.ErrNotFound)
}

func reviewFailure(id string, err error) string {
	switch {
	case errors.Is(err, lifecycle.ErrReasonRequired):
		return "A reason is required to reject\\."
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return fmt.Sprintf("`%s` is not in a state that allows this\\.", Sanitize(id))
	case errors.Is(err, database.ErrNotFound):
		return fmt.Sprintf("Invitation `%s` not found\\.", Sanitize(id))
	}
	return "Something went wrong\\. Please try again later\\."
}

func pastTense(action lifecycle.Action) string {
	switch action {
	case lifecycle.ActionApprove:
		return "Approved"
	case lifecycle.ActionReject:
		return "Rejected"
	case lifecycle.ActionRevoke:
		return "Revoked"
	case lifecycle.ActionSubmit:
		return "Submitted"
	case lifecycle.ActionCancel:
		return "Cancelled"
	case lifecycle.ActionRevert:
		return "Reverted"
	}
	return string(action)
}
