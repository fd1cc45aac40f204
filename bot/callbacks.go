package bot

import (
	"fmt"
	"strings"
	"wedlink/internal/lifecycle"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
)

// Callback data prefixes for inline keyboard buttons.
// Telegram limits callback data to 64 bytes, so prefixes are kept short.
const (
	cbApprove = "ap:" // ap:<invitation_id>
	cbReject  = "rj:" // rj:<invitation_id>
)

// buildReviewButtons creates the Approve / Reject row under a review card.
func buildReviewButtons(invitationID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{{
			{Text: "Approve", CallbackData: cbApprove + invitationID},
			{Text: "Reject", CallbackData: cbReject + invitationID},
		}},
	}
}

// onApproveCallback approves straight from the card and replaces its buttons with the outcome.
func (t *TgBot) onApproveCallback(_ *tgbotapi.Bot, ctx *ext.Context) error {
	cq := ctx.CallbackQuery
	admin := t.actor(ctx)
	if admin == nil || t.reviewer == nil {
		_, _ = cq.Answer(t.api, &tgbotapi.AnswerCallbackQueryOpts{Text: "Admin access required", ShowAlert: true})
		return nil
	}

	id := strings.TrimPrefix(cq.Data, cbApprove)
	c, cancel := requestContext()
	defer cancel()
	inv, err := t.reviewer.Transition(c, admin, id, lifecycle.ActionApprove, "")
	if err != nil {
		if !expectedReviewError(err) {
			t.reportError(cq.From.Id, "approve:callback", err)
		}
		_, _ = cq.Answer(t.api, &tgbotapi.AnswerCallbackQueryOpts{Text: "Not approved: " + err.Error(), ShowAlert: true})
		return nil
	}

	if msg := cq.Message; msg != nil {
		if im, ok := msg.(tgbotapi.Message); ok {
			_, _, _ = t.api.EditMessageText(
				fmt.Sprintf("%s\n\n✅ Approved by %s", im.Text, admin.DisplayName()),
				&tgbotapi.EditMessageTextOpts{
					ChatId:    im.Chat.Id,
					MessageId: im.MessageId,
				},
			)
		}
	}
	_, _ = cq.Answer(t.api, &tgbotapi.AnswerCallbackQueryOpts{Text: "Approved, now " + string(inv.Status)})
	return nil
}

// onRejectCallback cannot carry a reason, so it asks for the /reject command instead.
func (t *TgBot) onRejectCallback(_ *tgbotapi.Bot, ctx *ext.Context) error {
	cq := ctx.CallbackQuery
	admin := t.actor(ctx)
	if admin == nil {
		_, _ = cq.Answer(t.api, &tgbotapi.AnswerCallbackQueryOpts{Text: "Admin access required", ShowAlert: true})
		return nil
	}
	id := strings.TrimPrefix(cq.Data, cbReject)
	t.plainResponse(cq.From.Id, fmt.Sprintf("Send the reason with:\n`/reject %s <reason>`", Sanitize(id)))
	_, _ = cq.Answer(t.api, &tgbotapi.AnswerCallbackQueryOpts{Text: "A reason is required"})
	return nil
}
