package bot

import (
	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
)

// Command lists for Telegram's menu button (the "/" icon in the chat input).
// Admins get the review commands through BotCommandScopeChat; everyone else only sees /start.

var commandsAnonymous = []tgbotapi.BotCommand{
	{Command: "start", Description: "Link this chat to your reviewer account"},
	{Command: "help", Description: "Show available commands"},
}

var commandsAdmin = []tgbotapi.BotCommand{
	{Command: "pending", Description: "List invitations waiting for review"},
	{Command: "approve", Description: "Approve: /approve <id>"},
	{Command: "reject", Description: "Reject with a reason: /reject <id> <reason>"},
	{Command: "revoke", Description: "Take a published invitation down: /revoke <id> [reason]"},
	{Command: "start", Description: "Enable review notifications"},
	{Command: "stop", Description: "Disable review notifications"},
	{Command: "help", Description: "Show available commands"},
}

// setDefaultCommands sets the default bot menu for unknown users.
func (t *TgBot) setDefaultCommands() {
	_, err := t.api.SetMyCommands(commandsAnonymous, &tgbotapi.SetMyCommandsOpts{
		Scope: tgbotapi.BotCommandScopeDefault{},
	})
	if err != nil {
		t.log.Warn("setting default commands", "error", err)
	}
}

func (t *TgBot) setAdminCommands(chatId int64) {
	_, err := t.api.SetMyCommands(commandsAdmin, &tgbotapi.SetMyCommandsOpts{
		Scope: tgbotapi.BotCommandScopeChat{ChatId: chatId},
	})
	if err != nil {
		t.log.Warn("setting admin commands", "chat_id", chatId, "error", err)
	}
}

func (t *TgBot) syncAdminMenus() {
	for _, admin := range t.adminList() {
		t.setAdminCommands(admin.TelegramId)
	}
}
