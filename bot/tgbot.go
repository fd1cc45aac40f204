// Package bot implements the Telegram bot admins use to review invitations.
//
// Architecture overview:
//   - tgbot.go    : TgBot struct, lifecycle (Start/Stop), admin cache, Database and Reviewer interfaces
//   - commands.go : /start, /stop, /pending, /approve, /reject, /revoke, /help
//   - callbacks.go: Approve/Reject inline buttons on review cards
//   - menus.go    : command menu for admins via Telegram's BotCommandScope API
//   - messaging.go: log records routed by topic, lifecycle events turned into review cards
//   - helpers.go  : Sanitize, plainResponse, argument parsing, reportError
//
// Only admins are served. The admin cache is refreshed on startup and after /start or /stop.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"wedlink/entity"
	"wedlink/internal/lifecycle"
	"wedlink/lib/sl"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers/filters/callbackquery"
)

const requestTimeout = 10 * time.Second

// Database defines the storage operations the bot depends on.
type Database interface {
	GetTelegramAdmins(ctx context.Context) ([]*entity.User, error)
	GetUserByTelegramId(ctx context.Context, telegramId int64) (*entity.User, error)
	SetTelegramEnabled(ctx context.Context, telegramId int64, enabled bool) error
}

// Reviewer runs review actions on behalf of an admin.
type Reviewer interface {
	PendingRequests(ctx context.Context, user *entity.User) ([]*entity.ApprovalRequest, error)
	GetInvitation(ctx context.Context, user *entity.User, id string) (*entity.Invitation, error)
	Transition(ctx context.Context, user *entity.User, id string, action lifecycle.Action, reason string) (*entity.Invitation, error)
}

type TgBot struct {
	log         *slog.Logger
	api         *tgbotapi.Bot
	db          Database
	reviewer    Reviewer
	baseURL     string
	mu          sync.RWMutex           // guards admins
	admins      map[int64]*entity.User // telegram_id → enabled admin
	minLogLevel slog.Level
	updater     *ext.Updater
}

func NewTgBot(apiKey string, db Database, baseURL string, log *slog.Logger) (*TgBot, error) {
	tgBot := &TgBot{
		log:         log.With(sl.Module("tgbot")),
		db:          db,
		baseURL:     baseURL,
		minLogLevel: slog.LevelWarn,
		admins:      make(map[int64]*entity.User),
	}

	api, err := tgbotapi.NewBot(apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api instance: %v", err)
	}
	tgBot.api = api

	return tgBot, nil
}

func (t *TgBot) SetReviewer(r Reviewer) {
	t.reviewer = r
}

// SetMinLogLevel sets the lowest level of log records forwarded to admins.
func (t *TgBot) SetMinLogLevel(level slog.Level) {
	t.minLogLevel = level
}

func (t *TgBot) Start() error {
	t.loadAdmins()

	dispatcher := ext.NewDispatcher(&ext.DispatcherOpts{
		Error: func(b *tgbotapi.Bot, ctx *ext.Context, err error) ext.DispatcherAction {
			t.log.Error("handling update:", sl.Err(err))
			return ext.DispatcherActionNoop
		},
		MaxRoutines: ext.DefaultMaxRoutines,
	})
	t.updater = ext.NewUpdater(dispatcher, nil)

	dispatcher.AddHandler(handlers.NewCommand("start", t.start))
	dispatcher.AddHandler(handlers.NewCommand("stop", t.stop))
	dispatcher.AddHandler(handlers.NewCommand("help", t.help))
	dispatcher.AddHandler(handlers.NewCommand("pending", t.pending))
	dispatcher.AddHandler(handlers.NewCommand("approve", t.approve))
	dispatcher.AddHandler(handlers.NewCommand("reject", t.reject))
	dispatcher.AddHandler(handlers.NewCommand("revoke", t.revoke))

	dispatcher.AddHandler(handlers.NewCallback(callbackquery.Prefix(cbApprove), t.onApproveCallback))
	dispatcher.AddHandler(handlers.NewCallback(callbackquery.Prefix(cbReject), t.onRejectCallback))

	t.setDefaultCommands()
	t.syncAdminMenus()

	err := t.updater.StartPolling(t.api, &ext.PollingOpts{
		DropPendingUpdates: true,
		GetUpdatesOpts: &tgbotapi.GetUpdatesOpts{
			Timeout: 9,
			RequestOpts: &tgbotapi.RequestOpts{
				Timeout: time.Second * 10,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start polling: %w", err)
	}

	t.updater.Idle()
	return nil
}

func (t *TgBot) Stop() {
	if t.updater != nil {
		t.log.Info("stopping telegram bot")
		_ = t.updater.Stop()
	}
}

// loadAdmins refreshes the in-memory admin cache from the database.
func (t *TgBot) loadAdmins() {
	if t.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	admins, err := t.db.GetTelegramAdmins(ctx)
	if err != nil {
		t.log.Error("loading admins", sl.Err(err))
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.admins = make(map[int64]*entity.User, len(admins))
	for _, admin := range admins {
		t.admins[admin.TelegramId] = admin
	}
	t.log.With(slog.Int("count", len(t.admins))).Debug("loaded admins")
}

// adminList returns a snapshot of the cached admins.
func (t *TgBot) adminList() []*entity.User {
	t.mu.RLock()
	defer t.mu.RUnlock()
	list := make([]*entity.User, 0, len(t.admins))
	for _, a := range t.admins {
		list = append(list, a)
	}
	return list
}
