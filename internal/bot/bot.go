// Package bot is the Telegram front-end: the /start command, pasted
// authorization codes, and the dashboard's inline buttons. All mailbox work
// is delegated to the polling engine; this package only routes updates.
package bot

import (
	"context"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mailsentry/mailsentry/internal/alias"
	"github.com/mailsentry/mailsentry/internal/auth"
	"github.com/mailsentry/mailsentry/internal/config"
	"github.com/mailsentry/mailsentry/internal/logger"
	"github.com/mailsentry/mailsentry/internal/models"
	"github.com/mailsentry/mailsentry/internal/notify"
	"github.com/mailsentry/mailsentry/internal/poller"
	"github.com/mailsentry/mailsentry/internal/store"
	"go.uber.org/zap"
)

type Bot struct {
	api        *tgbotapi.BotAPI
	cfg        config.TelegramConfig
	sessions   store.Sessions
	auth       *auth.Authenticator
	dispatcher *notify.Dispatcher
	scheduler  *poller.Scheduler
}

func New(cfg *config.Config, api *tgbotapi.BotAPI, sessions store.Sessions, authenticator *auth.Authenticator, dispatcher *notify.Dispatcher, scheduler *poller.Scheduler) *Bot {
	return &Bot{
		api:        api,
		cfg:        cfg.Telegram,
		sessions:   sessions,
		auth:       authenticator,
		dispatcher: dispatcher,
		scheduler:  scheduler,
	}
}

// Run consumes Telegram updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	if b.cfg.DropPendingUpdates {
		// Clears the backlog so a restart does not replay stale commands.
		if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: true}); err != nil {
			logger.Warn("failed to drop pending updates", zap.Error(err))
		}
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.UpdateTimeout
	updates := b.api.GetUpdatesChan(u)

	logger.Info("telegram bot started", zap.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			logger.Info("telegram bot stopping")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("update handler panicked", zap.Any("panic", r))
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	case update.Message != nil:
		b.handleText(ctx, update.Message)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Command() != "start" {
		return
	}

	userID := strconv.FormatInt(msg.From.ID, 10)
	chatID := msg.Chat.ID

	reply := tgbotapi.NewMessage(chatID, "🔄 Syncing Live Interface...")
	reply.ReplyMarkup = tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton("/start")),
	)
	if _, err := b.api.Send(reply); err != nil {
		logger.Warn("failed to send start reply", zap.Error(err))
	}

	if err := b.sessions.Upsert(ctx, userID, store.SessionUpdate{ChatID: store.Ptr(chatID)}); err != nil {
		logger.Error("failed to bind chat", zap.String("user_id", userID), zap.Error(err))
		return
	}

	session, err := b.sessions.Get(ctx, userID)
	if err != nil {
		logger.Error("failed to load session", zap.String("user_id", userID), zap.Error(err))
		return
	}

	// /start always reposts the dashboard instead of editing the old one.
	session.DashboardMessageID = 0
	b.dispatcher.Push(ctx, session)
}

// handleText treats anything shaped like a Google authorization code as a
// login attempt and ignores the rest.
func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	if !auth.LooksLikeAuthCode(msg.Text) {
		return
	}

	userID := strconv.FormatInt(msg.From.ID, 10)
	session, err := b.auth.CompleteLogin(ctx, userID, msg.Chat.ID, msg.Text)
	if err != nil {
		logger.Warn("login attempt failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	b.dispatcher.Push(ctx, session)
	b.scheduler.OnSessionAuthenticated(ctx, userID)

	// The pasted code is a credential; get it out of the chat history.
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(msg.Chat.ID, msg.MessageID)); err != nil {
		logger.Debug("failed to delete auth code message", zap.Error(err))
	}
}

func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	userID := strconv.FormatInt(query.From.ID, 10)

	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		logger.Debug("failed to answer callback", zap.Error(err))
	}

	switch query.Data {
	case notify.CallbackRefresh:
		b.scheduler.PollNow(ctx, userID)

	case notify.CallbackAlias:
		b.generateAlias(ctx, userID)

	case notify.CallbackLogout:
		b.logout(ctx, userID)

	case notify.CallbackClear:
		b.clearLogs(ctx, userID)
	}
}

func (b *Bot) generateAlias(ctx context.Context, userID string) {
	session, err := b.sessions.Get(ctx, userID)
	if err != nil || session.Email == "" {
		return
	}

	generated, err := alias.Generate(session.Email)
	if err != nil {
		logger.Warn("alias generation failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	if err := b.sessions.Upsert(ctx, userID, store.SessionUpdate{LastAlias: store.Ptr(generated)}); err != nil {
		logger.Warn("failed to store alias", zap.String("user_id", userID), zap.Error(err))
		return
	}

	session.LastAlias = generated
	b.dispatcher.Push(ctx, session)
}

func (b *Bot) logout(ctx context.Context, userID string) {
	session, err := b.sessions.Get(ctx, userID)
	if err != nil {
		return
	}

	if err := b.auth.Logout(ctx, userID); err != nil {
		logger.Error("logout failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	// Repaint the old dashboard as the login prompt.
	b.dispatcher.Push(ctx, &models.UserSession{
		UserID:             userID,
		ChatID:             session.ChatID,
		DashboardMessageID: session.DashboardMessageID,
	})
}

func (b *Bot) clearLogs(ctx context.Context, userID string) {
	err := b.sessions.Upsert(ctx, userID, store.SessionUpdate{
		LatestCode:    store.Ptr(""),
		LatestCodeAt:  store.Ptr(time.Time{}),
		ResetCaptured: true,
	})
	if err != nil {
		logger.Warn("failed to clear logs", zap.String("user_id", userID), zap.Error(err))
		return
	}

	session, err := b.sessions.Get(ctx, userID)
	if err != nil {
		return
	}
	b.dispatcher.Push(ctx, session)
}
