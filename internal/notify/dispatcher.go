// Package notify renders the per-user dashboard and pushes it to the bound
// Telegram surface, editing in place where possible. Delivery is best
// effort: a failed push never fails a poll cycle.
package notify

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mailsentry/mailsentry/internal/config"
	"github.com/mailsentry/mailsentry/internal/gmail"
	"github.com/mailsentry/mailsentry/internal/logger"
	"github.com/mailsentry/mailsentry/internal/models"
	"github.com/mailsentry/mailsentry/internal/store"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Sender is the subset of the Telegram bot API the dispatcher needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Dispatcher edits the user's dashboard message in place, falling back to
// posting a fresh one when the old surface is gone.
type Dispatcher struct {
	bot             Sender
	sessions        store.Sessions
	oauth           *oauth2.Config
	freshnessWindow time.Duration
	now             func() time.Time
}

func NewDispatcher(cfg *config.Config, bot Sender, sessions store.Sessions) *Dispatcher {
	return &Dispatcher{
		bot:             bot,
		sessions:        sessions,
		oauth:           gmail.NewOAuthConfig(&cfg.Google),
		freshnessWindow: cfg.Poller.FreshnessWindow,
		now:             time.Now,
	}
}

// LoginURL returns the Google consent URL shown to unlinked users.
func (d *Dispatcher) LoginURL() string {
	return d.oauth.AuthCodeURL("",
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Push renders the dashboard for session and delivers it. With a known
// surface reference it edits in place; otherwise, or when the edit fails,
// it posts a new message and stores the new reference on the session.
// All delivery failures are swallowed.
func (d *Dispatcher) Push(ctx context.Context, session *models.UserSession) {
	if session == nil || session.ChatID == 0 {
		return
	}

	text, keyboard := d.Render(session)

	if session.DashboardMessageID != 0 {
		edit := tgbotapi.NewEditMessageText(session.ChatID, session.DashboardMessageID, text)
		edit.ParseMode = tgbotapi.ModeMarkdown
		edit.ReplyMarkup = &keyboard
		if _, err := d.bot.Send(edit); err == nil {
			return
		} else {
			logger.Debug("dashboard edit failed, reposting",
				zap.String("user_id", session.UserID),
				zap.Error(err),
			)
		}
	}

	msg := tgbotapi.NewMessage(session.ChatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = keyboard
	sent, err := d.bot.Send(msg)
	if err != nil {
		logger.Warn("dashboard delivery failed",
			zap.String("user_id", session.UserID),
			zap.Error(err),
		)
		return
	}

	err = d.sessions.Upsert(ctx, session.UserID, store.SessionUpdate{
		DashboardMessageID:   store.Ptr(sent.MessageID),
		DashboardInitialized: store.Ptr(true),
	})
	if err != nil {
		logger.Warn("failed to store dashboard reference",
			zap.String("user_id", session.UserID),
			zap.Error(err),
		)
	}
}
