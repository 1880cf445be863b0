package notify

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mailsentry/mailsentry/internal/config"
	"go.uber.org/fx"
)

// NewBot creates the shared Telegram bot API client.
func NewBot(cfg *config.Config) (*tgbotapi.BotAPI, error) {
	return tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
}

// Module provides the notify module dependencies
var Module = fx.Options(
	fx.Provide(
		NewBot,
		fx.Annotate(
			func(bot *tgbotapi.BotAPI) *tgbotapi.BotAPI { return bot },
			fx.As(new(Sender)),
		),
		NewDispatcher,
	),
)
