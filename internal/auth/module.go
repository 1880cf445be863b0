package auth

import (
	"context"

	"github.com/mailsentry/mailsentry/internal/config"
	"github.com/mailsentry/mailsentry/internal/gmail"
	"github.com/mailsentry/mailsentry/internal/store"
	"go.uber.org/fx"
)

// Module provides the auth module dependencies
var Module = fx.Options(
	fx.Provide(
		func(cfg *config.Config, sessions store.Sessions, ledger store.Ledger, mailbox *gmail.Client) (*Authenticator, error) {
			return NewAuthenticator(context.Background(), cfg, sessions, ledger, mailbox)
		},
	),
)
