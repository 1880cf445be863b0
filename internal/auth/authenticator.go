// Package auth completes the Google login flow: it exchanges the pasted
// authorization code, resolves the account email from the verified ID
// token, and primes the seen-message ledger so mail that predates the login
// never notifies.
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/mailsentry/mailsentry/internal/config"
	"github.com/mailsentry/mailsentry/internal/gmail"
	"github.com/mailsentry/mailsentry/internal/logger"
	"github.com/mailsentry/mailsentry/internal/models"
	"github.com/mailsentry/mailsentry/internal/store"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const googleIssuer = "https://accounts.google.com"

// unreadLister is the slice of the mailbox client needed for ledger priming.
type unreadLister interface {
	ListUnread(ctx context.Context, accessToken string, limit int64) ([]string, error)
}

// Authenticator turns pasted authorization codes into authenticated
// sessions.
type Authenticator struct {
	oauth    *oauth2.Config
	sessions store.Sessions
	ledger   store.Ledger
	mailbox  unreadLister

	// resolveEmail extracts the account email from a fresh token set. The
	// default verifies the Google ID token through OIDC.
	resolveEmail func(ctx context.Context, token *oauth2.Token) (string, error)
}

func NewAuthenticator(ctx context.Context, cfg *config.Config, sessions store.Sessions, ledger store.Ledger, mailbox *gmail.Client) (*Authenticator, error) {
	provider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: cfg.Google.ClientID})

	a := &Authenticator{
		oauth:    gmail.NewOAuthConfig(&cfg.Google),
		sessions: sessions,
		ledger:   ledger,
		mailbox:  mailbox,
	}
	a.resolveEmail = func(ctx context.Context, token *oauth2.Token) (string, error) {
		rawIDToken, ok := token.Extra("id_token").(string)
		if !ok {
			return "", fmt.Errorf("no id_token in token response")
		}

		idToken, err := verifier.Verify(ctx, rawIDToken)
		if err != nil {
			return "", fmt.Errorf("failed to verify ID token: %w", err)
		}

		var claims struct {
			Email string `json:"email"`
		}
		if err := idToken.Claims(&claims); err != nil {
			return "", fmt.Errorf("failed to parse claims: %w", err)
		}
		if claims.Email == "" {
			return "", fmt.Errorf("ID token carries no email claim")
		}
		return claims.Email, nil
	}
	return a, nil
}

// LooksLikeAuthCode reports whether a chat message is plausibly a pasted
// Google authorization code rather than conversation.
func LooksLikeAuthCode(text string) bool {
	text = strings.TrimSpace(text)
	return strings.HasPrefix(text, "4/") || len(text) > 30
}

// CompleteLogin exchanges code, stores the authenticated session for
// userID, and marks every currently-listed unread message as seen. It
// returns the updated session.
func (a *Authenticator) CompleteLogin(ctx context.Context, userID string, chatID int64, code string) (*models.UserSession, error) {
	token, err := a.oauth.Exchange(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, fmt.Errorf("authorization code exchange failed: %w", err)
	}

	email, err := a.resolveEmail(ctx, token)
	if err != nil {
		return nil, err
	}

	update := store.SessionUpdate{
		ChatID:        store.Ptr(chatID),
		Email:         store.Ptr(email),
		AccessToken:   store.Ptr(token.AccessToken),
		Active:        store.Ptr(true),
		LatestCode:    store.Ptr(""),
		LatestCodeAt:  store.Ptr(time.Time{}),
		ResetCaptured: true,
	}
	if token.RefreshToken != "" {
		update.RefreshToken = store.Ptr(token.RefreshToken)
	}
	if err := a.sessions.Upsert(ctx, userID, update); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	a.primeLedger(ctx, userID, token.AccessToken)

	logger.Info("session authenticated", zap.String("user_id", userID), zap.String("email", email))
	return a.sessions.Get(ctx, userID)
}

// primeLedger marks all mail visible at login time as seen. Best effort:
// a failure here means at worst one already-read code notifies once.
func (a *Authenticator) primeLedger(ctx context.Context, userID, accessToken string) {
	ids, err := a.mailbox.ListUnread(ctx, accessToken, 0)
	if err != nil {
		logger.Warn("failed to list unread mail for ledger priming",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return
	}
	for _, id := range ids {
		if err := a.ledger.MarkSeen(ctx, userID, id); err != nil {
			logger.Warn("failed to prime ledger entry",
				zap.String("user_id", userID),
				zap.String("message_id", id),
				zap.Error(err),
			)
		}
	}
}

// Logout deletes the session record entirely; polling stops immediately.
func (a *Authenticator) Logout(ctx context.Context, userID string) error {
	return a.sessions.Delete(ctx, userID)
}
