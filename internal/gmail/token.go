package gmail

import (
	"context"
	"fmt"

	"github.com/mailsentry/mailsentry/internal/config"
	"github.com/mailsentry/mailsentry/internal/logger"
	"github.com/mailsentry/mailsentry/internal/models"
	"github.com/mailsentry/mailsentry/internal/store"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scopes requested from Google: read-only mailbox access plus identity
// claims for resolving the account email at login.
var Scopes = []string{
	"https://www.googleapis.com/auth/gmail.readonly",
	"https://www.googleapis.com/auth/userinfo.email",
	"openid",
}

// NewOAuthConfig builds the oauth2 client shared by the credential manager
// and the login code exchange.
func NewOAuthConfig(cfg *config.GoogleConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       Scopes,
	}
}

// TokenManager refreshes expired access credentials with the stored refresh
// credential and persists the replacement. It never retries internally;
// retry timing belongs to the scheduler's next tick.
type TokenManager struct {
	oauth    *oauth2.Config
	sessions store.Sessions
}

func NewTokenManager(cfg *config.Config, sessions store.Sessions) *TokenManager {
	return &TokenManager{
		oauth:    NewOAuthConfig(&cfg.Google),
		sessions: sessions,
	}
}

// Refresh exchanges the session's refresh credential for a new access
// credential, stores it, and returns it. Any failure is reported as
// ErrRefreshFailed; the caller must abort the current poll cycle.
func (m *TokenManager) Refresh(ctx context.Context, session *models.UserSession) (string, error) {
	if session == nil || session.RefreshToken == "" {
		return "", ErrRefreshFailed
	}

	token, err := m.oauth.TokenSource(ctx, &oauth2.Token{
		RefreshToken: session.RefreshToken,
	}).Token()
	if err != nil {
		logger.Warn("refresh token grant rejected",
			zap.String("user_id", session.UserID),
			zap.Error(err),
		)
		return "", fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	update := store.SessionUpdate{AccessToken: store.Ptr(token.AccessToken)}
	if token.RefreshToken != "" && token.RefreshToken != session.RefreshToken {
		update.RefreshToken = store.Ptr(token.RefreshToken)
	}
	if err := m.sessions.Upsert(ctx, session.UserID, update); err != nil {
		return "", fmt.Errorf("failed to persist refreshed credential: %w", err)
	}

	session.AccessToken = token.AccessToken
	return token.AccessToken, nil
}
