package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mailsentry/mailsentry/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeLister struct {
	ids   []string
	calls int
}

func (f *fakeLister) ListUnread(context.Context, string, int64) ([]string, error) {
	f.calls++
	return f.ids, nil
}

func newTestAuthenticator(t *testing.T, handler http.HandlerFunc, lister *fakeLister) (*Authenticator, *store.MemoryStore) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s := store.NewMemoryStore()
	a := &Authenticator{
		oauth: &oauth2.Config{
			ClientID:     "client-id",
			ClientSecret: "secret",
			Endpoint:     oauth2.Endpoint{TokenURL: srv.URL + "/token"},
		},
		sessions: s,
		ledger:   s,
		mailbox:  lister,
		resolveEmail: func(context.Context, *oauth2.Token) (string, error) {
			return "user@gmail.com", nil
		},
	}
	return a, s
}

func TestLooksLikeAuthCode(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"google code prefix", "4/0AVHEtk5xyz", true},
		{"long opaque blob", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", true},
		{"ordinary chat message", "hello there", false},
		{"short message", "ok", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LooksLikeAuthCode(tt.text))
		})
	}
}

func TestCompleteLogin(t *testing.T) {
	lister := &fakeLister{ids: []string{"old1", "old2"}}
	a, s := newTestAuthenticator(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.FormValue("grant_type"))
		assert.Equal(t, "4/0code", r.FormValue("code"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "access-1", "refresh_token": "refresh-1", "token_type": "Bearer", "expires_in": 3600}`))
	}, lister)

	ctx := context.Background()
	session, err := a.CompleteLogin(ctx, "u1", 100, "4/0code")
	require.NoError(t, err)

	assert.Equal(t, "user@gmail.com", session.Email)
	assert.Equal(t, "access-1", session.AccessToken)
	assert.Equal(t, "refresh-1", session.RefreshToken)
	assert.True(t, session.Active)
	assert.Equal(t, int64(100), session.ChatID)
	assert.Zero(t, session.CapturedCount)

	// Mail that predates the login is primed into the ledger so it never
	// notifies.
	for _, id := range []string{"old1", "old2"} {
		seen, err := s.IsSeen(ctx, "u1", id)
		require.NoError(t, err)
		assert.True(t, seen, id)
	}
}

func TestCompleteLogin_ExchangeRejected(t *testing.T) {
	lister := &fakeLister{}
	a, s := newTestAuthenticator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "invalid_grant"}`))
	}, lister)

	ctx := context.Background()
	_, err := a.CompleteLogin(ctx, "u1", 100, "bogus")
	require.Error(t, err)

	// No session is created for a failed exchange.
	_, err = s.Get(ctx, "u1")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
	assert.Zero(t, lister.calls)
}

func TestLogout(t *testing.T) {
	lister := &fakeLister{}
	a, s := newTestAuthenticator(t, func(w http.ResponseWriter, r *http.Request) {}, lister)

	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, "u1", store.SessionUpdate{Email: store.Ptr("user@gmail.com")}))

	require.NoError(t, a.Logout(ctx, "u1"))
	_, err := s.Get(ctx, "u1")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
}
