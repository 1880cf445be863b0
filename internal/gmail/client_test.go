package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mailsentry/mailsentry/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(&config.Config{
		Poller: config.PollerConfig{RequestTimeout: 5 * time.Second},
	})
	client.SetBaseURL(srv.URL)
	return client
}

func TestListUnread(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/me/messages", r.URL.Path)
		assert.Equal(t, "is:unread newer_than:1d", r.URL.Query().Get("q"))
		assert.Equal(t, "10", r.URL.Query().Get("maxResults"))
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))

		err := json.NewEncoder(w).Encode(map[string]any{
			"messages": []map[string]string{{"id": "m1"}, {"id": "m2"}},
		})
		require.NoError(t, err)
	})

	ids, err := client.ListUnread(context.Background(), "tok-1", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, ids)
}

func TestListUnread_EmptyMailbox(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// Gmail omits the messages array entirely when nothing matches.
		_, _ = w.Write([]byte(`{"resultSizeEstimate": 0}`))
	})

	ids, err := client.ListUnread(context.Background(), "tok-1", 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestListUnread_Unauthorized(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.ListUnread(context.Background(), "expired", 10)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestListUnread_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": "backend"}`))
	})

	_, err := client.ListUnread(context.Background(), "tok-1", 10)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}

func TestFetchRawBody(t *testing.T) {
	message := "From: a@b.c\r\n\r\nYour code is 97531"
	encoded := base64.RawURLEncoding.EncodeToString([]byte(message))

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/me/messages/m1", r.URL.Path)
		assert.Equal(t, "raw", r.URL.Query().Get("format"))

		err := json.NewEncoder(w).Encode(map[string]string{"raw": encoded})
		require.NoError(t, err)
	})

	raw, err := client.FetchRawBody(context.Background(), "tok-1", "m1")
	require.NoError(t, err)
	assert.Equal(t, message, string(raw))
}

func TestFetchRawBody_PaddedEncoding(t *testing.T) {
	encoded := base64.URLEncoding.EncodeToString([]byte("padded body"))

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		err := json.NewEncoder(w).Encode(map[string]string{"raw": encoded})
		require.NoError(t, err)
	})

	raw, err := client.FetchRawBody(context.Background(), "tok-1", "m1")
	require.NoError(t, err)
	assert.Equal(t, "padded body", string(raw))
}

func TestFetchRawBody_MissingRaw(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": "m1"}`))
	})

	raw, err := client.FetchRawBody(context.Background(), "tok-1", "m1")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestFetchRawBody_Unauthorized(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.FetchRawBody(context.Background(), "expired", "m1")
	assert.ErrorIs(t, err, ErrUnauthorized)
}
