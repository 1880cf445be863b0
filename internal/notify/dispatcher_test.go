package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mailsentry/mailsentry/internal/config"
	"github.com/mailsentry/mailsentry/internal/models"
	"github.com/mailsentry/mailsentry/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	failEdits bool
	edits     []tgbotapi.EditMessageTextConfig
	sent      []tgbotapi.MessageConfig
	nextID    int
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	switch msg := c.(type) {
	case tgbotapi.EditMessageTextConfig:
		if f.failEdits {
			return tgbotapi.Message{}, errors.New("message to edit not found")
		}
		f.edits = append(f.edits, msg)
		return tgbotapi.Message{MessageID: msg.MessageID}, nil
	case tgbotapi.MessageConfig:
		f.sent = append(f.sent, msg)
		f.nextID++
		return tgbotapi.Message{MessageID: f.nextID}, nil
	default:
		return tgbotapi.Message{}, errors.New("unexpected chattable")
	}
}

func newTestDispatcher(t *testing.T, sender *fakeSender) (*Dispatcher, *store.MemoryStore) {
	t.Helper()

	sessions := store.NewMemoryStore()
	cfg := &config.Config{
		Google: config.GoogleConfig{
			ClientID:     "client-id",
			ClientSecret: "secret",
			RedirectURI:  "urn:ietf:wg:oauth:2.0:oob",
		},
		Poller: config.PollerConfig{FreshnessWindow: 30 * time.Second},
	}
	return NewDispatcher(cfg, sender, sessions), sessions
}

func TestPush_EditsInPlace(t *testing.T) {
	sender := &fakeSender{}
	d, _ := newTestDispatcher(t, sender)

	d.Push(context.Background(), &models.UserSession{
		UserID:             "u1",
		ChatID:             100,
		Email:              "user@gmail.com",
		AccessToken:        "tok",
		DashboardMessageID: 7,
	})

	require.Len(t, sender.edits, 1)
	assert.Empty(t, sender.sent)
	assert.Equal(t, 7, sender.edits[0].MessageID)
	assert.Equal(t, int64(100), sender.edits[0].ChatID)
}

func TestPush_RepostsWhenSurfaceGone(t *testing.T) {
	sender := &fakeSender{failEdits: true}
	d, sessions := newTestDispatcher(t, sender)

	d.Push(context.Background(), &models.UserSession{
		UserID:             "u1",
		ChatID:             100,
		Email:              "user@gmail.com",
		AccessToken:        "tok",
		DashboardMessageID: 7,
	})

	// The stale surface is replaced and the new reference stored.
	require.Len(t, sender.sent, 1)
	session, err := sessions.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, session.DashboardMessageID)
	assert.True(t, session.DashboardInitialized)
}

func TestPush_NoDashboardYet(t *testing.T) {
	sender := &fakeSender{}
	d, sessions := newTestDispatcher(t, sender)

	d.Push(context.Background(), &models.UserSession{
		UserID:      "u1",
		ChatID:      100,
		Email:       "user@gmail.com",
		AccessToken: "tok",
	})

	require.Len(t, sender.sent, 1)
	session, err := sessions.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, session.DashboardMessageID)
}

func TestPush_NoChatBound(t *testing.T) {
	sender := &fakeSender{}
	d, _ := newTestDispatcher(t, sender)

	d.Push(context.Background(), &models.UserSession{UserID: "u1"})

	assert.Empty(t, sender.sent)
	assert.Empty(t, sender.edits)
}

func TestRender_FreshAndStaleCodes(t *testing.T) {
	d, _ := newTestDispatcher(t, &fakeSender{})

	now := time.Now()
	d.now = func() time.Time { return now }

	session := &models.UserSession{
		UserID:      "u1",
		ChatID:      100,
		Email:       "user@gmail.com",
		AccessToken: "tok",
		LatestCode:  "📱 Telegram: 83920",
	}

	session.LatestCodeAt = now.Add(-5 * time.Second)
	text, _ := d.Render(session)
	assert.Contains(t, text, "[NEW] OTP RECEIVED")

	session.LatestCodeAt = now.Add(-5 * time.Minute)
	text, _ = d.Render(session)
	assert.NotContains(t, text, "[NEW]")
	assert.Contains(t, text, "Latest OTP")
}

func TestRender_UnlinkedSession(t *testing.T) {
	d, _ := newTestDispatcher(t, &fakeSender{})

	text, keyboard := d.Render(&models.UserSession{UserID: "u1", ChatID: 100})
	assert.Contains(t, text, "Account Not Linked")

	require.Len(t, keyboard.InlineKeyboard, 1)
	require.Len(t, keyboard.InlineKeyboard[0], 1)
	button := keyboard.InlineKeyboard[0][0]
	require.NotNil(t, button.URL)
	assert.Contains(t, *button.URL, "client_id=client-id")
	assert.Contains(t, *button.URL, "access_type=offline")
}

func TestRender_DashboardContents(t *testing.T) {
	d, _ := newTestDispatcher(t, &fakeSender{})

	text, keyboard := d.Render(&models.UserSession{
		UserID:        "u1",
		ChatID:        100,
		Email:         "user@gmail.com",
		AccessToken:   "tok",
		CapturedCount: 3,
		LastAlias:     "uSeR@gmail.com",
	})

	assert.Contains(t, text, "user@gmail.com")
	assert.Contains(t, text, "`3`")
	assert.Contains(t, text, "uSeR@gmail.com")
	assert.Contains(t, text, "None Yet")
	assert.Contains(t, text, "Never")

	assert.Len(t, keyboard.InlineKeyboard, 2)
}
