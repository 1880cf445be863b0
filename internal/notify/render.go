package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mailsentry/mailsentry/internal/models"
)

// Callback data understood by the front-end.
const (
	CallbackRefresh = "ui_refresh"
	CallbackAlias   = "ui_alias"
	CallbackLogout  = "ui_logout"
	CallbackClear   = "ui_clear"
)

const timeLayout = "15:04:05"

// Render produces the dashboard text and inline keyboard for a session.
// Unlinked sessions get a login prompt instead of the live interface.
func (d *Dispatcher) Render(session *models.UserSession) (string, tgbotapi.InlineKeyboardMarkup) {
	if !session.Authenticated() {
		text := "❌ *Account Not Linked*\n\nPlease login to start monitoring."
		keyboard := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL("🔐 Login Google", d.LoginURL()),
			),
		)
		return text, keyboard
	}

	lastCheck := "Never"
	if !session.LastCheckAt.IsZero() {
		lastCheck = session.LastCheckAt.Local().Format(timeLayout)
	}

	latestCode := "None Yet"
	codeHeader := "📨 *Latest OTP:*"
	if session.LatestCode != "" {
		latestCode = fmt.Sprintf("`%s`", session.LatestCode)
		if d.now().Sub(session.LatestCodeAt) < d.freshnessWindow {
			codeHeader = "🚨 *[NEW] OTP RECEIVED* 🚨"
		}
	}

	lastAlias := "None"
	if session.LastAlias != "" {
		lastAlias = session.LastAlias
	}

	statusIcon := "🟢"
	if session.AccessToken == "" {
		statusIcon = "🔴"
	}

	text := fmt.Sprintf(
		"🚀 *LIVE SESSION INTERFACE* %s\n"+
			"━━━━━━━━━━━━━━━━━━━━\n"+
			"👤 *Account:* `%s`\n"+
			"🔑 *Total Captured:* `%d`\n"+
			"🕒 *Last Scan:* `%s`\n"+
			"━━━━━━━━━━━━━━━━━━━━\n"+
			"%s\n%s\n\n"+
			"✨ *Last Alias:*\n`%s`\n"+
			"━━━━━━━━━━━━━━━━━━━━\n"+
			"⚠️ _All updates edit this message._",
		statusIcon, session.Email, session.CapturedCount, lastCheck,
		codeHeader, latestCode, lastAlias,
	)

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Force Scan", CallbackRefresh),
			tgbotapi.NewInlineKeyboardButtonData("✨ Gen Alias", CallbackAlias),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🛑 Logout", CallbackLogout),
			tgbotapi.NewInlineKeyboardButtonData("🗑 Clear Logs", CallbackClear),
		),
	)

	return text, keyboard
}
