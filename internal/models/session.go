// Package models contains the persisted domain types shared across the
// polling engine, the dispatcher, and the Telegram front-end.
package models

import "time"

// UserSession is the per-user authenticated state: mailbox credentials,
// capture counters, and the dashboard surface the dispatcher edits in place.
type UserSession struct {
	UserID       string `bson:"user_id"`
	ChatID       int64  `bson:"chat_id"`
	Email        string `bson:"email,omitempty"`
	AccessToken  string `bson:"access_token,omitempty"`
	RefreshToken string `bson:"refresh_token,omitempty"`
	Active       bool   `bson:"active"`

	CapturedCount int       `bson:"captured_count"`
	LatestCode    string    `bson:"latest_code,omitempty"`
	LatestCodeAt  time.Time `bson:"latest_code_at,omitempty"`
	LastCheckAt   time.Time `bson:"last_check_at,omitempty"`
	LastAlias     string    `bson:"last_alias,omitempty"`

	// DashboardMessageID is the Telegram message the dispatcher keeps
	// editing. Zero means no dashboard has been posted yet.
	DashboardMessageID   int  `bson:"dashboard_message_id,omitempty"`
	DashboardInitialized bool `bson:"dashboard_initialized"`

	CreatedAt time.Time `bson:"created_at,omitempty"`
	UpdatedAt time.Time `bson:"updated_at,omitempty"`
}

// Authenticated reports whether the session holds a usable access
// credential. Sessions without one are treated as logged out and are
// excluded from scheduling.
func (s *UserSession) Authenticated() bool {
	return s != nil && s.AccessToken != ""
}

// SeenMessage records that one mailbox message has been processed for one
// user. Once recorded the same pair never triggers a second notification.
type SeenMessage struct {
	UserID    string    `bson:"user_id"`
	MessageID string    `bson:"message_id"`
	SeenAt    time.Time `bson:"seen_at"`
}
