// Package store provides persistence for user sessions and the seen-message
// ledger. Every mutation is a single atomic upsert; no caller holds a lock
// across multiple store calls.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/mailsentry/mailsentry/internal/models"
)

// ErrSessionNotFound is returned when no session exists for a user id.
var ErrSessionNotFound = errors.New("store: session not found")

// SessionUpdate is a partial update applied to a session document. Nil
// pointer fields are left untouched. IncrementCaptured is applied atomically
// together with the set fields.
type SessionUpdate struct {
	ChatID               *int64
	Email                *string
	AccessToken          *string
	RefreshToken         *string
	Active               *bool
	LatestCode           *string
	LatestCodeAt         *time.Time
	LastCheckAt          *time.Time
	LastAlias            *string
	DashboardMessageID   *int
	DashboardInitialized *bool
	IncrementCaptured    int
	ResetCaptured        bool
}

// Sessions is the session-store contract consumed by the engine.
type Sessions interface {
	Get(ctx context.Context, userID string) (*models.UserSession, error)
	Upsert(ctx context.Context, userID string, update SessionUpdate) error
	Delete(ctx context.Context, userID string) error
	// ListPollable returns sessions eligible for scheduled polling:
	// authenticated and marked active.
	ListPollable(ctx context.Context) ([]*models.UserSession, error)
}

// Ledger is the seen-message deduplication contract. MarkSeen is idempotent.
type Ledger interface {
	IsSeen(ctx context.Context, userID, messageID string) (bool, error)
	MarkSeen(ctx context.Context, userID, messageID string) error
}

// Ptr returns a pointer to v, for building SessionUpdate literals.
func Ptr[T any](v T) *T { return &v }
