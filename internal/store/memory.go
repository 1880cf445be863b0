package store

import (
	"context"
	"sync"
	"time"

	"github.com/mailsentry/mailsentry/internal/models"
)

// MemoryStore is an in-memory Sessions + Ledger implementation. It backs
// tests and local development without a MongoDB instance.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.UserSession
	seen     map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*models.UserSession),
		seen:     make(map[string]time.Time),
	}
}

func seenKey(userID, messageID string) string {
	return userID + ":" + messageID
}

func (s *MemoryStore) Get(_ context.Context, userID string) (*models.UserSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[userID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (s *MemoryStore) Upsert(_ context.Context, userID string, update SessionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[userID]
	if !ok {
		session = &models.UserSession{UserID: userID, CreatedAt: time.Now().UTC()}
		s.sessions[userID] = session
	}

	if update.ChatID != nil {
		session.ChatID = *update.ChatID
	}
	if update.Email != nil {
		session.Email = *update.Email
	}
	if update.AccessToken != nil {
		session.AccessToken = *update.AccessToken
	}
	if update.RefreshToken != nil {
		session.RefreshToken = *update.RefreshToken
	}
	if update.Active != nil {
		session.Active = *update.Active
	}
	if update.LatestCode != nil {
		session.LatestCode = *update.LatestCode
	}
	if update.LatestCodeAt != nil {
		session.LatestCodeAt = *update.LatestCodeAt
	}
	if update.LastCheckAt != nil {
		session.LastCheckAt = *update.LastCheckAt
	}
	if update.LastAlias != nil {
		session.LastAlias = *update.LastAlias
	}
	if update.DashboardMessageID != nil {
		session.DashboardMessageID = *update.DashboardMessageID
	}
	if update.DashboardInitialized != nil {
		session.DashboardInitialized = *update.DashboardInitialized
	}
	if update.ResetCaptured {
		session.CapturedCount = 0
	} else if update.IncrementCaptured != 0 {
		session.CapturedCount += update.IncrementCaptured
	}
	session.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}

func (s *MemoryStore) ListPollable(_ context.Context) ([]*models.UserSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sessions []*models.UserSession
	for _, session := range s.sessions {
		if session.Authenticated() && session.Active {
			copied := *session
			sessions = append(sessions, &copied)
		}
	}
	return sessions, nil
}

func (s *MemoryStore) IsSeen(_ context.Context, userID, messageID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[seenKey(userID, messageID)]
	return ok, nil
}

func (s *MemoryStore) MarkSeen(_ context.Context, userID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := seenKey(userID, messageID)
	if _, ok := s.seen[key]; !ok {
		s.seen[key] = time.Now().UTC()
	}
	return nil
}
