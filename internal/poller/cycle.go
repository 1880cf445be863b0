// Package poller implements the polling engine: one check-and-notify pass
// per user (Cycle) and the fixed-interval fan-out over all eligible users
// (Scheduler).
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mailsentry/mailsentry/internal/config"
	"github.com/mailsentry/mailsentry/internal/gmail"
	"github.com/mailsentry/mailsentry/internal/logger"
	"github.com/mailsentry/mailsentry/internal/models"
	"github.com/mailsentry/mailsentry/internal/store"
	"go.uber.org/zap"
)

// Fetcher lists unread mailbox items and retrieves raw message content.
type Fetcher interface {
	ListUnread(ctx context.Context, accessToken string, limit int64) ([]string, error)
	FetchRawBody(ctx context.Context, accessToken, messageID string) ([]byte, error)
}

// CredentialRefresher exchanges a refresh credential for a new access
// credential and persists it on the session.
type CredentialRefresher interface {
	Refresh(ctx context.Context, session *models.UserSession) (string, error)
}

// Notifier pushes a rendered status update to the user's bound surface.
type Notifier interface {
	Push(ctx context.Context, session *models.UserSession)
}

// Cycle runs one polling pass for one user: list, dedupe, fetch, extract,
// update, notify.
type Cycle struct {
	sessions store.Sessions
	ledger   store.Ledger
	fetcher  Fetcher
	tokens   CredentialRefresher
	notifier Notifier
	cfg      config.PollerConfig
	now      func() time.Time
}

func NewCycle(cfg *config.Config, sessions store.Sessions, ledger store.Ledger, fetcher Fetcher, tokens CredentialRefresher, notifier Notifier) *Cycle {
	return &Cycle{
		sessions: sessions,
		ledger:   ledger,
		fetcher:  fetcher,
		tokens:   tokens,
		notifier: notifier,
		cfg:      cfg.Poller,
		now:      time.Now,
	}
}

type fetchResult struct {
	messageID string
	text      string
	fetched   bool
}

// Run executes one poll cycle for userID. Manual cycles bypass both the
// active gate and the seen-message ledger. The only inline retry is a
// single credential refresh after one Unauthorized response; everything
// else waits for the next tick.
func (c *Cycle) Run(ctx context.Context, userID string, manual bool) error {
	log := logger.With(
		zap.String("user_id", userID),
		zap.String("cycle_id", uuid.NewString()),
		zap.Bool("manual", manual),
	)

	session, err := c.sessions.Get(ctx, userID)
	if errors.Is(err, store.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !session.Authenticated() {
		// Logged out; excluded from polling until re-authentication.
		return nil
	}
	if !manual && !session.Active {
		return nil
	}

	auth := &authState{cycle: c, session: session}

	limit := c.cfg.ScheduledLimit
	if manual {
		limit = c.cfg.ManualLimit
	}

	var ids []string
	err = auth.do(ctx, func(token string) error {
		var listErr error
		ids, listErr = c.fetcher.ListUnread(ctx, token, limit)
		return listErr
	})
	if err != nil {
		log.Warn("listing unread mail failed, cycle aborted", zap.Error(err))
		return err
	}

	if !manual {
		ids, err = c.filterSeen(ctx, userID, ids)
		if err != nil {
			log.Warn("ledger lookup failed, cycle aborted", zap.Error(err))
			return err
		}
	}

	results := c.fetchAll(ctx, auth, ids)

	codeFound := false
	for _, r := range results {
		if !r.fetched {
			// Fetch failed; leave the id unmarked so the next tick
			// inspects it again.
			continue
		}

		if code, ok := gmail.ExtractCode(r.text); ok {
			now := c.now().UTC()
			rendered := fmt.Sprintf("📱 %s: %s", gmail.ServiceName(r.text), code)
			err := c.sessions.Upsert(ctx, userID, store.SessionUpdate{
				LatestCode:        store.Ptr(rendered),
				LatestCodeAt:      store.Ptr(now),
				IncrementCaptured: 1,
			})
			if err != nil {
				log.Warn("failed to store captured code", zap.Error(err))
			} else {
				codeFound = true
				log.Info("captured code", zap.String("message_id", r.messageID))
			}
		}

		// Scheduled cycles remember every processed id, code or not, so
		// non-OTP mail is never re-inspected. Manual cycles leave the
		// ledger untouched.
		if !manual {
			if err := c.ledger.MarkSeen(ctx, userID, r.messageID); err != nil {
				log.Warn("failed to mark message seen", zap.String("message_id", r.messageID), zap.Error(err))
			}
		}
	}

	now := c.now().UTC()
	if err := c.sessions.Upsert(ctx, userID, store.SessionUpdate{LastCheckAt: store.Ptr(now)}); err != nil {
		log.Warn("failed to record check time", zap.Error(err))
	}

	updated, err := c.sessions.Get(ctx, userID)
	if err != nil {
		return nil
	}

	stillFresh := !updated.LatestCodeAt.IsZero() && now.Sub(updated.LatestCodeAt) < c.cfg.NotifyAfterFresh
	if codeFound || manual || stillFresh {
		c.notifier.Push(ctx, updated)
	}
	return nil
}

func (c *Cycle) filterSeen(ctx context.Context, userID string, ids []string) ([]string, error) {
	fresh := ids[:0]
	for _, id := range ids {
		seen, err := c.ledger.IsSeen(ctx, userID, id)
		if err != nil {
			return nil, err
		}
		if !seen {
			fresh = append(fresh, id)
		}
	}
	return fresh, nil
}

// fetchAll retrieves and decodes message bodies concurrently, preserving
// listed order in the result slice.
func (c *Cycle) fetchAll(ctx context.Context, auth *authState, ids []string) []fetchResult {
	results := make([]fetchResult, len(ids))

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()

			var raw []byte
			err := auth.do(ctx, func(token string) error {
				var fetchErr error
				raw, fetchErr = c.fetcher.FetchRawBody(ctx, token, id)
				return fetchErr
			})
			if err != nil {
				logger.Debug("body fetch failed", zap.String("message_id", id), zap.Error(err))
				results[i] = fetchResult{messageID: id}
				return
			}

			results[i] = fetchResult{
				messageID: id,
				text:      gmail.ExtractText(raw),
				fetched:   true,
			}
		}(i, id)
	}
	wg.Wait()

	return results
}

// authState serializes the at-most-one credential refresh a cycle is
// allowed. Concurrent body fetches share it.
type authState struct {
	cycle   *Cycle
	session *models.UserSession

	mu        sync.Mutex
	refreshed bool
}

// do runs op with the current access credential. On the cycle's first
// Unauthorized it refreshes once and retries op a single time; any further
// Unauthorized is final.
func (a *authState) do(ctx context.Context, op func(token string) error) error {
	a.mu.Lock()
	token := a.session.AccessToken
	a.mu.Unlock()

	err := op(token)
	if !errors.Is(err, gmail.ErrUnauthorized) {
		return err
	}

	a.mu.Lock()
	if a.refreshed {
		// Someone already spent this cycle's refresh; use whatever
		// credential it produced, but do not refresh again.
		token = a.session.AccessToken
		a.mu.Unlock()
		return op(token)
	}
	a.refreshed = true
	token, refreshErr := a.cycle.tokens.Refresh(ctx, a.session)
	a.mu.Unlock()

	if refreshErr != nil {
		return refreshErr
	}
	return op(token)
}
