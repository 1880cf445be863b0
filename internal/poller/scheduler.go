package poller

import (
	"context"
	"sync"
	"time"

	"github.com/mailsentry/mailsentry/internal/config"
	"github.com/mailsentry/mailsentry/internal/logger"
	"github.com/mailsentry/mailsentry/internal/store"
	"go.uber.org/zap"
)

// Scheduler drives the polling loop: every tick it loads the pollable
// session set and runs one Cycle per user concurrently. Each user's cycles
// are serialized; a user whose previous cycle is still in flight is skipped
// until it finishes. Failures and panics stay confined to their user.
type Scheduler struct {
	sessions store.Sessions
	cycle    *Cycle
	interval time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	wg    sync.WaitGroup
}

func NewScheduler(cfg *config.Config, sessions store.Sessions, cycle *Cycle) *Scheduler {
	return &Scheduler{
		sessions: sessions,
		cycle:    cycle,
		interval: cfg.Poller.Interval,
		locks:    make(map[string]*sync.Mutex),
	}
}

// Run loops until ctx is cancelled, fanning out one poll cycle per
// pollable user every tick.
func (s *Scheduler) Run(ctx context.Context) {
	logger.Info("poll scheduler started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("poll scheduler stopping")
			s.wg.Wait()
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	sessions, err := s.sessions.ListPollable(ctx)
	if err != nil {
		logger.Error("failed to load pollable sessions", zap.Error(err))
		return
	}

	for _, session := range sessions {
		s.spawn(ctx, session.UserID, false)
	}
}

// spawn starts a cycle for userID unless one is already in flight.
func (s *Scheduler) spawn(ctx context.Context, userID string, manual bool) {
	lock := s.lockFor(userID)
	if !lock.TryLock() {
		// Previous cycle still running; racing it would corrupt the
		// capture counter and the ledger.
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer lock.Unlock()
		s.runIsolated(ctx, userID, manual)
	}()
}

// runIsolated executes one cycle and contains any panic so one user's
// failure never reaches the loop or another user.
func (s *Scheduler) runIsolated(ctx context.Context, userID string, manual bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("poll cycle panicked",
				zap.String("user_id", userID),
				zap.Any("panic", r),
			)
		}
	}()

	if err := s.cycle.Run(ctx, userID, manual); err != nil {
		logger.Debug("poll cycle aborted",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

// PollNow runs a manual cycle for userID and returns once it completes,
// waiting for any in-flight scheduled cycle to finish first.
func (s *Scheduler) PollNow(ctx context.Context, userID string) {
	lock := s.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()
	s.runIsolated(ctx, userID, true)
}

// OnSessionAuthenticated starts polling a freshly-authenticated user
// immediately instead of waiting for the next natural tick.
func (s *Scheduler) OnSessionAuthenticated(ctx context.Context, userID string) {
	s.spawn(ctx, userID, false)
}

func (s *Scheduler) lockFor(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	return lock
}
