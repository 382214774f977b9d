package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/booking-service/internal/auth"
)

const defaultSweepInterval = 10 * time.Minute

// SessionSweeper periodically removes expired refresh sessions from the store.
type SessionSweeper struct {
	store    auth.RefreshTokenStore
	logger   *zap.Logger
	interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewSessionSweeper creates a sweeper. A non-positive interval falls back to ten minutes.
func NewSessionSweeper(store auth.RefreshTokenStore, logger *zap.Logger, interval time.Duration) *SessionSweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionSweeper{
		store:    store,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the sweep loop in the background. Stop must be called exactly once afterwards.
func (s *SessionSweeper) Start() {
	go s.run()
	s.logger.Info("session sweeper started", zap.Duration("interval", s.interval))
}

// Stop shuts the loop down and waits for an in-progress sweep to finish.
func (s *SessionSweeper) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.logger.Info("session sweeper stopped")
}

func (s *SessionSweeper) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Sweep performs a single cleanup pass and reports how many sessions were removed.
func (s *SessionSweeper) Sweep(ctx context.Context) int {
	removed, err := s.store.DeleteExpired(ctx)
	if err != nil {
		s.logger.Error("failed to delete expired refresh sessions", zap.Error(err))
		return 0
	}
	if removed > 0 {
		s.logger.Info("expired refresh sessions removed", zap.Int("count", removed))
	} else {
		s.logger.Debug("no expired refresh sessions")
	}
	return removed
}
