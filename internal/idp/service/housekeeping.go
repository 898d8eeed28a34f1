package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/consign/internal/idp/store"
	"github.com/aussiebroadwan/consign/pkg/clock"
)

// HousekeepingService periodically deletes expired OTP challenges so
// abandoned logins don't accumulate.
type HousekeepingService struct {
	Store    store.Store
	Clock    clock.Clock
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService defaults a non-positive interval to 15 minutes.
func NewHousekeepingService(
	st store.Store,
	clk clock.Clock,
	logger *slog.Logger,
	interval time.Duration,
) *HousekeepingService {
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	return &HousekeepingService{
		Store:    st,
		Clock:    clk,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs a cleanup immediately and then once per Interval until Stop.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until any in-progress cleanup has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup deletes challenges whose code has expired.
func (s *HousekeepingService) Cleanup(ctx context.Context) {
	n, err := s.Store.Challenges().DeleteExpiredChallenges(ctx, s.Clock.Now())
	if err != nil {
		s.Logger.Error("failed to delete expired challenges", "error", err)
		return
	}
	s.Logger.Info("housekeeping cleanup completed", "expired_challenges", n)
}
