package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// RefreshService re-warms the league table cache for tracked leagues on a schedule,
// so interactive searches rarely pay for a cold upstream fetch.
type RefreshService struct {
	data     *LeagueDataService
	logger   *logrus.Logger
	cron     *cron.Cron
	leagues  []string
	year     int
	interval time.Duration

	mu        sync.Mutex
	isRunning bool
}

func NewRefreshService(data *LeagueDataService, logger *logrus.Logger, leagues []string, year int, interval time.Duration) *RefreshService {
	return &RefreshService{
		data:     data,
		logger:   logger,
		cron:     cron.New(),
		leagues:  leagues,
		year:     year,
		interval: interval,
	}
}

// Start schedules the periodic refresh and runs an initial warm in the background.
func (s *RefreshService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("refresh service is already running")
	}
	if len(s.leagues) == 0 {
		s.logger.Info("No tracked leagues configured, refresh service idle")
		return nil
	}

	schedule := fmt.Sprintf("@every %s", s.interval.String())
	if _, err := s.cron.AddFunc(schedule, s.refreshAll); err != nil {
		return fmt.Errorf("failed to schedule league refresh: %w", err)
	}

	s.cron.Start()
	s.isRunning = true

	go s.refreshAll()

	s.logger.Infof("Refresh service started for %d leagues", len(s.leagues))
	return nil
}

// Stop halts the scheduled refreshes.
func (s *RefreshService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.isRunning = false
	s.logger.Info("Refresh service stopped")
}

func (s *RefreshService) refreshAll() {
	for _, leagueID := range s.leagues {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)

		if err := s.data.Invalidate(ctx, leagueID, s.year); err != nil {
			s.logger.Warnf("Failed to invalidate league %s: %v", leagueID, err)
		}
		if _, err := s.data.BuildLeagueTable(ctx, leagueID, s.year); err != nil {
			s.logger.Errorf("Failed to refresh league %s: %v", leagueID, err)
		} else {
			s.logger.WithFields(logrus.Fields{
				"league_id": leagueID,
				"year":      s.year,
			}).Debug("Refreshed league table")
		}

		cancel()
	}
}
