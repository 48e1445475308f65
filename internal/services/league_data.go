package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nickmilikich/fantasy-trade-engine/internal/league"
)

// LeagueDataService builds the merged projection table the trade search consumes:
// one row per rostered player, eligible position and week, joined from the roster,
// member, player-metadata and projection sources.
type LeagueDataService struct {
	provider league.Provider
	cache    *CacheService
	logger   *logrus.Logger
	cacheTTL time.Duration
}

func NewLeagueDataService(provider league.Provider, cache *CacheService, logger *logrus.Logger, cacheTTL time.Duration) *LeagueDataService {
	return &LeagueDataService{
		provider: provider,
		cache:    cache,
		logger:   logger,
		cacheTTL: cacheTTL,
	}
}

// BuildLeagueTable assembles the merged table for a league and season. Results are
// cached; a cache hit skips the upstream fetches entirely.
func (s *LeagueDataService) BuildLeagueTable(ctx context.Context, leagueID string, year int) ([]league.PlayerProjection, error) {
	cacheKey := LeagueTableCacheKey(leagueID, year)

	var cached []league.PlayerProjection
	if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
		s.logger.WithFields(logrus.Fields{
			"league_id": leagueID,
			"year":      year,
		}).Debug("League table cache hit")
		return cached, nil
	}

	rosters, err := s.provider.GetRosters(ctx, leagueID)
	if err != nil {
		return nil, fmt.Errorf("league table build failed: %w", err)
	}
	players, err := s.provider.GetPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("league table build failed: %w", err)
	}
	projections, err := s.provider.GetSeasonProjections(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("league table build failed: %w", err)
	}

	table := mergeLeagueTable(rosters, players, projections)

	s.logger.WithFields(logrus.Fields{
		"league_id": leagueID,
		"year":      year,
		"rows":      len(table),
	}).Info("Built league projection table")

	if len(table) > 0 {
		if err := s.cache.Set(ctx, cacheKey, table, s.cacheTTL); err != nil {
			s.logger.Warnf("Failed to cache league table: %v", err)
		}
	}

	return table, nil
}

// Invalidate drops the cached table for a league/season so the next build refetches.
func (s *LeagueDataService) Invalidate(ctx context.Context, leagueID string, year int) error {
	return s.cache.Delete(ctx, LeagueTableCacheKey(leagueID, year))
}

// mergeLeagueTable joins the component datasets. A rostered player appears once per
// eligible position per projected week, every such row carrying the same points
// value. Players with no projection records produce no rows; they simply contribute
// nothing to any lineup.
func mergeLeagueTable(rosters []league.RosterEntry, players []league.PlayerInfo, projections []league.WeekProjection) []league.PlayerProjection {
	positionsByPlayer := make(map[string][]string, len(players))
	for _, p := range players {
		positionsByPlayer[p.PlayerID] = p.Positions
	}

	projectionsByPlayer := make(map[string][]league.WeekProjection)
	for _, proj := range projections {
		projectionsByPlayer[proj.PlayerID] = append(projectionsByPlayer[proj.PlayerID], proj)
	}

	var table []league.PlayerProjection
	for _, entry := range rosters {
		positions := positionsByPlayer[entry.PlayerID]
		weeks := projectionsByPlayer[entry.PlayerID]
		for _, position := range positions {
			for _, week := range weeks {
				table = append(table, league.PlayerProjection{
					UserID: entry.UserID,
					Projection: league.Projection{
						PlayerID: entry.PlayerID,
						Position: position,
						Week:     week.Week,
						Points:   week.Points,
					},
				})
			}
		}
	}
	return table
}
