package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm/clause"

	"github.com/nickmilikich/fantasy-trade-engine/internal/engine"
	"github.com/nickmilikich/fantasy-trade-engine/internal/league"
	"github.com/nickmilikich/fantasy-trade-engine/internal/models"
	"github.com/nickmilikich/fantasy-trade-engine/pkg/config"
	"github.com/nickmilikich/fantasy-trade-engine/pkg/database"
)

// RecommendationService runs the full recommendation flow: build the merged league
// table, filter it, search for trades, resolve display names and persist the run.
type RecommendationService struct {
	data    *LeagueDataService
	mapping *MappingService
	db      *database.DB
	hub     *WebSocketHub
	logger  *logrus.Logger
	cfg     *config.Config
}

func NewRecommendationService(
	data *LeagueDataService,
	mapping *MappingService,
	db *database.DB,
	hub *WebSocketHub,
	logger *logrus.Logger,
	cfg *config.Config,
) *RecommendationService {
	return &RecommendationService{
		data:    data,
		mapping: mapping,
		db:      db,
		hub:     hub,
		logger:  logger,
		cfg:     cfg,
	}
}

// RecommendRequest describes one trade search.
type RecommendRequest struct {
	LeagueID     string   `json:"league_id"`
	Year         int      `json:"year"`
	UserID       string   `json:"user_id"`
	MaxGroupSize int      `json:"max_group_size"`
	Positions    []string `json:"positions,omitempty"`
	OtherUsers   []string `json:"other_users,omitempty"`
}

// RecommendedTrade is one presentation row: ids resolved to names and positions.
type RecommendedTrade struct {
	With            string   `json:"with"`
	GivesIDs        []string `json:"gives_ids"`
	ReceivesIDs     []string `json:"receives_ids"`
	Gives           string   `json:"gives"`
	Receives        string   `json:"receives"`
	UserProjection  float64  `json:"user_projection"`
	OtherProjection float64  `json:"other_projection"`
}

// RecommendReport is the full response for one search run.
type RecommendReport struct {
	RunID        uuid.UUID          `json:"run_id"`
	Trades       []RecommendedTrade `json:"trades"`
	Evaluated    int64              `json:"evaluated_combinations"`
	SearchTimeMs int64              `json:"search_time_ms"`
}

// RecommendTrades is the single entry point of the engine for callers: it returns
// every trade between the user and another league member where the user's roster
// strictly improves and the partner's does not worsen, ordered by the user's
// post-trade projection descending. An empty list is a normal outcome.
func (s *RecommendationService) RecommendTrades(ctx context.Context, req RecommendRequest) (*RecommendReport, error) {
	if req.LeagueID == "" || req.UserID == "" {
		return nil, fmt.Errorf("league_id and user_id are required")
	}
	if req.MaxGroupSize < 1 || req.MaxGroupSize > s.cfg.MaxGroupSizeCap {
		return nil, fmt.Errorf("max_group_size must be between 1 and %d", s.cfg.MaxGroupSizeCap)
	}

	table, err := s.data.BuildLeagueTable(ctx, req.LeagueID, req.Year)
	if err != nil {
		return nil, err
	}

	// Optional filters restrict the table before the combinatorial search; they are
	// plain predicates, not part of the engine.
	table = filterTable(table, req.UserID, req.Positions, req.OtherUsers)

	runID := uuid.New()
	s.logger.WithFields(logrus.Fields{
		"run_id":         runID,
		"league_id":      req.LeagueID,
		"user_id":        req.UserID,
		"max_group_size": req.MaxGroupSize,
		"rows":           len(table),
	}).Info("Starting trade search")

	result, err := engine.FindTrades(table, req.UserID, engine.SearchOptions{
		MaxGroupSize: req.MaxGroupSize,
		Slots:        s.cfg.Slots,
		Workers:      s.cfg.SearchWorkers,
		Progress: func(p engine.PartnerProgress) {
			if s.hub != nil {
				s.hub.Broadcast("search_progress", p)
			}
		},
	})
	if err != nil {
		return nil, err
	}

	report, err := s.buildReport(ctx, runID, req, result)
	if err != nil {
		return nil, err
	}

	if err := s.persistRun(runID, req, result, report); err != nil {
		// Persistence is best effort; the report is still valid.
		s.logger.Warnf("Failed to persist search run %s: %v", runID, err)
	}
	s.syncLeagueUsers(ctx, req.LeagueID)

	s.logger.WithFields(logrus.Fields{
		"run_id":    runID,
		"trades":    len(report.Trades),
		"evaluated": result.Evaluated,
		"ms":        result.SearchTime,
	}).Info("Trade search complete")

	return report, nil
}

// filterTable keeps rows for the configured positions and, when other users are
// named, rows owned by the user or one of those users.
func filterTable(table []league.PlayerProjection, userID string, positions, otherUsers []string) []league.PlayerProjection {
	positionSet := make(map[string]bool, len(positions))
	for _, p := range positions {
		positionSet[p] = true
	}
	userSet := make(map[string]bool, len(otherUsers))
	for _, u := range otherUsers {
		userSet[u] = true
	}

	if len(positionSet) == 0 && len(userSet) == 0 {
		return table
	}

	filtered := make([]league.PlayerProjection, 0, len(table))
	for _, row := range table {
		if len(positionSet) > 0 && !positionSet[row.Position] {
			continue
		}
		if len(userSet) > 0 && row.UserID != userID && !userSet[row.UserID] {
			continue
		}
		filtered = append(filtered, row)
	}
	return filtered
}

// buildReport resolves ids to display values for each accepted trade.
func (s *RecommendationService) buildReport(ctx context.Context, runID uuid.UUID, req RecommendRequest, result *engine.Result) (*RecommendReport, error) {
	playerNames, err := s.mapping.PlayerNames(ctx)
	if err != nil {
		return nil, err
	}
	playerPositions, err := s.mapping.PlayerPositions(ctx)
	if err != nil {
		return nil, err
	}
	userNames, err := s.mapping.UserDisplayNames(ctx, req.LeagueID)
	if err != nil {
		return nil, err
	}

	trades := make([]RecommendedTrade, 0, len(result.Trades))
	for _, trade := range result.Trades {
		partner := trade.PartnerID
		if name, ok := userNames[trade.PartnerID]; ok && name != "" {
			partner = name
		}
		trades = append(trades, RecommendedTrade{
			With:            partner,
			GivesIDs:        trade.Gives,
			ReceivesIDs:     trade.Receives,
			Gives:           formatPlayers(trade.Gives, playerNames, playerPositions),
			Receives:        formatPlayers(trade.Receives, playerNames, playerPositions),
			UserProjection:  trade.UserScore,
			OtherProjection: trade.PartnerScore,
		})
	}

	return &RecommendReport{
		RunID:        runID,
		Trades:       trades,
		Evaluated:    result.Evaluated,
		SearchTimeMs: result.SearchTime,
	}, nil
}

// formatPlayers renders a trade side as "Name (POS), Name (POS)".
func formatPlayers(playerIDs []string, names, positions map[string]string) string {
	parts := make([]string, 0, len(playerIDs))
	for _, id := range playerIDs {
		name := names[id]
		if name == "" {
			name = id
		}
		if pos := positions[id]; pos != "" {
			parts = append(parts, fmt.Sprintf("%s (%s)", name, pos))
		} else {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, ", ")
}

// persistRun saves the run summary and its accepted trades.
func (s *RecommendationService) persistRun(runID uuid.UUID, req RecommendRequest, result *engine.Result, report *RecommendReport) error {
	if s.db == nil {
		return nil
	}

	run := models.SearchRun{
		ID:           runID,
		LeagueID:     req.LeagueID,
		UserID:       req.UserID,
		Year:         req.Year,
		MaxGroupSize: req.MaxGroupSize,
		TradesFound:  len(result.Trades),
		Evaluated:    result.Evaluated,
		SearchTimeMs: result.SearchTime,
	}
	if err := s.db.Create(&run).Error; err != nil {
		return err
	}

	if len(result.Trades) == 0 {
		return nil
	}

	rows := make([]models.TradeRecommendation, 0, len(result.Trades))
	for i, trade := range result.Trades {
		row := models.NewTradeRecommendation(runID, req.LeagueID, req.UserID, trade)
		row.PartnerName = report.Trades[i].With
		row.GivesLabel = report.Trades[i].Gives
		row.ReceivesLabel = report.Trades[i].Receives
		rows = append(rows, row)
	}
	return s.db.Create(&rows).Error
}

// syncLeagueUsers upserts the league's members so saved recommendations can resolve
// display names without another upstream fetch. Best effort.
func (s *RecommendationService) syncLeagueUsers(ctx context.Context, leagueID string) {
	if s.db == nil {
		return
	}
	names, err := s.mapping.UserDisplayNames(ctx, leagueID)
	if err != nil || len(names) == 0 {
		return
	}

	rows := make([]models.LeagueUser, 0, len(names))
	for userID, displayName := range names {
		rows = append(rows, models.LeagueUser{
			LeagueID:    leagueID,
			UserID:      userID,
			DisplayName: displayName,
		})
	}
	if err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error; err != nil {
		s.logger.Warnf("Failed to sync league users for %s: %v", leagueID, err)
	}
}

// SavedRecommendations returns persisted recommendations for a league/user, newest
// run first, preserving each run's score order.
func (s *RecommendationService) SavedRecommendations(leagueID, userID string) ([]models.TradeRecommendation, error) {
	if s.db == nil {
		return nil, fmt.Errorf("persistence is not configured")
	}
	var rows []models.TradeRecommendation
	err := s.db.
		Where("league_id = ? AND user_id = ?", leagueID, userID).
		Order("created_at DESC, user_score DESC").
		Find(&rows).Error
	return rows, err
}

// DeleteSavedRecommendation removes one persisted recommendation.
func (s *RecommendationService) DeleteSavedRecommendation(id uint) error {
	if s.db == nil {
		return fmt.Errorf("persistence is not configured")
	}
	return s.db.Delete(&models.TradeRecommendation{}, id).Error
}
