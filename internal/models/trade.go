package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/nickmilikich/fantasy-trade-engine/internal/league"
)

// TradeRecommendation is one accepted trade persisted from a search run, with the
// display-name resolution already applied.
type TradeRecommendation struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	SearchRunID   uuid.UUID      `gorm:"type:uuid;index" json:"search_run_id"`
	LeagueID      string         `gorm:"not null;index:idx_league_user" json:"league_id"`
	UserID        string         `gorm:"not null;index:idx_league_user" json:"user_id"`
	PartnerID     string         `gorm:"not null" json:"partner_id"`
	PartnerName   string         `json:"partner_name"`
	Gives         datatypes.JSON `json:"gives"`
	Receives      datatypes.JSON `json:"receives"`
	GivesLabel    string         `json:"gives_label"`
	ReceivesLabel string         `json:"receives_label"`
	UserScore     float64        `gorm:"not null" json:"user_score"`
	PartnerScore  float64        `gorm:"not null" json:"partner_score"`
	CreatedAt     time.Time      `json:"created_at"`
}

// TableName specifies the table name for GORM
func (TradeRecommendation) TableName() string {
	return "trade_recommendations"
}

// NewTradeRecommendation builds the persisted row for an accepted trade.
func NewTradeRecommendation(runID uuid.UUID, leagueID, userID string, trade league.Trade) TradeRecommendation {
	gives, _ := json.Marshal(trade.Gives)
	receives, _ := json.Marshal(trade.Receives)
	return TradeRecommendation{
		SearchRunID:  runID,
		LeagueID:     leagueID,
		UserID:       userID,
		PartnerID:    trade.PartnerID,
		Gives:        datatypes.JSON(gives),
		Receives:     datatypes.JSON(receives),
		UserScore:    trade.UserScore,
		PartnerScore: trade.PartnerScore,
	}
}

// SearchRun records one invocation of the trade search for a league/user.
type SearchRun struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	LeagueID     string    `gorm:"not null;index" json:"league_id"`
	UserID       string    `gorm:"not null" json:"user_id"`
	Year         int       `gorm:"not null" json:"year"`
	MaxGroupSize int       `gorm:"not null" json:"max_group_size"`
	TradesFound  int       `json:"trades_found"`
	Evaluated    int64     `json:"evaluated_combinations"`
	SearchTimeMs int64     `json:"search_time_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

func (SearchRun) TableName() string {
	return "search_runs"
}
