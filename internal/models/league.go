package models

import (
	"time"
)

// LeagueUser is a league member as last seen from the upstream service. Kept so that
// saved recommendations can resolve display names without refetching.
type LeagueUser struct {
	LeagueID    string    `gorm:"primaryKey" json:"league_id"`
	UserID      string    `gorm:"primaryKey" json:"user_id"`
	DisplayName string    `gorm:"not null" json:"display_name"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (LeagueUser) TableName() string {
	return "league_users"
}
