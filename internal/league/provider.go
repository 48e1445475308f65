package league

import (
	"context"
	"time"
)

// RosterEntry is one player on one roster, as reported by the upstream service.
type RosterEntry struct {
	LeagueID string `json:"league_id"`
	UserID   string `json:"user_id"`
	PlayerID string `json:"player_id"`
}

// Member is a league member.
type Member struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// PlayerInfo is player metadata: display name and the positions the player is
// eligible for.
type PlayerInfo struct {
	PlayerID  string   `json:"player_id"`
	Name      string   `json:"name"`
	Positions []string `json:"positions"`
}

// WeekProjection is one player's projected points for one week. Points is nil when
// the source published no number.
type WeekProjection struct {
	PlayerID string   `json:"player_id"`
	Week     int      `json:"week"`
	Points   *float64 `json:"points"`
}

// Provider fetches league data from an external service.
type Provider interface {
	GetRosters(ctx context.Context, leagueID string) ([]RosterEntry, error)
	GetUsers(ctx context.Context, leagueID string) ([]Member, error)
	GetPlayers(ctx context.Context) ([]PlayerInfo, error)
	GetSeasonProjections(ctx context.Context, year int) ([]WeekProjection, error)
}

// CacheProvider is the cache surface providers use for response caching.
type CacheProvider interface {
	SetSimple(key string, value interface{}, expiration time.Duration) error
	GetSimple(key string, dest interface{}) error
}
