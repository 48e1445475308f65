package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickmilikich/fantasy-trade-engine/internal/league"
)

func TestRefreshServiceWarmsTrackedLeagues(t *testing.T) {
	provider := newFakeProvider()
	provider.rosters = []league.RosterEntry{{LeagueID: "L", UserID: "u1", PlayerID: "p1"}}
	provider.players = []league.PlayerInfo{{PlayerID: "p1", Name: "Alpha Back", Positions: []string{"RB"}}}
	provider.projections = []league.WeekProjection{{PlayerID: "p1", Week: 1, Points: fp(10)}}

	data := NewLeagueDataService(provider, NewCacheService(nil), quietLogger(), time.Minute)
	svc := NewRefreshService(data, quietLogger(), []string{"L"}, 2025, time.Hour)

	require.NoError(t, svc.Start())
	defer svc.Stop()

	// The initial warm runs in the background.
	deadline := time.Now().Add(2 * time.Second)
	for provider.callCount("rosters") == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.GreaterOrEqual(t, provider.callCount("rosters"), 1)

	assert.Error(t, svc.Start())
}

func TestRefreshServiceIdleWithoutLeagues(t *testing.T) {
	data := NewLeagueDataService(newFakeProvider(), NewCacheService(nil), quietLogger(), time.Minute)
	svc := NewRefreshService(data, quietLogger(), nil, 2025, time.Hour)

	require.NoError(t, svc.Start())
	svc.Stop()
}
