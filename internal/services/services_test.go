package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nickmilikich/fantasy-trade-engine/internal/league"
	"github.com/nickmilikich/fantasy-trade-engine/internal/models"
	"github.com/nickmilikich/fantasy-trade-engine/pkg/config"
	"github.com/nickmilikich/fantasy-trade-engine/pkg/database"
)

// fakeProvider is an in-memory league.Provider with per-method call counters and
// switchable failures.
type fakeProvider struct {
	mu          sync.Mutex
	rosters     []league.RosterEntry
	members     []league.Member
	players     []league.PlayerInfo
	projections []league.WeekProjection
	calls       map[string]int
	fail        map[string]bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		calls: make(map[string]int),
		fail:  make(map[string]bool),
	}
}

func (f *fakeProvider) record(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
	if f.fail[method] {
		return fmt.Errorf("%s unavailable", method)
	}
	return nil
}

func (f *fakeProvider) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeProvider) setFail(method string, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[method] = fail
}

func (f *fakeProvider) GetRosters(_ context.Context, _ string) ([]league.RosterEntry, error) {
	if err := f.record("rosters"); err != nil {
		return nil, err
	}
	return f.rosters, nil
}

func (f *fakeProvider) GetUsers(_ context.Context, _ string) ([]league.Member, error) {
	if err := f.record("users"); err != nil {
		return nil, err
	}
	return f.members, nil
}

func (f *fakeProvider) GetPlayers(_ context.Context) ([]league.PlayerInfo, error) {
	if err := f.record("players"); err != nil {
		return nil, err
	}
	return f.players, nil
}

func (f *fakeProvider) GetSeasonProjections(_ context.Context, _ int) ([]league.WeekProjection, error) {
	if err := f.record("projections"); err != nil {
		return nil, err
	}
	return f.projections, nil
}

func fp(v float64) *float64 {
	return &v
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func testDB(t *testing.T) *database.DB {
	t.Helper()
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gormDB.AutoMigrate(&models.SearchRun{}, &models.TradeRecommendation{}, &models.LeagueUser{}))
	return &database.DB{DB: gormDB}
}

func TestCacheServiceMemoryFallback(t *testing.T) {
	cache := NewCacheService(nil)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", map[string]int{"v": 1}, time.Minute))

	var got map[string]int
	require.NoError(t, cache.Get(ctx, "k", &got))
	assert.Equal(t, map[string]int{"v": 1}, got)

	require.NoError(t, cache.Delete(ctx, "k"))
	assert.Error(t, cache.Get(ctx, "k", &got))
}

func TestCacheServiceMemoryExpiry(t *testing.T) {
	cache := NewCacheService(nil)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", "v", 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	var got string
	assert.Error(t, cache.Get(ctx, "k", &got))
}

func TestBuildLeagueTableMergesSources(t *testing.T) {
	provider := newFakeProvider()
	provider.rosters = []league.RosterEntry{
		{LeagueID: "L", UserID: "u1", PlayerID: "p1"},
		{LeagueID: "L", UserID: "u2", PlayerID: "p2"},
	}
	provider.players = []league.PlayerInfo{
		{PlayerID: "p1", Name: "Alpha Back", Positions: []string{"RB"}},
		{PlayerID: "p2", Name: "Dual Threat", Positions: []string{"RB", "WR"}},
	}
	provider.projections = []league.WeekProjection{
		{PlayerID: "p1", Week: 1, Points: fp(10)},
		{PlayerID: "p1", Week: 2, Points: fp(12)},
		{PlayerID: "p2", Week: 1, Points: fp(8)},
	}

	svc := NewLeagueDataService(provider, NewCacheService(nil), quietLogger(), time.Minute)

	table, err := svc.BuildLeagueTable(context.Background(), "L", 2025)
	require.NoError(t, err)

	// p1: 1 position x 2 weeks, p2: 2 positions x 1 week.
	require.Len(t, table, 4)
	last := table[3]
	assert.Equal(t, "u2", last.UserID)
	assert.Equal(t, "p2", last.PlayerID)
	assert.Equal(t, "WR", last.Position)
	assert.Equal(t, 1, last.Week)
	require.NotNil(t, last.Points)
	assert.Equal(t, 8.0, *last.Points)

	// Second build is served from the cache without touching the provider.
	again, err := svc.BuildLeagueTable(context.Background(), "L", 2025)
	require.NoError(t, err)
	assert.Equal(t, table, again)
	assert.Equal(t, 1, provider.callCount("rosters"))
	assert.Equal(t, 1, provider.callCount("projections"))
}

func TestBuildLeagueTableSkipsPlayersWithoutProjections(t *testing.T) {
	provider := newFakeProvider()
	provider.rosters = []league.RosterEntry{
		{LeagueID: "L", UserID: "u1", PlayerID: "p1"},
		{LeagueID: "L", UserID: "u1", PlayerID: "p2"},
	}
	provider.players = []league.PlayerInfo{
		{PlayerID: "p1", Name: "Alpha Back", Positions: []string{"RB"}},
		{PlayerID: "p2", Name: "No Data", Positions: []string{"WR"}},
	}
	provider.projections = []league.WeekProjection{
		{PlayerID: "p1", Week: 1, Points: fp(10)},
	}

	svc := NewLeagueDataService(provider, NewCacheService(nil), quietLogger(), time.Minute)

	table, err := svc.BuildLeagueTable(context.Background(), "L", 2025)
	require.NoError(t, err)
	require.Len(t, table, 1)
	assert.Equal(t, "p1", table[0].PlayerID)
}

func TestInvalidateForcesRefetch(t *testing.T) {
	provider := newFakeProvider()
	provider.rosters = []league.RosterEntry{{LeagueID: "L", UserID: "u1", PlayerID: "p1"}}
	provider.players = []league.PlayerInfo{{PlayerID: "p1", Name: "Alpha Back", Positions: []string{"RB"}}}
	provider.projections = []league.WeekProjection{{PlayerID: "p1", Week: 1, Points: fp(10)}}

	svc := NewLeagueDataService(provider, NewCacheService(nil), quietLogger(), time.Minute)
	ctx := context.Background()

	_, err := svc.BuildLeagueTable(ctx, "L", 2025)
	require.NoError(t, err)
	require.NoError(t, svc.Invalidate(ctx, "L", 2025))
	_, err = svc.BuildLeagueTable(ctx, "L", 2025)
	require.NoError(t, err)

	assert.Equal(t, 2, provider.callCount("rosters"))
}

func TestMappingServiceCachesUntilTTL(t *testing.T) {
	provider := newFakeProvider()
	provider.players = []league.PlayerInfo{{PlayerID: "p1", Name: "Alpha Back", Positions: []string{"RB"}}}

	svc := NewMappingService(provider, time.Hour)
	ctx := context.Background()

	names, err := svc.PlayerNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Alpha Back", names["p1"])

	_, err = svc.PlayerNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, provider.callCount("players"))
}

func TestMappingServiceRefetchesAfterTTL(t *testing.T) {
	provider := newFakeProvider()
	provider.players = []league.PlayerInfo{{PlayerID: "p1", Name: "Alpha Back", Positions: []string{"RB"}}}

	svc := NewMappingService(provider, time.Millisecond)
	ctx := context.Background()

	_, err := svc.PlayerNames(ctx)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = svc.PlayerNames(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, provider.callCount("players"))
}

func TestMappingServiceServesStaleOnError(t *testing.T) {
	provider := newFakeProvider()
	provider.players = []league.PlayerInfo{{PlayerID: "p1", Name: "Alpha Back", Positions: []string{"RB"}}}

	svc := NewMappingService(provider, time.Millisecond)
	ctx := context.Background()

	names, err := svc.PlayerNames(ctx)
	require.NoError(t, err)
	require.Equal(t, "Alpha Back", names["p1"])

	provider.setFail("players", true)
	time.Sleep(5 * time.Millisecond)

	stale, err := svc.PlayerNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Alpha Back", stale["p1"])
}

func TestMappingServicePositionsJoined(t *testing.T) {
	provider := newFakeProvider()
	provider.players = []league.PlayerInfo{{PlayerID: "p1", Name: "Dual Threat", Positions: []string{"RB", "WR"}}}

	svc := NewMappingService(provider, time.Hour)

	positions, err := svc.PlayerPositions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "RB/WR", positions["p1"])
}

func TestMappingServiceUserNames(t *testing.T) {
	provider := newFakeProvider()
	provider.members = []league.Member{
		{UserID: "u1", DisplayName: "Team Alpha"},
		{UserID: "u2", DisplayName: "Team Beta"},
	}

	svc := NewMappingService(provider, time.Hour)
	ctx := context.Background()

	names, err := svc.UserDisplayNames(ctx, "L")
	require.NoError(t, err)
	assert.Equal(t, "Team Alpha", names["u1"])

	ids, err := svc.DisplayNameToUserID(ctx, "L")
	require.NoError(t, err)
	assert.Equal(t, "u2", ids["Team Beta"])
}

func TestFilterTable(t *testing.T) {
	table := []league.PlayerProjection{
		{UserID: "u1", Projection: league.Projection{PlayerID: "p1", Position: "RB", Week: 1, Points: fp(5)}},
		{UserID: "u2", Projection: league.Projection{PlayerID: "p2", Position: "WR", Week: 1, Points: fp(7)}},
		{UserID: "u3", Projection: league.Projection{PlayerID: "p3", Position: "RB", Week: 1, Points: fp(9)}},
	}

	assert.Len(t, filterTable(table, "u1", nil, nil), 3)

	byPosition := filterTable(table, "u1", []string{"RB"}, nil)
	require.Len(t, byPosition, 2)
	for _, row := range byPosition {
		assert.Equal(t, "RB", row.Position)
	}

	// A partner filter always keeps the searching user's own rows.
	byUser := filterTable(table, "u1", nil, []string{"u3"})
	require.Len(t, byUser, 2)
	assert.Equal(t, "u1", byUser[0].UserID)
	assert.Equal(t, "u3", byUser[1].UserID)
}

func recommendationFixture(t *testing.T) (*RecommendationService, *fakeProvider, *database.DB) {
	t.Helper()

	provider := newFakeProvider()
	provider.rosters = []league.RosterEntry{
		{LeagueID: "L", UserID: "u1", PlayerID: "pA"},
		{LeagueID: "L", UserID: "u2", PlayerID: "pB"},
		{LeagueID: "L", UserID: "u2", PlayerID: "pC"},
	}
	provider.members = []league.Member{
		{UserID: "u1", DisplayName: "Team One"},
		{UserID: "u2", DisplayName: "Team Two"},
	}
	provider.players = []league.PlayerInfo{
		{PlayerID: "pA", Name: "Alpha Back", Positions: []string{"RB"}},
		{PlayerID: "pB", Name: "Bravo Back", Positions: []string{"RB"}},
		{PlayerID: "pC", Name: "Charlie Back", Positions: []string{"RB"}},
	}
	provider.projections = []league.WeekProjection{
		{PlayerID: "pA", Week: 1, Points: fp(5)},
		{PlayerID: "pB", Week: 1, Points: fp(10)},
		{PlayerID: "pC", Week: 1, Points: fp(10)},
	}

	slots, err := league.ParseSlotConfig("RB:1")
	require.NoError(t, err)
	cfg := &config.Config{
		MaxGroupSizeCap: 3,
		SearchWorkers:   2,
		Slots:           slots,
	}

	db := testDB(t)
	data := NewLeagueDataService(provider, NewCacheService(nil), quietLogger(), time.Minute)
	mapping := NewMappingService(provider, time.Hour)
	svc := NewRecommendationService(data, mapping, db, nil, quietLogger(), cfg)
	return svc, provider, db
}

func TestRecommendTradesEndToEnd(t *testing.T) {
	svc, _, db := recommendationFixture(t)

	report, err := svc.RecommendTrades(context.Background(), RecommendRequest{
		LeagueID:     "L",
		Year:         2025,
		UserID:       "u1",
		MaxGroupSize: 1,
	})
	require.NoError(t, err)
	require.Len(t, report.Trades, 2)

	// u2 has two equal RBs and one slot; either can be swapped for u1's weaker RB
	// without hurting u2.
	for _, trade := range report.Trades {
		assert.Equal(t, "Team Two", trade.With)
		assert.Equal(t, []string{"pA"}, trade.GivesIDs)
		assert.Equal(t, "Alpha Back (RB)", trade.Gives)
		assert.Equal(t, 10.0, trade.UserProjection)
		assert.Equal(t, 10.0, trade.OtherProjection)
	}
	assert.ElementsMatch(t,
		[]string{"Bravo Back (RB)", "Charlie Back (RB)"},
		[]string{report.Trades[0].Receives, report.Trades[1].Receives},
	)

	var runs []models.SearchRun
	require.NoError(t, db.Find(&runs).Error)
	require.Len(t, runs, 1)
	assert.Equal(t, report.RunID, runs[0].ID)
	assert.Equal(t, 2, runs[0].TradesFound)

	var users []models.LeagueUser
	require.NoError(t, db.Find(&users).Error)
	assert.Len(t, users, 2)

	saved, err := svc.SavedRecommendations("L", "u1")
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, "Team Two", saved[0].PartnerName)
	assert.Equal(t, "Alpha Back (RB)", saved[0].GivesLabel)

	require.NoError(t, svc.DeleteSavedRecommendation(saved[0].ID))
	saved, err = svc.SavedRecommendations("L", "u1")
	require.NoError(t, err)
	assert.Len(t, saved, 1)
}

func TestRecommendTradesEmptyResultIsNormal(t *testing.T) {
	svc, provider, db := recommendationFixture(t)

	// A single dominant partner player: u1 improves but u2 always worsens.
	provider.rosters = []league.RosterEntry{
		{LeagueID: "L", UserID: "u1", PlayerID: "pA"},
		{LeagueID: "L", UserID: "u2", PlayerID: "pB"},
	}
	provider.projections = []league.WeekProjection{
		{PlayerID: "pA", Week: 1, Points: fp(5)},
		{PlayerID: "pB", Week: 1, Points: fp(10)},
	}

	report, err := svc.RecommendTrades(context.Background(), RecommendRequest{
		LeagueID:     "L",
		Year:         2025,
		UserID:       "u1",
		MaxGroupSize: 2,
	})
	require.NoError(t, err)
	assert.Empty(t, report.Trades)
	assert.Equal(t, int64(1), report.Evaluated)

	var runs []models.SearchRun
	require.NoError(t, db.Find(&runs).Error)
	require.Len(t, runs, 1)
	assert.Equal(t, 0, runs[0].TradesFound)
}

func TestRecommendTradesValidation(t *testing.T) {
	svc, _, _ := recommendationFixture(t)
	ctx := context.Background()

	_, err := svc.RecommendTrades(ctx, RecommendRequest{LeagueID: "L", UserID: "u1", MaxGroupSize: 0})
	assert.Error(t, err)

	_, err = svc.RecommendTrades(ctx, RecommendRequest{LeagueID: "L", UserID: "u1", MaxGroupSize: 4})
	assert.Error(t, err)

	_, err = svc.RecommendTrades(ctx, RecommendRequest{UserID: "u1", MaxGroupSize: 1})
	assert.Error(t, err)
}

func TestRecommendTradesUpstreamFailure(t *testing.T) {
	svc, provider, _ := recommendationFixture(t)
	provider.setFail("rosters", true)

	_, err := svc.RecommendTrades(context.Background(), RecommendRequest{
		LeagueID:     "L",
		Year:         2025,
		UserID:       "u1",
		MaxGroupSize: 1,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "league table build failed")
}
