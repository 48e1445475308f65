package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/nickmilikich/fantasy-trade-engine/internal/league"
)

// SleeperClient fetches rosters, users, player metadata and weekly projections from
// the Sleeper fantasy football API.
type SleeperClient struct {
	apiURL         string
	projectionsURL string
	httpClient     *http.Client
	cache          league.CacheProvider
	logger         *logrus.Logger
	limiter        *rate.Limiter
	breaker        *gobreaker.CircuitBreaker
	maxAttempts    int
	seasonWeeks    int
	cacheTTL       time.Duration
}

// SleeperConfig configures a SleeperClient.
type SleeperConfig struct {
	APIURL         string
	ProjectionsURL string
	Timeout        time.Duration
	RateLimit      int // requests per second
	MaxAttempts    int
	SeasonWeeks    int
	CacheTTL       time.Duration
}

// NewSleeperClient creates a new Sleeper API client.
func NewSleeperClient(cfg SleeperConfig, cache league.CacheProvider, logger *logrus.Logger) *SleeperClient {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.SeasonWeeks < 1 {
		cfg.SeasonWeeks = 18
	}
	if cfg.RateLimit < 1 {
		cfg.RateLimit = 10
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "sleeper",
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"component": "circuit_breaker",
				"service":   name,
				"from":      from.String(),
				"to":        to.String(),
			}).Info("Circuit breaker state changed")
		},
	}

	return &SleeperClient{
		apiURL:         cfg.APIURL,
		projectionsURL: cfg.ProjectionsURL,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		cache:          cache,
		logger:         logger,
		limiter:        rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit),
		breaker:        gobreaker.NewCircuitBreaker(settings),
		maxAttempts:    cfg.MaxAttempts,
		seasonWeeks:    cfg.SeasonWeeks,
		cacheTTL:       cfg.CacheTTL,
	}
}

// Sleeper API response structures
type sleeperRoster struct {
	LeagueID string   `json:"league_id"`
	OwnerID  string   `json:"owner_id"`
	Players  []string `json:"players"`
}

type sleeperUser struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

type sleeperPlayer struct {
	FullName         string   `json:"full_name"`
	FantasyPositions []string `json:"fantasy_positions"`
}

type sleeperProjection struct {
	PlayerID string             `json:"player_id"`
	Week     int                `json:"week"`
	Stats    map[string]float64 `json:"stats"`
}

// GetRosters fetches the league's rosters, one entry per rostered player.
func (c *SleeperClient) GetRosters(ctx context.Context, leagueID string) ([]league.RosterEntry, error) {
	cacheKey := fmt.Sprintf("sleeper:rosters:%s", leagueID)

	var cached []league.RosterEntry
	if err := c.cache.GetSimple(cacheKey, &cached); err == nil {
		return cached, nil
	}

	var rosters []sleeperRoster
	url := fmt.Sprintf("%s/league/%s/rosters", c.apiURL, leagueID)
	if err := c.getJSON(ctx, url, &rosters); err != nil {
		return nil, fmt.Errorf("failed to fetch rosters for league %s: %w", leagueID, err)
	}

	entries := make([]league.RosterEntry, 0)
	for _, roster := range rosters {
		for _, playerID := range roster.Players {
			entries = append(entries, league.RosterEntry{
				LeagueID: leagueID,
				UserID:   roster.OwnerID,
				PlayerID: playerID,
			})
		}
	}

	c.cacheSet(cacheKey, entries)
	return entries, nil
}

// GetUsers fetches the league's members.
func (c *SleeperClient) GetUsers(ctx context.Context, leagueID string) ([]league.Member, error) {
	cacheKey := fmt.Sprintf("sleeper:users:%s", leagueID)

	var cached []league.Member
	if err := c.cache.GetSimple(cacheKey, &cached); err == nil {
		return cached, nil
	}

	var users []sleeperUser
	url := fmt.Sprintf("%s/league/%s/users", c.apiURL, leagueID)
	if err := c.getJSON(ctx, url, &users); err != nil {
		return nil, fmt.Errorf("failed to fetch users for league %s: %w", leagueID, err)
	}

	members := make([]league.Member, 0, len(users))
	for _, user := range users {
		members = append(members, league.Member{
			UserID:      user.UserID,
			DisplayName: user.DisplayName,
		})
	}

	c.cacheSet(cacheKey, members)
	return members, nil
}

// GetPlayers fetches NFL player metadata. The response is a large map keyed by
// player id and changes rarely, so it is always cached.
func (c *SleeperClient) GetPlayers(ctx context.Context) ([]league.PlayerInfo, error) {
	cacheKey := "sleeper:players:nfl"

	var cached []league.PlayerInfo
	if err := c.cache.GetSimple(cacheKey, &cached); err == nil {
		return cached, nil
	}

	var playerMap map[string]sleeperPlayer
	url := fmt.Sprintf("%s/players/nfl", c.apiURL)
	if err := c.getJSON(ctx, url, &playerMap); err != nil {
		return nil, fmt.Errorf("failed to fetch player metadata: %w", err)
	}

	players := make([]league.PlayerInfo, 0, len(playerMap))
	for playerID, info := range playerMap {
		players = append(players, league.PlayerInfo{
			PlayerID:  playerID,
			Name:      info.FullName,
			Positions: info.FantasyPositions,
		})
	}

	c.cacheSet(cacheKey, players)
	return players, nil
}

// GetSeasonProjections fetches weekly point projections for every regular-season
// week. Each week is retried up to the configured attempt ceiling before the whole
// fetch fails.
func (c *SleeperClient) GetSeasonProjections(ctx context.Context, year int) ([]league.WeekProjection, error) {
	cacheKey := fmt.Sprintf("sleeper:projections:%d", year)

	var cached []league.WeekProjection
	if err := c.cache.GetSimple(cacheKey, &cached); err == nil {
		return cached, nil
	}

	var projections []league.WeekProjection
	for week := 1; week <= c.seasonWeeks; week++ {
		weekProjections, err := c.getWeekProjections(ctx, year, week)
		if err != nil {
			return nil, err
		}
		projections = append(projections, weekProjections...)
	}

	c.cacheSet(cacheKey, projections)
	return projections, nil
}

// getWeekProjections fetches one week with a bounded retry loop. Exhausting the
// attempt ceiling surfaces a terminal error rather than a silent default.
func (c *SleeperClient) getWeekProjections(ctx context.Context, year, week int) ([]league.WeekProjection, error) {
	url := fmt.Sprintf("%s/%d/%d?season_type=regular", c.projectionsURL, year, week)

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		var rows []sleeperProjection
		lastErr = c.getJSON(ctx, url, &rows)
		if lastErr == nil {
			projections := make([]league.WeekProjection, 0, len(rows))
			for _, row := range rows {
				points := pointsFromStats(row.Stats)
				w := row.Week
				if w == 0 {
					w = week
				}
				projections = append(projections, league.WeekProjection{
					PlayerID: row.PlayerID,
					Week:     w,
					Points:   points,
				})
			}
			return projections, nil
		}

		c.logger.WithFields(logrus.Fields{
			"year":    year,
			"week":    week,
			"attempt": attempt,
		}).Warnf("Projection fetch failed: %v", lastErr)

		if attempt < c.maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Millisecond * 100 * time.Duration(attempt)):
			}
		}
	}

	return nil, fmt.Errorf("failed to fetch projections for %d week %d after %d attempts: %w",
		year, week, c.maxAttempts, lastErr)
}

// pointsFromStats extracts the PPR points projection. A missing entry stays nil; it
// is never coerced to zero.
func pointsFromStats(stats map[string]float64) *float64 {
	if stats == nil {
		return nil
	}
	if pts, ok := stats["pts_ppr"]; ok {
		return &pts
	}
	return nil
}

// getJSON performs a rate-limited GET through the circuit breaker and decodes the
// response body into dest.
func (c *SleeperClient) getJSON(ctx context.Context, url string, dest interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
		}

		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return nil, fmt.Errorf("failed to decode response from %s: %w", url, err)
		}
		return nil, nil
	})
	return err
}

func (c *SleeperClient) cacheSet(key string, value interface{}) {
	if err := c.cache.SetSimple(key, value, c.cacheTTL); err != nil {
		c.logger.Warnf("Failed to cache %s: %v", key, err)
	}
}
