package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/nickmilikich/fantasy-trade-engine/internal/league"
)

// MappingService resolves player and user identifiers to display values. Every
// mapping is cached in an explicit table keyed by operation and league, with a
// per-entry fetch timestamp and TTL freshness check. The cache lives on the service
// instance, never in package state.
type MappingService struct {
	provider league.Provider
	ttl      time.Duration

	mu      sync.Mutex
	entries map[string]mappingEntry
}

type mappingEntry struct {
	values    map[string]string
	fetchedAt time.Time
}

func NewMappingService(provider league.Provider, ttl time.Duration) *MappingService {
	return &MappingService{
		provider: provider,
		ttl:      ttl,
		entries:  make(map[string]mappingEntry),
	}
}

// PlayerNames maps player_id to display name.
func (s *MappingService) PlayerNames(ctx context.Context) (map[string]string, error) {
	return s.lookup(ctx, "player_names", func() (map[string]string, error) {
		players, err := s.provider.GetPlayers(ctx)
		if err != nil {
			return nil, err
		}
		values := make(map[string]string, len(players))
		for _, p := range players {
			values[p.PlayerID] = p.Name
		}
		return values, nil
	})
}

// PlayerPositions maps player_id to a position label, dual-eligible players joined
// with a slash ("RB/WR").
func (s *MappingService) PlayerPositions(ctx context.Context) (map[string]string, error) {
	return s.lookup(ctx, "player_positions", func() (map[string]string, error) {
		players, err := s.provider.GetPlayers(ctx)
		if err != nil {
			return nil, err
		}
		values := make(map[string]string, len(players))
		for _, p := range players {
			values[p.PlayerID] = strings.Join(p.Positions, "/")
		}
		return values, nil
	})
}

// UserDisplayNames maps user_id to display name for a league.
func (s *MappingService) UserDisplayNames(ctx context.Context, leagueID string) (map[string]string, error) {
	return s.lookup(ctx, "user_names:"+leagueID, func() (map[string]string, error) {
		members, err := s.provider.GetUsers(ctx, leagueID)
		if err != nil {
			return nil, err
		}
		values := make(map[string]string, len(members))
		for _, m := range members {
			values[m.UserID] = m.DisplayName
		}
		return values, nil
	})
}

// DisplayNameToUserID is the inverse league member mapping.
func (s *MappingService) DisplayNameToUserID(ctx context.Context, leagueID string) (map[string]string, error) {
	return s.lookup(ctx, "user_ids:"+leagueID, func() (map[string]string, error) {
		members, err := s.provider.GetUsers(ctx, leagueID)
		if err != nil {
			return nil, err
		}
		values := make(map[string]string, len(members))
		for _, m := range members {
			values[m.DisplayName] = m.UserID
		}
		return values, nil
	})
}

// lookup returns the cached mapping when fresh, otherwise fetches and stores it.
// Values are inserted whole and never partially updated.
func (s *MappingService) lookup(ctx context.Context, key string, fetch func() (map[string]string, error)) (map[string]string, error) {
	s.mu.Lock()
	entry, ok := s.entries[key]
	s.mu.Unlock()

	if ok && time.Since(entry.fetchedAt) <= s.ttl {
		return entry.values, nil
	}

	values, err := fetch()
	if err != nil {
		// Serve a stale entry over a hard failure when one exists.
		if ok {
			return entry.values, nil
		}
		return nil, err
	}

	s.mu.Lock()
	s.entries[key] = mappingEntry{values: values, fetchedAt: time.Now()}
	s.mu.Unlock()

	return values, nil
}
