package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// CacheService stores JSON-serialized values with a TTL. It is backed by Redis when
// a client is supplied; with a nil client it falls back to an in-process store with
// the same expiry semantics, which is what tests and redis-less deployments use.
type CacheService struct {
	client *redis.Client

	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

func NewCacheService(client *redis.Client) *CacheService {
	return &CacheService{
		client:  client,
		entries: make(map[string]memoryEntry),
	}
}

func (s *CacheService) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	if s.client == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		entry := memoryEntry{data: data}
		if expiration > 0 {
			entry.expiresAt = time.Now().Add(expiration)
		}
		s.entries[key] = entry
		return nil
	}

	if err := s.client.Set(ctx, key, data, expiration).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) error {
	var data []byte

	if s.client == nil {
		s.mu.RLock()
		entry, ok := s.entries[key]
		s.mu.RUnlock()
		if !ok || (!entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt)) {
			return fmt.Errorf("key not found")
		}
		data = entry.data
	} else {
		raw, err := s.client.Get(ctx, key).Result()
		if err != nil {
			if err == redis.Nil {
				return fmt.Errorf("key not found")
			}
			return fmt.Errorf("failed to get cache: %w", err)
		}
		data = []byte(raw)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal value: %w", err)
	}
	return nil
}

func (s *CacheService) Delete(ctx context.Context, keys ...string) error {
	if s.client == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, key := range keys {
			delete(s.entries, key)
		}
		return nil
	}

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete cache: %w", err)
	}
	return nil
}

// Cache key generators
func LeagueTableCacheKey(leagueID string, year int) string {
	return fmt.Sprintf("league_table:%s:%d", leagueID, year)
}

func RecommendationsCacheKey(leagueID, userID string) string {
	return fmt.Sprintf("recommendations:%s:%s", leagueID, userID)
}

// SetWithRetry retries transient cache write failures with a linear backoff.
func (s *CacheService) SetWithRetry(ctx context.Context, key string, value interface{}, expiration time.Duration, maxRetries int) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		if err = s.Set(ctx, key, value, expiration); err == nil {
			return nil
		}
		logrus.Warnf("Cache set failed (attempt %d/%d): %v", i+1, maxRetries, err)
		time.Sleep(time.Millisecond * 100 * time.Duration(i+1))
	}
	return err
}

// Convenience methods without context (use background context). These satisfy
// league.CacheProvider for the data providers.
func (s *CacheService) SetSimple(key string, value interface{}, expiration time.Duration) error {
	return s.Set(context.Background(), key, value, expiration)
}

func (s *CacheService) GetSimple(key string, dest interface{}) error {
	return s.Get(context.Background(), key, dest)
}
