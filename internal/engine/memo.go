package engine

import (
	"sort"
	"strings"
	"sync"
)

// scoreMemo caches Score results by the canonical sorted player-id set. Score is pure
// and deterministic, so values are inserted once and never overwritten. A memo is
// scoped to a single search; it is never shared across searches or held as package
// state.
type scoreMemo struct {
	mu     sync.RWMutex
	scores map[string]float64
}

func newScoreMemo() *scoreMemo {
	return &scoreMemo{scores: make(map[string]float64)}
}

// memoKey canonicalizes a player-id set so that logically equal sets hit the same
// entry regardless of construction order.
func memoKey(playerIDs map[string]bool) string {
	ids := make([]string, 0, len(playerIDs))
	for id := range playerIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return strings.Join(ids, ",")
}

func (m *scoreMemo) get(key string) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	score, ok := m.scores[key]
	return score, ok
}

func (m *scoreMemo) put(key string, score float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.scores[key]; !exists {
		m.scores[key] = score
	}
}
