package engine

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nickmilikich/fantasy-trade-engine/internal/league"
)

// SearchOptions controls a trade search.
type SearchOptions struct {
	// MaxGroupSize caps how many players either side can send in one trade.
	MaxGroupSize int
	// Slots is the roster composition used to score every hypothetical roster.
	Slots league.SlotConfig
	// Workers bounds how many partner rosters are evaluated concurrently.
	// Zero means serial.
	Workers int
	// Progress, when set, is called once per completed partner. It may be called
	// from multiple goroutines.
	Progress func(PartnerProgress)
}

// PartnerProgress reports that one partner's combination space has been searched.
type PartnerProgress struct {
	PartnerID string `json:"partner_id"`
	Accepted  int    `json:"accepted"`
	Done      int    `json:"done"`
	Total     int    `json:"total"`
}

// Result holds the accepted trades plus search telemetry.
type Result struct {
	Trades     []league.Trade `json:"trades"`
	Evaluated  int64          `json:"evaluated_combinations"`
	SearchTime int64          `json:"search_time_ms"`
}

// FindTrades enumerates every candidate swap of 1..MaxGroupSize players between the
// user and each other roster in the projection table, and accepts a trade when the
// user's scored roster strictly improves and the partner's does not worsen.
//
// The search is exhaustive over the bounded combination space; no pruning and no
// top-K cut. Trades are returned sorted by the user's post-trade score descending,
// with ties keeping discovery order, so identical inputs always produce the identical
// ordered list.
func FindTrades(projections []league.PlayerProjection, userID string, opts SearchOptions) (*Result, error) {
	if opts.MaxGroupSize < 1 {
		return nil, fmt.Errorf("max group size must be at least 1, got %d", opts.MaxGroupSize)
	}
	if len(opts.Slots) == 0 {
		return nil, fmt.Errorf("roster composition is empty")
	}

	start := time.Now()

	// The scorer only needs the projection columns; ownership drives partitioning.
	flat := make([]league.Projection, len(projections))
	rosters := make(map[string]map[string]bool)
	for i, p := range projections {
		flat[i] = p.Projection
		if rosters[p.UserID] == nil {
			rosters[p.UserID] = make(map[string]bool)
		}
		rosters[p.UserID][p.PlayerID] = true
	}

	memo := newScoreMemo()
	scoreSet := func(ids map[string]bool) float64 {
		key := memoKey(ids)
		if score, ok := memo.get(key); ok {
			return score
		}
		score := Score(ids, flat, opts.Slots)
		memo.put(key, score)
		return score
	}

	userRoster := rosters[userID]
	userBase := scoreSet(userRoster)
	userGroups := playerGroups(sortedIDs(userRoster), opts.MaxGroupSize)

	partners := make([]string, 0, len(rosters))
	for id := range rosters {
		if id != userID {
			partners = append(partners, id)
		}
	}
	sort.Strings(partners)

	var evaluated atomic.Int64
	var done atomic.Int32
	accepted := make([][]league.Trade, len(partners))

	searchPartner := func(idx int) {
		partnerID := partners[idx]
		partnerRoster := rosters[partnerID]
		partnerBase := scoreSet(partnerRoster)
		partnerGroups := playerGroups(sortedIDs(partnerRoster), opts.MaxGroupSize)

		var found []league.Trade
		for _, gives := range userGroups {
			for _, receives := range partnerGroups {
				proposedUser := swapPlayers(userRoster, gives, receives)
				proposedPartner := swapPlayers(partnerRoster, receives, gives)

				userScore := scoreSet(proposedUser)
				partnerScore := scoreSet(proposedPartner)
				evaluated.Add(1)

				if userScore > userBase && partnerScore >= partnerBase {
					found = append(found, league.Trade{
						PartnerID:    partnerID,
						Gives:        gives,
						Receives:     receives,
						UserScore:    userScore,
						PartnerScore: partnerScore,
					})
				}
			}
		}
		accepted[idx] = found

		if opts.Progress != nil {
			opts.Progress(PartnerProgress{
				PartnerID: partnerID,
				Accepted:  len(found),
				Done:      int(done.Add(1)),
				Total:     len(partners),
			})
		}
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(partners) {
		workers = len(partners)
	}

	if workers <= 1 {
		for idx := range partners {
			searchPartner(idx)
		}
	} else {
		indexes := make(chan int, len(partners))
		for idx := range partners {
			indexes <- idx
		}
		close(indexes)

		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for idx := range indexes {
					searchPartner(idx)
				}
			}()
		}
		wg.Wait()
	}

	// Merge in partner order so concurrency never changes discovery order, then
	// order by the user's post-trade score. The sort is stable: equal scores keep
	// discovery order.
	var trades []league.Trade
	for _, found := range accepted {
		trades = append(trades, found...)
	}
	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].UserScore > trades[j].UserScore
	})

	return &Result{
		Trades:     trades,
		Evaluated:  evaluated.Load(),
		SearchTime: time.Since(start).Milliseconds(),
	}, nil
}

// playerGroups returns every subset of ids of size 1..maxSize, smaller groups first,
// each group in sorted-id order. The enumeration is fully deterministic.
func playerGroups(ids []string, maxSize int) [][]string {
	var groups [][]string
	for size := 1; size <= maxSize && size <= len(ids); size++ {
		combinations(ids, size, func(combo []string) {
			group := make([]string, size)
			copy(group, combo)
			groups = append(groups, group)
		})
	}
	return groups
}

// combinations visits every k-subset of items in lexicographic index order. The combo
// slice is reused between calls; callbacks must copy it if they keep it.
func combinations(items []string, k int, fn func([]string)) {
	if k > len(items) || k == 0 {
		return
	}

	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	combo := make([]string, k)

	for {
		for i, j := range idx {
			combo[i] = items[j]
		}
		fn(combo)

		i := k - 1
		for i >= 0 && idx[i] == len(items)-k+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

// swapPlayers returns a copy of roster with the remove group taken out and the add
// group put in. The input roster is never mutated.
func swapPlayers(roster map[string]bool, remove, add []string) map[string]bool {
	proposed := make(map[string]bool, len(roster)+len(add))
	for id := range roster {
		proposed[id] = true
	}
	for _, id := range remove {
		delete(proposed, id)
	}
	for _, id := range add {
		proposed[id] = true
	}
	return proposed
}

func sortedIDs(roster map[string]bool) []string {
	ids := make([]string, 0, len(roster))
	for id := range roster {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
