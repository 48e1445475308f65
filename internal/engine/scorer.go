package engine

import (
	"sort"

	"github.com/nickmilikich/fantasy-trade-engine/internal/league"
)

// Score computes the best achievable average weekly score for a set of players under
// the given roster composition.
//
// The fill is greedy and deterministic, not globally optimal: for each week, slots are
// filled in the order they appear in the config, each slot taking the remaining record
// with the highest non-missing points among its eligible positions. Once a player is
// chosen for a week, all of their records for that week are removed (a dual-eligible
// player cannot fill two slots in the same week). A slot with no eligible record left
// is left unfilled and contributes 0.
//
// The divisor is the number of distinct weeks that still have at least one unconsumed
// record after all fills: a week whose records were fully consumed by slot assignment
// drops out of the average. When every week is fully consumed the divisor falls back
// to the original week count so a pool that exactly matches slot demand still scores.
// An empty player set scores 0.
func Score(playerIDs map[string]bool, projections []league.Projection, slots league.SlotConfig) float64 {
	pool := make([]league.Projection, 0, len(projections))
	for _, p := range projections {
		if playerIDs[p.PlayerID] {
			pool = append(pool, p)
		}
	}
	if len(pool) == 0 {
		return 0
	}

	weekSet := make(map[int]bool)
	for _, p := range pool {
		weekSet[p.Week] = true
	}
	weeks := make([]int, 0, len(weekSet))
	for week := range weekSet {
		weeks = append(weeks, week)
	}
	sort.Ints(weeks)

	total := 0.0
	weeksRemaining := 0

	for _, week := range weeks {
		// Fresh working copy per week; weeks never share mutable state.
		working := make([]league.Projection, 0)
		for _, p := range pool {
			if p.Week == week {
				working = append(working, p)
			}
		}

		for _, slot := range slots {
			eligible := league.EligiblePositions(slot.Name)
			for i := 0; i < slot.Count; i++ {
				picked := pickBest(working, eligible)
				if picked == nil {
					continue
				}
				total += *picked.Points
				working = removePlayer(working, picked.PlayerID)
			}
		}

		if len(working) > 0 {
			weeksRemaining++
		}
	}

	if weeksRemaining == 0 {
		weeksRemaining = len(weeks)
	}
	return total / float64(weeksRemaining)
}

// pickBest returns the record with the strictly maximum points among those matching
// one of the eligible positions. Records with missing points are skipped. Ties keep
// the first record in input order, which makes the choice deterministic.
func pickBest(working []league.Projection, eligible []string) *league.Projection {
	var best *league.Projection
	for i := range working {
		p := &working[i]
		if p.Points == nil || !containsPosition(eligible, p.Position) {
			continue
		}
		if best == nil || *p.Points > *best.Points {
			best = p
		}
	}
	return best
}

// removePlayer drops every record for playerID, across all of their position tags.
func removePlayer(working []league.Projection, playerID string) []league.Projection {
	kept := working[:0]
	for _, p := range working {
		if p.PlayerID != playerID {
			kept = append(kept, p)
		}
	}
	return kept
}

func containsPosition(positions []string, position string) bool {
	for _, p := range positions {
		if p == position {
			return true
		}
	}
	return false
}
