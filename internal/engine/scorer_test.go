package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickmilikich/fantasy-trade-engine/internal/league"
)

func fp(v float64) *float64 {
	return &v
}

func proj(playerID, position string, week int, points *float64) league.Projection {
	return league.Projection{PlayerID: playerID, Position: position, Week: week, Points: points}
}

func slots(t *testing.T, s string) league.SlotConfig {
	t.Helper()
	config, err := league.ParseSlotConfig(s)
	require.NoError(t, err)
	return config
}

func idSet(ids ...string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func TestScoreEmptyPlayerSet(t *testing.T) {
	projections := []league.Projection{
		proj("a", "RB", 1, fp(10)),
	}

	score := Score(idSet(), projections, slots(t, "RB:1"))
	assert.Equal(t, 0.0, score)
}

func TestScoreSinglePlayerSingleWeek(t *testing.T) {
	projections := []league.Projection{
		proj("a", "RB", 1, fp(10)),
	}

	score := Score(idSet("a"), projections, slots(t, "flex:1"))
	assert.Equal(t, 10.0, score)
}

func TestScoreAveragesAcrossWeeks(t *testing.T) {
	projections := []league.Projection{
		proj("a", "RB", 1, fp(10)),
		proj("a", "RB", 2, fp(20)),
		proj("b", "RB", 1, fp(5)),
		proj("b", "RB", 2, fp(5)),
	}

	// One RB slot: a wins both weeks, b's records keep both weeks in the divisor.
	score := Score(idSet("a", "b"), projections, slots(t, "RB:1"))
	assert.Equal(t, 15.0, score)
}

func TestScoreMissingPointsExcluded(t *testing.T) {
	projections := []league.Projection{
		proj("a", "RB", 1, nil),
		proj("b", "RB", 1, fp(8)),
	}

	score := Score(idSet("a", "b"), projections, slots(t, "RB:1"))
	assert.Equal(t, 8.0, score)

	// All points missing: nothing is selectable and the week scores zero.
	allMissing := []league.Projection{
		proj("a", "RB", 1, nil),
		proj("b", "WR", 1, nil),
	}
	score = Score(idSet("a", "b"), allMissing, slots(t, "RB:1,WR:1"))
	assert.Equal(t, 0.0, score)
}

func TestScoreFlexTakesAnyEligiblePosition(t *testing.T) {
	projections := []league.Projection{
		proj("a", "WR", 1, fp(10)),
	}

	// The WR cannot fill the RB slot but fills the flex slot.
	score := Score(idSet("a"), projections, slots(t, "RB:1,flex:1"))
	assert.Equal(t, 10.0, score)
}

func TestScoreSuperflexIncludesQB(t *testing.T) {
	projections := []league.Projection{
		proj("qb1", "QB", 1, fp(22)),
	}

	score := Score(idSet("qb1"), projections, slots(t, "flex:1,superflex:1"))
	assert.Equal(t, 22.0, score)
}

func TestScoreDualEligiblePlayerFillsOneSlotPerWeek(t *testing.T) {
	projections := []league.Projection{
		proj("a", "RB", 1, fp(12)),
		proj("a", "WR", 1, fp(12)),
		proj("b", "WR", 1, fp(5)),
	}

	// a fills the RB slot and is then fully consumed for the week, including the
	// WR tag, so the WR slot falls to b.
	score := Score(idSet("a", "b"), projections, slots(t, "RB:1,WR:1"))
	assert.Equal(t, 17.0, score)
}

func TestScoreTieBreakKeepsFirstRecord(t *testing.T) {
	projections := []league.Projection{
		proj("a", "RB", 1, fp(10)),
		proj("a", "WR", 1, fp(10)),
		proj("b", "RB", 1, fp(10)),
	}

	// a and b tie for the RB slot; the first record in input order (a) wins, which
	// also consumes a's WR tag and leaves the WR slot empty.
	score := Score(idSet("a", "b"), projections, slots(t, "RB:1,WR:1"))
	assert.Equal(t, 10.0, score)
}

func TestScoreDeterministic(t *testing.T) {
	projections := []league.Projection{
		proj("a", "RB", 1, fp(10)),
		proj("b", "RB", 1, fp(10)),
		proj("c", "WR", 1, fp(7)),
		proj("a", "RB", 2, fp(3)),
		proj("b", "RB", 2, fp(3)),
	}
	config := slots(t, "RB:1,WR:1,flex:1")

	first := Score(idSet("a", "b", "c"), projections, config)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Score(idSet("a", "b", "c"), projections, config))
	}
}

func TestScoreMonotonicWhenBetterRecordAdded(t *testing.T) {
	base := []league.Projection{
		proj("a", "RB", 1, fp(10)),
		proj("b", "RB", 1, fp(8)),
	}
	config := slots(t, "RB:1")
	baseScore := Score(idSet("a", "b", "c"), base, config)

	better := append([]league.Projection{}, base...)
	better = append(better, proj("c", "RB", 1, fp(50)))
	betterScore := Score(idSet("a", "b", "c"), better, config)

	assert.GreaterOrEqual(t, betterScore, baseScore)
}

func TestScoreFullyConsumedWeekDropsFromDivisor(t *testing.T) {
	projections := []league.Projection{
		// Week 1 has exactly one record, consumed by the RB slot.
		proj("a", "RB", 1, fp(10)),
		// Week 2 keeps b's record after a is picked.
		proj("a", "RB", 2, fp(4)),
		proj("b", "RB", 2, fp(2)),
	}

	// Week 1 disappears from the divisor: (10+4)/1 rather than 14/2.
	score := Score(idSet("a", "b"), projections, slots(t, "RB:1"))
	assert.Equal(t, 14.0, score)
}

func TestScoreRosteredPlayerWithoutProjections(t *testing.T) {
	projections := []league.Projection{
		proj("a", "RB", 1, fp(10)),
	}

	// z has no projection records at all; it contributes nothing and is no error.
	score := Score(idSet("a", "z"), projections, slots(t, "RB:1,flex:1"))
	assert.Equal(t, 10.0, score)
}

func TestScoreZeroCountSlotSkipped(t *testing.T) {
	projections := []league.Projection{
		proj("a", "RB", 1, fp(10)),
		proj("b", "WR", 1, fp(6)),
	}

	score := Score(idSet("a", "b"), projections, slots(t, "RB:0,WR:1"))
	assert.Equal(t, 6.0, score)
}
