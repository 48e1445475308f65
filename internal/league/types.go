package league

import (
	"fmt"
	"strconv"
	"strings"
)

// Projection is a single projected stat line: one player, one position tag, one week.
// A dual-eligible player appears once per eligible position with the same Points value.
// Points is nil when the upstream source published no number for that week; nil points
// are never selectable and must not be treated as zero.
type Projection struct {
	PlayerID string   `json:"player_id"`
	Position string   `json:"position"`
	Week     int      `json:"week"`
	Points   *float64 `json:"points"`
}

// PlayerProjection is a row of the merged league table: a Projection plus the roster
// owner. This is the shape the data pipeline hands to the search engine.
type PlayerProjection struct {
	UserID string `json:"user_id"`
	Projection
}

// Slot is one named lineup position and how many players it requires.
type Slot struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// SlotConfig is the roster composition. Order matters: the scorer fills slots in
// exactly the order they appear here, so it is a slice rather than a map.
type SlotConfig []Slot

// slotUnions maps virtual slot names to the base positions eligible to fill them.
var slotUnions = map[string][]string{
	"flex":      {"RB", "WR", "TE"},
	"superflex": {"RB", "WR", "TE", "QB"},
}

// EligiblePositions resolves a slot name to the base positions that may fill it.
// Virtual slots (flex, superflex) expand to their unions; everything else maps to
// itself.
func EligiblePositions(slotName string) []string {
	if positions, ok := slotUnions[strings.ToLower(slotName)]; ok {
		return positions
	}
	return []string{slotName}
}

// ParseSlotConfig parses a roster composition string such as
// "QB:1,RB:2,WR:2,TE:1,flex:1,superflex:1,BN:6". The comma order of the string is
// the slot-fill order.
func ParseSlotConfig(s string) (SlotConfig, error) {
	var config SlotConfig
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, countStr, found := strings.Cut(part, ":")
		if !found {
			return nil, fmt.Errorf("invalid slot %q: expected name:count", part)
		}
		count, err := strconv.Atoi(strings.TrimSpace(countStr))
		if err != nil || count < 0 {
			return nil, fmt.Errorf("invalid count for slot %q", name)
		}
		config = append(config, Slot{Name: strings.TrimSpace(name), Count: count})
	}
	if len(config) == 0 {
		return nil, fmt.Errorf("roster composition is empty")
	}
	return config, nil
}

// PositionNames returns the configured slot names in order, for presentation and
// position-filter validation.
func (c SlotConfig) PositionNames() []string {
	names := make([]string, 0, len(c))
	for _, slot := range c {
		names = append(names, slot.Name)
	}
	return names
}

// Trade is one accepted recommendation: the user sends Gives to PartnerID and gets
// Receives back. Scores are the post-trade average weekly projections for each side.
// A Trade is immutable once produced by the search.
type Trade struct {
	PartnerID    string   `json:"partner_id"`
	Gives        []string `json:"gives"`
	Receives     []string `json:"receives"`
	UserScore    float64  `json:"user_score"`
	PartnerScore float64  `json:"partner_score"`
}
