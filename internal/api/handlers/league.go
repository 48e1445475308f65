package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/nickmilikich/fantasy-trade-engine/internal/services"
	"github.com/nickmilikich/fantasy-trade-engine/pkg/utils"
)

type LeagueHandler struct {
	mapping *services.MappingService
}

func NewLeagueHandler(mapping *services.MappingService) *LeagueHandler {
	return &LeagueHandler{mapping: mapping}
}

// GetLeagueUsers returns the league's members, for selecting a user and trade
// partners in the front end.
func (h *LeagueHandler) GetLeagueUsers(c *gin.Context) {
	leagueID := c.Param("id")

	names, err := h.mapping.UserDisplayNames(c.Request.Context(), leagueID)
	if err != nil {
		utils.SendUpstreamError(c, "Failed to fetch league members")
		return
	}

	users := make([]gin.H, 0, len(names))
	for userID, displayName := range names {
		users = append(users, gin.H{
			"user_id":      userID,
			"display_name": displayName,
		})
	}

	utils.SendSuccess(c, users)
}
