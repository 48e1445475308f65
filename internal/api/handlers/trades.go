package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nickmilikich/fantasy-trade-engine/internal/services"
	"github.com/nickmilikich/fantasy-trade-engine/pkg/utils"
)

type TradeHandler struct {
	recommendations *services.RecommendationService
}

func NewTradeHandler(recommendations *services.RecommendationService) *TradeHandler {
	return &TradeHandler{recommendations: recommendations}
}

// RecommendTrades runs a trade search for a league member and returns the ordered
// recommendations. An empty list means no trades satisfy the criterion; that is a
// successful response, not an error.
func (h *TradeHandler) RecommendTrades(c *gin.Context) {
	var req struct {
		LeagueID     string   `json:"league_id" binding:"required"`
		Year         int      `json:"year" binding:"required,min=2000,max=2100"`
		UserID       string   `json:"user_id" binding:"required"`
		MaxGroupSize int      `json:"max_group_size" binding:"required,min=1,max=4"`
		Positions    []string `json:"positions"`
		OtherUsers   []string `json:"other_users"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	report, err := h.recommendations.RecommendTrades(c.Request.Context(), services.RecommendRequest{
		LeagueID:     req.LeagueID,
		Year:         req.Year,
		UserID:       req.UserID,
		MaxGroupSize: req.MaxGroupSize,
		Positions:    req.Positions,
		OtherUsers:   req.OtherUsers,
	})
	if err != nil {
		utils.SendUpstreamError(c, fmt.Sprintf("Trade search failed: %v", err))
		return
	}

	utils.SendSuccess(c, report)
}

// ExportTrades streams the saved recommendations for a league/user as CSV.
func (h *TradeHandler) ExportTrades(c *gin.Context) {
	leagueID := c.Query("league_id")
	userID := c.Query("user_id")
	if leagueID == "" || userID == "" {
		utils.SendValidationError(c, "Missing query parameters", "league_id and user_id are required")
		return
	}

	rows, err := h.recommendations.SavedRecommendations(leagueID, userID)
	if err != nil {
		utils.SendInternalError(c, "Failed to load recommendations")
		return
	}

	filename := fmt.Sprintf("recommended_trades_%s.csv", time.Now().Format("2006-01-02"))
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	defer w.Flush()

	w.Write([]string{"With", "Gives", "Receives", "User Projection", "Other Projection"})
	for _, row := range rows {
		w.Write([]string{
			row.PartnerName,
			row.GivesLabel,
			row.ReceivesLabel,
			strconv.FormatFloat(row.UserScore, 'f', 2, 64),
			strconv.FormatFloat(row.PartnerScore, 'f', 2, 64),
		})
	}
}

// GetSavedRecommendations lists persisted recommendations for a league/user.
func (h *TradeHandler) GetSavedRecommendations(c *gin.Context) {
	leagueID := c.Query("league_id")
	userID := c.Query("user_id")
	if leagueID == "" || userID == "" {
		utils.SendValidationError(c, "Missing query parameters", "league_id and user_id are required")
		return
	}

	rows, err := h.recommendations.SavedRecommendations(leagueID, userID)
	if err != nil {
		utils.SendInternalError(c, "Failed to load recommendations")
		return
	}

	utils.SendSuccessWithMeta(c, rows, &utils.Meta{Total: int64(len(rows))})
}

// DeleteSavedRecommendation removes one persisted recommendation.
func (h *TradeHandler) DeleteSavedRecommendation(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		utils.SendValidationError(c, "Invalid id", err.Error())
		return
	}

	if err := h.recommendations.DeleteSavedRecommendation(uint(id)); err != nil {
		utils.SendInternalError(c, "Failed to delete recommendation")
		return
	}

	utils.SendSuccess(c, gin.H{"deleted": id})
}
