package api

import (
	"github.com/gin-gonic/gin"

	"github.com/nickmilikich/fantasy-trade-engine/internal/api/handlers"
	"github.com/nickmilikich/fantasy-trade-engine/internal/api/middleware"
	"github.com/nickmilikich/fantasy-trade-engine/internal/services"
	"github.com/nickmilikich/fantasy-trade-engine/pkg/config"
)

// SetupRoutes configures all API routes on the given router group.
func SetupRoutes(
	group *gin.RouterGroup,
	cfg *config.Config,
	recommendations *services.RecommendationService,
	mapping *services.MappingService,
) {
	tradeHandler := handlers.NewTradeHandler(recommendations)
	leagueHandler := handlers.NewLeagueHandler(mapping)

	// League endpoints
	group.GET("/leagues/:id/users", leagueHandler.GetLeagueUsers)

	// Trade search
	group.POST("/trades/recommend", tradeHandler.RecommendTrades)
	group.GET("/trades/export", tradeHandler.ExportTrades)

	// Saved recommendations require authentication
	saved := group.Group("/trades/saved")
	saved.Use(middleware.AuthRequired(cfg.JWTSecret))
	{
		saved.GET("", tradeHandler.GetSavedRecommendations)
		saved.DELETE("/:id", tradeHandler.DeleteSavedRecommendation)
	}
}
