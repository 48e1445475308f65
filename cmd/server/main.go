package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/nickmilikich/fantasy-trade-engine/internal/api"
	"github.com/nickmilikich/fantasy-trade-engine/internal/api/handlers"
	"github.com/nickmilikich/fantasy-trade-engine/internal/api/middleware"
	"github.com/nickmilikich/fantasy-trade-engine/internal/providers"
	"github.com/nickmilikich/fantasy-trade-engine/internal/services"
	"github.com/nickmilikich/fantasy-trade-engine/pkg/config"
	"github.com/nickmilikich/fantasy-trade-engine/pkg/database"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Setup logging
	if cfg.IsDevelopment() {
		logrus.SetLevel(logrus.DebugLevel)
		gin.SetMode(gin.DebugMode)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	db, err := database.NewConnection(cfg.DatabaseURL, cfg.IsDevelopment())
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Connect to Redis. The engine works without it (in-process cache fallback),
	// so a missing Redis degrades rather than aborts.
	var redisClient *redis.Client
	if opt, err := redis.ParseURL(cfg.RedisURL); err != nil {
		logrus.Warnf("Invalid Redis URL, using in-process cache: %v", err)
	} else {
		redisClient = redis.NewClient(opt)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logrus.Warnf("Redis unavailable, using in-process cache: %v", err)
			redisClient.Close()
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	// Initialize services
	cacheService := services.NewCacheService(redisClient)
	webSocketHub := services.NewWebSocketHub()
	go webSocketHub.Run()

	sleeperClient := providers.NewSleeperClient(providers.SleeperConfig{
		APIURL:         cfg.SleeperAPIURL,
		ProjectionsURL: cfg.SleeperProjectionsURL,
		Timeout:        cfg.ExternalAPITimeout,
		RateLimit:      cfg.SleeperRateLimit,
		MaxAttempts:    cfg.MaxFetchAttempts,
		SeasonWeeks:    cfg.SeasonWeeks,
		CacheTTL:       cfg.LeagueCacheTTL,
	}, cacheService, logrus.StandardLogger())

	leagueData := services.NewLeagueDataService(sleeperClient, cacheService, logrus.StandardLogger(), cfg.LeagueCacheTTL)
	mapping := services.NewMappingService(sleeperClient, cfg.MappingCacheTTL)
	recommendations := services.NewRecommendationService(leagueData, mapping, db, webSocketHub, logrus.StandardLogger(), cfg)

	// Background cache warming for tracked leagues
	refresher := services.NewRefreshService(leagueData, logrus.StandardLogger(), cfg.TrackedLeagues, time.Now().Year(), cfg.RefreshInterval)
	if err := refresher.Start(); err != nil {
		logrus.Errorf("Failed to start refresh service: %v", err)
	}
	defer refresher.Stop()

	// Setup Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(cfg.CorsOrigins))

	// Health check endpoint
	router.GET("/health", handlers.Health)

	// Setup API routes under /api/v1
	apiV1 := router.Group("/api/v1")
	api.SetupRoutes(apiV1, cfg, recommendations, mapping)

	// Websocket endpoint at root level for search progress
	wsHandler := handlers.NewWebSocketHandler(webSocketHub)
	router.GET("/ws", middleware.OptionalAuth(cfg.JWTSecret), wsHandler.HandleWebSocket)

	// Setup server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logrus.Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}
