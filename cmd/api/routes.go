package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"wealthsync/internal/config"
	apperrors "wealthsync/internal/errors"
	"wealthsync/internal/handlers"
	"wealthsync/internal/middleware"
	"wealthsync/internal/services"
)

type routeDeps struct {
	accountService    services.AccountServicer
	syncService       services.SyncServicer
	investmentService services.InvestmentServicer
	linker            handlers.Linker
	trigger           handlers.SyncTrigger
	db                *gorm.DB
}

func newRouter(cfg *config.Config, deps routeDeps) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	accountHandler := handlers.NewAccountHandler(deps.accountService)
	syncHandler := handlers.NewSyncHandler(deps.syncService, deps.trigger)
	linkHandler := handlers.NewLinkHandler(deps.linker)
	investmentHandler := handlers.NewInvestmentHandler(deps.investmentService)

	router := gin.New()
	router.Use(middleware.RequestLogging())
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		middleware.AbortWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, fmt.Errorf("panic: %v", recovered)))
	}))
	router.Use(middleware.ErrorHandler())
	router.NoRoute(func(c *gin.Context) {
		middleware.AbortWithError(c, apperrors.ErrNotFound)
	})

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	router.GET("/api/health", healthCheck(deps.db))

	v1 := router.Group("/api/v1")

	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware(cfg.JWTSecret))

	accounts := protected.Group("/accounts")
	accounts.POST("", accountHandler.CreateAccount)
	accounts.GET("", accountHandler.GetUserAccounts)
	accounts.GET("/:id", accountHandler.GetAccountByID)
	accounts.DELETE("/:id", accountHandler.DeleteAccount)
	accounts.GET("/:id/holdings", accountHandler.GetHoldings)
	accounts.GET("/:id/activities", accountHandler.GetActivities)
	accounts.POST("/:id/sync", syncHandler.SyncAccount)
	accounts.POST("/:id/link", linkHandler.StartLink)
	accounts.DELETE("/:id/link", accountHandler.DisconnectAccount)

	protected.POST("/links/:session/complete", linkHandler.CompleteLink)
	protected.POST("/sync", syncHandler.SyncUserAccounts)

	investments := protected.Group("/investments")
	investments.GET("/real-estate", investmentHandler.GetRealEstate)
	investments.GET("/ventures", investmentHandler.GetVentures)

	internal := v1.Group("/internal")
	internal.Use(middleware.PipelineAuthMiddleware(cfg.PipelineAPIKey))
	internal.POST("/sync", syncHandler.TriggerSyncAll)

	return router
}

func healthCheck(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
