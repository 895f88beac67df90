package routes

import (
	"stock_api_backend/admin"
	"stock_api_backend/controllers"
	"stock_api_backend/middleware"
	"stock_api_backend/scheduler"
	"stock_api_backend/services"

	"github.com/gin-gonic/gin"
)

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, cache *services.CacheService, prices *services.PriceStore, updates *scheduler.DataUpdateService) {
	// Initialize controllers
	marketDataController := controllers.NewMarketDataController(cache, prices)
	authController := admin.NewAuthController()
	adminController := admin.NewAdminController(updates)

	// API v1 group
	api := router.Group("/api/v1")
	{
		api.GET("/indexes", marketDataController.GetIndexes)
		api.GET("/tickers/:index", marketDataController.GetIndexTickers)
		api.GET("/fundamentals", marketDataController.GetFundamentals)

		// Heatmap routes
		heatmaps := api.Group("/heatmaps")
		{
			heatmaps.GET("/:index", marketDataController.GetHeatmap)
			heatmaps.GET("/:index/:timePeriod", marketDataController.GetHeatmapForPeriod)
		}

		api.GET("/prices/:ticker", marketDataController.GetTickerPrices)

		// Admin routes
		adminRoutes := api.Group("/admin")
		{
			adminRoutes.POST("/login", middleware.LoginRateLimitMiddleware(), authController.Login)

			protected := adminRoutes.Group("")
			protected.Use(middleware.JWTAuthMiddleware())
			{
				protected.GET("/status", adminController.Status)
				protected.POST("/refresh", adminController.Refresh)
				protected.POST("/reconnect", adminController.Reconnect)
			}
		}
	}
}
