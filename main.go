package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"stock_api_backend/config"
	"stock_api_backend/models"
	"stock_api_backend/routes"
	"stock_api_backend/scheduler"
	"stock_api_backend/services"
	"stock_api_backend/services/datafetcher"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// dbInitialized tracks whether database has been successfully initialized
// This global variable is used for thread-safe access across goroutines to allow
// the /ready health endpoint to dynamically check database status.
// jobScheduler and writeQueue are published by the background init
// goroutine and read during shutdown, so they share the same lock.
var (
	dbInitMutex   sync.RWMutex
	dbInitialized bool
	jobScheduler  *scheduler.Scheduler
	writeQueue    *services.PriceWriteQueue
)

// shutdownCollaborators snapshots the background-initialized services for
// shutdown. Either may still be nil if a signal arrives before init
// finishes.
func shutdownCollaborators() (*scheduler.Scheduler, *services.PriceWriteQueue) {
	dbInitMutex.RLock()
	defer dbInitMutex.RUnlock()
	return jobScheduler, writeQueue
}

func main() {
	log.Println("==============================================")
	log.Println("  Stock API Backend - Starting...")
	log.Println("==============================================")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("Warning: Config load issue: %v", err)
	}

	// Set Gin mode based on environment
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create Gin router
	router := gin.New()

	// Add middlewares
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestLogger())

	// Setup health check endpoints FIRST so the platform can detect the
	// service is up. Database is initialized in background
	setupHealthEndpoints(router)

	// Create HTTP server. Bind to 0.0.0.0 explicitly for container networking
	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	// Start server IMMEDIATELY so the platform knows we're listening
	go func() {
		log.Printf("Server listening on 0.0.0.0:%s", cfg.Port)
		log.Println("==============================================")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Initialize storage, services and routes in background
	go func() {
		// Initialize database connection
		db, err := config.InitDB()
		if err != nil {
			log.Printf("ERROR: Database connection failed: %v", err)
			log.Println("Service will continue in limited mode (health check only)")
			return
		}

		// Run database migrations
		log.Println("Running database migrations...")
		if err := models.MigratePriceModels(db); err != nil {
			log.Printf("ERROR: Migration failed: %v", err)
		} else {
			log.Println("Database migrations completed successfully")
		}

		// Initialize global services
		initializeGlobalServices(db)

		// Mark database as ready
		dbInitMutex.Lock()
		dbInitialized = true
		dbInitMutex.Unlock()

		// Wire the update pipeline
		queue := services.NewPriceWriteQueue(services.GlobalPriceStore)
		queue.SetErrorHandler(func(batch []models.TickerPrice, err error) {
			services.GlobalNotificationService.NotifyError("Price batch write failed", err)
		})
		queue.Start()

		heatmapService := services.NewHeatmapService(services.GlobalPriceStore, cfg.HeatmapMinEntries)
		priceFetcher := datafetcher.NewPriceFetcher(cfg.PriceAPIBaseURL, cfg.PriceAPIKey, 0)

		updates := scheduler.NewDataUpdateService(
			datafetcher.NewTickerFetcher(),
			datafetcher.NewFundamentalsFetcher(),
			heatmapService,
			priceFetcher,
			services.GlobalCacheService,
			queue,
			services.GlobalNotificationService,
		)

		// Setup all API routes (includes admin routes with login)
		routes.SetupRoutes(router, services.GlobalCacheService, services.GlobalPriceStore, updates)

		// Start background scheduler (runs the on-start light pass)
		jobs := scheduler.NewScheduler(updates)
		go jobs.Start()

		// Publish for shutdown
		dbInitMutex.Lock()
		jobScheduler = jobs
		writeQueue = queue
		dbInitMutex.Unlock()

		log.Println("Application fully initialized with database")
	}()

	// Graceful shutdown
	gracefulShutdown(server)
}

// initializeGlobalServices initializes global service instances
func initializeGlobalServices(db *gorm.DB) {
	// Price store over the relational database
	services.InitPriceStore(db)

	// MongoDB durable cache tier if configured
	if err := services.InitMongoDBClient(); err != nil {
		log.Printf("MongoDB not configured or failed to connect: %v", err)
	}

	// Tiered cache over the durable store
	services.InitCacheService(services.GlobalMongoClient)

	// Operational mail
	services.InitNotificationService()
	services.GlobalCacheService.SetStoreErrorHandler(func(key string, err error) {
		services.GlobalNotificationService.NotifyError("Durable cache write failed for "+key, err)
	})

	log.Println("Global services initialized")
}

// setupHealthEndpoints sets up health check endpoints
func setupHealthEndpoints(router *gin.Engine) {
	// Root endpoint
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Stock API Backend",
			"version": "1.0.0",
		})
	})

	// Liveness probe - always returns OK if server is running
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// Readiness probe - checks if service is ready to receive traffic
	router.GET("/ready", func(c *gin.Context) {
		dbInitMutex.RLock()
		isDBReady := dbInitialized
		dbInitMutex.RUnlock()

		if !isDBReady {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database not connected",
			})
			return
		}

		// Check database connection
		sqlDB, err := config.DB.DB()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database connection error",
			})
			return
		}

		if err := sqlDB.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database ping failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
		})
	})

	// Startup probe - can be used for initial health check
	router.GET("/startup", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "started",
		})
	})
}

// corsMiddleware returns a CORS middleware handler
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger returns a request logging middleware
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip logging for health checks to reduce noise
		path := c.Request.URL.Path
		if path == "/health" || path == "/ready" || path == "/startup" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		// Only log errors or slow requests in production
		if c.Writer.Status() >= 400 || duration > 1*time.Second {
			log.Printf("%s %s %d %v", c.Request.Method, path, c.Writer.Status(), duration)
		}
	}
}

// gracefulShutdown handles graceful shutdown of the server
func gracefulShutdown(server *http.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	sig := <-quit
	log.Printf("Received signal %v, shutting down gracefully...", sig)

	jobs, queue := shutdownCollaborators()

	// Stop scheduler first
	if jobs != nil {
		jobs.Stop()
	}

	// Flush the price queue so queued records reach the store
	if queue != nil {
		flushCtx, cancelFlush := context.WithTimeout(context.Background(), 30*time.Second)
		if err := queue.Flush(flushCtx); err != nil {
			log.Printf("Failed to flush price queue: %v", err)
		}
		cancelFlush()
		queue.Stop()
	}

	// Create context with timeout for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Close database connection
	if config.DB != nil {
		sqlDB, err := config.DB.DB()
		if err == nil {
			sqlDB.Close()
			log.Println("Database connection closed")
		}
	}

	// Close MongoDB connection
	if services.GlobalMongoClient != nil {
		services.GlobalMongoClient.Close()
	}

	log.Println("Server shutdown completed")
}
