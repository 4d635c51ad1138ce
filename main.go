package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"price_alert_backend/config"
	"price_alert_backend/models"
	"price_alert_backend/routes"
	"price_alert_backend/services/alertstore"
	"price_alert_backend/services/deliverylog"
	"price_alert_backend/services/history"
	"price_alert_backend/services/marketdata"
	"price_alert_backend/services/monitor"
	"price_alert_backend/services/notifier"
	"price_alert_backend/services/stream"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func main() {
	log.Println("==============================================")
	log.Println("  Price Alert Backend - Starting...")
	log.Println("==============================================")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("Warning: Config load issue: %v", err)
	}

	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
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

	// Initialize database connection
	db, err := config.InitDB()
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}

	// Run database migrations
	log.Println("Running database migrations...")
	if err := models.MigrateAlertModels(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Database migrations completed successfully")

	// Build services
	fetcher := marketdata.NewClient(cfg.PriceAPIBaseURL, cfg.PriceFetchTimeout)
	sender := notifier.NewEmailNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)

	hist, err := history.Open(cfg.HistoryDBPath)
	if err != nil {
		log.Printf("Warning: evaluation history disabled: %v", err)
		hist = nil
	}

	archive := deliverylog.NewArchive(cfg.MongoURI)
	hub := stream.NewHub()

	store := alertstore.NewStore(db)
	mon := monitor.New(monitor.Options{
		Store:    store,
		Fetcher:  fetcher,
		Notifier: sender,
		History:  hist,
		Archive:  archive,
		Hub:      hub,
		Interval: cfg.MonitorInterval,
		Pacing:   cfg.MonitorPacing,
	})

	// Setup all API routes
	routes.SetupRoutes(router, routes.Deps{
		DB:               db,
		Store:            store,
		Monitor:          mon,
		History:          hist,
		Archive:          archive,
		Hub:              hub,
		AuthSecret:       cfg.AuthJWTSecret,
		CreateRateLimit:  cfg.CreateRateLimit,
		CreateRateWindow: cfg.CreateRateWindow,
	})

	// Start monitoring on boot; alerts that survived a restart stay eligible
	if err := mon.Start(); err != nil {
		log.Printf("Warning: could not start alert monitor: %v", err)
	}

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	go func() {
		log.Printf("Server listening on 0.0.0.0:%s", cfg.Port)
		log.Println("==============================================")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	gracefulShutdown(server, mon, hub, hist, archive)
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
		// Skip logging for probes to reduce noise
		path := c.Request.URL.Path
		if path == "/health" || path == "/ready" || path == "/keep-alive" || path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		// Only log errors or slow requests
		if c.Writer.Status() >= 400 || duration > 1*time.Second {
			log.Printf("%s %s %d %v", c.Request.Method, path, c.Writer.Status(), duration)
		}
	}
}

// gracefulShutdown handles graceful shutdown of the server
func gracefulShutdown(server *http.Server, mon *monitor.Monitor, hub *stream.Hub, hist *history.Store, archive *deliverylog.Archive) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	sig := <-quit
	log.Printf("Received signal %v, shutting down gracefully...", sig)

	// Stop the monitor first so no new cycles begin
	if err := mon.Stop(); err != nil && err != monitor.ErrNotRunning {
		log.Printf("Monitor stop failed: %v", err)
	}
	hub.Shutdown()

	// Create context with timeout for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if hist != nil {
		if err := hist.Close(); err != nil {
			log.Printf("History store close failed: %v", err)
		}
	}
	if archive != nil {
		archive.Close(ctx)
	}

	// Close database connection
	if config.DB != nil {
		sqlDB, err := config.DB.DB()
		if err == nil {
			sqlDB.Close()
			log.Println("Database connection closed")
		}
	}

	log.Println("Server shutdown completed")
}
