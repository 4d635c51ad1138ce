package routes

import (
	"net/http"
	"time"

	"price_alert_backend/controllers"
	"price_alert_backend/middleware"
	"price_alert_backend/services/alertstore"
	"price_alert_backend/services/deliverylog"
	"price_alert_backend/services/history"
	"price_alert_backend/services/monitor"
	"price_alert_backend/services/stream"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Deps carries the shared services the routes are built on. History, Archive
// and Hub may be nil when the corresponding subsystem is disabled.
type Deps struct {
	DB      *gorm.DB
	Store   *alertstore.Store
	Monitor *monitor.Monitor
	History *history.Store
	Archive *deliverylog.Archive
	Hub     *stream.Hub

	AuthSecret       string
	CreateRateLimit  int
	CreateRateWindow time.Duration
}

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, deps Deps) {
	// Initialize controllers
	alertController := controllers.NewAlertController(deps.Store, deps.Monitor, deps.History)
	monitorController := controllers.NewMonitorController(deps.Monitor)
	notificationController := controllers.NewNotificationController(deps.Archive)

	createLimit := middleware.CreateRateLimitMiddleware(deps.CreateRateLimit, deps.CreateRateWindow)
	controlGuard := middleware.MonitorAuthMiddleware(deps.AuthSecret)

	// API v1 group
	api := router.Group("/api/v1")
	{
		// Alert routes
		alerts := api.Group("/alerts")
		{
			alerts.POST("", createLimit, alertController.CreateAlert)
			alerts.GET("", alertController.GetAlerts)
			alerts.GET("/stats", alertController.GetAlertStats)
			alerts.GET("/:id", alertController.GetAlert)
			alerts.PUT("/:id", alertController.UpdateAlert)
			alerts.DELETE("/:id", alertController.DeleteAlert)
			alerts.POST("/:id/check", alertController.CheckAlert)
			alerts.GET("/:id/history", alertController.GetAlertHistory)

			// Live trigger event stream
			if deps.Hub != nil {
				alerts.GET("/stream", func(c *gin.Context) {
					deps.Hub.HandleWebSocket(c.Writer, c.Request)
				})
			}
		}

		// Monitor control routes
		monitorRoutes := api.Group("/monitor")
		{
			monitorRoutes.POST("/start", controlGuard, monitorController.StartMonitor)
			monitorRoutes.POST("/stop", controlGuard, monitorController.StopMonitor)
			monitorRoutes.GET("/status", monitorController.GetMonitorStatus)
		}

		// Notification routes
		notifications := api.Group("/notifications")
		{
			notifications.GET("/recent", notificationController.GetRecentNotifications)
		}
	}

	// Root endpoint
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Price Alert API",
			"version": "1.0.0",
		})
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// Readiness check, fails when the database is unreachable
	router.GET("/ready", func(c *gin.Context) {
		sqlDB, err := deps.DB.DB()
		if err == nil {
			err = sqlDB.Ping()
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	// Keep-alive endpoint for free-tier hosts that sleep idle services
	router.GET("/keep-alive", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":          "alive",
			"timestamp":       time.Now().UTC().Format(time.RFC3339),
			"monitor_running": deps.Monitor.IsRunning(),
		})
	})

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
