package controllers

import (
	"net/http"
	"time"

	"price_alert_backend/services/monitor"

	"github.com/gin-gonic/gin"
)

// MonitorController handles monitor lifecycle requests
type MonitorController struct {
	monitor *monitor.Monitor
}

// NewMonitorController creates a new monitor controller
func NewMonitorController(mon *monitor.Monitor) *MonitorController {
	return &MonitorController{monitor: mon}
}

// StartMonitor starts the alert monitor, optionally overriding the interval
// POST /api/v1/monitor/start
func (mc *MonitorController) StartMonitor(c *gin.Context) {
	var request struct {
		IntervalMinutes int `json:"interval_minutes"`
	}

	// The body is optional; an empty request keeps the configured interval
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation_error",
				"message": err.Error(),
			})
			return
		}
	}

	if request.IntervalMinutes != 0 {
		if request.IntervalMinutes < 1 || request.IntervalMinutes > 1440 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation_error",
				"message": "invalid interval_minutes: must be between 1 and 1440",
			})
			return
		}
		if err := mc.monitor.SetInterval(time.Duration(request.IntervalMinutes) * time.Minute); err != nil {
			respondError(c, err)
			return
		}
	}

	if err := mc.monitor.Start(); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Alert monitoring started",
		"data":    mc.monitor.Status(),
	})
}

// StopMonitor stops the alert monitor
// POST /api/v1/monitor/stop
func (mc *MonitorController) StopMonitor(c *gin.Context) {
	if err := mc.monitor.Stop(); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Alert monitoring stopped",
		"data":    mc.monitor.Status(),
	})
}

// GetMonitorStatus returns the monitor state and cycle counters
// GET /api/v1/monitor/status
func (mc *MonitorController) GetMonitorStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": mc.monitor.Status()})
}
