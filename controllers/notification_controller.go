package controllers

import (
	"net/http"
	"strconv"

	"price_alert_backend/services/deliverylog"

	"github.com/gin-gonic/gin"
)

// NotificationController serves archived delivery receipts
type NotificationController struct {
	archive *deliverylog.Archive
}

// NewNotificationController creates a new notification controller
func NewNotificationController(archive *deliverylog.Archive) *NotificationController {
	return &NotificationController{archive: archive}
}

// GetRecentNotifications returns the latest delivery receipts, newest first
// GET /api/v1/notifications/recent
func (nc *NotificationController) GetRecentNotifications(c *gin.Context) {
	if nc.archive == nil || !nc.archive.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "unavailable",
			"message": "Delivery archive is disabled",
		})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	receipts, err := nc.archive.Recent(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  receipts,
		"count": len(receipts),
	})
}
