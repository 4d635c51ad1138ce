package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"price_alert_backend/models"
	"price_alert_backend/services/marketdata"
	"price_alert_backend/services/monitor"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// respondError maps service errors onto the API error envelope
func respondError(c *gin.Context, err error) {
	var validationErr *models.ValidationError
	var fetchErr *marketdata.FetchError

	switch {
	case errors.Is(err, models.ErrAlertNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Alert not found",
		})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": validationErr.Error(),
		})
	case errors.As(err, &fetchErr):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "fetch_error",
			"message": fetchErr.Error(),
		})
	case errors.Is(err, monitor.ErrAlreadyRunning), errors.Is(err, monitor.ErrNotRunning):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "conflict",
			"message": err.Error(),
		})
	default:
		log.Printf("Internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Something went wrong",
		})
	}
}

// parseAlertID reads the :id route parameter. Responds with a validation
// error and returns false when it is not a positive integer.
func parseAlertID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "invalid id: must be a positive integer",
		})
		return 0, false
	}
	return uint(id), true
}
