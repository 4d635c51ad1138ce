package controllers

import (
	"net/http"
	"strconv"

	"price_alert_backend/services/alertstore"
	"price_alert_backend/services/history"
	"price_alert_backend/services/monitor"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// AlertController handles alert-related requests
type AlertController struct {
	store   *alertstore.Store
	monitor *monitor.Monitor
	history *history.Store
}

// NewAlertController creates a new alert controller. The history store may
// be nil when evaluation history is disabled.
func NewAlertController(store *alertstore.Store, mon *monitor.Monitor, hist *history.Store) *AlertController {
	return &AlertController{
		store:   store,
		monitor: mon,
		history: hist,
	}
}

// CreateAlert creates a new price alert
// POST /api/v1/alerts
func (ac *AlertController) CreateAlert(c *gin.Context) {
	var request struct {
		Symbol      string  `json:"symbol" binding:"required"`
		AssetClass  string  `json:"asset_class"`
		Condition   string  `json:"condition" binding:"required"`
		TargetPrice float64 `json:"target_price" binding:"required"`
		Email       string  `json:"email" binding:"required"`
		Phone       string  `json:"phone"`
		Message     string  `json:"message"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
		return
	}

	alert, err := ac.store.Create(alertstore.CreateParams{
		Symbol:      request.Symbol,
		AssetClass:  request.AssetClass,
		Condition:   request.Condition,
		TargetPrice: decimal.NewFromFloat(request.TargetPrice),
		Email:       request.Email,
		Phone:       request.Phone,
		Message:     request.Message,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": alert})
}

// GetAlerts returns alerts, optionally filtered by owner email and active state
// GET /api/v1/alerts
func (ac *AlertController) GetAlerts(c *gin.Context) {
	email := c.Query("email")
	activeOnly := c.DefaultQuery("active", "false") == "true"

	alerts, err := ac.store.List(email, activeOnly)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  alerts,
		"count": len(alerts),
	})
}

// GetAlert returns a single alert by ID
// GET /api/v1/alerts/:id
func (ac *AlertController) GetAlert(c *gin.Context) {
	id, ok := parseAlertID(c)
	if !ok {
		return
	}

	alert, err := ac.store.GetByID(id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": alert})
}

// UpdateAlert updates the mutable fields of an alert
// PUT /api/v1/alerts/:id
func (ac *AlertController) UpdateAlert(c *gin.Context) {
	id, ok := parseAlertID(c)
	if !ok {
		return
	}

	var request struct {
		TargetPrice *float64 `json:"target_price"`
		Condition   *string  `json:"condition"`
		IsActive    *bool    `json:"is_active"`
		Message     *string  `json:"message"`
		Phone       *string  `json:"phone"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
		return
	}

	params := alertstore.UpdateParams{
		Condition: request.Condition,
		IsActive:  request.IsActive,
		Message:   request.Message,
		Phone:     request.Phone,
	}
	if request.TargetPrice != nil {
		price := decimal.NewFromFloat(*request.TargetPrice)
		params.TargetPrice = &price
	}

	alert, err := ac.store.Update(id, params)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": alert})
}

// DeleteAlert deletes an alert. Repeating the delete reports not found.
// DELETE /api/v1/alerts/:id
func (ac *AlertController) DeleteAlert(c *gin.Context) {
	id, ok := parseAlertID(c)
	if !ok {
		return
	}

	if err := ac.store.Delete(id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Alert deleted successfully"})
}

// CheckAlert evaluates an alert against the current market price right away
// POST /api/v1/alerts/:id/check
func (ac *AlertController) CheckAlert(c *gin.Context) {
	id, ok := parseAlertID(c)
	if !ok {
		return
	}

	result, err := ac.monitor.CheckAlert(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"alert":         result.Alert,
			"current_price": result.ObservedPrice,
			"triggered":     result.Triggered,
		},
	})
}

// GetAlertStats returns aggregate alert statistics
// GET /api/v1/alerts/stats
func (ac *AlertController) GetAlertStats(c *gin.Context) {
	stats, err := ac.store.Stats()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}

// GetAlertHistory returns recent evaluations of an alert, newest first
// GET /api/v1/alerts/:id/history
func (ac *AlertController) GetAlertHistory(c *gin.Context) {
	id, ok := parseAlertID(c)
	if !ok {
		return
	}

	if ac.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "unavailable",
			"message": "Evaluation history is disabled",
		})
		return
	}

	if _, err := ac.store.GetByID(id); err != nil {
		respondError(c, err)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entries, err := ac.history.ListByAlert(id, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  entries,
		"count": len(entries),
	})
}
