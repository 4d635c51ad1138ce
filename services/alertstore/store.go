package alertstore

import (
	"errors"
	"fmt"
	"time"

	"price_alert_backend/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrAlreadyTriggered is returned when a triggered alert is claimed twice
var ErrAlreadyTriggered = errors.New("alert already triggered")

// Store provides persistence for price alerts
type Store struct {
	db *gorm.DB
}

// NewStore creates an alert store instance
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// CreateParams holds the caller-supplied fields of a new alert
type CreateParams struct {
	Symbol      string
	AssetClass  string
	Condition   string
	TargetPrice decimal.Decimal
	Email       string
	Phone       string
	Message     string
}

// UpdateParams holds the mutable fields of an alert. Nil pointers leave the
// stored value unchanged.
type UpdateParams struct {
	TargetPrice *decimal.Decimal
	Condition   *string
	IsActive    *bool
	Message     *string
	Phone       *string
}

// Create validates and persists a new alert
func (s *Store) Create(params CreateParams) (*models.Alert, error) {
	symbol := models.NormalizeSymbol(params.Symbol)
	if symbol == "" {
		return nil, models.NewValidationError("symbol", "must not be empty")
	}

	assetClass := params.AssetClass
	if assetClass == "" {
		assetClass = models.AssetClassEquity
	}
	if !models.IsValidAssetClass(assetClass) {
		return nil, models.NewValidationError("asset_class", fmt.Sprintf("must be one of %v", models.ValidAssetClasses()))
	}

	if !models.IsValidCondition(params.Condition) {
		return nil, models.NewValidationError("condition", fmt.Sprintf("must be one of %v", models.ValidConditions()))
	}

	if params.TargetPrice.LessThanOrEqual(decimal.Zero) {
		return nil, models.NewValidationError("target_price", "must be greater than zero")
	}

	if !models.IsPlausibleEmail(params.Email) {
		return nil, models.NewValidationError("email", "must be a valid email address")
	}

	alert := models.Alert{
		Symbol:      symbol,
		AssetClass:  assetClass,
		Condition:   params.Condition,
		TargetPrice: params.TargetPrice,
		Email:       params.Email,
		Phone:       params.Phone,
		Message:     params.Message,
		IsActive:    true,
	}

	if err := s.db.Create(&alert).Error; err != nil {
		return nil, fmt.Errorf("failed to create alert: %w", err)
	}

	return &alert, nil
}

// GetByID fetches a single alert
func (s *Store) GetByID(id uint) (*models.Alert, error) {
	var alert models.Alert
	if err := s.db.First(&alert, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrAlertNotFound
		}
		return nil, fmt.Errorf("failed to fetch alert %d: %w", id, err)
	}
	return &alert, nil
}

// List returns alerts in creation order, optionally filtered by owner email
// and active state
func (s *Store) List(email string, activeOnly bool) ([]models.Alert, error) {
	query := s.db.Model(&models.Alert{})
	if email != "" {
		query = query.Where("email = ?", email)
	}
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var alerts []models.Alert
	if err := query.Order("id").Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}

// ListActive returns every active alert in creation order
func (s *Store) ListActive() ([]models.Alert, error) {
	return s.List("", true)
}

// Update applies the mutable fields of an alert. Symbol, asset class, email
// and creation time are immutable. A triggered alert cannot be reactivated.
func (s *Store) Update(id uint, params UpdateParams) (*models.Alert, error) {
	alert, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}

	if params.TargetPrice != nil {
		if params.TargetPrice.LessThanOrEqual(decimal.Zero) {
			return nil, models.NewValidationError("target_price", "must be greater than zero")
		}
		updates["target_price"] = *params.TargetPrice
	}

	if params.Condition != nil {
		if !models.IsValidCondition(*params.Condition) {
			return nil, models.NewValidationError("condition", fmt.Sprintf("must be one of %v", models.ValidConditions()))
		}
		updates["condition"] = *params.Condition
	}

	if params.IsActive != nil {
		if *params.IsActive && alert.TriggeredAt != nil {
			return nil, models.NewValidationError("is_active", "triggered alerts cannot be reactivated")
		}
		updates["is_active"] = *params.IsActive
	}

	if params.Message != nil {
		updates["message"] = *params.Message
	}

	if params.Phone != nil {
		updates["phone"] = *params.Phone
	}

	if len(updates) == 0 {
		return alert, nil
	}

	if err := s.db.Model(alert).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update alert %d: %w", id, err)
	}

	return s.GetByID(id)
}

// Delete removes an alert. Deleting an id that does not exist (including a
// repeat delete) reports not found.
func (s *Store) Delete(id uint) error {
	result := s.db.Delete(&models.Alert{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete alert %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrAlertNotFound
	}
	return nil
}

// MarkTriggered atomically claims the trigger transition for an alert. The
// row is updated only when triggered_at is still unset, so concurrent
// checkers cannot both win; losers get ErrAlreadyTriggered.
func (s *Store) MarkTriggered(id uint, at time.Time) error {
	result := s.db.Model(&models.Alert{}).
		Where("id = ? AND triggered_at IS NULL", id).
		Updates(map[string]interface{}{
			"is_active":    false,
			"triggered_at": at,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark alert %d triggered: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := s.db.Model(&models.Alert{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to mark alert %d triggered: %w", id, err)
		}
		if count == 0 {
			return models.ErrAlertNotFound
		}
		return ErrAlreadyTriggered
	}
	return nil
}

// TouchChecked records a successful evaluation time. last_checked_at never
// moves backwards; out-of-order or post-delete touches are no-ops.
func (s *Store) TouchChecked(id uint, at time.Time) error {
	err := s.db.Model(&models.Alert{}).
		Where("id = ? AND (last_checked_at IS NULL OR last_checked_at <= ?)", id, at).
		Update("last_checked_at", at).Error
	if err != nil {
		return fmt.Errorf("failed to touch alert %d: %w", id, err)
	}
	return nil
}

// Statistics summarizes the stored alerts
type Statistics struct {
	Total        int64            `json:"total"`
	Active       int64            `json:"active"`
	Triggered    int64            `json:"triggered"`
	Recent       int64            `json:"recent"`
	ByAssetClass map[string]int64 `json:"by_asset_class"`
}

// Stats aggregates alert counts. Recent counts alerts created within the
// last 7 days. Triggered alerts are kept as queryable history.
func (s *Store) Stats() (*Statistics, error) {
	stats := &Statistics{ByAssetClass: map[string]int64{}}

	if err := s.db.Model(&models.Alert{}).Count(&stats.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count alerts: %w", err)
	}
	if err := s.db.Model(&models.Alert{}).Where("is_active = ?", true).Count(&stats.Active).Error; err != nil {
		return nil, fmt.Errorf("failed to count active alerts: %w", err)
	}
	if err := s.db.Model(&models.Alert{}).Where("triggered_at IS NOT NULL").Count(&stats.Triggered).Error; err != nil {
		return nil, fmt.Errorf("failed to count triggered alerts: %w", err)
	}
	weekAgo := time.Now().AddDate(0, 0, -7)
	if err := s.db.Model(&models.Alert{}).Where("created_at >= ?", weekAgo).Count(&stats.Recent).Error; err != nil {
		return nil, fmt.Errorf("failed to count recent alerts: %w", err)
	}

	var counts []struct {
		AssetClass string
		Count      int64
	}
	err := s.db.Model(&models.Alert{}).
		Select("asset_class, COUNT(*) as count").
		Group("asset_class").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count alerts by asset class: %w", err)
	}
	for _, c := range counts {
		stats.ByAssetClass[c.AssetClass] = c.Count
	}

	return stats, nil
}
