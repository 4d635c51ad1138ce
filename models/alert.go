package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Alert represents a price alert owned by an email contact
type Alert struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Symbol        string          `gorm:"index;not null" json:"symbol"`
	AssetClass    string          `gorm:"index;not null;default:'equity'" json:"asset_class"` // equity, crypto
	Condition     string          `gorm:"not null" json:"condition"`                          // above, below
	TargetPrice   decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"target_price"`
	Email         string          `gorm:"index;not null" json:"email"`
	Phone         string          `json:"phone,omitempty"` // stored only, no SMS delivery
	Message       string          `json:"message,omitempty"`
	IsActive      bool            `gorm:"default:true;index" json:"is_active"`
	LastCheckedAt *time.Time      `json:"last_checked_at,omitempty"`
	TriggeredAt   *time.Time      `json:"triggered_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Asset class constants
const (
	AssetClassEquity = "equity"
	AssetClassCrypto = "crypto"
)

// Alert condition constants
const (
	ConditionAbove = "above"
	ConditionBelow = "below"
)

// ValidAssetClasses returns the accepted asset classes
func ValidAssetClasses() []string {
	return []string{AssetClassEquity, AssetClassCrypto}
}

// ValidConditions returns the accepted alert conditions
func ValidConditions() []string {
	return []string{ConditionAbove, ConditionBelow}
}

// IsValidAssetClass checks if the asset class is valid
func IsValidAssetClass(assetClass string) bool {
	for _, valid := range ValidAssetClasses() {
		if assetClass == valid {
			return true
		}
	}
	return false
}

// IsValidCondition checks if the condition is valid
func IsValidCondition(condition string) bool {
	for _, valid := range ValidConditions() {
		if condition == valid {
			return true
		}
	}
	return false
}

// IsPlausibleEmail checks that an address has a local part and a dotted domain
func IsPlausibleEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	if strings.Contains(domain, "@") {
		return false
	}
	dot := strings.Index(domain, ".")
	return dot > 0 && dot < len(domain)-1
}

// NormalizeSymbol canonicalizes a ticker symbol for storage and lookups
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// ShouldTrigger reports whether an observed price satisfies the alert
// condition. Comparisons are strict; equality never fires.
func (a *Alert) ShouldTrigger(observed decimal.Decimal) bool {
	switch a.Condition {
	case ConditionAbove:
		return observed.GreaterThan(a.TargetPrice)
	case ConditionBelow:
		return observed.LessThan(a.TargetPrice)
	default:
		return false
	}
}

// MigrateAlertModels runs database migrations for alert models
func MigrateAlertModels(db *gorm.DB) error {
	return db.AutoMigrate(&Alert{})
}
