package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestIsValidAssetClass(t *testing.T) {
	assert.True(t, IsValidAssetClass(AssetClassEquity))
	assert.True(t, IsValidAssetClass(AssetClassCrypto))
	assert.False(t, IsValidAssetClass("bond"))
	assert.False(t, IsValidAssetClass(""))
	assert.False(t, IsValidAssetClass("Equity"))
}

func TestIsValidCondition(t *testing.T) {
	assert.True(t, IsValidCondition(ConditionAbove))
	assert.True(t, IsValidCondition(ConditionBelow))
	assert.False(t, IsValidCondition("equals"))
	assert.False(t, IsValidCondition(""))
}

func TestIsPlausibleEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"user@example.com", true},
		{"first.last@sub.example.co", true},
		{"user+alerts@example.org", true},
		{"", false},
		{"userexample.com", false},
		{"@example.com", false},
		{"user@", false},
		{"user@example", false},
		{"user@.com", false},
		{"user@example.", false},
		{"user@ex@ample.com", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsPlausibleEmail(tt.email), "email %q", tt.email)
	}
}

func TestNormalizeSymbol(t *testing.T) {
	assert.Equal(t, "AAPL", NormalizeSymbol("aapl"))
	assert.Equal(t, "BTC", NormalizeSymbol("  btc "))
	assert.Equal(t, "VNM", NormalizeSymbol("VNM"))
}

func TestShouldTrigger(t *testing.T) {
	target := decimal.NewFromInt(100)

	tests := []struct {
		name      string
		condition string
		observed  string
		want      bool
	}{
		{"above fires on greater", ConditionAbove, "100.01", true},
		{"above holds on equal", ConditionAbove, "100", false},
		{"above holds on lower", ConditionAbove, "99.99", false},
		{"below fires on lower", ConditionBelow, "99.99", true},
		{"below holds on equal", ConditionBelow, "100", false},
		{"below holds on greater", ConditionBelow, "100.01", false},
		{"unknown condition never fires", "between", "150", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alert := &Alert{Condition: tt.condition, TargetPrice: target}
			observed, err := decimal.NewFromString(tt.observed)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, alert.ShouldTrigger(observed))
		})
	}
}
