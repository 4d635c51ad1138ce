package alertstore

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"price_alert_backend/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "alerts.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.MigrateAlertModels(db))
	return NewStore(db)
}

func validParams() CreateParams {
	return CreateParams{
		Symbol:      "btc",
		AssetClass:  models.AssetClassCrypto,
		Condition:   models.ConditionAbove,
		TargetPrice: decimal.NewFromInt(50000),
		Email:       "trader@example.com",
		Message:     "time to sell",
	}
}

func TestCreateAlert(t *testing.T) {
	store := newTestStore(t)

	alert, err := store.Create(validParams())
	require.NoError(t, err)

	assert.NotZero(t, alert.ID)
	assert.Equal(t, "BTC", alert.Symbol)
	assert.Equal(t, models.AssetClassCrypto, alert.AssetClass)
	assert.Equal(t, models.ConditionAbove, alert.Condition)
	assert.True(t, alert.TargetPrice.Equal(decimal.NewFromInt(50000)))
	assert.True(t, alert.IsActive)
	assert.Nil(t, alert.TriggeredAt)
	assert.Nil(t, alert.LastCheckedAt)
	assert.False(t, alert.CreatedAt.IsZero())
}

func TestCreateAlertDefaultsAssetClass(t *testing.T) {
	store := newTestStore(t)

	params := validParams()
	params.Symbol = "AAPL"
	params.AssetClass = ""

	alert, err := store.Create(params)
	require.NoError(t, err)
	assert.Equal(t, models.AssetClassEquity, alert.AssetClass)
}

func TestCreateAlertValidation(t *testing.T) {
	store := newTestStore(t)

	tests := []struct {
		name   string
		mutate func(*CreateParams)
		field  string
	}{
		{"empty symbol", func(p *CreateParams) { p.Symbol = "  " }, "symbol"},
		{"bad asset class", func(p *CreateParams) { p.AssetClass = "bond" }, "asset_class"},
		{"bad condition", func(p *CreateParams) { p.Condition = "equals" }, "condition"},
		{"missing condition", func(p *CreateParams) { p.Condition = "" }, "condition"},
		{"zero target", func(p *CreateParams) { p.TargetPrice = decimal.Zero }, "target_price"},
		{"negative target", func(p *CreateParams) { p.TargetPrice = decimal.NewFromInt(-5) }, "target_price"},
		{"bad email", func(p *CreateParams) { p.Email = "not-an-email" }, "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := validParams()
			tt.mutate(&params)

			_, err := store.Create(params)
			require.Error(t, err)

			var ve *models.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	// Nothing may be persisted by rejected creates
	alerts, err := store.List("", false)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestGetByIDNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetByID(999)
	assert.ErrorIs(t, err, models.ErrAlertNotFound)
}

func TestListAlerts(t *testing.T) {
	store := newTestStore(t)

	first, err := store.Create(validParams())
	require.NoError(t, err)

	params := validParams()
	params.Symbol = "AAPL"
	params.AssetClass = models.AssetClassEquity
	params.Email = "other@example.com"
	second, err := store.Create(params)
	require.NoError(t, err)

	all, err := store.List("", false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)
	assert.Equal(t, second.ID, all[1].ID)

	mine, err := store.List("trader@example.com", false)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, first.ID, mine[0].ID)

	require.NoError(t, store.MarkTriggered(first.ID, time.Now().UTC()))

	active, err := store.ListActive()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)
}

func TestUpdateAlert(t *testing.T) {
	store := newTestStore(t)

	alert, err := store.Create(validParams())
	require.NoError(t, err)

	newTarget := decimal.NewFromInt(60000)
	newCondition := models.ConditionBelow
	newMessage := "updated note"
	inactive := false

	updated, err := store.Update(alert.ID, UpdateParams{
		TargetPrice: &newTarget,
		Condition:   &newCondition,
		Message:     &newMessage,
		IsActive:    &inactive,
	})
	require.NoError(t, err)

	assert.True(t, updated.TargetPrice.Equal(newTarget))
	assert.Equal(t, models.ConditionBelow, updated.Condition)
	assert.Equal(t, "updated note", updated.Message)
	assert.False(t, updated.IsActive)
	assert.Equal(t, "BTC", updated.Symbol)
	assert.Equal(t, alert.Email, updated.Email)
	assert.WithinDuration(t, alert.CreatedAt, updated.CreatedAt, time.Second)
}

func TestUpdateAlertValidation(t *testing.T) {
	store := newTestStore(t)

	alert, err := store.Create(validParams())
	require.NoError(t, err)

	bad := decimal.NewFromInt(-1)
	_, err = store.Update(alert.ID, UpdateParams{TargetPrice: &bad})
	assert.True(t, models.IsValidationError(err))

	badCondition := "sideways"
	_, err = store.Update(alert.ID, UpdateParams{Condition: &badCondition})
	assert.True(t, models.IsValidationError(err))

	_, err = store.Update(999, UpdateParams{})
	assert.ErrorIs(t, err, models.ErrAlertNotFound)
}

func TestUpdateCannotReactivateTriggeredAlert(t *testing.T) {
	store := newTestStore(t)

	alert, err := store.Create(validParams())
	require.NoError(t, err)
	require.NoError(t, store.MarkTriggered(alert.ID, time.Now().UTC()))

	active := true
	_, err = store.Update(alert.ID, UpdateParams{IsActive: &active})
	require.Error(t, err)
	assert.True(t, models.IsValidationError(err))

	stored, err := store.GetByID(alert.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.NotNil(t, stored.TriggeredAt)
}

func TestDeleteAlert(t *testing.T) {
	store := newTestStore(t)

	alert, err := store.Create(validParams())
	require.NoError(t, err)

	require.NoError(t, store.Delete(alert.ID))

	err = store.Delete(alert.ID)
	assert.ErrorIs(t, err, models.ErrAlertNotFound)

	_, err = store.GetByID(alert.ID)
	assert.ErrorIs(t, err, models.ErrAlertNotFound)
}

func TestMarkTriggered(t *testing.T) {
	store := newTestStore(t)

	alert, err := store.Create(validParams())
	require.NoError(t, err)

	at := time.Now().UTC()
	require.NoError(t, store.MarkTriggered(alert.ID, at))

	stored, err := store.GetByID(alert.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	require.NotNil(t, stored.TriggeredAt)
	assert.WithinDuration(t, at, *stored.TriggeredAt, time.Second)

	err = store.MarkTriggered(alert.ID, at.Add(time.Minute))
	assert.ErrorIs(t, err, ErrAlreadyTriggered)

	// triggered_at must keep its original value
	again, err := store.GetByID(alert.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, at, *again.TriggeredAt, time.Second)

	err = store.MarkTriggered(999, at)
	assert.ErrorIs(t, err, models.ErrAlertNotFound)
}

func TestMarkTriggeredConcurrentClaims(t *testing.T) {
	store := newTestStore(t)

	alert, err := store.Create(validParams())
	require.NoError(t, err)

	const claimers = 8
	errs := make([]error, claimers)
	var wg sync.WaitGroup
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.MarkTriggered(alert.ID, time.Now().UTC())
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, ErrAlreadyTriggered)
		}
	}
	assert.Equal(t, 1, wins, "exactly one claimer may win")
}

func TestTouchChecked(t *testing.T) {
	store := newTestStore(t)

	alert, err := store.Create(validParams())
	require.NoError(t, err)

	first := time.Now().UTC()
	require.NoError(t, store.TouchChecked(alert.ID, first))

	stored, err := store.GetByID(alert.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastCheckedAt)
	assert.WithinDuration(t, first, *stored.LastCheckedAt, time.Second)

	later := first.Add(time.Minute)
	require.NoError(t, store.TouchChecked(alert.ID, later))

	// An out-of-order touch must not move the timestamp backwards
	require.NoError(t, store.TouchChecked(alert.ID, first))

	stored, err = store.GetByID(alert.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, later, *stored.LastCheckedAt, time.Second)

	// Touching a deleted alert is a no-op
	require.NoError(t, store.Delete(alert.ID))
	assert.NoError(t, store.TouchChecked(alert.ID, later))
}

func TestStats(t *testing.T) {
	store := newTestStore(t)

	btc, err := store.Create(validParams())
	require.NoError(t, err)

	params := validParams()
	params.Symbol = "AAPL"
	params.AssetClass = models.AssetClassEquity
	_, err = store.Create(params)
	require.NoError(t, err)

	params = validParams()
	params.Symbol = "ETH"
	_, err = store.Create(params)
	require.NoError(t, err)

	require.NoError(t, store.MarkTriggered(btc.ID, time.Now().UTC()))

	stats, err := store.Stats()
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.Active)
	assert.Equal(t, int64(1), stats.Triggered)
	assert.Equal(t, int64(3), stats.Recent)
	assert.Equal(t, int64(2), stats.ByAssetClass[models.AssetClassCrypto])
	assert.Equal(t, int64(1), stats.ByAssetClass[models.AssetClassEquity])
}
