package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"price_alert_backend/models"
	"price_alert_backend/services/alertstore"
	"price_alert_backend/services/deliverylog"
	"price_alert_backend/services/monitor"
	"price_alert_backend/services/stream"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type staticFetcher struct {
	price decimal.Decimal
}

func (f staticFetcher) FetchPrice(ctx context.Context, symbol, assetClass string) (decimal.Decimal, error) {
	return f.price, nil
}

type silentNotifier struct{}

func (silentNotifier) Send(ctx context.Context, alert *models.Alert, observed decimal.Decimal, at time.Time) error {
	return nil
}

func newTestRouter(t *testing.T, authSecret string) (*gin.Engine, *stream.Hub) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "alerts.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, models.MigrateAlertModels(db))

	store := alertstore.NewStore(db)
	hub := stream.NewHub()
	t.Cleanup(hub.Shutdown)

	mon := monitor.New(monitor.Options{
		Store:    store,
		Fetcher:  staticFetcher{price: decimal.NewFromInt(100)},
		Notifier: silentNotifier{},
		Hub:      hub,
		Interval: time.Hour,
	})
	t.Cleanup(func() {
		if mon.IsRunning() {
			mon.Stop()
		}
	})

	router := gin.New()
	SetupRoutes(router, Deps{
		DB:               db,
		Store:            store,
		Monitor:          mon,
		Archive:          deliverylog.NewArchive(""),
		Hub:              hub,
		AuthSecret:       authSecret,
		CreateRateLimit:  2,
		CreateRateWindow: time.Minute,
	})
	return router, hub
}

func serve(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestServiceEndpoints(t *testing.T) {
	router, _ := newTestRouter(t, "")

	w := serve(router, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(router, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(router, http.MethodGet, "/keep-alive", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var keepAlive map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &keepAlive))
	assert.Equal(t, "alive", keepAlive["status"])
	assert.Equal(t, false, keepAlive["monitor_running"])

	w = serve(router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "price_alert_monitor_running")
}

func TestAlertFlowThroughRouter(t *testing.T) {
	router, _ := newTestRouter(t, "")

	w := serve(router, http.MethodPost, "/api/v1/alerts",
		`{"symbol": "BTC", "asset_class": "crypto", "condition": "below", "target_price": 200, "email": "a@example.com"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Data models.Alert `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	// The static route must not be shadowed by the :id parameter
	w = serve(router, http.MethodGet, "/api/v1/alerts/stats", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(router, http.MethodPost, "/api/v1/alerts/1/check", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var checked struct {
		Data struct {
			Triggered bool `json:"triggered"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &checked))
	assert.True(t, checked.Data.Triggered)
}

func TestCreateRateLimitWired(t *testing.T) {
	router, _ := newTestRouter(t, "")
	body := `{"symbol": "BTC", "asset_class": "crypto", "condition": "above", "target_price": 1, "email": "a@example.com"}`

	for i := 0; i < 2; i++ {
		w := serve(router, http.MethodPost, "/api/v1/alerts", body)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := serve(router, http.MethodPost, "/api/v1/alerts", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// Reads and manual checks are not limited
	w = serve(router, http.MethodGet, "/api/v1/alerts", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(router, http.MethodPost, "/api/v1/alerts/1/check", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMonitorControlGuardWired(t *testing.T) {
	router, _ := newTestRouter(t, "control-secret")

	w := serve(router, http.MethodPost, "/api/v1/monitor/start", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Status stays readable without a token
	w = serve(router, http.MethodGet, "/api/v1/monitor/status", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNotificationsArchiveDisabled(t *testing.T) {
	router, _ := newTestRouter(t, "")

	w := serve(router, http.MethodGet, "/api/v1/notifications/recent", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAlertStreamRoute(t *testing.T) {
	router, hub := newTestRouter(t, "")

	server := httptest.NewServer(router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/alerts/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	if resp != nil {
		resp.Body.Close()
	}

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
}
