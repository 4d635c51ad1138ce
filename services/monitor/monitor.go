package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"price_alert_backend/metrics"
	"price_alert_backend/models"
	"price_alert_backend/services/alertstore"
	"price_alert_backend/services/deliverylog"
	"price_alert_backend/services/history"
	"price_alert_backend/services/notifier"
	"price_alert_backend/services/stream"

	"github.com/go-co-op/gocron"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Monitor state errors
var (
	ErrAlreadyRunning = errors.New("monitor is already running")
	ErrNotRunning     = errors.New("monitor is not running")
)

// PriceFetcher supplies current market prices
type PriceFetcher interface {
	FetchPrice(ctx context.Context, symbol, assetClass string) (decimal.Decimal, error)
}

// Options holds the dependencies and tuning of a Monitor. History, Archive
// and Hub are optional.
type Options struct {
	Store    *alertstore.Store
	Fetcher  PriceFetcher
	Notifier notifier.Notifier
	History  *history.Store
	Archive  *deliverylog.Archive
	Hub      *stream.Hub
	Interval time.Duration
	Pacing   time.Duration
}

// Monitor periodically evaluates active alerts against market prices. It is
// an explicit controller: construct it once, share it between the scheduler
// and the API, start and stop it deliberately.
type Monitor struct {
	store    *alertstore.Store
	fetcher  PriceFetcher
	notifier notifier.Notifier
	history  *history.Store
	archive  *deliverylog.Archive
	hub      *stream.Hub

	interval time.Duration
	pacing   time.Duration

	cron    *gocron.Scheduler
	mu      sync.Mutex
	running bool

	statsMu     sync.RWMutex
	startedAt   time.Time
	cycles      uint64
	lastCycleAt time.Time
	lastCycleMs int64
}

// New creates a stopped monitor
func New(opts Options) *Monitor {
	interval := opts.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return &Monitor{
		store:    opts.Store,
		fetcher:  opts.Fetcher,
		notifier: opts.Notifier,
		history:  opts.History,
		archive:  opts.Archive,
		hub:      opts.Hub,
		interval: interval,
		pacing:   opts.Pacing,
	}
}

// Start begins scheduled monitoring. Starting a running monitor is rejected
// with ErrAlreadyRunning and has no side effects.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return ErrAlreadyRunning
	}

	if m.cron == nil {
		m.cron = gocron.NewScheduler(time.UTC)
	}
	m.cron.Clear()

	// SingletonMode guarantees cycles never overlap: the next tick waits
	// until the previous one has completed.
	if _, err := m.cron.Every(m.interval).SingletonMode().Do(m.runScheduledCycle); err != nil {
		return fmt.Errorf("failed to schedule monitor job: %w", err)
	}
	m.cron.StartAsync()

	m.running = true
	m.statsMu.Lock()
	m.startedAt = time.Now().UTC()
	m.statsMu.Unlock()

	metrics.MonitorRunning.Set(1)
	if m.hub != nil {
		m.hub.Publish(stream.EventMonitorStarted, map[string]interface{}{
			"interval_seconds": int(m.interval.Seconds()),
		})
	}
	log.Printf("Alert monitor started (interval: %v, pacing: %v)", m.interval, m.pacing)
	return nil
}

// Stop halts scheduled monitoring. The next tick is cancelled; a tick that
// is already in flight runs to completion. Stopping a stopped monitor is
// rejected with ErrNotRunning.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return ErrNotRunning
	}

	m.cron.Stop()
	m.running = false

	metrics.MonitorRunning.Set(0)
	if m.hub != nil {
		m.hub.Publish(stream.EventMonitorStopped, nil)
	}
	log.Println("Alert monitor stopped")
	return nil
}

// IsRunning reports whether the monitor is started
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// SetInterval changes the tick interval. The monitor must be stopped.
func (m *Monitor) SetInterval(interval time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return ErrAlreadyRunning
	}
	if interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	m.interval = interval
	return nil
}

// Interval returns the configured tick interval
func (m *Monitor) Interval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interval
}

// Status describes the monitor for the API and health surfaces
type Status struct {
	Running         bool       `json:"running"`
	IntervalSeconds int        `json:"interval_seconds"`
	PacingSeconds   float64    `json:"pacing_seconds"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CyclesCompleted uint64     `json:"cycles_completed"`
	LastCycleAt     *time.Time `json:"last_cycle_at,omitempty"`
	LastCycleMs     int64      `json:"last_cycle_ms"`
}

// Status returns a snapshot of the monitor state
func (m *Monitor) Status() Status {
	status := Status{
		Running:         m.IsRunning(),
		IntervalSeconds: int(m.Interval().Seconds()),
		PacingSeconds:   m.pacing.Seconds(),
	}

	m.statsMu.RLock()
	defer m.statsMu.RUnlock()

	status.CyclesCompleted = m.cycles
	status.LastCycleMs = m.lastCycleMs
	if !m.startedAt.IsZero() {
		startedAt := m.startedAt
		status.StartedAt = &startedAt
	}
	if !m.lastCycleAt.IsZero() {
		lastCycleAt := m.lastCycleAt
		status.LastCycleAt = &lastCycleAt
	}
	return status
}

func (m *Monitor) runScheduledCycle() {
	m.RunCycle(context.Background())
}

// RunCycle evaluates every active alert once. Failures are isolated per
// alert; one bad symbol never aborts the rest of the cycle.
func (m *Monitor) RunCycle(ctx context.Context) {
	start := time.Now()

	alerts, err := m.store.ListActive()
	if err != nil {
		log.Printf("Monitor cycle failed to load alerts: %v", err)
		return
	}

	triggered := 0
	for i := range alerts {
		alert := alerts[i]

		// Pacing keeps the provider happy when many alerts share a cycle
		if m.pacing > 0 {
			time.Sleep(m.pacing)
		}

		result, err := m.checkAlert(ctx, &alert)
		if err != nil {
			continue
		}
		if result.Triggered {
			triggered++
		}
	}

	elapsed := time.Since(start)
	metrics.MonitorCyclesTotal.Inc()

	m.statsMu.Lock()
	m.cycles++
	m.lastCycleAt = time.Now().UTC()
	m.lastCycleMs = elapsed.Milliseconds()
	m.statsMu.Unlock()

	log.Printf("Monitor cycle complete: %d alerts checked, %d triggered in %v", len(alerts), triggered, elapsed)
}

// CheckResult reports the outcome of a single evaluation
type CheckResult struct {
	Alert         *models.Alert   `json:"alert"`
	ObservedPrice decimal.Decimal `json:"observed_price"`
	Triggered     bool            `json:"triggered"`
}

// CheckAlert evaluates one alert immediately, outside the schedule. It is
// safe to run concurrently with scheduled cycles; the store's atomic claim
// keeps the trigger transition at-most-once.
func (m *Monitor) CheckAlert(ctx context.Context, id uint) (*CheckResult, error) {
	alert, err := m.store.GetByID(id)
	if err != nil {
		return nil, err
	}
	if !alert.IsActive {
		return nil, models.NewValidationError("is_active", "alert is not active")
	}
	return m.checkAlert(ctx, alert)
}

func (m *Monitor) checkAlert(ctx context.Context, alert *models.Alert) (*CheckResult, error) {
	metrics.AlertsCheckedTotal.Inc()

	observed, err := m.fetcher.FetchPrice(ctx, alert.Symbol, alert.AssetClass)
	if err != nil {
		log.Printf("Price fetch failed for alert %d (%s): %v", alert.ID, alert.Symbol, err)
		m.recordHistory(alert, "", history.OutcomeFetchError, err.Error())
		return nil, err
	}

	now := time.Now().UTC()
	if err := m.store.TouchChecked(alert.ID, now); err != nil {
		log.Printf("Failed to record check time for alert %d: %v", alert.ID, err)
	}
	checkedAt := now
	alert.LastCheckedAt = &checkedAt

	result := &CheckResult{Alert: alert, ObservedPrice: observed}

	if !alert.ShouldTrigger(observed) {
		m.recordHistory(alert, observed.String(), history.OutcomeOK, "")
		return result, nil
	}

	// Claim the trigger transition before notifying. Whoever wins the claim
	// sends the one and only notification; losers stop here.
	if err := m.store.MarkTriggered(alert.ID, now); err != nil {
		if errors.Is(err, alertstore.ErrAlreadyTriggered) || errors.Is(err, models.ErrAlertNotFound) {
			log.Printf("Alert %d already triggered elsewhere, skipping notification", alert.ID)
			return result, nil
		}
		return nil, fmt.Errorf("failed to claim trigger for alert %d: %w", alert.ID, err)
	}

	metrics.AlertsTriggeredTotal.Inc()
	result.Triggered = true
	alert.IsActive = false
	triggeredAt := now
	alert.TriggeredAt = &triggeredAt

	m.recordHistory(alert, observed.String(), history.OutcomeTriggered, "")
	log.Printf("Alert %d fired: %s %s %s, observed %s", alert.ID, alert.Symbol, alert.Condition, alert.TargetPrice, observed)

	// Delivery failure is logged and archived; the trigger stands either way
	deliveryStatus := metrics.DeliveryStatusSent
	deliveryError := ""
	if err := m.notifier.Send(ctx, alert, observed, now); err != nil {
		log.Printf("Notification delivery failed for alert %d: %v", alert.ID, err)
		deliveryStatus = metrics.DeliveryStatusFailed
		if errors.Is(err, notifier.ErrDisabled) {
			deliveryStatus = metrics.DeliveryStatusDisabled
		}
		deliveryError = err.Error()
	}
	m.recordReceipt(ctx, alert, deliveryStatus, deliveryError, now)

	if m.hub != nil {
		m.hub.Publish(stream.EventAlertTriggered, map[string]interface{}{
			"alert_id":       alert.ID,
			"symbol":         alert.Symbol,
			"asset_class":    alert.AssetClass,
			"condition":      alert.Condition,
			"target_price":   alert.TargetPrice.String(),
			"observed_price": observed.String(),
			"triggered_at":   now.Format(time.RFC3339),
		})
	}

	return result, nil
}

func (m *Monitor) recordHistory(alert *models.Alert, observed, outcome, detail string) {
	if m.history == nil {
		return
	}
	entry := history.Entry{
		AlertID:       alert.ID,
		Symbol:        alert.Symbol,
		ObservedPrice: observed,
		Outcome:       outcome,
		Detail:        detail,
		CheckedAt:     time.Now().UTC(),
	}
	if err := m.history.Record(entry); err != nil {
		log.Printf("Warning: failed to record evaluation for alert %d: %v", alert.ID, err)
	}
}

func (m *Monitor) recordReceipt(ctx context.Context, alert *models.Alert, status, deliveryError string, at time.Time) {
	if m.archive == nil {
		return
	}
	receipt := deliverylog.Receipt{
		AlertID:   alert.ID,
		Symbol:    alert.Symbol,
		Recipient: alert.Email,
		Subject:   notifier.Subject(alert),
		Status:    status,
		Error:     deliveryError,
		SentAt:    at,
	}
	if err := m.archive.Record(ctx, receipt); err != nil {
		log.Printf("Warning: failed to archive delivery receipt for alert %d: %v", alert.ID, err)
	}
}
