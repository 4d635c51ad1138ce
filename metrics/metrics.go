package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	MonitorRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "price_alert_monitor_running",
			Help: "Whether the alert monitor loop is currently running (1) or stopped (0)",
		},
	)
	MonitorCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "price_alert_monitor_cycles_total",
			Help: "Total number of completed monitoring cycles",
		},
	)
	AlertsCheckedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "price_alert_checks_total",
			Help: "Total number of alert evaluations",
		},
	)
	AlertsTriggeredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "price_alert_triggered_total",
			Help: "Total number of alerts that fired",
		},
	)
	FetchErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "price_alert_fetch_errors_total",
			Help: "Total number of failed price fetches",
		},
	)
	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_alert_notification_deliveries_total",
			Help: "Total number of notification delivery attempts by status",
		},
		[]string{"status"},
	)
	FetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "price_alert_fetch_duration_seconds",
			Help:    "Latency of price provider fetches",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(MonitorRunning)
	prometheus.MustRegister(MonitorCyclesTotal)
	prometheus.MustRegister(AlertsCheckedTotal)
	prometheus.MustRegister(AlertsTriggeredTotal)
	prometheus.MustRegister(FetchErrorsTotal)
	prometheus.MustRegister(DeliveriesTotal)
	prometheus.MustRegister(FetchDuration)
}

// Delivery status label values
const (
	DeliveryStatusSent     = "sent"
	DeliveryStatusFailed   = "failed"
	DeliveryStatusDisabled = "disabled"
)
