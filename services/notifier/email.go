package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"price_alert_backend/metrics"
	"price_alert_backend/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// ErrDisabled is returned when delivery settings are not configured
var ErrDisabled = errors.New("email notifications disabled")

// DeliveryError describes a failed notification delivery
type DeliveryError struct {
	Recipient string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("failed to deliver notification to %s: %v", e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Notifier delivers trigger notifications to an alert's owner
type Notifier interface {
	Send(ctx context.Context, alert *models.Alert, observed decimal.Decimal, at time.Time) error
}

// EmailNotifier delivers notifications over SMTP
type EmailNotifier struct {
	dialer *gomail.Dialer
	from   string
}

// NewEmailNotifier creates an SMTP notifier. Missing settings produce a
// disabled notifier instead of an error so the service keeps running
// without delivery.
func NewEmailNotifier(host string, port int, username, password, from string) *EmailNotifier {
	if host == "" || username == "" || password == "" {
		log.Println("SMTP settings missing, email notifications disabled")
		return &EmailNotifier{}
	}
	if from == "" {
		from = username
	}
	return &EmailNotifier{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

// Enabled reports whether delivery is configured
func (n *EmailNotifier) Enabled() bool {
	return n.dialer != nil
}

// Send emails the owner of a fired alert
func (n *EmailNotifier) Send(ctx context.Context, alert *models.Alert, observed decimal.Decimal, at time.Time) error {
	if !n.Enabled() {
		metrics.DeliveriesTotal.WithLabelValues(metrics.DeliveryStatusDisabled).Inc()
		return &DeliveryError{Recipient: alert.Email, Err: ErrDisabled}
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", alert.Email)
	m.SetHeader("Subject", Subject(alert))
	m.SetBody("text/plain", Body(alert, observed, at))

	if err := n.dialer.DialAndSend(m); err != nil {
		metrics.DeliveriesTotal.WithLabelValues(metrics.DeliveryStatusFailed).Inc()
		return &DeliveryError{Recipient: alert.Email, Err: err}
	}

	metrics.DeliveriesTotal.WithLabelValues(metrics.DeliveryStatusSent).Inc()
	log.Printf("Notification sent to %s for alert %d (%s)", alert.Email, alert.ID, alert.Symbol)
	return nil
}

// Subject builds the notification subject line
func Subject(alert *models.Alert) string {
	return fmt.Sprintf("Price Alert: %s %s %s", alert.Symbol, alert.Condition, alert.TargetPrice.String())
}

// Body builds the plain text notification body
func Body(alert *models.Alert, observed decimal.Decimal, at time.Time) string {
	var b strings.Builder

	b.WriteString("Your price alert has been triggered.\n\n")
	fmt.Fprintf(&b, "Symbol: %s (%s)\n", alert.Symbol, alert.AssetClass)
	fmt.Fprintf(&b, "Condition: %s %s\n", alert.Condition, alert.TargetPrice.String())
	fmt.Fprintf(&b, "Observed Price: %s\n", observed.String())
	fmt.Fprintf(&b, "Triggered At: %s\n", at.UTC().Format("2006-01-02 15:04:05 MST"))

	if alert.Message != "" {
		fmt.Fprintf(&b, "\nNote: %s\n", alert.Message)
	}

	b.WriteString("\nThis alert has been deactivated and will not fire again.\n")
	return b.String()
}
