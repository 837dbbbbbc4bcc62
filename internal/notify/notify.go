package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"whalesignal/internal/metrics"
	"whalesignal/internal/models"
	"whalesignal/logger"
)

// ErrDelivery wraps every failed notification.
var ErrDelivery = errors.New("notification delivery failed")

// Notifier delivers a pre-formatted HTML message to one channel.
type Notifier interface {
	Send(ctx context.Context, text string) error
	Name() string
	IsEnabled() bool
}

// Manager fans messages out to every enabled notifier. As a scheduler sink it
// swallows delivery failures after logging and counting them.
type Manager struct {
	notifiers []Notifier
	metrics   *metrics.Collectors
	log       *logger.Log
	loc       *time.Location
}

// NewManager creates a manager. collectors may be nil.
func NewManager(collectors *metrics.Collectors) *Manager {
	return &Manager{
		metrics: collectors,
		log:     logger.GetLogger(),
		loc:     time.Local,
	}
}

// AddNotifier adds a notification provider
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Send delivers text to every enabled notifier. The returned error joins all
// failures and matches ErrDelivery.
func (m *Manager) Send(ctx context.Context, text string) error {
	var errs []error
	for _, n := range m.notifiers {
		if !n.IsEnabled() {
			continue
		}
		err := n.Send(ctx, text)
		logger.RecordNotification(err == nil)
		if err != nil {
			m.metrics.NotificationFailure(n.Name())
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrDelivery, n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// SendStartup announces that the process is running.
func (m *Manager) SendStartup(ctx context.Context, message string) {
	if message == "" {
		return
	}
	if err := m.Send(ctx, html.EscapeString(message)); err != nil {
		m.log.WithComponent("notify").WithError(err).Warn("failed to send startup message")
	}
}

// Publish alerts on actionable setups only.
func (m *Manager) Publish(ctx context.Context, setup models.TradeSetup) {
	if !setup.Actionable() {
		return
	}
	log := m.log.WithComponent("notify").WithCycle(setup.CycleID)
	if err := m.Send(ctx, FormatAlert(setup, m.loc)); err != nil {
		log.WithError(err).Warn("failed to deliver trade alert")
		return
	}
	log.WithFields(logger.Fields{"signal": setup.Signal}).Info("trade alert delivered")
}

// FormatAlert renders an actionable setup as a Telegram HTML message.
func FormatAlert(setup models.TradeSetup, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🦈 <b>%s Alert</b>\n", html.EscapeString(setup.Instrument))
	fmt.Fprintf(&b, "Signal: <b>%s</b>\n", setup.Signal)
	if p := setup.Plan; p != nil {
		fmt.Fprintf(&b, "Entry: %.4f\n", p.Entry)
		fmt.Fprintf(&b, "TP: %.4f\n", p.TakeProfit)
		fmt.Fprintf(&b, "SL: %.4f\n", p.StopLoss)
		fmt.Fprintf(&b, "R:R ≈ %.2f\n", p.RiskReward)
	}
	fmt.Fprintf(&b, "Comment: %s\n", html.EscapeString(setup.Comment))
	fmt.Fprintf(&b, "Time: %s", setup.Timestamp.In(loc).Format("2006-01-02 15:04:05"))
	return b.String()
}
