package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	appconfig "whalesignal/config"
	"whalesignal/internal/metrics"
	"whalesignal/internal/models"
)

type recordingNotifier struct {
	enabled bool
	err     error
	sent    []string
}

func (r *recordingNotifier) Send(_ context.Context, text string) error {
	r.sent = append(r.sent, text)
	return r.err
}
func (r *recordingNotifier) Name() string    { return "recording" }
func (r *recordingNotifier) IsEnabled() bool { return r.enabled }

func shortSetup() models.TradeSetup {
	return models.TradeSetup{
		SignalResult: models.SignalResult{
			CycleID:    "c1",
			Instrument: "SUI-USDT-SWAP",
			Timestamp:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
			Signal:     models.SignalShort,
			Comment:    "OI <up> & whales out",
		},
		Plan: &models.TradePlan{Entry: 2, StopLoss: 2.15, TakeProfit: 1.7, RiskReward: 2},
	}
}

func TestFormatAlert(t *testing.T) {
	msg := FormatAlert(shortSetup(), time.UTC)
	for _, want := range []string{
		"<b>SUI-USDT-SWAP Alert</b>",
		"Signal: <b>SHORT</b>",
		"Entry: 2.0000",
		"TP: 1.7000",
		"SL: 2.1500",
		"R:R ≈ 2.00",
		"Comment: OI &lt;up&gt; &amp; whales out",
		"Time: 2024-05-01 12:00:00",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("alert missing %q:\n%s", want, msg)
		}
	}
}

func TestPublishSkipsWait(t *testing.T) {
	n := &recordingNotifier{enabled: true}
	m := NewManager(nil)
	m.AddNotifier(n)

	setup := shortSetup()
	setup.Signal = models.SignalWait
	setup.Plan = nil
	m.Publish(context.Background(), setup)

	if len(n.sent) != 0 {
		t.Fatalf("WAIT must not alert, sent %v", n.sent)
	}

	m.Publish(context.Background(), shortSetup())
	if len(n.sent) != 1 {
		t.Fatalf("expected one alert, got %d", len(n.sent))
	}
}

func TestSendSkipsDisabled(t *testing.T) {
	off := &recordingNotifier{}
	m := NewManager(nil)
	m.AddNotifier(off)
	if err := m.Send(context.Background(), "x"); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if len(off.sent) != 0 {
		t.Fatalf("disabled notifier received a message")
	}
}

func TestDeliveryFailureIsWrappedAndSwallowed(t *testing.T) {
	bad := &recordingNotifier{enabled: true, err: errors.New("chat not found")}
	good := &recordingNotifier{enabled: true}
	m := NewManager(metrics.NewCollectors(prometheus.NewRegistry()))
	m.AddNotifier(bad)
	m.AddNotifier(good)

	err := m.Send(context.Background(), "x")
	if !errors.Is(err, ErrDelivery) {
		t.Fatalf("expected ErrDelivery, got %v", err)
	}
	if len(good.sent) != 1 {
		t.Fatalf("a failing notifier must not block the others")
	}

	// Publish must not panic or propagate.
	m.Publish(context.Background(), shortSetup())
}

func TestTelegramSend(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer srv.Close()

	tg := NewTelegramNotifier(appconfig.TelegramConfig{Enabled: true, BotToken: "TOKEN", ChatID: "-100", BaseURL: srv.URL})
	if err := tg.Send(context.Background(), "<b>hi</b>"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got["chat_id"] != "-100" || got["parse_mode"] != "HTML" || got["text"] != "<b>hi</b>" {
		t.Fatalf("unexpected payload %v", got)
	}
}

func TestTelegramAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	tg := NewTelegramNotifier(appconfig.TelegramConfig{Enabled: true, BotToken: "TOKEN", ChatID: "1", BaseURL: srv.URL})
	err := tg.Send(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected API error, got %v", err)
	}
}

func TestTelegramDisabledWithoutCredentials(t *testing.T) {
	tg := NewTelegramNotifier(appconfig.TelegramConfig{Enabled: true})
	if tg.IsEnabled() {
		t.Fatalf("notifier without token must be disabled")
	}
	if err := tg.Send(context.Background(), "x"); err != nil {
		t.Fatalf("disabled send should be a no-op, got %v", err)
	}
}

func TestSendStartup(t *testing.T) {
	n := &recordingNotifier{enabled: true}
	m := NewManager(nil)
	m.AddNotifier(n)
	m.SendStartup(context.Background(), "Start bot")
	if len(n.sent) != 1 || n.sent[0] != "Start bot" {
		t.Fatalf("unexpected startup messages %v", n.sent)
	}
}
