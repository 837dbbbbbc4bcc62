package strategy

import (
	"errors"
	"math"
	"testing"

	"whalesignal/internal/indicator"
	"whalesignal/internal/models"
)

func TestBuildTradePlanLong(t *testing.T) {
	plan, err := BuildTradePlan(models.SignalLong, 2.00, 0.10, SetupParams{ATRMultiplier: 1.5, RewardRiskRatio: 2})
	if err != nil {
		t.Fatalf("BuildTradePlan: %v", err)
	}
	if plan.Entry != 2.00 || plan.StopLoss != 1.85 || plan.TakeProfit != 2.30 || plan.RiskReward != 2.00 {
		t.Fatalf("unexpected plan %+v", plan)
	}
}

func TestBuildTradePlanShort(t *testing.T) {
	plan, err := BuildTradePlan(models.SignalShort, 2.00, 0.10, DefaultSetupParams())
	if err != nil {
		t.Fatalf("BuildTradePlan: %v", err)
	}
	if plan.StopLoss != 2.15 || plan.TakeProfit != 1.70 || plan.RiskReward != 2.00 {
		t.Fatalf("unexpected plan %+v", plan)
	}
}

func TestBuildTradePlanRiskRewardFollowsRatio(t *testing.T) {
	for _, ratio := range []float64{1, 2.5, 3} {
		plan, err := BuildTradePlan(models.SignalLong, 1.2345, 0.0123, SetupParams{ATRMultiplier: 2, RewardRiskRatio: ratio})
		if err != nil {
			t.Fatalf("BuildTradePlan: %v", err)
		}
		if math.Abs(plan.RiskReward-ratio) > 1e-12 {
			t.Errorf("risk reward = %v, want %v", plan.RiskReward, ratio)
		}
		if !(plan.StopLoss < plan.Entry && plan.Entry < plan.TakeProfit) {
			t.Errorf("long levels out of order: %+v", plan)
		}
	}
}

func TestBuildTradePlanWait(t *testing.T) {
	plan, err := BuildTradePlan(models.SignalWait, 2, 0.1, DefaultSetupParams())
	if err != nil || plan != nil {
		t.Fatalf("WAIT must produce no plan and no error, got %+v, %v", plan, err)
	}
}

func TestBuildTradePlanDegenerateATR(t *testing.T) {
	for _, atr := range []float64{0, -0.1, math.NaN(), math.Inf(1)} {
		plan, err := BuildTradePlan(models.SignalLong, 2, atr, DefaultSetupParams())
		if !errors.Is(err, ErrDegenerateVolatility) {
			t.Fatalf("atr %v: expected ErrDegenerateVolatility, got %v", atr, err)
		}
		if plan != nil {
			t.Fatalf("atr %v: plan must be suppressed", atr)
		}
	}
}

func TestBuildTradePlanBadEntry(t *testing.T) {
	if _, err := BuildTradePlan(models.SignalShort, 0, 0.1, DefaultSetupParams()); err == nil {
		t.Fatalf("expected error for zero entry price")
	}
}

func TestBuildTradeSetup(t *testing.T) {
	snap := bullishSnapshot()
	res := models.SignalResult{Signal: models.SignalLong}

	setup, err := BuildTradeSetup(res, snap, DefaultSetupParams())
	if err != nil {
		t.Fatalf("BuildTradeSetup: %v", err)
	}
	if setup.Plan == nil || !setup.Actionable() {
		t.Fatalf("expected a plan, got %+v", setup)
	}
	if setup.Plan.Entry != snap.LastPrice {
		t.Fatalf("entry %v should be the last price %v", setup.Plan.Entry, snap.LastPrice)
	}
	atr, _ := indicator.ComputeATR(snap.Candles)
	if setup.ATR != atr {
		t.Fatalf("ATR = %v, want %v", setup.ATR, atr)
	}
}

func TestBuildTradeSetupWaitKeepsATR(t *testing.T) {
	setup, err := BuildTradeSetup(models.SignalResult{Signal: models.SignalWait}, bullishSnapshot(), DefaultSetupParams())
	if err != nil {
		t.Fatalf("BuildTradeSetup: %v", err)
	}
	if setup.Plan != nil {
		t.Fatalf("WAIT must not carry a plan")
	}
	if setup.ATR <= 0 {
		t.Fatalf("ATR should still be reported, got %v", setup.ATR)
	}
}

func TestBuildTradeSetupInsufficientCandles(t *testing.T) {
	snap := bullishSnapshot()
	snap.Candles = snap.Candles[:1]
	setup, err := BuildTradeSetup(models.SignalResult{Signal: models.SignalShort}, snap, DefaultSetupParams())
	if !errors.Is(err, ErrDegenerateVolatility) || !errors.Is(err, indicator.ErrInsufficientData) {
		t.Fatalf("expected degenerate volatility from insufficient data, got %v", err)
	}
	if setup.Plan != nil || setup.Signal != models.SignalShort {
		t.Fatalf("signal must survive without a plan: %+v", setup)
	}
}
