package impact

import (
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/structuredesk/riskwatch/internal/event"
	"github.com/structuredesk/riskwatch/internal/portfolio"
	"github.com/structuredesk/riskwatch/internal/rules"
)

const tolerance = 0.01

func testEngine() *Engine {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewEngine(rules.NewProvider(rules.Default()), log)
}

func marketEvent(price float64) *event.Event {
	return &event.Event{
		EventID:   "evt-1",
		Timestamp: time.Date(2026, 8, 14, 9, 30, 0, 0, time.UTC),
		Category:  event.CategoryMarketEvent,
		Severity:  event.SeverityHigh,
		PriceData: &event.PriceData{CurrentPrice: price, ChangePct: -6},
	}
}

func barrierTrade(bt portfolio.BarrierType, level float64) portfolio.Trade {
	return portfolio.Trade{
		TradeID:      "T-1",
		Underlying:   "AAPL",
		ProductType:  "Barrier",
		BarrierType:  bt,
		BarrierLevel: level,
		Notional:     1_000_000,
		MaturityDate: time.Date(2027, 8, 14, 0, 0, 0, 0, time.UTC),
	}
}

func TestAssessBarrier(t *testing.T) {
	e := testEngine()

	tests := []struct {
		name       string
		trade      portfolio.Trade
		price      float64
		wantStatus BarrierStatus
	}{
		{"knock-in breach", barrierTrade(portfolio.KnockIn, 80.0), 79.5, KnockedIn},
		{"knock-in exact boundary triggers", barrierTrade(portfolio.KnockIn, 80.0), 80.0, KnockedIn},
		{"knock-in just above does not", barrierTrade(portfolio.KnockIn, 80.0), 80.01, BarrierUnchanged},
		{"knock-out breach", barrierTrade(portfolio.KnockOut, 120.0), 121.0, KnockedOut},
		{"knock-out exact boundary triggers", barrierTrade(portfolio.KnockOut, 120.0), 120.0, KnockedOut},
		{"knock-out just below does not", barrierTrade(portfolio.KnockOut, 120.0), 119.99, BarrierUnchanged},
		{"autocall level touched", barrierTrade(portfolio.Autocall, 110.0), 110.0, AutocallLevelTouched},
		{"autocall below level", barrierTrade(portfolio.Autocall, 110.0), 109.0, BarrierUnchanged},
		{"no barrier feature", barrierTrade(portfolio.BarrierNone, 0), 50.0, BarrierUnchanged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := e.Assess(marketEvent(tt.price), tt.trade)
			if a.BarrierStatusChange != tt.wantStatus {
				t.Errorf("barrier status = %q, want %q", a.BarrierStatusChange, tt.wantStatus)
			}
			wantImpacted := tt.wantStatus != BarrierUnchanged
			if a.Impacted != wantImpacted {
				t.Errorf("impacted = %v, want %v", a.Impacted, wantImpacted)
			}
			if wantImpacted && a.Type != TypeBarrierTriggered {
				t.Errorf("type = %s, want %s", a.Type, TypeBarrierTriggered)
			}
		})
	}
}

func TestAssessDoubleBarrier(t *testing.T) {
	e := testEngine()

	trade := barrierTrade(portfolio.DoubleBarrier, 80.0)
	trade.UpperBarrier = 120.0

	tests := []struct {
		name  string
		price float64
		want  BarrierStatus
	}{
		{"lower leg", 79.0, KnockedIn},
		{"upper leg", 121.0, KnockedOut},
		{"inside corridor", 100.0, BarrierUnchanged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := e.Assess(marketEvent(tt.price), trade)
			if a.BarrierStatusChange != tt.want {
				t.Errorf("barrier status = %q, want %q", a.BarrierStatusChange, tt.want)
			}
		})
	}
}

func TestAssessBarrierPnL(t *testing.T) {
	e := testEngine()

	// 10% overshoot of a 100 barrier on 1M notional, participation 1.0.
	trade := barrierTrade(portfolio.KnockIn, 100.0)
	a := e.Assess(marketEvent(90.0), trade)

	want := -100_000.0
	if math.Abs(a.PnLEstimate-want) > tolerance {
		t.Errorf("pnl = %v, want %v", a.PnLEstimate, want)
	}
	if a.PnLEstimate >= 0 {
		t.Error("barrier loss must be negative")
	}
}

func TestAssessBarrierPnLCapped(t *testing.T) {
	e := testEngine()

	// Autocall params: participation 0.6, max loss 50% of notional. An extreme
	// overshoot must stop at the cap.
	trade := barrierTrade(portfolio.KnockIn, 100.0)
	trade.ProductType = "Autocall"
	a := e.Assess(marketEvent(1.0), trade)

	want := -500_000.0
	if math.Abs(a.PnLEstimate-want) > tolerance {
		t.Errorf("pnl = %v, want cap %v", a.PnLEstimate, want)
	}
}

func corporateActionEvent(actionType string, amount, ratio, spot float64) *event.Event {
	ev := &event.Event{
		EventID:   "evt-ca",
		Timestamp: time.Date(2026, 8, 14, 9, 30, 0, 0, time.UTC),
		Category:  event.CategoryCorporateAction,
		Severity:  event.SeverityMedium,
		CorporateAction: &event.CorporateAction{
			ActionType: actionType,
			Amount:     amount,
			Ratio:      ratio,
		},
	}
	if spot > 0 {
		ev.PriceData = &event.PriceData{CurrentPrice: spot}
	}
	return ev
}

func TestAssessCorporateActionAlwaysImpacted(t *testing.T) {
	e := testEngine()

	// Even with no price data and no barrier, the operational obligation stands.
	trade := barrierTrade(portfolio.BarrierNone, 0)
	a := e.Assess(corporateActionEvent("dividend", 0.5, 0, 0), trade)

	if !a.Impacted {
		t.Fatal("corporate action must impact every trade on the underlying")
	}
	if a.Type != TypeCorporateAction {
		t.Errorf("type = %s, want %s", a.Type, TypeCorporateAction)
	}
	if len(a.RequiredActions[AudienceOperations]) == 0 {
		t.Error("expected operations actions")
	}
}

func TestAssessDividendAdjustment(t *testing.T) {
	e := testEngine()

	// $5 dividend with spot 145 pulls the effective reference to 140, through
	// the 150 knock-in level.
	trade := barrierTrade(portfolio.KnockIn, 150.0)
	trade.Notional = 2_000_000
	a := e.Assess(corporateActionEvent("dividend", 5.0, 0, 145.0), trade)

	if math.Abs(a.AdjustedReference-140.0) > tolerance {
		t.Errorf("adjusted reference = %v, want 140", a.AdjustedReference)
	}
	wantPnL := -2_000_000 * 5.0 / 145.0
	if math.Abs(a.PnLEstimate-wantPnL) > tolerance {
		t.Errorf("pnl = %v, want %v", a.PnLEstimate, wantPnL)
	}
	if a.BarrierStatusChange != KnockedIn {
		t.Errorf("barrier status = %q, want %q", a.BarrierStatusChange, KnockedIn)
	}
}

func TestAssessDividendNoCrossing(t *testing.T) {
	e := testEngine()

	trade := barrierTrade(portfolio.KnockIn, 130.0)
	a := e.Assess(corporateActionEvent("dividend", 5.0, 0, 145.0), trade)

	if a.BarrierStatusChange != BarrierUnchanged {
		t.Errorf("barrier status = %q, want unchanged", a.BarrierStatusChange)
	}
	if !a.Impacted {
		t.Error("dividend still impacts the trade")
	}
}

func TestAssessSplitRescales(t *testing.T) {
	e := testEngine()

	trade := barrierTrade(portfolio.KnockIn, 30.0)
	a := e.Assess(corporateActionEvent("split", 0, 4.0, 145.0), trade)

	if math.Abs(a.AdjustedReference-36.25) > tolerance {
		t.Errorf("adjusted reference = %v, want 36.25", a.AdjustedReference)
	}
	if a.BarrierStatusChange != BarrierUnchanged {
		t.Error("split must not flag a barrier crossing")
	}
	if a.PnLEstimate != 0 {
		t.Errorf("split pnl = %v, want 0", a.PnLEstimate)
	}
}

func TestAssessMergerNeedsManualReview(t *testing.T) {
	e := testEngine()

	trade := barrierTrade(portfolio.KnockIn, 100.0)
	a := e.Assess(corporateActionEvent("merger", 0, 0, 145.0), trade)

	found := false
	for _, action := range a.RequiredActions[AudienceOperations] {
		if strings.Contains(action, "Manual review") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected manual review action, got %v", a.RequiredActions[AudienceOperations])
	}
}

func TestAssessEarlyTermination(t *testing.T) {
	e := testEngine()

	ev := &event.Event{
		EventID:   "evt-eco",
		Timestamp: time.Date(2026, 8, 14, 9, 30, 0, 0, time.UTC),
		Category:  event.CategoryEconomicEvent,
		Severity:  event.SeverityMedium,
	}

	tests := []struct {
		name         string
		maturity     time.Time
		sensitivity  float64
		wantImpacted bool
	}{
		{"inside maturity window", ev.Timestamp.AddDate(0, 0, 10), 0.1, true},
		{"high sensitivity outside window", ev.Timestamp.AddDate(0, 0, 90), 0.9, true},
		{"neither condition", ev.Timestamp.AddDate(0, 0, 90), 0.1, false},
		{"sensitivity at threshold is not enough", ev.Timestamp.AddDate(0, 0, 90), 0.70, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trade := barrierTrade(portfolio.KnockIn, 80.0)
			trade.MaturityDate = tt.maturity
			trade.SensitivityScore = tt.sensitivity

			a := e.Assess(ev, trade)
			if a.Impacted != tt.wantImpacted {
				t.Errorf("impacted = %v, want %v", a.Impacted, tt.wantImpacted)
			}
			if tt.wantImpacted {
				if a.Type != TypeEarlyTerminationRisk {
					t.Errorf("type = %s, want %s", a.Type, TypeEarlyTerminationRisk)
				}
				if a.PnLEstimate != 0 {
					t.Errorf("advisory pnl = %v, want 0", a.PnLEstimate)
				}
			}
		})
	}
}

func TestAssessUnderlyingSpecific(t *testing.T) {
	e := testEngine()

	ev := &event.Event{
		EventID:   "evt-us",
		Timestamp: time.Date(2026, 8, 14, 9, 30, 0, 0, time.UTC),
		Category:  event.CategoryUnderlyingSpecific,
		SubType:   "earnings",
	}
	trade := barrierTrade(portfolio.KnockIn, 80.0)
	trade.MaturityDate = ev.Timestamp.AddDate(0, 0, 5)

	a := e.Assess(ev, trade)
	if a.Type != TypeEarlyTerminationRisk {
		t.Errorf("type = %s, want %s", a.Type, TypeEarlyTerminationRisk)
	}

	// Without a sub-type the event carries nothing actionable.
	ev.SubType = ""
	a = e.Assess(ev, trade)
	if a.Impacted {
		t.Error("plain underlying-specific event must not impact")
	}
}

func TestAssessPanicIsolation(t *testing.T) {
	e := testEngine()
	e.RegisterEstimator("Barrier", EstimatorFunc(func(portfolio.Trade, float64, float64) float64 {
		panic("bad payoff params")
	}))

	a := e.Assess(marketEvent(70.0), barrierTrade(portfolio.KnockIn, 80.0))
	if a.Type != TypeAssessmentError {
		t.Fatalf("type = %s, want %s", a.Type, TypeAssessmentError)
	}
	if !a.Impacted {
		t.Error("assessment errors must surface as impacted")
	}
	if a.TradeID != "T-1" {
		t.Errorf("trade id = %s, want T-1", a.TradeID)
	}
	if len(a.RequiredActions[AudienceOperations]) == 0 {
		t.Error("expected operations follow-up action")
	}
}

func TestRegisterEstimatorOverride(t *testing.T) {
	e := testEngine()
	e.RegisterEstimator("Barrier", EstimatorFunc(func(portfolio.Trade, float64, float64) float64 {
		return -42.0
	}))

	a := e.Assess(marketEvent(70.0), barrierTrade(portfolio.KnockIn, 80.0))
	if a.PnLEstimate != -42.0 {
		t.Errorf("pnl = %v, want custom estimator output -42", a.PnLEstimate)
	}
}
