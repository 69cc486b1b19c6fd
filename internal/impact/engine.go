package impact

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/structuredesk/riskwatch/internal/event"
	"github.com/structuredesk/riskwatch/internal/portfolio"
	"github.com/structuredesk/riskwatch/internal/rules"
)

// Engine determines whether and how a classified event affects a trade.
// Assess is deterministic in its inputs and never mutates the trade.
type Engine struct {
	rules  *rules.Provider
	custom map[string]PayoffEstimator
	log    *logrus.Logger
}

// NewEngine creates an Engine.
func NewEngine(r *rules.Provider, log *logrus.Logger) *Engine {
	return &Engine{
		rules:  r,
		custom: make(map[string]PayoffEstimator),
		log:    log,
	}
}

// RegisterEstimator overrides the payoff estimator for a product type. Must be
// called before processing starts; the registry is not guarded for concurrent
// mutation.
func (e *Engine) RegisterEstimator(productType string, est PayoffEstimator) {
	e.custom[productType] = est
}

func (e *Engine) estimatorFor(r *rules.Rules, productType string) PayoffEstimator {
	if est, ok := e.custom[productType]; ok {
		return est
	}
	if params, ok := r.Impact.Payoff[productType]; ok {
		return linearOvershootEstimator(params)
	}
	return buildEstimators(r)["default"]
}

// Assess scores one (event, trade) pair. A panic while scoring is converted to
// an ASSESSMENT_ERROR analysis so a single bad trade never aborts the batch.
func (e *Engine) Assess(ev *event.Event, trade portfolio.Trade) (a Analysis) {
	defer func() {
		if rec := recover(); rec != nil {
			e.log.WithFields(logrus.Fields{
				"event_id": ev.EventID,
				"trade_id": trade.TradeID,
				"panic":    fmt.Sprint(rec),
			}).Error("Impact assessment panicked")
			a = Analysis{
				TradeID:  trade.TradeID,
				Impacted: true,
				Type:     TypeAssessmentError,
				Note:     fmt.Sprintf("assessment failed: %v", rec),
				RequiredActions: map[string][]string{
					AudienceOperations: {
						fmt.Sprintf("Investigate assessment failure for trade %s: %v", trade.TradeID, rec),
					},
				},
			}
		}
	}()

	r := e.rules.Current()

	switch ev.Category {
	case event.CategoryMarketEvent:
		return e.assessBarrier(r, ev, trade)
	case event.CategoryCorporateAction:
		return e.assessCorporateAction(r, ev, trade)
	case event.CategoryEconomicEvent:
		return e.assessEarlyTermination(r, ev, trade)
	case event.CategoryUnderlyingSpecific:
		if ev.SubType != "" {
			return e.assessEarlyTermination(r, ev, trade)
		}
	}
	return none(trade.TradeID)
}

func (e *Engine) assessBarrier(r *rules.Rules, ev *event.Event, trade portfolio.Trade) Analysis {
	if trade.BarrierType == portfolio.BarrierNone || ev.PriceData == nil {
		return none(trade.TradeID)
	}

	p := ev.PriceData.CurrentPrice
	status := BarrierUnchanged
	level := trade.BarrierLevel

	switch trade.BarrierType {
	case portfolio.KnockIn:
		if p <= trade.BarrierLevel {
			status = KnockedIn
		}
	case portfolio.KnockOut:
		if p >= trade.BarrierLevel {
			status = KnockedOut
		}
	case portfolio.Autocall:
		if p >= trade.BarrierLevel {
			status = AutocallLevelTouched
		}
	case portfolio.DoubleBarrier:
		if p <= trade.BarrierLevel {
			status = KnockedIn
		} else if trade.UpperBarrier > 0 && p >= trade.UpperBarrier {
			status = KnockedOut
			level = trade.UpperBarrier
		}
	}

	if status == BarrierUnchanged {
		return none(trade.TradeID)
	}

	pnl := e.estimatorFor(r, trade.ProductType).EstimatePnL(trade, p, level)

	return Analysis{
		TradeID:             trade.TradeID,
		Impacted:            true,
		Type:                TypeBarrierTriggered,
		PnLEstimate:         pnl,
		BarrierStatusChange: status,
		Note:                fmt.Sprintf("%s barrier at %.2f crossed at %.2f", trade.BarrierType, level, p),
		RequiredActions: map[string][]string{
			AudienceTrading:    {"Review hedge position", "Rebalance delta exposure"},
			AudienceSales:      {"Prepare client notification"},
			AudienceOperations: {"Record barrier observation", "Confirm observation with calculation agent"},
		},
	}
}

// assessCorporateAction always impacts every trade on the underlying: even a
// zero numeric adjustment still needs operational processing.
func (e *Engine) assessCorporateAction(r *rules.Rules, ev *event.Event, trade portfolio.Trade) Analysis {
	ca := ev.CorporateAction
	if ca == nil {
		ca = &event.CorporateAction{ActionType: "unknown"}
	}

	var spot float64
	if ev.PriceData != nil {
		spot = ev.PriceData.CurrentPrice
	}

	a := Analysis{
		TradeID:  trade.TradeID,
		Impacted: true,
		Type:     TypeCorporateAction,
		Note:     fmt.Sprintf("corporate action %s on %s", ca.ActionType, trade.Underlying),
		RequiredActions: map[string][]string{
			AudienceTrading:    {"Reprice affected book"},
			AudienceSales:      {"Notify clients of adjustment"},
			AudienceOperations: {"Update accrual schedule", "Verify ex-date processing"},
		},
	}

	switch ca.ActionType {
	case "dividend", "special_dividend":
		if spot > 0 {
			// The cash amount drops out of the forward, shrinking the
			// effective distance to any downside barrier.
			a.AdjustedReference = spot - ca.Amount
			a.PnLEstimate = -trade.Notional * ca.Amount / spot
			if trade.BarrierType != portfolio.BarrierNone {
				a.BarrierStatusChange = crossCheck(trade, a.AdjustedReference)
			}
		}
	case "split", "reverse_split":
		// Barrier and strike rescale with the ratio, so no new crossing and
		// no P&L; reference bookkeeping only.
		if ca.Ratio > 0 && spot > 0 {
			a.AdjustedReference = spot / ca.Ratio
		}
	case "merger", "spinoff", "rights_issue":
		a.AdjustedReference = spot
		a.RequiredActions[AudienceOperations] = append(
			a.RequiredActions[AudienceOperations],
			"Manual review: corporate action terms",
		)
	}

	return a
}

func crossCheck(trade portfolio.Trade, adjusted float64) BarrierStatus {
	switch trade.BarrierType {
	case portfolio.KnockIn:
		if adjusted <= trade.BarrierLevel {
			return KnockedIn
		}
	case portfolio.KnockOut:
		if adjusted >= trade.BarrierLevel {
			return KnockedOut
		}
	case portfolio.Autocall:
		if adjusted >= trade.BarrierLevel {
			return AutocallLevelTouched
		}
	case portfolio.DoubleBarrier:
		if adjusted <= trade.BarrierLevel {
			return KnockedIn
		}
		if trade.UpperBarrier > 0 && adjusted >= trade.UpperBarrier {
			return KnockedOut
		}
	}
	return BarrierUnchanged
}

// assessEarlyTermination is advisory: no barrier math, flagged only for trades
// close to maturity or with high historical event sensitivity.
func (e *Engine) assessEarlyTermination(r *rules.Rules, ev *event.Event, trade portfolio.Trade) Analysis {
	window := time.Duration(r.Impact.EarlyTermWindowDays) * 24 * time.Hour
	tenor := trade.TenorRemaining(ev.Timestamp)

	withinWindow := tenor < window
	sensitive := trade.SensitivityScore > r.Impact.SensitivityThreshold
	if !withinWindow && !sensitive {
		return none(trade.TradeID)
	}

	reason := "high event sensitivity"
	if withinWindow {
		reason = fmt.Sprintf("%.0f days to maturity", tenor.Hours()/24)
	}

	return Analysis{
		TradeID:  trade.TradeID,
		Impacted: true,
		Type:     TypeEarlyTerminationRisk,
		Note:     fmt.Sprintf("early termination risk: %s", reason),
		RequiredActions: map[string][]string{
			AudienceTrading:    {"Review early termination exposure"},
			AudienceSales:      {"Brief client on potential early redemption"},
			AudienceOperations: {"Check observation calendar"},
		},
	}
}
