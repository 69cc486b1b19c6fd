package alert

import (
	"fmt"
	"math"
	"time"

	"github.com/structuredesk/riskwatch/internal/event"
	"github.com/structuredesk/riskwatch/internal/impact"
	"github.com/structuredesk/riskwatch/internal/portfolio"
	"github.com/structuredesk/riskwatch/internal/rules"
)

// view is the per-audience shaping capability: priority and content rules are
// distinct per audience and selected through an exhaustive switch, so an
// unhandled audience cannot slip through at runtime.
type view interface {
	priority(r *rules.Rules, ev *event.Event, t portfolio.Trade, a impact.Analysis) Priority
	content(r *rules.Rules, ev *event.Event, t portfolio.Trade, a impact.Analysis) (Content, bool)
}

func viewFor(aud Audience) view {
	switch aud {
	case AudienceTrading:
		return tradingView{}
	case AudienceSales:
		return salesView{}
	case AudienceOperations:
		return operationsView{}
	}
	panic(fmt.Sprintf("unhandled audience %q", aud))
}

// bandPriority maps a P&L magnitude onto the configured bands; magnitudes
// beyond the last band are CRITICAL.
func bandPriority(bands []rules.Band, magnitude float64) Priority {
	for _, b := range bands {
		if magnitude < b.UpTo {
			return Priority(b.Priority)
		}
	}
	return PriorityCritical
}

type tradingView struct{}

func (tradingView) priority(r *rules.Rules, _ *event.Event, _ portfolio.Trade, a impact.Analysis) Priority {
	if a.Type == impact.TypeAssessmentError {
		return PriorityHigh
	}
	return bandPriority(r.Alerting.PnLBands, math.Abs(a.PnLEstimate))
}

func (tradingView) content(_ *rules.Rules, ev *event.Event, t portfolio.Trade, a impact.Analysis) (Content, bool) {
	c := Content{
		Summary: fmt.Sprintf("%s on %s: %s (est. P&L %s)", a.Type, t.Underlying, a.Note, formatUSD(a.PnLEstimate)),
		Details: map[string]string{
			"trade_id":     t.TradeID,
			"product_type": t.ProductType,
			"barrier_type": string(t.BarrierType),
			"notional":     formatUSD(t.Notional),
			"impact_type":  string(a.Type),
		},
		RequiredActions: a.RequiredActions[impact.AudienceTrading],
	}
	if t.BarrierType != portfolio.BarrierNone {
		c.Details["barrier_level"] = fmt.Sprintf("%.2f", t.BarrierLevel)
	}
	if ev.PriceData != nil {
		c.Details["current_price"] = fmt.Sprintf("%.2f", ev.PriceData.CurrentPrice)
	}
	switch a.Type {
	case impact.TypeBarrierTriggered:
		c.HedgingSummary = fmt.Sprintf("Rehedge required: %s on %s, est. P&L %s on notional %s",
			a.BarrierStatusChange, t.Underlying, formatUSD(a.PnLEstimate), formatUSD(t.Notional))
	case impact.TypeCorporateAction:
		c.HedgingSummary = fmt.Sprintf("Reprice %s book for %s, adjusted reference %.2f",
			t.Underlying, a.Note, a.AdjustedReference)
	default:
		c.HedgingSummary = "No immediate hedge action; monitor position"
	}
	return c, true
}

type salesView struct{}

func (salesView) priority(r *rules.Rules, _ *event.Event, t portfolio.Trade, a impact.Analysis) Priority {
	p := bandPriority(r.Alerting.PnLBands, math.Abs(a.PnLEstimate))
	if t.ClientTier == portfolio.TierPlatinum {
		p = p.Bump()
	}
	return p
}

// Sales talking points are a fixed projection per impact type, not inferred.
var salesTalkingPoints = map[impact.Type][]string{
	impact.TypeBarrierTriggered: {
		"A protection barrier on your note was crossed by recent market moves",
		"Your coverage team will walk through the updated payoff profile",
		"No action is required from you at this point",
	},
	impact.TypeCorporateAction: {
		"A corporate action on the underlying adjusts your note's reference terms",
		"The adjustment follows the standard calculation agent methodology",
	},
	impact.TypeEarlyTerminationRisk: {
		"An upcoming event may affect the early redemption conditions of your note",
		"We will confirm the observation outcome on the next scheduled date",
	},
}

func (salesView) content(r *rules.Rules, _ *event.Event, t portfolio.Trade, a impact.Analysis) (Content, bool) {
	// Assessment errors are an internal matter, never client-facing.
	if a.Type == impact.TypeAssessmentError {
		return Content{}, false
	}
	// Small-money findings stay below the client-communication bar, except
	// early-termination advisories which are relationship-driven.
	if a.Type != impact.TypeEarlyTerminationRisk &&
		math.Abs(a.PnLEstimate) < r.Alerting.SalesCommThreshold {
		return Content{}, false
	}
	return Content{
		Summary: fmt.Sprintf("Client %s (%s): %s on %s position", t.ClientID, t.ClientTier, a.Type, t.Underlying),
		Details: map[string]string{
			"client_id":    t.ClientID,
			"client_tier":  string(t.ClientTier),
			"trade_id":     t.TradeID,
			"pnl_estimate": formatUSD(a.PnLEstimate),
		},
		TalkingPoints:   salesTalkingPoints[a.Type],
		RequiredActions: a.RequiredActions[impact.AudienceSales],
	}, true
}

type operationsView struct{}

// opsDeadline is the processing deadline the operations priority keys off:
// the ex-date for corporate actions, otherwise a default lead from event time.
func opsDeadline(r *rules.Rules, ev *event.Event) time.Time {
	if ev.CorporateAction != nil && !ev.CorporateAction.ExDate.IsZero() {
		return ev.CorporateAction.ExDate
	}
	return ev.Timestamp.Add(time.Duration(r.Alerting.OpsDefaultLeadHours) * time.Hour)
}

func (operationsView) priority(r *rules.Rules, ev *event.Event, _ portfolio.Trade, a impact.Analysis) Priority {
	if a.Type == impact.TypeAssessmentError {
		return PriorityHigh
	}
	lead := opsDeadline(r, ev).Sub(ev.Timestamp)
	if lead <= 0 {
		return PriorityCritical
	}
	for _, b := range r.Alerting.OpsDeadlineBands {
		if lead <= time.Duration(b.WithinHours)*time.Hour {
			return Priority(b.Priority)
		}
	}
	return PriorityLow
}

func (operationsView) content(r *rules.Rules, ev *event.Event, t portfolio.Trade, a impact.Analysis) (Content, bool) {
	deadline := opsDeadline(r, ev)
	return Content{
		Summary: fmt.Sprintf("%s processing required for trade %s by %s",
			a.Type, t.TradeID, deadline.Format("2006-01-02 15:04 MST")),
		Details: map[string]string{
			"trade_id":    t.TradeID,
			"impact_type": string(a.Type),
			"status":      t.Status,
		},
		Deadline:        deadline,
		RequiredActions: a.RequiredActions[impact.AudienceOperations],
	}, true
}

func formatUSD(v float64) string {
	if v < 0 {
		return fmt.Sprintf("-$%.2f", -v)
	}
	return fmt.Sprintf("$%.2f", v)
}
