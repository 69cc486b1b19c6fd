package impact

import (
	"math"

	"github.com/structuredesk/riskwatch/internal/portfolio"
	"github.com/structuredesk/riskwatch/internal/rules"
)

// PayoffEstimator approximates the P&L impact of a barrier event on a trade.
// price is the post-event reference price, level the barrier that was crossed.
// Estimators are registered per product type; the engine's control flow never
// hard-codes a payoff formula.
type PayoffEstimator interface {
	EstimatePnL(trade portfolio.Trade, price, level float64) float64
}

// EstimatorFunc adapts a function to the PayoffEstimator interface.
type EstimatorFunc func(trade portfolio.Trade, price, level float64) float64

func (f EstimatorFunc) EstimatePnL(trade portfolio.Trade, price, level float64) float64 {
	return f(trade, price, level)
}

// linearOvershootEstimator scales notional by the relative distance the price
// moved past the barrier, weighted by participation and capped at max_loss_pct.
// A crude delta-one approximation, good enough to band alerts by magnitude.
func linearOvershootEstimator(params rules.PayoffParams) PayoffEstimator {
	return EstimatorFunc(func(trade portfolio.Trade, price, level float64) float64 {
		if level == 0 {
			return 0
		}
		overshoot := math.Abs(price-level) / level
		loss := trade.Notional * overshoot * params.Participation
		if params.MaxLossPct > 0 {
			if cap := trade.Notional * params.MaxLossPct; loss > cap {
				loss = cap
			}
		}
		return -loss
	})
}

// buildEstimators materializes the estimator registry from payoff params.
func buildEstimators(r *rules.Rules) map[string]PayoffEstimator {
	out := make(map[string]PayoffEstimator, len(r.Impact.Payoff))
	for productType, params := range r.Impact.Payoff {
		out[productType] = linearOvershootEstimator(params)
	}
	if _, ok := out["default"]; !ok {
		out["default"] = linearOvershootEstimator(rules.PayoffParams{Participation: 1.0, MaxLossPct: 1.0})
	}
	return out
}
