package alert

import (
	"github.com/sirupsen/logrus"
	"github.com/structuredesk/riskwatch/internal/event"
	"github.com/structuredesk/riskwatch/internal/impact"
	"github.com/structuredesk/riskwatch/internal/metrics"
	"github.com/structuredesk/riskwatch/internal/portfolio"
	"github.com/structuredesk/riskwatch/internal/rules"
)

// Assessment pairs a candidate trade with its impact analysis.
type Assessment struct {
	Trade    portfolio.Trade
	Analysis impact.Analysis
}

// Generator turns impact findings into audience-specific alerts.
type Generator struct {
	rules *rules.Provider
	log   *logrus.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(r *rules.Provider, log *logrus.Logger) *Generator {
	return &Generator{rules: r, log: log}
}

// Generate produces one alert per impacted trade per audience, unless the
// audience view declares no relevant content. Trades with Impacted=false never
// yield alerts. Low-confidence events down-weight every alert one level.
// Output is deterministic: CreatedAt is the event timestamp, not wall clock.
func (g *Generator) Generate(ev *event.Event, assessments []Assessment) map[Audience][]*Alert {
	r := g.rules.Current()
	out := make(map[Audience][]*Alert, len(Audiences))

	for _, as := range assessments {
		if !as.Analysis.Impacted {
			continue
		}
		for _, aud := range Audiences {
			v := viewFor(aud)
			content, ok := v.content(r, ev, as.Trade, as.Analysis)
			if !ok {
				metrics.RecordAlertSuppressed(string(aud))
				continue
			}
			prio := v.priority(r, ev, as.Trade, as.Analysis)
			if ev.NeedsReview {
				prio = prio.Downgrade()
			}
			a := &Alert{
				AlertID:   ID(as.Trade.TradeID, ev.EventID, aud),
				EventID:   ev.EventID,
				TradeID:   as.Trade.TradeID,
				Audience:  aud,
				Priority:  prio,
				Content:   content,
				CreatedAt: ev.Timestamp,
			}
			out[aud] = append(out[aud], a)
			metrics.RecordAlertGenerated(string(aud), string(prio))
		}
	}

	return out
}
