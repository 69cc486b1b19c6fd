package classifier

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/structuredesk/riskwatch/internal/event"
	"github.com/structuredesk/riskwatch/internal/rules"
)

// MalformedEventError marks a raw event missing a mandatory field. Such events
// are quarantined and never reach downstream stages.
type MalformedEventError struct {
	Field string
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed event: missing mandatory field %q", e.Field)
}

// Classifier assigns category, severity and confidence to raw feed events
// using the configured rule tables.
type Classifier struct {
	rules *rules.Provider
	log   *logrus.Logger
}

// New creates a Classifier.
func New(r *rules.Provider, log *logrus.Logger) *Classifier {
	return &Classifier{rules: r, log: log}
}

// Classify converts a raw event into a canonical Event. It never blocks and
// always returns either a fully classified event or a MalformedEventError.
func (c *Classifier) Classify(raw *event.RawEvent) (*event.Event, error) {
	if raw.Source == "" {
		return nil, &MalformedEventError{Field: "source"}
	}
	if raw.Timestamp.IsZero() {
		return nil, &MalformedEventError{Field: "timestamp"}
	}

	r := c.rules.Current()

	ev := &event.Event{
		EventID:        raw.EventID,
		Timestamp:      raw.Timestamp.UTC(),
		Source:         raw.Source,
		UnderlyingRefs: dedupeRefs(raw.UnderlyingRefs),
		Headline:       raw.Headline,
		PriceData:      raw.PriceData,
	}
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}

	switch {
	case c.isCorporateAction(r, raw.ActionType):
		ev.Category = event.CategoryCorporateAction
		ev.Confidence = 1.0
		ev.CorporateAction = &event.CorporateAction{
			ActionType: strings.ToLower(raw.ActionType),
			Amount:     raw.ActionAmount,
			Ratio:      raw.ActionRatio,
			ExDate:     raw.ExDate,
		}
	case c.matchesMarketPattern(r, raw.PriceData):
		ev.Category = event.CategoryMarketEvent
		ev.Confidence = 0.9
	case raw.Headline != "":
		ev.Category, ev.Confidence = c.matchKeywords(r, raw.Headline)
	default:
		ev.Category = event.CategoryUnderlyingSpecific
		ev.Confidence = 0.3
	}

	ev.SubType = matchSubType(r, raw.Headline)
	ev.Severity = c.deriveSeverity(r, ev)
	ev.NeedsReview = ev.Confidence < r.MinConfidence

	c.log.WithFields(logrus.Fields{
		"event_id":     ev.EventID,
		"source":       ev.Source,
		"category":     ev.Category,
		"severity":     ev.Severity,
		"confidence":   ev.Confidence,
		"needs_review": ev.NeedsReview,
		"underlyings":  len(ev.UnderlyingRefs),
	}).Debug("Event classified")

	return ev, nil
}

func (c *Classifier) isCorporateAction(r *rules.Rules, actionType string) bool {
	if actionType == "" {
		return false
	}
	at := strings.ToLower(actionType)
	for _, known := range r.Classification.CorporateActionTypes {
		if at == known {
			return true
		}
	}
	return false
}

func (c *Classifier) matchesMarketPattern(r *rules.Rules, pd *event.PriceData) bool {
	if pd == nil {
		return false
	}
	if pd.Halted {
		return true
	}
	if math.Abs(pd.ChangePct) >= r.Classification.MarketMovePct {
		return true
	}
	return pd.Volatility >= r.Classification.VolatilityThreshold
}

// matchKeywords returns the first category whose keyword set hits the
// headline, in table order, defaulting to underlying_specific at low
// confidence when nothing matches.
func (c *Classifier) matchKeywords(r *rules.Rules, headline string) (event.Category, float64) {
	h := strings.ToLower(headline)
	for _, rule := range r.Classification.Keywords {
		for _, kw := range rule.Keywords {
			if strings.Contains(h, kw) {
				return event.Category(rule.Category), 0.8
			}
		}
	}
	return event.CategoryUnderlyingSpecific, 0.3
}

func matchSubType(r *rules.Rules, headline string) string {
	if headline == "" {
		return ""
	}
	h := strings.ToLower(headline)
	// Check earnings before guidance so "profit warning" headlines carrying
	// both land on the stronger sub-type.
	for _, sub := range []string{"earnings", "guidance"} {
		for _, kw := range r.Classification.SubTypeKeywords[sub] {
			if strings.Contains(h, kw) {
				return sub
			}
		}
	}
	return ""
}

func (c *Classifier) deriveSeverity(r *rules.Rules, ev *event.Event) event.Severity {
	switch ev.Category {
	case event.CategoryCorporateAction:
		if ev.CorporateAction != nil {
			switch ev.CorporateAction.ActionType {
			case "merger", "spinoff":
				return event.SeverityHigh
			}
		}
		return event.SeverityMedium
	case event.CategoryMarketEvent:
		if ev.PriceData != nil {
			if ev.PriceData.Halted {
				return event.SeverityCritical
			}
			if math.Abs(ev.PriceData.ChangePct) >= r.Classification.HighMovePct {
				return event.SeverityHigh
			}
		}
		return event.SeverityMedium
	case event.CategoryEconomicEvent:
		return event.SeverityMedium
	default:
		if ev.SubType != "" {
			return event.SeverityMedium
		}
		return event.SeverityLow
	}
}

func dedupeRefs(refs []string) []string {
	seen := make(map[string]bool, len(refs))
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		ref = strings.ToUpper(strings.TrimSpace(ref))
		if ref == "" || seen[ref] {
			continue
		}
		seen[ref] = true
		out = append(out, ref)
	}
	return out
}
