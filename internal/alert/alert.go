package alert

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Audience identifies the stakeholder group an alert is shaped for.
type Audience string

const (
	AudienceTrading    Audience = "TRADING"
	AudienceSales      Audience = "SALES"
	AudienceOperations Audience = "OPERATIONS"
)

// Audiences lists every audience, in generation order.
var Audiences = []Audience{AudienceTrading, AudienceSales, AudienceOperations}

// Priority grades an alert's urgency.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

var priorityRank = map[Priority]int{
	PriorityLow:      0,
	PriorityMedium:   1,
	PriorityHigh:     2,
	PriorityCritical: 3,
}

// Rank returns the numeric urgency of p, LOW lowest.
func (p Priority) Rank() int {
	return priorityRank[p]
}

// Bump raises the priority one level, saturating at CRITICAL.
func (p Priority) Bump() Priority {
	switch p {
	case PriorityLow:
		return PriorityMedium
	case PriorityMedium:
		return PriorityHigh
	default:
		return PriorityCritical
	}
}

// Downgrade lowers the priority one level, saturating at LOW.
func (p Priority) Downgrade() Priority {
	switch p {
	case PriorityCritical:
		return PriorityHigh
	case PriorityHigh:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// Content is the audience-specific body of an alert.
type Content struct {
	Summary         string            `json:"summary"`
	Details         map[string]string `json:"details,omitempty"`
	HedgingSummary  string            `json:"hedging_summary,omitempty"` // trading
	TalkingPoints   []string          `json:"talking_points,omitempty"`  // sales
	Deadline        time.Time         `json:"deadline,omitempty"`        // operations
	RequiredActions []string          `json:"required_actions,omitempty"`
}

// Alert is one audience view of an impact finding. All fields derive from the
// event and trade state, so reprocessing the same event against unchanged
// trades regenerates byte-identical alerts.
type Alert struct {
	AlertID   string    `json:"alert_id"`
	EventID   string    `json:"event_id"`
	TradeID   string    `json:"trade_id"`
	Audience  Audience  `json:"audience"`
	Priority  Priority  `json:"priority"`
	Content   Content   `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ID derives the deterministic alert identifier for a (trade, event, audience)
// triple, guaranteeing idempotent regeneration.
func ID(tradeID, eventID string, audience Audience) string {
	sum := sha256.Sum256([]byte(tradeID + "|" + eventID + "|" + string(audience)))
	return hex.EncodeToString(sum[:])
}
