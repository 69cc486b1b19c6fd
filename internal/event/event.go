package event

import "time"

// Category buckets classified events by the kind of risk rule they trigger.
type Category string

const (
	CategoryCorporateAction    Category = "corporate_action"
	CategoryMarketEvent        Category = "market_event"
	CategoryEconomicEvent      Category = "economic_event"
	CategoryUnderlyingSpecific Category = "underlying_specific"
)

// Severity grades an event's expected market significance.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// PriceData carries the barrier-relevant market snapshot attached to a feed payload.
type PriceData struct {
	CurrentPrice  float64 `json:"current_price"`
	PreviousClose float64 `json:"previous_close,omitempty"`
	ChangePct     float64 `json:"change_pct,omitempty"`
	Volatility    float64 `json:"volatility,omitempty"`
	Halted        bool    `json:"halted,omitempty"`
}

// CorporateAction carries the structured corporate-action payload.
type CorporateAction struct {
	ActionType string    `json:"action_type"`
	Amount     float64   `json:"amount,omitempty"` // per-share cash amount (dividends)
	Ratio      float64   `json:"ratio,omitempty"`  // shares-out / shares-in (splits)
	ExDate     time.Time `json:"ex_date,omitempty"`
}

// RawEvent is the normalized shape every upstream feed payload is reduced to
// before classification. Only Source and Timestamp are mandatory.
type RawEvent struct {
	EventID        string     `json:"event_id,omitempty"`
	Source         string     `json:"source"`
	Timestamp      time.Time  `json:"timestamp"`
	ActionType     string     `json:"action_type,omitempty"`
	ActionAmount   float64    `json:"action_amount,omitempty"`
	ActionRatio    float64    `json:"action_ratio,omitempty"`
	ExDate         time.Time  `json:"ex_date,omitempty"`
	Headline       string     `json:"headline,omitempty"`
	PriceData      *PriceData `json:"price_data,omitempty"`
	UnderlyingRefs []string   `json:"underlying_refs"`
}

// Event is the canonical classified record flowing through the pipeline.
// Immutable once produced by the classifier.
type Event struct {
	EventID         string
	Timestamp       time.Time
	Source          string
	Category        Category
	Severity        Severity
	Confidence      float64
	NeedsReview     bool
	SubType         string // earnings, guidance; drives early-termination dispatch
	UnderlyingRefs  []string
	Headline        string
	PriceData       *PriceData
	CorporateAction *CorporateAction
}
