package rules

import "fmt"

// Band maps an absolute P&L magnitude to a priority. Bands are checked in
// order; the first band whose UpTo exceeds the magnitude wins. Magnitudes
// beyond the last band map to CRITICAL.
type Band struct {
	UpTo     float64 `yaml:"up_to"`
	Priority string  `yaml:"priority"`
}

// DeadlineBand maps proximity to an operational deadline to a priority.
type DeadlineBand struct {
	WithinHours int    `yaml:"within_hours"`
	Priority    string `yaml:"priority"`
}

// KeywordRule assigns a category when any of its keywords appears in a headline.
type KeywordRule struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

// PayoffParams tune the payoff estimator registered for a product type.
type PayoffParams struct {
	Participation float64 `yaml:"participation"`
	MaxLossPct    float64 `yaml:"max_loss_pct"` // cap on the overshoot fraction, 0 = uncapped
}

// Classification holds the event classifier's rule tables.
type Classification struct {
	CorporateActionTypes []string            `yaml:"corporate_action_types"`
	MarketMovePct        float64             `yaml:"market_move_pct"`
	HighMovePct          float64             `yaml:"high_move_pct"`
	VolatilityThreshold  float64             `yaml:"volatility_threshold"`
	Keywords             []KeywordRule       `yaml:"keywords"`
	SubTypeKeywords      map[string][]string `yaml:"sub_type_keywords"`
}

// Impact holds the impact assessment thresholds.
type Impact struct {
	EarlyTermWindowDays  int                     `yaml:"early_term_window_days"`
	SensitivityThreshold float64                 `yaml:"sensitivity_threshold"`
	Payoff               map[string]PayoffParams `yaml:"payoff"`
}

// Alerting holds the per-audience priority and content rules.
type Alerting struct {
	PnLBands            []Band         `yaml:"pnl_bands"`
	SalesCommThreshold  float64        `yaml:"sales_comm_threshold"`
	OpsDeadlineBands    []DeadlineBand `yaml:"ops_deadline_bands"`
	OpsDefaultLeadHours int            `yaml:"ops_default_lead_hours"`
}

// Routing maps "AUDIENCE/PRIORITY" keys to ordered channel lists. Escalation
// holds the extra channels tried once after a channel exhausts its retries.
type Routing struct {
	Table      map[string][]string `yaml:"table"`
	Escalation map[string][]string `yaml:"escalation"`
}

// Rules is the complete business-rule surface. Loaded once at startup and
// replaced wholesale on reload, never mutated in place.
type Rules struct {
	MinConfidence  float64        `yaml:"min_confidence"`
	Classification Classification `yaml:"classification"`
	Impact         Impact         `yaml:"impact"`
	Alerting       Alerting       `yaml:"alerting"`
	Routing        Routing        `yaml:"routing"`
}

// RouteKey builds the routing table key for an audience/priority pair.
func RouteKey(audience, priority string) string {
	return audience + "/" + priority
}

var validPriorities = map[string]bool{
	"LOW": true, "MEDIUM": true, "HIGH": true, "CRITICAL": true,
}

// Validate checks the rule set for internal consistency.
func (r *Rules) Validate() error {
	if r.MinConfidence < 0 || r.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must be in [0,1], got %v", r.MinConfidence)
	}
	if r.Classification.MarketMovePct <= 0 {
		return fmt.Errorf("classification.market_move_pct must be positive")
	}
	if r.Classification.HighMovePct < r.Classification.MarketMovePct {
		return fmt.Errorf("classification.high_move_pct must be >= market_move_pct")
	}
	if r.Impact.EarlyTermWindowDays <= 0 {
		return fmt.Errorf("impact.early_term_window_days must be positive")
	}
	var prev float64
	for i, b := range r.Alerting.PnLBands {
		if !validPriorities[b.Priority] {
			return fmt.Errorf("alerting.pnl_bands[%d]: invalid priority %q", i, b.Priority)
		}
		if b.UpTo <= prev {
			return fmt.Errorf("alerting.pnl_bands[%d]: up_to values must be ascending", i)
		}
		prev = b.UpTo
	}
	prevHours := 0
	for i, b := range r.Alerting.OpsDeadlineBands {
		if !validPriorities[b.Priority] {
			return fmt.Errorf("alerting.ops_deadline_bands[%d]: invalid priority %q", i, b.Priority)
		}
		if b.WithinHours <= prevHours {
			return fmt.Errorf("alerting.ops_deadline_bands[%d]: within_hours must be ascending", i)
		}
		prevHours = b.WithinHours
	}
	if len(r.Routing.Table) == 0 {
		return fmt.Errorf("routing.table must not be empty")
	}
	for key, channels := range r.Routing.Table {
		if len(channels) == 0 {
			return fmt.Errorf("routing.table[%s]: channel list must not be empty", key)
		}
	}
	return nil
}

// Default returns the built-in rule set used when no rules file is configured.
func Default() *Rules {
	return &Rules{
		MinConfidence: 0.5,
		Classification: Classification{
			CorporateActionTypes: []string{
				"dividend", "special_dividend", "split", "reverse_split",
				"merger", "spinoff", "rights_issue",
			},
			MarketMovePct:       3.0,
			HighMovePct:         5.0,
			VolatilityThreshold: 0.40,
			Keywords: []KeywordRule{
				{Category: "market_event", Keywords: []string{
					"trading halt", "circuit breaker", "flash crash", "sell-off", "selloff",
				}},
				{Category: "corporate_action", Keywords: []string{
					"dividend", "stock split", "merger", "acquisition", "spin-off", "spinoff", "buyback",
				}},
				{Category: "economic_event", Keywords: []string{
					"fed", "rate decision", "rate hike", "rate cut", "cpi", "inflation",
					"nonfarm", "gdp", "central bank",
				}},
				{Category: "underlying_specific", Keywords: []string{
					"earnings", "guidance", "outlook", "profit warning", "downgrade", "upgrade",
				}},
			},
			SubTypeKeywords: map[string][]string{
				"earnings": {"earnings", "results", "profit warning"},
				"guidance": {"guidance", "outlook", "forecast"},
			},
		},
		Impact: Impact{
			EarlyTermWindowDays:  30,
			SensitivityThreshold: 0.70,
			Payoff: map[string]PayoffParams{
				"Barrier":  {Participation: 1.0, MaxLossPct: 1.0},
				"Autocall": {Participation: 0.6, MaxLossPct: 0.5},
				"Digital":  {Participation: 1.5, MaxLossPct: 1.0},
				"Vanilla":  {Participation: 1.0, MaxLossPct: 0},
				"Range":    {Participation: 0.8, MaxLossPct: 0.6},
				"Cliquet":  {Participation: 0.5, MaxLossPct: 0.4},
				"default":  {Participation: 1.0, MaxLossPct: 1.0},
			},
		},
		Alerting: Alerting{
			PnLBands: []Band{
				{UpTo: 100_000, Priority: "LOW"},
				{UpTo: 1_000_000, Priority: "MEDIUM"},
				{UpTo: 5_000_000, Priority: "HIGH"},
			},
			SalesCommThreshold: 50_000,
			OpsDeadlineBands: []DeadlineBand{
				{WithinHours: 4, Priority: "CRITICAL"},
				{WithinHours: 24, Priority: "HIGH"},
				{WithinHours: 72, Priority: "MEDIUM"},
			},
			OpsDefaultLeadHours: 48,
		},
		Routing: Routing{
			Table: map[string][]string{
				"TRADING/LOW":         {"trading_dashboard"},
				"TRADING/MEDIUM":      {"trading_dashboard", "chat"},
				"TRADING/HIGH":        {"trading_dashboard", "chat", "email"},
				"TRADING/CRITICAL":    {"trading_dashboard", "chat", "email", "mobile_push"},
				"SALES/LOW":           {"crm"},
				"SALES/MEDIUM":        {"crm", "email"},
				"SALES/HIGH":          {"crm", "email", "chat"},
				"SALES/CRITICAL":      {"crm", "email", "chat", "mobile_push"},
				"OPERATIONS/LOW":      {"ops_system"},
				"OPERATIONS/MEDIUM":   {"ops_system", "email"},
				"OPERATIONS/HIGH":     {"ops_system", "email", "ticketing", "mobile_push"},
				"OPERATIONS/CRITICAL": {"ops_system", "email", "ticketing", "mobile_push"},
			},
			Escalation: map[string][]string{
				"TRADING/HIGH":        {"mobile_push"},
				"TRADING/CRITICAL":    {"voice_call"},
				"SALES/CRITICAL":      {"voice_call"},
				"OPERATIONS/HIGH":     {"chat"},
				"OPERATIONS/CRITICAL": {"voice_call"},
			},
		},
	}
}
