package impact

// Type identifies how an event affects a trade.
type Type string

const (
	TypeNone                 Type = "NONE"
	TypeBarrierTriggered     Type = "BARRIER_TRIGGERED"
	TypeCorporateAction      Type = "CORPORATE_ACTION"
	TypeEarlyTerminationRisk Type = "EARLY_TERMINATION_RISK"
	TypeAssessmentError      Type = "ASSESSMENT_ERROR"
)

// BarrierStatus describes a barrier state transition caused by an event.
type BarrierStatus string

const (
	BarrierUnchanged     BarrierStatus = ""
	KnockedIn            BarrierStatus = "KNOCKED_IN"
	KnockedOut           BarrierStatus = "KNOCKED_OUT"
	AutocallLevelTouched BarrierStatus = "AUTOCALL_LEVEL_TOUCHED"
)

// Audience keys for the per-audience action lists. The alert package's
// Audience constants carry the same values.
const (
	AudienceTrading    = "TRADING"
	AudienceSales      = "SALES"
	AudienceOperations = "OPERATIONS"
)

// Analysis is the outcome of assessing one event against one trade. Computed
// fresh per event, never persisted beyond the audit tap.
type Analysis struct {
	TradeID             string
	Impacted            bool
	Type                Type
	PnLEstimate         float64 // signed; losses negative
	BarrierStatusChange BarrierStatus
	AdjustedReference   float64 // post-corporate-action effective price, 0 if n/a
	Note                string
	RequiredActions     map[string][]string // audience -> ordered action list
}

// none returns the zeroed not-impacted analysis for a trade.
func none(tradeID string) Analysis {
	return Analysis{TradeID: tradeID, Type: TypeNone}
}
