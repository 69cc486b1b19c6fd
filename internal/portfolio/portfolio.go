package portfolio

import (
	"context"
	"errors"
	"time"
)

// BarrierType identifies the barrier feature of a structured trade.
type BarrierType string

const (
	BarrierNone   BarrierType = "NONE"
	KnockIn       BarrierType = "KNOCK_IN"
	KnockOut      BarrierType = "KNOCK_OUT"
	Autocall      BarrierType = "AUTOCALL"
	DoubleBarrier BarrierType = "DOUBLE_BARRIER"
)

// ClientTier grades the client relationship for alert escalation.
type ClientTier string

const (
	TierStandard ClientTier = "STANDARD"
	TierGold     ClientTier = "GOLD"
	TierPlatinum ClientTier = "PLATINUM"
)

// Trade is the read-only view of a booked position the monitor assesses
// against. Owned by the trade repository; never mutated here.
type Trade struct {
	TradeID          string
	Underlying       string
	ProductType      string // Barrier, Autocall, Digital, Vanilla, Range, Cliquet
	BarrierType      BarrierType
	BarrierLevel     float64
	UpperBarrier     float64 // upper leg of DOUBLE_BARRIER trades
	Strike           float64
	Notional         float64
	Currency         string
	ClientID         string
	ClientTier       ClientTier
	Status           string
	MaturityDate     time.Time
	SensitivityScore float64 // historical sensitivity to event-driven unwinds, 0-1
}

// TenorRemaining returns the time left to maturity as of now.
func (t Trade) TenorRemaining(now time.Time) time.Duration {
	return t.MaturityDate.Sub(now)
}

// ErrRepositoryUnavailable signals that candidate trades could not be fetched.
// The whole event fails closed on this error; it is never safe to assume zero
// impacted trades.
var ErrRepositoryUnavailable = errors.New("trade repository unavailable")

// Repository returns candidate trades referencing an underlying. Snapshots
// must be consistent: no partial trade records.
type Repository interface {
	TradesByUnderlying(ctx context.Context, underlying string) ([]Trade, error)
}
