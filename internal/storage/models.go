package storage

import (
	"time"

	"gorm.io/gorm"
)

// AppState stores small key/value state, e.g. the feed poll checkpoint.
type AppState struct {
	StateKey   string `gorm:"primaryKey;size:64"`
	StateValue string `gorm:"type:text;not null"`
	UpdatedTS  int64  `gorm:"not null;index"`
}

func (AppState) TableName() string {
	return "app_state"
}

// TradePosition is the booked-trade snapshot the monitor assesses against.
// Written by upstream booking systems; the monitor reads it only.
type TradePosition struct {
	TradeID          string    `gorm:"primaryKey;size:64"`
	Underlying       string    `gorm:"size:32;not null;index"`
	ProductType      string    `gorm:"size:32;not null"`
	BarrierType      string    `gorm:"size:16;not null;default:NONE"`
	BarrierLevel     float64   `gorm:"type:decimal(20,6);default:0"`
	UpperBarrier     float64   `gorm:"type:decimal(20,6);default:0"`
	Strike           float64   `gorm:"type:decimal(20,6);default:0"`
	Notional         float64   `gorm:"type:decimal(20,2);not null"`
	Currency         string    `gorm:"size:8;not null;default:USD"`
	ClientID         string    `gorm:"size:64;not null;index"`
	ClientTier       string    `gorm:"size:16;not null;default:STANDARD"`
	Status           string    `gorm:"size:16;not null;default:LIVE;index"`
	MaturityDate     time.Time `gorm:"index"`
	SensitivityScore float64   `gorm:"type:decimal(5,4);default:0"`
	UpdatedTS        int64     `gorm:"not null"`
}

func (TradePosition) TableName() string {
	return "trade_positions"
}

// DistributionRecord tracks one (alert, channel) delivery.
type DistributionRecord struct {
	AlertID       string `gorm:"primaryKey;size:64"`
	Channel       string `gorm:"primaryKey;size:32"`
	Attempts      int    `gorm:"not null;default:0"`
	LastAttemptTS int64  `gorm:"not null;index"`
	Status        string `gorm:"size:16;not null;index"`
	LastError     string `gorm:"size:512"`
	CreatedTS     int64  `gorm:"not null"`
}

func (DistributionRecord) TableName() string {
	return "distribution_records"
}

// AuditEntry is the append-only per-event audit record.
type AuditEntry struct {
	ID              int64  `gorm:"primaryKey;autoIncrement"`
	EventID         string `gorm:"size:64;not null;index"`
	Status          string `gorm:"size:32;not null;index"`
	Reason          string `gorm:"size:512"`
	Source          string `gorm:"size:64"`
	Category        string `gorm:"size:32"`
	Severity        string `gorm:"size:16"`
	NeedsReview     bool   `gorm:"default:false"`
	Degraded        bool   `gorm:"default:false"`
	CandidateTrades int    `gorm:"not null;default:0"`
	ImpactedTrades  int    `gorm:"not null;default:0"`
	AlertCount      int    `gorm:"not null;default:0"`
	CreatedTS       int64  `gorm:"not null;index"`
}

func (AuditEntry) TableName() string {
	return "audit_log"
}

// BeforeCreate hooks for timestamps
func (a *AppState) BeforeCreate(tx *gorm.DB) error {
	if a.UpdatedTS == 0 {
		a.UpdatedTS = time.Now().Unix()
	}
	return nil
}

func (t *TradePosition) BeforeCreate(tx *gorm.DB) error {
	if t.UpdatedTS == 0 {
		t.UpdatedTS = time.Now().Unix()
	}
	return nil
}

func (d *DistributionRecord) BeforeCreate(tx *gorm.DB) error {
	if d.CreatedTS == 0 {
		d.CreatedTS = time.Now().Unix()
	}
	return nil
}

func (a *AuditEntry) BeforeCreate(tx *gorm.DB) error {
	if a.CreatedTS == 0 {
		a.CreatedTS = time.Now().Unix()
	}
	return nil
}
