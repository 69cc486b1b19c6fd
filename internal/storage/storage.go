package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/structuredesk/riskwatch/internal/audit"
	"github.com/structuredesk/riskwatch/internal/config"
	"github.com/structuredesk/riskwatch/internal/dispatch"
	"github.com/structuredesk/riskwatch/internal/portfolio"
)

// DB wraps the GORM database connection. It backs the trade repository, the
// distribution record store and the audit log.
type DB struct {
	conn *gorm.DB
	log  *logrus.Logger
}

// New creates a new database connection with GORM.
func New(cfg *config.Config, log *logrus.Logger) (*DB, error) {
	gormLogger := logger.New(
		&gormLogAdapter{log: log},
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	conn, err := gorm.Open(mysql.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.DatabaseMaxConns)
	sqlDB.SetMaxIdleConns(cfg.DatabaseMaxConns / 2)
	sqlDB.SetConnMaxIdleTime(cfg.DatabaseMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{conn: conn, log: log}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	sqlDB, err := db.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoMigrate runs GORM auto-migration (for development only).
func (db *DB) AutoMigrate() error {
	return db.conn.AutoMigrate(
		&AppState{},
		&TradePosition{},
		&DistributionRecord{},
		&AuditEntry{},
	)
}

// GetState retrieves a state value by key.
func (db *DB) GetState(ctx context.Context, key string) (string, error) {
	var state AppState
	result := db.conn.WithContext(ctx).Where("state_key = ?", key).First(&state)
	if result.Error == gorm.ErrRecordNotFound {
		return "", nil
	}
	if result.Error != nil {
		return "", result.Error
	}
	return state.StateValue, nil
}

// SetState sets a state value.
func (db *DB) SetState(ctx context.Context, key, value string) error {
	state := AppState{
		StateKey:   key,
		StateValue: value,
		UpdatedTS:  time.Now().Unix(),
	}
	return db.conn.WithContext(ctx).Save(&state).Error
}

// TradesByUnderlying returns the live trades referencing an underlying.
// Implements portfolio.Repository; query failures surface as
// ErrRepositoryUnavailable so the pipeline fails closed.
func (db *DB) TradesByUnderlying(ctx context.Context, underlying string) ([]portfolio.Trade, error) {
	var rows []TradePosition
	result := db.conn.WithContext(ctx).
		Where("underlying = ? AND status = ?", underlying, "LIVE").
		Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("%w: %v", portfolio.ErrRepositoryUnavailable, result.Error)
	}

	trades := make([]portfolio.Trade, 0, len(rows))
	for _, row := range rows {
		trades = append(trades, portfolio.Trade{
			TradeID:          row.TradeID,
			Underlying:       row.Underlying,
			ProductType:      row.ProductType,
			BarrierType:      portfolio.BarrierType(row.BarrierType),
			BarrierLevel:     row.BarrierLevel,
			UpperBarrier:     row.UpperBarrier,
			Strike:           row.Strike,
			Notional:         row.Notional,
			Currency:         row.Currency,
			ClientID:         row.ClientID,
			ClientTier:       portfolio.ClientTier(row.ClientTier),
			Status:           row.Status,
			MaturityDate:     row.MaturityDate,
			SensitivityScore: row.SensitivityScore,
		})
	}
	return trades, nil
}

// SaveRecord upserts a distribution record. Implements dispatch.RecordStore.
func (db *DB) SaveRecord(ctx context.Context, rec *dispatch.Record) error {
	row := DistributionRecord{
		AlertID:       rec.AlertID,
		Channel:       rec.Channel,
		Attempts:      rec.Attempts,
		LastAttemptTS: rec.LastAttemptAt.Unix(),
		Status:        string(rec.Status),
		LastError:     rec.Error,
	}
	return db.conn.WithContext(ctx).Save(&row).Error
}

// InsertAuditEntry appends an audit record. Implements audit.EntryWriter.
func (db *DB) InsertAuditEntry(ctx context.Context, e *audit.Entry) error {
	row := AuditEntry{
		EventID:         e.EventID,
		Status:          string(e.Status),
		Reason:          e.Reason,
		Source:          e.Source,
		Category:        e.Category,
		Severity:        e.Severity,
		NeedsReview:     e.NeedsReview,
		Degraded:        e.Degraded,
		CandidateTrades: e.CandidateTrades,
		ImpactedTrades:  e.ImpactedTrades,
		AlertCount:      e.AlertCount,
		CreatedTS:       e.RecordedAt.Unix(),
	}
	return db.conn.WithContext(ctx).Create(&row).Error
}

// gormLogAdapter adapts logrus to GORM's logger interface.
type gormLogAdapter struct {
	log *logrus.Logger
}

func (l *gormLogAdapter) Printf(format string, args ...interface{}) {
	l.log.Debugf(format, args...)
}
