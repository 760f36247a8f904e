package db

import (
	"context" // Request scoped cancellation
	"fmt"     // Error formatting

	"micropaper/internal/domain" // Importing domain models

	"gorm.io/gorm"        // GORM ORM library
	"gorm.io/gorm/clause" // Upsert clauses
)

// Journal is the durable mirror of the registry: wallets, issued notes and the compliance audit log
type Journal struct {
	db *gorm.DB
}

// NewJournal wraps an open GORM connection
func NewJournal(db *gorm.DB) *Journal {
	return &Journal{db: db}
}

// SaveWallet upserts the wallet verification row
func (j *Journal) SaveWallet(ctx context.Context, rec domain.WalletRecord) error {
	err := j.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},                                                                              // Primary key
		DoUpdates: clause.AssignmentColumns([]string{"is_verified", "verified_by", "investor_tier", "jurisdiction", "updated_at"}), // Refresh state
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save wallet %s: %w", rec.Address, err)
	}
	return nil
}

// SaveIssuance appends an issued note; notes are never updated
func (j *Journal) SaveIssuance(ctx context.Context, rec domain.IssuanceRecord) error {
	rec.ID = 0 // Let the database assign the key
	if err := j.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("save issuance %s: %w", rec.ISIN, err)
	}
	return nil
}

// Audit appends a compliance audit entry
func (j *Journal) Audit(ctx context.Context, entry domain.AuditEntry) error {
	if err := j.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("save audit entry: %w", err)
	}
	return nil
}

// Load reads every journaled wallet and note, oldest note first
func (j *Journal) Load(ctx context.Context) ([]domain.WalletRecord, []domain.IssuanceRecord, error) {
	var wallets []domain.WalletRecord
	if err := j.db.WithContext(ctx).Find(&wallets).Error; err != nil {
		return nil, nil, fmt.Errorf("load wallets: %w", err)
	}
	var notes []domain.IssuanceRecord
	if err := j.db.WithContext(ctx).Order("id asc").Find(&notes).Error; err != nil {
		return nil, nil, fmt.Errorf("load issuances: %w", err)
	}
	return wallets, notes, nil
}

// Ping checks the database connection
func (j *Journal) Ping(ctx context.Context) error {
	sqlDB, err := j.db.DB() // Underlying database/sql handle
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
