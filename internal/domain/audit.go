package domain

import "time"

// Audit actions
const (
	AuditCheckStatus = "check_status" // Status lookup
	AuditVerify      = "verify"       // Wallet verification
)

// AuditEntry Model
type AuditEntry struct {
	ID            uint      `gorm:"primaryKey"`             // Primary key
	WalletAddress string    `gorm:"index;size:42;not null"` // Wallet concerned
	Action        string    `gorm:"size:50;not null"`       // check_status or verify
	PerformedBy   string    `gorm:"size:255"`               // Actor, empty for reads
	RequestID     string    `gorm:"index;size:255"`         // Correlation id of the request
	Timestamp     time.Time `gorm:"not null"`               // When the action happened
}

// TableName sets the journal table name
func (AuditEntry) TableName() string {
	return "compliance_audit_logs"
}
