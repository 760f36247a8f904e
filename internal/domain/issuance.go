package domain

import "time" // Record timestamps

// NoteStatus is the persisted status of an issued note
type NoteStatus string

// StatusIssued is the only persisted status; notes are immutable once issued
const StatusIssued NoteStatus = "ISSUED"

// IssuanceRecord Model
type IssuanceRecord struct {
	ID            uint       `gorm:"primaryKey" json:"-"`                         // Journal primary key
	ISIN          string     `gorm:"uniqueIndex;size:12;not null" json:"isin"`    // Generated identifier
	WalletAddress string     `gorm:"index;size:42;not null" json:"walletAddress"` // Verified owning wallet
	Amount        int64      `gorm:"not null" json:"amount"`                      // Face amount, multiple of the unit size
	MaturityDate  time.Time  `gorm:"not null" json:"maturityDate"`                // Maturity, within the horizon
	Status        NoteStatus `gorm:"size:50;not null" json:"status"`              // Always ISSUED
	IssuedAt      time.Time  `gorm:"not null" json:"issuedAt"`                    // Creation time
}

// TableName sets the journal table name
func (IssuanceRecord) TableName() string {
	return "note_issuances"
}
