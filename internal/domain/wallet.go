package domain

import "time" // Record timestamps

// InvestorTier classifies a wallet holder for eligibility rules
type InvestorTier string

// Investor tiers
const (
	TierRetail        InvestorTier = "retail"
	TierAccredited    InvestorTier = "accredited"
	TierInstitutional InvestorTier = "institutional"
)

// WalletRecord Model
type WalletRecord struct {
	Address      string       `gorm:"primaryKey;size:42" json:"address"`           // Lower-case 0x-prefixed address
	IsVerified   bool         `gorm:"not null;default:false" json:"isVerified"`    // Compliance state
	VerifiedBy   string       `gorm:"size:255" json:"verifiedBy,omitempty"`        // Who verified the wallet
	InvestorTier InvestorTier `gorm:"index;size:20" json:"investorTier,omitempty"` // retail, accredited or institutional
	Jurisdiction string       `gorm:"index;size:10" json:"jurisdiction,omitempty"` // Upper-case jurisdiction code such as US or SG
	UpdatedAt    time.Time    `json:"updatedAt"`                                   // Last mutation time
}

// TableName sets the journal table name
func (WalletRecord) TableName() string {
	return "wallet_verifications"
}
