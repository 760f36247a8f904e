package domain

// ComplianceStats is derived from the registry on demand and never stored
type ComplianceStats struct {
	TotalWallets      int    `json:"totalWallets"`      // Materialized wallets
	VerifiedWallets   int    `json:"verifiedWallets"`   // Verified wallets
	UnverifiedWallets int    `json:"unverifiedWallets"` // Known but not verified
	VerificationRate  string `json:"verificationRate"`  // Percentage with two decimals
}
