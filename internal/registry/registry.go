// Package registry is the authoritative in-memory store of wallet
// verification state and the append-only issuance ledger.
//
// Callers must validate addresses before handing them to the registry.
// Reads never materialize a wallet: an unknown address is reported as
// unverified but does not count toward Stats.
package registry

import (
	"context" // Context for mirror writes
	"errors"  // Sentinel errors
	"fmt"     // Rate formatting
	"sort"    // Ordered verified list
	"strings" // Address canonicalisation
	"sync"    // Single registry lock
	"time"    // Record timestamps

	"micropaper/internal/domain" // Importing domain models

	"github.com/sirupsen/logrus" // Logging library
)

// ErrDuplicateISIN is returned by AppendIssuance when the identifier is already on the ledger
var ErrDuplicateISIN = errors.New("registry: isin already issued")

// Verifier names recorded on wallets
const (
	VerifiedBySeed  = "seed"       // Demo wallets seeded at start
	VerifiedByAdmin = "admin_demo" // Verified through the admin endpoint
)

// Mirror receives committed mutations for durable storage. Failures are
// logged and never roll back the in-memory state.
type Mirror interface {
	SaveWallet(ctx context.Context, rec domain.WalletRecord) error
	SaveIssuance(ctx context.Context, rec domain.IssuanceRecord) error
}

// Registry guards all state with a single RWMutex
type Registry struct {
	mu         sync.RWMutex
	wallets    map[string]domain.WalletRecord // Keyed by canonical address
	issuances  []domain.IssuanceRecord        // Ledger in append order
	byISIN     map[string]int                 // ISIN to ledger index
	generation uint64                         // Bumped when the verification set changes

	mirror Mirror           // Optional durable copy
	now    func() time.Time // Clock
}

// New creates an empty registry. mirror may be nil.
func New(mirror Mirror) *Registry {
	return &Registry{
		wallets:    make(map[string]domain.WalletRecord),
		byISIN:     make(map[string]int),
		generation: uint64(time.Now().UnixNano()), // Distinct across restarts
		mirror:     mirror,
		now:        time.Now,
	}
}

// Canonical returns the registry key for an address
func Canonical(address string) string {
	return strings.ToLower(address)
}

// GetStatus returns the record for address, synthesizing an unverified one when unseen
func (r *Registry) GetStatus(address string) domain.WalletRecord {
	key := Canonical(address)
	r.mu.RLock()
	rec, ok := r.wallets[key]
	r.mu.RUnlock()
	if !ok {
		return domain.WalletRecord{Address: key} // Lazy default, not stored
	}
	return rec
}

// Verify marks address verified. Verifying an already verified wallet
// returns the stored record unchanged and reports changed=false.
func (r *Registry) Verify(ctx context.Context, address, verifiedBy string) (rec domain.WalletRecord, changed bool) {
	key := Canonical(address)

	r.mu.Lock()
	existing, ok := r.wallets[key]
	if ok && existing.IsVerified {
		r.mu.Unlock()
		return existing, false // Idempotent
	}
	rec = existing // Keeps a restored investor profile
	rec.Address = key
	rec.IsVerified = true
	rec.VerifiedBy = verifiedBy
	rec.UpdatedAt = r.now().UTC()
	r.wallets[key] = rec
	r.generation++
	r.mu.Unlock()

	r.mirrorWallet(ctx, rec) // Outside the lock
	return rec, true
}

// Classify records the investor tier and jurisdiction of a known wallet.
// Unknown wallets are left alone and reported with ok=false.
func (r *Registry) Classify(ctx context.Context, address string, tier domain.InvestorTier, jurisdiction string) (rec domain.WalletRecord, ok bool) {
	key := Canonical(address)

	r.mu.Lock()
	rec, ok = r.wallets[key]
	if !ok {
		r.mu.Unlock()
		return domain.WalletRecord{Address: key}, false
	}
	if rec.InvestorTier == tier && rec.Jurisdiction == jurisdiction {
		r.mu.Unlock()
		return rec, true // Nothing to write
	}
	rec.InvestorTier = tier
	rec.Jurisdiction = jurisdiction
	rec.UpdatedAt = r.now().UTC()
	r.wallets[key] = rec
	r.mu.Unlock()

	r.mirrorWallet(ctx, rec) // Outside the lock
	return rec, true
}

// Seed inserts pre-verified demo wallets. Addresses already known are left
// alone, so repeated calls never duplicate entries. Returns how many were added.
func (r *Registry) Seed(ctx context.Context, addresses []string) int {
	var added []domain.WalletRecord

	r.mu.Lock()
	now := r.now().UTC()
	for _, address := range addresses {
		key := Canonical(address)
		if existing, ok := r.wallets[key]; ok && existing.IsVerified {
			continue // Already verified
		}
		rec := domain.WalletRecord{Address: key, IsVerified: true, VerifiedBy: VerifiedBySeed, UpdatedAt: now}
		r.wallets[key] = rec
		added = append(added, rec)
	}
	if len(added) > 0 {
		r.generation++
	}
	r.mu.Unlock()

	for _, rec := range added {
		r.mirrorWallet(ctx, rec) // Outside the lock
	}
	return len(added)
}

// Generation identifies the current verification set. It changes whenever
// Stats or ListVerified could return something different.
func (r *Registry) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}

// Stats aggregates over every materialized wallet
func (r *Registry) Stats() domain.ComplianceStats {
	stats, _ := r.StatsAt()
	return stats
}

// StatsAt returns Stats together with the generation it was computed at
func (r *Registry) StatsAt() (domain.ComplianceStats, uint64) {
	r.mu.RLock()
	total := len(r.wallets)
	verified := 0
	for _, rec := range r.wallets {
		if rec.IsVerified {
			verified++
		}
	}
	gen := r.generation
	r.mu.RUnlock()

	return domain.ComplianceStats{
		TotalWallets:      total,            // Materialized wallets
		VerifiedWallets:   verified,         // Verified wallets
		UnverifiedWallets: total - verified, // The rest
		VerificationRate:  FormatRate(verified, total),
	}, gen
}

// FormatRate renders verified/total as a percentage with two decimals, "0%" when total is zero
func FormatRate(verified, total int) string {
	if total == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.2f%%", float64(verified)/float64(total)*100)
}

// ListVerified returns every verified address in lexical order
func (r *Registry) ListVerified() []string {
	out, _ := r.ListVerifiedAt()
	return out
}

// ListVerifiedAt returns ListVerified together with the generation it was read at
func (r *Registry) ListVerifiedAt() ([]string, uint64) {
	r.mu.RLock()
	out := make([]string, 0, len(r.wallets))
	for key, rec := range r.wallets {
		if rec.IsVerified {
			out = append(out, key)
		}
	}
	gen := r.generation
	r.mu.RUnlock()
	sort.Strings(out)
	return out, gen
}

// HasISIN reports whether the identifier is already on the ledger
func (r *Registry) HasISIN(isin string) bool {
	r.mu.RLock()
	_, ok := r.byISIN[isin]
	r.mu.RUnlock()
	return ok
}

// AppendIssuance adds rec to the ledger. The ISIN uniqueness check and the
// append happen in one critical section.
func (r *Registry) AppendIssuance(ctx context.Context, rec domain.IssuanceRecord) error {
	rec.WalletAddress = Canonical(rec.WalletAddress)

	r.mu.Lock()
	if _, ok := r.byISIN[rec.ISIN]; ok {
		r.mu.Unlock()
		return ErrDuplicateISIN // Lost the race for this identifier
	}
	r.byISIN[rec.ISIN] = len(r.issuances)
	r.issuances = append(r.issuances, rec)
	r.mu.Unlock()

	if r.mirror != nil {
		if err := r.mirror.SaveIssuance(ctx, rec); err != nil {
			logrus.WithFields(logrus.Fields{
				"isin":  rec.ISIN,    // Identifier
				"error": err.Error(), // Journal failure
			}).Error("Failed to journal issuance")
		}
	}
	return nil
}

// Issuance looks up a ledger entry by ISIN
func (r *Registry) Issuance(isin string) (domain.IssuanceRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byISIN[isin]
	if !ok {
		return domain.IssuanceRecord{}, false
	}
	return r.issuances[i], true
}

// Issuances returns a copy of the ledger, optionally filtered by wallet
func (r *Registry) Issuances(address string) []domain.IssuanceRecord {
	key := Canonical(address)
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.IssuanceRecord, 0, len(r.issuances))
	for _, rec := range r.issuances {
		if key == "" || rec.WalletAddress == key {
			out = append(out, rec)
		}
	}
	return out
}

// Restore loads journaled state without writing back to the mirror.
// Records already in memory win over restored ones.
func (r *Registry) Restore(wallets []domain.WalletRecord, issuances []domain.IssuanceRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range wallets {
		key := Canonical(rec.Address)
		if _, ok := r.wallets[key]; ok {
			continue // In-memory record wins
		}
		rec.Address = key
		r.wallets[key] = rec
	}
	for _, rec := range issuances {
		if _, ok := r.byISIN[rec.ISIN]; ok {
			continue // Already on the ledger
		}
		rec.WalletAddress = Canonical(rec.WalletAddress)
		r.byISIN[rec.ISIN] = len(r.issuances)
		r.issuances = append(r.issuances, rec)
	}
	r.generation++
}

func (r *Registry) mirrorWallet(ctx context.Context, rec domain.WalletRecord) {
	if r.mirror == nil {
		return // No journal configured
	}
	if err := r.mirror.SaveWallet(ctx, rec); err != nil {
		logrus.WithFields(logrus.Fields{
			"wallet": rec.Address, // Canonical wallet
			"error":  err.Error(), // Journal failure
		}).Error("Failed to journal wallet verification")
	}
}
