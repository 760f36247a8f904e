// Package issuance runs the note-issuance workflow:
// RECEIVED -> VALIDATED -> COMPLIANCE_CHECKED -> ID_GENERATED -> ISSUED,
// with an exit to REJECTED from any state. The state is internal; callers
// only ever see an ISSUED record or an error.
package issuance

import (
	"context" // Context for ledger writes
	"errors"  // Append race detection
	"time"    // Clock

	"micropaper/internal/apperr"    // Error taxonomy
	"micropaper/internal/domain"    // Importing domain models
	"micropaper/internal/metrics"   // Prometheus collectors
	"micropaper/internal/registry"  // Ledger errors and canonical keys
	"micropaper/internal/validator" // Request validation and eligibility

	"github.com/sirupsen/logrus" // Logging library
)

// State is a step of the issuance workflow
type State string

const (
	StateReceived          State = "RECEIVED"           // Request accepted for processing
	StateValidated         State = "VALIDATED"          // Every field passed
	StateComplianceChecked State = "COMPLIANCE_CHECKED" // Wallet verified and eligible
	StateIDGenerated       State = "ID_GENERATED"       // Candidate ISIN assigned
	StateIssued            State = "ISSUED"             // Appended to the ledger
	StateRejected          State = "REJECTED"           // Terminal failure
)

// appendAttempts bounds retries when a generated ISIN loses the append race
const appendAttempts = 3

// Ledger is the part of the registry the workflow needs
type Ledger interface {
	GetStatus(address string) domain.WalletRecord
	HasISIN(isin string) bool
	AppendIssuance(ctx context.Context, rec domain.IssuanceRecord) error
}

// IDGenerator produces identifiers not reported as taken
type IDGenerator interface {
	Generate(taken func(string) bool) (string, error)
	MaxAttempts() int
}

// Orchestrator ties the validator, the ledger and the identifier generator together
type Orchestrator struct {
	ledger Ledger           // Wallet state and issued notes
	ids    IDGenerator      // ISIN source
	now    func() time.Time // Clock
}

// New builds an orchestrator using the wall clock
func New(ledger Ledger, ids IDGenerator) *Orchestrator {
	return &Orchestrator{ledger: ledger, ids: ids, now: time.Now}
}

// WithClock replaces the clock, for tests
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

type run struct {
	state State         // Current step
	log   *logrus.Entry // Logger carrying the wallet
}

func (r *run) to(s State) {
	r.log.WithField("from", r.state).WithField("to", s).Debug("Issuance state transition")
	r.state = s
}

func (r *run) reject(err *apperr.Error) error {
	r.to(StateRejected)
	metrics.IssuanceRejections.WithLabelValues(err.Code).Inc()
	return err
}

// Issue validates req, checks the wallet is verified and eligible, assigns a
// unique ISIN and appends the record to the ledger. It never verifies a
// wallet as a side effect.
func (o *Orchestrator) Issue(ctx context.Context, req validator.IssuanceRequest) (domain.IssuanceRecord, error) {
	r := &run{
		state: StateReceived,
		log:   logrus.WithField("wallet", req.WalletAddress),
	}

	now := o.now().UTC() // One timestamp for validation and the record
	in, violations := validator.ValidateIssuance(req, now)
	if len(violations) > 0 {
		return domain.IssuanceRecord{}, r.reject(apperr.Validation(violations))
	}
	r.to(StateValidated)

	wallet := o.ledger.GetStatus(in.WalletAddress) // No side effect on unseen wallets
	if !wallet.IsVerified {
		return domain.IssuanceRecord{}, r.reject(apperr.Compliance(in.WalletAddress))
	}
	if !validator.Eligible(wallet.InvestorTier, wallet.Jurisdiction) {
		return domain.IssuanceRecord{}, r.reject(apperr.Ineligible(in.WalletAddress, string(wallet.InvestorTier), wallet.Jurisdiction))
	}
	r.to(StateComplianceChecked)

	var lastErr error
	for range appendAttempts {
		id, err := o.ids.Generate(o.ledger.HasISIN) // Pre-check against the ledger
		if err != nil {
			return domain.IssuanceRecord{}, r.reject(apperr.GenerationExhausted(o.ids.MaxAttempts(), err))
		}
		r.to(StateIDGenerated)

		rec := domain.IssuanceRecord{
			ISIN:          id,
			WalletAddress: registry.Canonical(in.WalletAddress),
			Amount:        in.Amount,
			MaturityDate:  in.MaturityDate,
			Status:        domain.StatusIssued,
			IssuedAt:      now,
		}
		err = o.ledger.AppendIssuance(ctx, rec) // Uniqueness enforced again under the ledger lock
		if errors.Is(err, registry.ErrDuplicateISIN) {
			metrics.ISINCollisions.Inc() // Another request took the identifier
			lastErr = err
			continue
		}
		if err != nil {
			return domain.IssuanceRecord{}, r.reject(apperr.Internal(err))
		}
		r.to(StateIssued)
		metrics.NotesIssued.Inc()
		r.log.WithFields(logrus.Fields{
			"isin":     rec.ISIN,                              // Assigned identifier
			"amount":   rec.Amount,                            // Face amount
			"maturity": rec.MaturityDate.Format(time.RFC3339), // Maturity date
		}).Info("Note issued")
		return rec, nil
	}
	return domain.IssuanceRecord{}, r.reject(apperr.GenerationExhausted(appendAttempts, lastErr))
}
