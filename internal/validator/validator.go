// Package validator checks the shape and business constraints of incoming
// requests. It never fails on malformed input: problems come back as
// field-level violations.
package validator

import (
	"bytes"         // Raw JSON inspection
	"encoding/json" // Field by field decoding
	"errors"        // Decode errors
	"fmt"           // Message formatting
	"math"          // Integral float checks
	"regexp"        // Format patterns
	"strconv"       // Number parsing
	"strings"       // Trimming and case folding
	"time"          // Maturity window

	"micropaper/internal/apperr" // Error taxonomy
	"micropaper/internal/domain" // Investor tiers
)

const (
	UnitSize        int64 = 10000 // Granularity of a note's face amount
	MaxMaturityDays       = 270   // How far out a note may mature
)

// Field names as they appear on the wire
const (
	FieldWalletAddress = "walletAddress"
	FieldAmount        = "amount"
	FieldMaturityDate  = "maturityDate"
	FieldInvestorTier  = "investorTier"
	FieldJurisdiction  = "jurisdiction"
	FieldBody          = "body"
)

// Issue codes
const (
	IssueRequired      = "required"
	IssueInvalidFormat = "invalid_format"
	IssueNotInteger    = "not_integer"
	IssueBelowMinimum  = "below_minimum"
	IssueNotMultiple   = "not_multiple"
	IssueInPast        = "in_past"
	IssueBeyondHorizon = "beyond_horizon"
	IssueMalformedBody = "malformed_body"
)

// maxExactFloat is the largest magnitude where every integer is representable in a float64
const maxExactFloat = 1 << 53

var (
	addressPattern      = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`) // 0x + 40 hex
	jurisdictionPattern = regexp.MustCompile(`^[A-Za-z]{2,10}$`)    // ISO style region code
)

var dateLayouts = []string{
	time.RFC3339Nano,      // Full ISO-8601 with offset
	"2006-01-02T15:04:05", // Local date-time, read as UTC
	"2006-01-02",          // Date only, midnight UTC
}

var errNotObject = errors.New("request body must be a JSON object")

// IssuanceRequest is the raw issuance payload. Decoding is done field by field:
// a field of the wrong JSON type is recorded against that field and the
// other fields are still validated.
type IssuanceRequest struct {
	WalletAddress string      `json:"walletAddress"`
	Amount        json.Number `json:"amount"`
	MaturityDate  string      `json:"maturityDate"`

	typeErrs Violations // Type mismatches found while decoding
}

// UnmarshalJSON decodes the payload, failing only when it is not a JSON object
func (r *IssuanceRequest) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err // Syntax error or not an object
	}
	if raw == nil {
		return errNotObject // Literal null
	}
	*r = IssuanceRequest{}
	if v, ok := raw[FieldWalletAddress]; ok {
		s, ok := decodeString(v)
		if !ok {
			r.typeErrs.add(FieldWalletAddress, IssueInvalidFormat, "walletAddress must be a string")
		}
		r.WalletAddress = s
	}
	if v, ok := raw[FieldAmount]; ok {
		n, ok := decodeNumber(v)
		if !ok {
			r.typeErrs.add(FieldAmount, IssueNotInteger, "amount must be an integer number")
		}
		r.Amount = n
	}
	if v, ok := raw[FieldMaturityDate]; ok {
		s, ok := decodeString(v)
		if !ok {
			r.typeErrs.add(FieldMaturityDate, IssueInvalidFormat, "maturityDate must be an ISO-8601 string")
		}
		r.MaturityDate = s
	}
	return nil
}

// Issuance is a validated, typed issuance request
type Issuance struct {
	WalletAddress string
	Amount        int64
	MaturityDate  time.Time
}

// VerifyRequest is the optional payload of a verification
type VerifyRequest struct {
	InvestorTier string `json:"investorTier"` // retail, accredited or institutional
	Jurisdiction string `json:"jurisdiction"` // Region code such as US
}

// Violations accumulates field violations
type Violations []apperr.FieldViolation

func (v *Violations) add(field, issue, message string) {
	*v = append(*v, apperr.FieldViolation{Field: field, Issue: issue, Message: message})
}

func (v Violations) find(field string) (apperr.FieldViolation, bool) {
	for _, fv := range v {
		if fv.Field == field {
			return fv, true
		}
	}
	return apperr.FieldViolation{}, false
}

// Err returns a ValidationError when any violation was recorded
func (v Violations) Err() error {
	if len(v) == 0 {
		return nil
	}
	return apperr.Validation(v)
}

// ValidateAddress checks the wallet address format. Case is preserved.
func ValidateAddress(address string) (string, Violations) {
	var v Violations
	address = strings.TrimSpace(address)
	switch {
	case address == "":
		v.add(FieldWalletAddress, IssueRequired, "walletAddress is required")
	case !addressPattern.MatchString(address):
		v.add(FieldWalletAddress, IssueInvalidFormat, "walletAddress must be 0x followed by 40 hex characters")
	}
	return address, v
}

// ValidateAmount checks that the amount is a positive integer multiple of UnitSize
func ValidateAmount(raw json.Number) (int64, Violations) {
	var v Violations
	s := strings.TrimSpace(raw.String())
	if s == "" {
		v.add(FieldAmount, IssueRequired, "amount is required")
		return 0, v
	}
	n, ok := parseInteger(s)
	if !ok {
		v.add(FieldAmount, IssueNotInteger, "amount must be an integer")
		return 0, v
	}
	switch {
	case n < UnitSize:
		v.add(FieldAmount, IssueBelowMinimum, fmt.Sprintf("amount must be at least %d", UnitSize))
	case n%UnitSize != 0:
		v.add(FieldAmount, IssueNotMultiple, fmt.Sprintf("amount is not a multiple of %d", UnitSize))
	}
	return n, v
}

// ValidateMaturity checks that the maturity is strictly after now and within the horizon
func ValidateMaturity(raw string, now time.Time) (time.Time, Violations) {
	var v Violations
	raw = strings.TrimSpace(raw)
	if raw == "" {
		v.add(FieldMaturityDate, IssueRequired, "maturityDate is required")
		return time.Time{}, v
	}
	t, ok := parseDate(raw)
	if !ok {
		v.add(FieldMaturityDate, IssueInvalidFormat, "maturityDate must be an ISO-8601 date-time")
		return time.Time{}, v
	}
	horizon := now.AddDate(0, 0, MaxMaturityDays) // Inclusive upper bound
	switch {
	case !t.After(now):
		v.add(FieldMaturityDate, IssueInPast, "maturityDate must be in the future")
	case t.After(horizon):
		v.add(FieldMaturityDate, IssueBeyondHorizon, fmt.Sprintf("maturityDate exceeds the maximum horizon of %d days", MaxMaturityDays))
	}
	return t, v
}

// ValidateIssuance validates every field and returns the union of violations.
// A field that failed to decode reports its type violation and skips its rules.
func ValidateIssuance(req IssuanceRequest, now time.Time) (Issuance, Violations) {
	var in Issuance
	var v Violations
	if fv, bad := req.typeErrs.find(FieldWalletAddress); bad {
		v = append(v, fv)
	} else {
		address, av := ValidateAddress(req.WalletAddress)
		in.WalletAddress = address
		v = append(v, av...)
	}
	if fv, bad := req.typeErrs.find(FieldAmount); bad {
		v = append(v, fv)
	} else {
		amount, av := ValidateAmount(req.Amount)
		in.Amount = amount
		v = append(v, av...)
	}
	if fv, bad := req.typeErrs.find(FieldMaturityDate); bad {
		v = append(v, fv)
	} else {
		maturity, mv := ValidateMaturity(req.MaturityDate, now)
		in.MaturityDate = maturity
		v = append(v, mv...)
	}
	return in, v
}

// ValidateProfile checks the optional investor tier and jurisdiction.
// Both come back normalized: tier lower-case, jurisdiction upper-case.
func ValidateProfile(req VerifyRequest) (domain.InvestorTier, string, Violations) {
	var v Violations
	tier := domain.InvestorTier(strings.ToLower(strings.TrimSpace(req.InvestorTier)))
	switch tier {
	case "", domain.TierRetail, domain.TierAccredited, domain.TierInstitutional:
	default:
		v.add(FieldInvestorTier, IssueInvalidFormat, "investorTier must be retail, accredited or institutional")
	}
	jurisdiction := strings.ToUpper(strings.TrimSpace(req.Jurisdiction))
	if jurisdiction != "" && !jurisdictionPattern.MatchString(jurisdiction) {
		v.add(FieldJurisdiction, IssueInvalidFormat, "jurisdiction must be 2 to 10 letters")
	}
	return tier, jurisdiction, v
}

// Eligible applies the investment eligibility rule: retail investors in the
// US may not hold notes. A wallet missing either attribute is eligible.
func Eligible(tier domain.InvestorTier, jurisdiction string) bool {
	if tier == "" || jurisdiction == "" {
		return true
	}
	return !(strings.EqualFold(jurisdiction, "US") && strings.EqualFold(string(tier), string(domain.TierRetail)))
}

// MalformedBody is the violation reported when the payload is not decodable
func MalformedBody(err error) Violations {
	var v Violations
	v.add(FieldBody, IssueMalformedBody, "request body must be a JSON object: "+err.Error())
	return v
}

// decodeString accepts a JSON string or null
func decodeString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, []byte("null")) {
		return "", true // Treated as absent
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// decodeNumber accepts a JSON number, a numeric string or null
func decodeNumber(raw json.RawMessage) (json.Number, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", true // Treated as absent
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return json.Number(strings.TrimSpace(s)), true // Rules decide if it is an integer
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", false // Booleans, arrays, objects
	}
	return n, true
}

// parseInteger accepts integer literals and integral floats such as 100000.0
func parseInteger(s string) (int64, bool) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > maxExactFloat {
		return 0, false
	}
	return int64(f), true
}

func parseDate(raw string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
