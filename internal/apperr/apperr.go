// Package apperr defines the error taxonomy shared by the engine and the HTTP boundary.
package apperr

import (
	"errors"   // Error unwrapping
	"fmt"      // Message formatting
	"net/http" // HTTP status codes
)

// Kind classifies an error for propagation and status mapping
type Kind int

const (
	KindInternal            Kind = iota // Unexpected fault
	KindValidation                      // Field level violations
	KindCompliance                      // Wallet not verified
	KindIneligible                      // Investor tier or jurisdiction excluded
	KindNotFound                        // Missing entity or route
	KindMethodNotAllowed                // Route exists for another method
	KindGenerationExhausted             // ISIN retries ran out
	KindUnauthorized                    // Missing or wrong API key
	KindForbidden                       // Missing or wrong admin key
	KindRateLimited                     // Client over budget
)

// Wire codes
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeWalletNotVerified   = "WALLET_NOT_VERIFIED"
	CodeInvestorIneligible  = "INVESTOR_NOT_ELIGIBLE"
	CodeNotFound            = "NOT_FOUND"
	CodeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
	CodeGenerationExhausted = "ISIN_GENERATION_EXHAUSTED"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeRateLimited         = "RATE_LIMIT_EXCEEDED"
	CodeInternal            = "INTERNAL_SERVER_ERROR"
)

// FieldViolation is one field-level problem in a request
type FieldViolation struct {
	Field   string `json:"field"`   // Wire name of the field
	Issue   string `json:"issue"`   // Machine readable issue code
	Message string `json:"message"` // Human readable explanation
}

// Error is the single error type crossing package boundaries
type Error struct {
	Kind    Kind             // Classification
	Code    string           // Wire code
	Message string           // Safe message for clients
	Details []FieldViolation // Validation details
	Err     error            // Underlying cause, never sent unless debugging
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Status maps the kind to an HTTP status code
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation, KindCompliance, KindIneligible:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Validation builds a ValidationError carrying every violation
func Validation(details []FieldViolation) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    CodeValidation,
		Message: "Request validation failed",
		Details: details,
	}
}

// Compliance builds the error returned when a wallet is not verified
func Compliance(address string) *Error {
	return &Error{
		Kind:    KindCompliance,
		Code:    CodeWalletNotVerified,
		Message: fmt.Sprintf("Wallet %s is not verified", address),
	}
}

// Ineligible is returned when a verified investor may not hold notes
func Ineligible(address, tier, jurisdiction string) *Error {
	return &Error{
		Kind:    KindIneligible,
		Code:    CodeInvestorIneligible,
		Message: fmt.Sprintf("Wallet %s is not eligible: %s investors in %s may not hold notes", address, tier, jurisdiction),
	}
}

// NotFound is reserved for entities whose presence is required
func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: what + " not found"}
}

// MethodNotAllowed is returned when the path exists under another method
func MethodNotAllowed(method string) *Error {
	return &Error{Kind: KindMethodNotAllowed, Code: CodeMethodNotAllowed, Message: "Method " + method + " not allowed"}
}

// GenerationExhausted reports that identifier generation ran out of attempts
func GenerationExhausted(attempts int, err error) *Error {
	return &Error{
		Kind:    KindGenerationExhausted,
		Code:    CodeGenerationExhausted,
		Message: fmt.Sprintf("Could not generate a unique ISIN after %d attempts", attempts),
		Err:     err,
	}
}

// Unauthorized is returned by the credential check
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Code: CodeUnauthorized, Message: message}
}

// Forbidden is returned by the admin credential check
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Code: CodeForbidden, Message: message}
}

// RateLimited is returned when a client exhausts its request budget
func RateLimited() *Error {
	return &Error{Kind: KindRateLimited, Code: CodeRateLimited, Message: "Too many requests"}
}

// Internal wraps an unexpected fault
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: "An unexpected error occurred", Err: err}
}

// As extracts an *Error from err, wrapping anything else as Internal
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e // Already classified
	}
	return Internal(err)
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
