package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error with a code and message
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Error codes
const (
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeInternal      = "INTERNAL_ERROR"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeStaleProposal = "STALE_PROPOSAL"
	ErrCodeProvider      = "PROVIDER_ERROR"
	ErrCodeProviderFatal = "PROVIDER_FATAL"
	ErrCodeScorer        = "SCORER_ERROR"
)

// Error constructors

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource string) error {
	return &DomainError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// NewValidationError creates a new validation error
func NewValidationError(msg string) error {
	return &DomainError{
		Code:    ErrCodeValidation,
		Message: msg,
	}
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError() error {
	return &DomainError{
		Code:    ErrCodeUnauthorized,
		Message: "Authentication required",
	}
}

// NewForbiddenError creates a new forbidden error
func NewForbiddenError(msg string) error {
	return &DomainError{
		Code:    ErrCodeForbidden,
		Message: msg,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(err error) error {
	return &DomainError{
		Code:    ErrCodeInternal,
		Message: "An internal error occurred",
		Err:     err,
	}
}

// NewConflictError creates a new conflict error
func NewConflictError(msg string) error {
	return &DomainError{
		Code:    ErrCodeConflict,
		Message: msg,
	}
}

// NewBadRequestError creates a new bad request error
func NewBadRequestError(msg string) error {
	return &DomainError{
		Code:    ErrCodeBadRequest,
		Message: msg,
	}
}

// NewStaleProposalError signals that a proposal was already resolved or expired
func NewStaleProposalError(msg string) error {
	return &DomainError{
		Code:    ErrCodeStaleProposal,
		Message: msg,
	}
}

// NewProviderError wraps a retryable mailbox provider failure (rate limit,
// transient network). The caller may retry on the next tick.
func NewProviderError(msg string, err error) error {
	return &DomainError{
		Code:    ErrCodeProvider,
		Message: msg,
		Err:     err,
	}
}

// NewProviderFatalError wraps a terminal mailbox provider failure
// (revoked credentials, deleted mailbox). Retrying will not help.
func NewProviderFatalError(msg string, err error) error {
	return &DomainError{
		Code:    ErrCodeProviderFatal,
		Message: msg,
		Err:     err,
	}
}

// NewScorerError wraps a per-candidate classification failure. It never
// aborts sibling candidates in the same batch.
func NewScorerError(msg string, err error) error {
	return &DomainError{
		Code:    ErrCodeScorer,
		Message: msg,
		Err:     err,
	}
}

// Helper functions to check error types

func is(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return is(err, ErrCodeNotFound)
}

// IsValidation checks if the error is a validation error
func IsValidation(err error) bool {
	return is(err, ErrCodeValidation)
}

// IsUnauthorized checks if the error is an unauthorized error
func IsUnauthorized(err error) bool {
	return is(err, ErrCodeUnauthorized)
}

// IsForbidden checks if the error is a forbidden error
func IsForbidden(err error) bool {
	return is(err, ErrCodeForbidden)
}

// IsInternal checks if the error is an internal error
func IsInternal(err error) bool {
	return is(err, ErrCodeInternal)
}

// IsConflict checks if the error is a conflict error
func IsConflict(err error) bool {
	return is(err, ErrCodeConflict)
}

// IsBadRequest checks if the error is a bad request error
func IsBadRequest(err error) bool {
	return is(err, ErrCodeBadRequest)
}

// IsStaleProposal checks if the error is a stale proposal error
func IsStaleProposal(err error) bool {
	return is(err, ErrCodeStaleProposal)
}

// IsProvider checks if the error is a retryable provider error
func IsProvider(err error) bool {
	return is(err, ErrCodeProvider)
}

// IsProviderFatal checks if the error is a terminal provider error
func IsProviderFatal(err error) bool {
	return is(err, ErrCodeProviderFatal)
}

// IsScorer checks if the error is a scorer error
func IsScorer(err error) bool {
	return is(err, ErrCodeScorer)
}

// GetErrorCode extracts the error code from a domain error
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ErrCodeInternal
}
