package ledger

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes ledger errors. Transports map codes to statuses.
type ErrorCode string

const (
	// ErrCodeNotFound indicates a referenced record does not exist in the tenant.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeValidation indicates malformed input.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeInsufficientStock indicates a movement would drive a balance negative.
	ErrCodeInsufficientStock ErrorCode = "INSUFFICIENT_STOCK"

	// ErrCodeConflict indicates a uniqueness or concurrency conflict.
	ErrCodeConflict ErrorCode = "CONFLICT"

	// ErrCodeInvalidTransition indicates a count session state change that is not allowed.
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"

	// ErrCodeForbidden indicates the actor lacks the required permission.
	ErrCodeForbidden ErrorCode = "FORBIDDEN"

	// ErrCodeStaleReport indicates an approval referenced an outdated variance report.
	ErrCodeStaleReport ErrorCode = "STALE_REPORT"
)

// Error is a ledger error with a stable code and optional structured details.
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// NewNotFoundError creates a NOT_FOUND error for kind/id.
func NewNotFoundError(kind, id string) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s %q not found", kind, id),
		Details: map[string]string{"kind": kind, "id": id},
	}
}

// NewValidationError creates a VALIDATION error.
func NewValidationError(msg string) *Error {
	return &Error{Code: ErrCodeValidation, Message: msg}
}

// NewConflictError creates a CONFLICT error.
func NewConflictError(msg string) *Error {
	return &Error{Code: ErrCodeConflict, Message: msg}
}

// NewInsufficientStockError reports that itemID at locationID cannot cover delta.
func NewInsufficientStockError(itemID, locationID string, balance, delta Quantity) *Error {
	return &Error{
		Code:    ErrCodeInsufficientStock,
		Message: fmt.Sprintf("insufficient stock: balance %s, delta %s", balance, delta),
		Details: map[string]string{
			"item_id":     itemID,
			"location_id": locationID,
			"balance":     balance.String(),
			"delta":       delta.String(),
		},
	}
}

// NewTransitionError reports a disallowed state change.
func NewTransitionError(from, to string) *Error {
	return &Error{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot move count session from %s to %s", from, to),
		Details: map[string]string{"from": from, "to": to},
	}
}

// NewForbiddenError reports a missing permission.
func NewForbiddenError(userID, permission string) *Error {
	return &Error{
		Code:    ErrCodeForbidden,
		Message: fmt.Sprintf("user %q lacks permission %s", userID, permission),
		Details: map[string]string{"user_id": userID, "permission": permission},
	}
}

// NewStaleReportError reports an approval against an outdated report digest.
func NewStaleReportError(want, got string) *Error {
	return &Error{
		Code:    ErrCodeStaleReport,
		Message: "variance report changed since it was reviewed",
		Details: map[string]string{"current_digest": want, "given_digest": got},
	}
}
