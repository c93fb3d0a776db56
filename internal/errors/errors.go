// Package errors provides custom error types for the Splitledger API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid email or password", StatusCode: http.StatusUnauthorized}
	ErrForbidden          = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// User errors.
var (
	ErrUserNotFound   = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail = &AppError{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists", StatusCode: http.StatusConflict}
)

// Group errors.
var (
	ErrGroupNotFound  = &AppError{Code: "GROUP_NOT_FOUND", Message: "Group not found", StatusCode: http.StatusNotFound}
	ErrNotGroupMember = &AppError{Code: "NOT_GROUP_MEMBER", Message: "User is not a member of this group", StatusCode: http.StatusForbidden}
)

// Expense errors.
var (
	ErrExpenseNotFound       = &AppError{Code: "EXPENSE_NOT_FOUND", Message: "Expense not found", StatusCode: http.StatusNotFound}
	ErrParentExpenseNotFound = &AppError{Code: "PARENT_EXPENSE_NOT_FOUND", Message: "Parent expense not found", StatusCode: http.StatusNotFound}
	ErrEmptyParticipants     = &AppError{Code: "EMPTY_PARTICIPANTS", Message: "An expense needs at least one participant", StatusCode: http.StatusBadRequest}
	ErrPercentageSum         = &AppError{Code: "PERCENTAGE_SUM_MISMATCH", Message: "Percentages must sum to 100", StatusCode: http.StatusBadRequest}
	ErrDirectAmountSum       = &AppError{Code: "DIRECT_SUM_MISMATCH", Message: "Direct amounts must sum to the total expense amount", StatusCode: http.StatusBadRequest}
)

// Ledger & settlement errors.
var (
	ErrInvalidSettleAmount = &AppError{Code: "INVALID_SETTLE_AMOUNT", Message: "Settlement amount must be greater than zero", StatusCode: http.StatusBadRequest}
	ErrNoUnsettledDebt     = &AppError{Code: "NO_UNSETTLED_DEBT", Message: "No unsettled debt exists between these users", StatusCode: http.StatusNotFound}

	// ErrLedgerConflict indicates both directions of a debtor/creditor pair were
	// found unsettled at once. That state is unreachable through the ledger's own
	// operations and means a prior bug corrupted the table.
	ErrLedgerConflict = &AppError{Code: "LEDGER_CONFLICT", Message: "Ledger invariant violated for this pair", StatusCode: http.StatusInternalServerError}
)

// Recurring expense errors.
var (
	ErrRecurringNotFound = &AppError{Code: "RECURRING_NOT_FOUND", Message: "Recurring expense not found", StatusCode: http.StatusNotFound}
)
