package errors

import (
	"errors"
	"fmt"
)

// AppError represents an application error with additional context
type AppError struct {
	Code    string // Error code for client
	Message string // Human-readable message
	Err     error  // Underlying error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches another AppError by code, so errors.Is(err, &AppError{Code: ErrCodeTimedOut}) works
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Transaction failure taxonomy
const (
	ErrCodeTransportFailure           = "TRANSPORT_FAILURE"
	ErrCodeUserRejected               = "USER_REJECTED"
	ErrCodeInsufficientBalance        = "INSUFFICIENT_BALANCE"
	ErrCodeInsufficientAllowance      = "INSUFFICIENT_ALLOWANCE"
	ErrCodeContractRevert             = "CONTRACT_REVERT"
	ErrCodePreconditionFailed         = "PRECONDITION_FAILED"
	ErrCodeApprovalVerificationFailed = "APPROVAL_VERIFICATION_FAILED"
	ErrCodeTimedOut                   = "TIMED_OUT"
)

// Request level codes
const (
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeConflict     = "CONFLICT"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// User facing messages shared by the provider adapter and the orchestrator
const (
	MsgUserRejected       = "Transaction was cancelled by user"
	MsgInsufficientGas    = "Insufficient funds for gas fee"
	MsgGasEstimation      = "Gas estimation failed. Transaction may revert."
	MsgApprovalNotVisible = "Approval verification failed. Please try again."
	MsgAllowanceTooLow    = "USDC allowance is too low for this investment. Please approve again."
	MsgBalanceTooLow      = "Insufficient USDC balance for this transaction"
)

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Validation creates a validation error
func Validation(message string) *AppError {
	return New(ErrCodeValidation, message)
}

// NotFound creates a not found error
func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

// Unauthorized creates an unauthorized error
func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

// Conflict creates a conflict error
func Conflict(message string) *AppError {
	return New(ErrCodeConflict, message)
}

// Internal creates an internal error
func Internal(message string, err error) *AppError {
	return Wrap(err, ErrCodeInternal, message)
}

// TransportFailure reports an unreachable or failing chain endpoint
func TransportFailure(message string, err error) *AppError {
	return Wrap(err, ErrCodeTransportFailure, message)
}

// UserRejected reports a signature request the user declined
func UserRejected(err error) *AppError {
	return Wrap(err, ErrCodeUserRejected, MsgUserRejected)
}

// InsufficientBalance creates an insufficient balance error
func InsufficientBalance(message string) *AppError {
	return New(ErrCodeInsufficientBalance, message)
}

// InsufficientAllowance reports a token transfer the spender was not approved for
func InsufficientAllowance(err error) *AppError {
	return Wrap(err, ErrCodeInsufficientAllowance, MsgAllowanceTooLow)
}

// ContractRevert carries the decoded revert reason, if any
func ContractRevert(reason string, err error) *AppError {
	msg := "Contract execution reverted"
	if reason != "" {
		msg = "Contract error: " + reason
	}
	return Wrap(err, ErrCodeContractRevert, msg)
}

// PreconditionFailed reports a locally detected invariant violation
func PreconditionFailed(message string) *AppError {
	return New(ErrCodePreconditionFailed, message)
}

// ApprovalVerificationFailed reports an approval that never became visible on chain
func ApprovalVerificationFailed(err error) *AppError {
	return Wrap(err, ErrCodeApprovalVerificationFailed, MsgApprovalNotVisible)
}

// TimedOut reports a confirmation wait that exceeded its bound
func TimedOut(message string, err error) *AppError {
	return Wrap(err, ErrCodeTimedOut, message)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts an AppError from an error
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// CodeOf returns the code of the outermost AppError, or ErrCodeInternal
func CodeOf(err error) string {
	if appErr := GetAppError(err); appErr != nil {
		return appErr.Code
	}
	return ErrCodeInternal
}

// MessageOf returns the user facing message of err
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	if appErr := GetAppError(err); appErr != nil {
		return appErr.Message
	}
	return err.Error()
}
