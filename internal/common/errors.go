package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
)

// Reconciliation error kinds. None of them abort a batch.
var (
	// ErrExtractionFailure: the document could not be turned into an invoice.
	ErrExtractionFailure = errors.New("extraction failure")
	// ErrMalformedPORecord: a PO record failed to load and was skipped.
	ErrMalformedPORecord = errors.New("malformed purchase order record")
	// ErrLogicFault: a deterministic stage failed unexpectedly; the invoice is escalated.
	ErrLogicFault = errors.New("deterministic logic fault")
	// ErrNarrationFailure: the narrator failed; a template narrative is used instead.
	ErrNarrationFailure = errors.New("narration failure")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func ExtractionFailure(message string, cause error) *AppError {
	if cause == nil {
		cause = ErrExtractionFailure
	} else {
		cause = fmt.Errorf("%w: %w", ErrExtractionFailure, cause)
	}
	return NewAppError("EXTRACTION_FAILURE", message, cause)
}

func LogicFault(stage string, cause error) *AppError {
	return NewAppError("LOGIC_FAULT", stage, fmt.Errorf("%w: %v", ErrLogicFault, cause))
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func NotFoundError(message string) error {
	return status.Error(codes.NotFound, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}

func InternalErrorf(format string, args ...interface{}) error {
	return InternalError(fmt.Sprintf(format, args...))
}
