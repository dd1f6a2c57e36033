// Package services implements the business operations exposed by the
// API: workflow management, compilation, and review decisions.
package services

import (
	"errors"
	"fmt"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest         = errors.New("invalid request")
	ErrReviewIDRequired       = errors.New("review ID is required")
	ErrDecisionRequired       = errors.New("decision status is required")
	ErrInvalidDecision        = errors.New("decision must be approved, rejected, or edited")
	ErrWorkflowNameRequired   = errors.New("workflow name is required")
	ErrWorkflowNil            = errors.New("workflow cannot be nil")
	ErrStepsInvalid           = errors.New("workflow steps failed validation")
	ErrCallbackNotAllowed     = errors.New("callback target is not allow-listed")
	ErrOrganizationIDRequired = errors.New("organization ID is required")

	// Business Logic Conflicts (409 Conflict).
	ErrReviewAlreadyDecided   = errors.New("review has already been decided")
	ErrWorkflowNotEditable    = errors.New("workflow is not editable in its current status")
	ErrWorkflowNotActivatable = errors.New("workflow cannot be activated")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrReviewIDRequired) ||
		errors.Is(err, ErrDecisionRequired) ||
		errors.Is(err, ErrInvalidDecision) ||
		errors.Is(err, ErrWorkflowNameRequired) ||
		errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, ErrStepsInvalid) ||
		errors.Is(err, ErrCallbackNotAllowed)
}

// IsAuthError checks if an error means the caller is missing tenant
// identity and should receive HTTP 401.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrOrganizationIDRequired)
}

// IsCallbackBlocked checks if an error came from the callback allow-list.
func IsCallbackBlocked(err error) bool {
	return errors.Is(err, ErrCallbackNotAllowed)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrReviewAlreadyDecided) ||
		errors.Is(err, ErrWorkflowNotEditable) ||
		errors.Is(err, ErrWorkflowNotActivatable)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewConflictError creates a new conflict error with context.
func NewConflictError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
