// Package persistence provides standardized error types for storage
// operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrReviewNotFound indicates a review request was not found by the given identifier.
	ErrReviewNotFound = errors.New("review request not found")

	// ErrExecutionNotFound indicates an execution record was not found.
	ErrExecutionNotFound = errors.New("execution record not found")

	// ErrReviewAlreadyDecided indicates a review was already moved out of
	// the pending state by another decision.
	ErrReviewAlreadyDecided = errors.New("review request already decided")
)

// ReviewError wraps review-related storage errors with operation context.
type ReviewError struct {
	Op       string
	ReviewID string
	Err      error
}

func (e *ReviewError) Error() string {
	return fmt.Sprintf("%s operation failed for review %s: %v", e.Op, e.ReviewID, e.Err)
}

func (e *ReviewError) Unwrap() error {
	return e.Err
}

func (e *ReviewError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewReviewError creates a review storage error with context.
func NewReviewError(op, reviewID string, err error) *ReviewError {
	return &ReviewError{Op: op, ReviewID: reviewID, Err: err}
}

// WorkflowError wraps workflow-related storage errors with operation context.
type WorkflowError struct {
	Op         string
	WorkflowID string
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a workflow storage error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{Op: op, WorkflowID: workflowID, Err: err}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsReviewNotFound checks if an error indicates a review request was not found.
func IsReviewNotFound(err error) bool {
	return errors.Is(err, ErrReviewNotFound)
}

// IsExecutionNotFound checks if an error indicates an execution record was not found.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsReviewAlreadyDecided checks if an error indicates a lost decision race.
func IsReviewAlreadyDecided(err error) bool {
	return errors.Is(err, ErrReviewAlreadyDecided)
}
