package models

import "time"

// ExecutionStatus represents the reported state of one workflow run.
type ExecutionStatus string

const (
	ExecutionStatusPending       ExecutionStatus = "pending"
	ExecutionStatusRunning       ExecutionStatus = "running"
	ExecutionStatusWaitingReview ExecutionStatus = "waiting_review"
	ExecutionStatusCompleted     ExecutionStatus = "completed"
	ExecutionStatusFailed        ExecutionStatus = "failed"
	ExecutionStatusCancelled     ExecutionStatus = "cancelled"
)

// ExecutionRecord is the persisted status/progress record for one run of
// a workflow on the remote engine. The engine's own lifecycle reporting
// and the review resume path both mutate it.
type ExecutionRecord struct {
	ID                  string          `json:"id"`
	WorkflowID          string          `json:"workflow_id"`
	ExternalExecutionID string          `json:"external_execution_id,omitempty"`
	Status              ExecutionStatus `json:"status"`
	CurrentStepIndex    int             `json:"current_step_index"`
	StartedAt           time.Time       `json:"started_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}
