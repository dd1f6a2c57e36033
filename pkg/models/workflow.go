// Package models defines the core domain models for digital worker workflows.
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "draft"    // Editable, not deployed
	WorkflowStatusActive   WorkflowStatus = "active"   // Deployed to the execution engine
	WorkflowStatusPaused   WorkflowStatus = "paused"   // Deployed but deactivated
	WorkflowStatusArchived WorkflowStatus = "archived" // Retired, read-only
)

// Workflow represents an ordered sequence of digital worker steps owned by
// one organization. Steps are replaced wholesale on edit; there are no
// step-level patch semantics.
type Workflow struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"            validate:"required,min=3"`
	Description    string          `json:"description"`
	OrganizationID string          `json:"organization_id" validate:"required"`
	Status         WorkflowStatus  `json:"status"          validate:"required"`
	Steps          []*WorkflowStep `json:"steps"`
	EngineID       string          `json:"engine_id,omitempty"` // Remote engine workflow ID once deployed
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// IsEditable reports whether the workflow accepts step mutations.
func (w *Workflow) IsEditable() bool {
	return w.Status == WorkflowStatusDraft || w.Status == WorkflowStatusPaused
}
