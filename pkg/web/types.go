// Package web provides HTTP request and response types for the workflow API.
package web

import "github.com/crewdeck/crewdeck/pkg/models"

// CreateWorkflowRequest represents the request body for creating a new workflow.
type CreateWorkflowRequest struct {
	Name        string `json:"name"        validate:"required,min=3"`
	Description string `json:"description"`
}

// UpdateWorkflowRequest represents the request body for updating workflow metadata.
type UpdateWorkflowRequest struct {
	Name        string `json:"name"        validate:"required,min=3"`
	Description string `json:"description"`
}

// ReplaceStepsRequest carries the full new step list of a workflow.
// Steps are always replaced wholesale.
type ReplaceStepsRequest struct {
	Steps []*models.WorkflowStep `json:"steps" validate:"required"`
}

// ReviewResponseRequest represents one reviewer decision. The field names
// follow the review widget's wire contract.
type ReviewResponseRequest struct {
	ReviewID   string         `json:"reviewId"             validate:"required"`
	Status     string         `json:"status"               validate:"required,oneof=approved rejected edited"`
	Feedback   string         `json:"feedback,omitempty"`
	EditedData map[string]any `json:"editedData,omitempty"`
	ReviewerID string         `json:"reviewerId,omitempty"`
}
