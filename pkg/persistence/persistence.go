// Package persistence provides the storage abstraction for workflows,
// review requests, and execution records.
package persistence

import (
	"context"
	"time"

	"github.com/crewdeck/crewdeck/pkg/models"
)

// ReviewDecision is the single atomic write applied when a reviewer
// decides a pending review. All fields are persisted together.
type ReviewDecision struct {
	Status     models.ReviewStatus
	Feedback   string
	EditedData map[string]any
	ReviewerID string
	ReviewedAt time.Time
}

// WorkflowRepository stores workflows. Steps are replaced wholesale;
// there are no step-level writes.
type WorkflowRepository interface {
	Create(ctx context.Context, workflow *models.Workflow) error
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	ListByOrganization(ctx context.Context, organizationID string) ([]*models.Workflow, error)
	Update(ctx context.Context, workflow *models.Workflow) error
	ReplaceSteps(ctx context.Context, id string, steps []*models.WorkflowStep) error
	UpdateStatus(ctx context.Context, id string, status models.WorkflowStatus) error
}

// ReviewRepository stores review requests. Decide is conditional on the
// review still being pending and reports ErrReviewAlreadyDecided when a
// concurrent decision won.
type ReviewRepository interface {
	Create(ctx context.Context, review *models.ReviewRequest) error
	GetByID(ctx context.Context, id string) (*models.ReviewRequest, error)
	ListPendingByOrganization(ctx context.Context, organizationID string) ([]*models.ReviewRequest, error)
	Decide(ctx context.Context, id string, decision ReviewDecision) (*models.ReviewRequest, error)
}

// ExecutionRepository stores execution records. Status reconciliation
// after a review decision addresses records by their external engine
// execution ID.
type ExecutionRepository interface {
	Create(ctx context.Context, execution *models.ExecutionRecord) error
	GetByID(ctx context.Context, id string) (*models.ExecutionRecord, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.ExecutionRecord, error)
	UpdateStatusByExternalID(ctx context.Context, externalID string, status models.ExecutionStatus) error
}

// Persistence bundles the repositories of one storage backend.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ReviewRepository() ReviewRepository
	ExecutionRepository() ExecutionRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
