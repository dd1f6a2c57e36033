package file

import (
	"context"
	"sync"

	"github.com/crewdeck/crewdeck/pkg/models"
	"github.com/crewdeck/crewdeck/pkg/persistence"
)

// ReviewRepository stores review requests as JSON files. The shared
// mutex makes Decide a conditional update even without a database.
type ReviewRepository struct {
	dir string
	mu  *sync.Mutex
}

func (r *ReviewRepository) Create(_ context.Context, review *models.ReviewRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return writeEntity(r.dir, review.ID, review)
}

func (r *ReviewRepository) GetByID(_ context.Context, id string) (*models.ReviewRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.getLocked(id)
}

func (r *ReviewRepository) getLocked(id string) (*models.ReviewRequest, error) {
	review := &models.ReviewRequest{}
	if err := readEntity(r.dir, id, review, persistence.ErrReviewNotFound); err != nil {
		return nil, err
	}

	return review, nil
}

// ListPendingByOrganization returns pending reviews whose execution's
// workflow belongs to the organization. The file backend resolves the
// tenant through sibling directories; the caller only sees reviews.
func (r *ReviewRepository) ListPendingByOrganization(ctx context.Context, organizationID string) ([]*models.ReviewRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, err := listEntityIDs(r.dir)
	if err != nil {
		return nil, err
	}

	reviews := make([]*models.ReviewRequest, 0)

	for _, id := range ids {
		review, err := r.getLocked(id)
		if err != nil {
			return nil, err
		}

		if review.Status != models.ReviewStatusPending {
			continue
		}

		owner, err := r.resolveOrganization(review)
		if err != nil {
			continue
		}

		if owner == organizationID {
			reviews = append(reviews, review)
		}
	}

	return reviews, nil
}

func (r *ReviewRepository) resolveOrganization(review *models.ReviewRequest) (string, error) {
	executionDir := siblingDir(r.dir, "executions")
	workflowDir := siblingDir(r.dir, "workflows")

	execution := &models.ExecutionRecord{}
	if err := readEntity(executionDir, review.ExecutionID, execution, persistence.ErrExecutionNotFound); err != nil {
		return "", err
	}

	workflow := &models.Workflow{}
	if err := readEntity(workflowDir, execution.WorkflowID, workflow, persistence.ErrWorkflowNotFound); err != nil {
		return "", err
	}

	return workflow.OrganizationID, nil
}

// Decide applies a decision only while the review is still pending.
func (r *ReviewRepository) Decide(_ context.Context, id string, decision persistence.ReviewDecision) (*models.ReviewRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	review, err := r.getLocked(id)
	if err != nil {
		return nil, err
	}

	if review.Status != models.ReviewStatusPending {
		return nil, persistence.NewReviewError("Decide", id, persistence.ErrReviewAlreadyDecided)
	}

	reviewedAt := decision.ReviewedAt
	review.Status = decision.Status
	review.Feedback = decision.Feedback
	review.EditedData = decision.EditedData
	review.ReviewerID = decision.ReviewerID
	review.ReviewedAt = &reviewedAt

	if err := writeEntity(r.dir, id, review); err != nil {
		return nil, err
	}

	return review, nil
}
