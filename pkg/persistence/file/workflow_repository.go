package file

import (
	"context"
	"sync"
	"time"

	"github.com/crewdeck/crewdeck/pkg/models"
	"github.com/crewdeck/crewdeck/pkg/persistence"
)

// WorkflowRepository stores workflows as JSON files.
type WorkflowRepository struct {
	dir string
	mu  *sync.Mutex
}

func (r *WorkflowRepository) Create(_ context.Context, workflow *models.Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return writeEntity(r.dir, workflow.ID, workflow)
}

func (r *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.getLocked(id)
}

func (r *WorkflowRepository) getLocked(id string) (*models.Workflow, error) {
	workflow := &models.Workflow{}
	if err := readEntity(r.dir, id, workflow, persistence.ErrWorkflowNotFound); err != nil {
		return nil, err
	}

	return workflow, nil
}

func (r *WorkflowRepository) ListByOrganization(_ context.Context, organizationID string) ([]*models.Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, err := listEntityIDs(r.dir)
	if err != nil {
		return nil, err
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		workflow, err := r.getLocked(id)
		if err != nil {
			return nil, err
		}

		if workflow.OrganizationID == organizationID {
			workflows = append(workflows, workflow)
		}
	}

	return workflows, nil
}

func (r *WorkflowRepository) Update(_ context.Context, workflow *models.Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.getLocked(workflow.ID); err != nil {
		return err
	}

	workflow.UpdatedAt = time.Now().UTC()

	return writeEntity(r.dir, workflow.ID, workflow)
}

func (r *WorkflowRepository) ReplaceSteps(_ context.Context, id string, steps []*models.WorkflowStep) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	workflow, err := r.getLocked(id)
	if err != nil {
		return err
	}

	workflow.Steps = steps
	workflow.UpdatedAt = time.Now().UTC()

	return writeEntity(r.dir, id, workflow)
}

func (r *WorkflowRepository) UpdateStatus(_ context.Context, id string, status models.WorkflowStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	workflow, err := r.getLocked(id)
	if err != nil {
		return err
	}

	workflow.Status = status
	workflow.UpdatedAt = time.Now().UTC()

	return writeEntity(r.dir, id, workflow)
}
