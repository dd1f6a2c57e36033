package file

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/crewdeck/crewdeck/pkg/models"
	"github.com/crewdeck/crewdeck/pkg/persistence"
)

// ExecutionRepository stores execution records as JSON files.
type ExecutionRepository struct {
	dir string
	mu  *sync.Mutex
}

func (r *ExecutionRepository) Create(_ context.Context, execution *models.ExecutionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return writeEntity(r.dir, execution.ID, execution)
}

func (r *ExecutionRepository) GetByID(_ context.Context, id string) (*models.ExecutionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.getLocked(id)
}

func (r *ExecutionRepository) getLocked(id string) (*models.ExecutionRecord, error) {
	execution := &models.ExecutionRecord{}
	if err := readEntity(r.dir, id, execution, persistence.ErrExecutionNotFound); err != nil {
		return nil, err
	}

	return execution, nil
}

func (r *ExecutionRepository) GetByExternalID(_ context.Context, externalID string) (*models.ExecutionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.getByExternalIDLocked(externalID)
}

func (r *ExecutionRepository) getByExternalIDLocked(externalID string) (*models.ExecutionRecord, error) {
	ids, err := listEntityIDs(r.dir)
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		execution, err := r.getLocked(id)
		if err != nil {
			return nil, err
		}

		if execution.ExternalExecutionID == externalID {
			return execution, nil
		}
	}

	return nil, persistence.ErrExecutionNotFound
}

func (r *ExecutionRepository) UpdateStatusByExternalID(_ context.Context, externalID string, status models.ExecutionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	execution, err := r.getByExternalIDLocked(externalID)
	if err != nil {
		return err
	}

	execution.Status = status
	execution.UpdatedAt = time.Now().UTC()

	return writeEntity(r.dir, execution.ID, execution)
}

// siblingDir swaps the last path element, keeping entity kinds side by
// side under one root.
func siblingDir(dir, name string) string {
	return filepath.Join(filepath.Dir(dir), name)
}
