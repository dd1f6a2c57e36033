package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/crewdeck/crewdeck/pkg/models"
	"github.com/crewdeck/crewdeck/pkg/persistence"
)

// WorkflowRepository handles workflow database operations. Steps are
// stored as one JSONB document and replaced wholesale.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const workflowColumns = `
	id
  , name
  , description
  , organization_id
  , status
  , steps
  , engine_id
  , created_at
  , updated_at
`

func (r *WorkflowRepository) Create(ctx context.Context, workflow *models.Workflow) error {
	steps, err := marshalSteps(workflow.Steps)
	if err != nil {
		return persistence.NewWorkflowError("Create", workflow.ID, err)
	}

	query := `
		INSERT INTO workflows (id, name, description, organization_id, status, steps, engine_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)
	`

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID, workflow.Name, workflow.Description, workflow.OrganizationID,
		workflow.Status, steps, workflow.EngineID, workflow.CreatedAt, workflow.UpdatedAt,
	)
	if err != nil {
		return persistence.NewWorkflowError("Create", workflow.ID, err)
	}

	return nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE id = $1`

	workflow, err := scanWorkflow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	return workflow, nil
}

func (r *WorkflowRepository) ListByOrganization(ctx context.Context, organizationID string) ([]*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE organization_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

func (r *WorkflowRepository) Update(ctx context.Context, workflow *models.Workflow) error {
	steps, err := marshalSteps(workflow.Steps)
	if err != nil {
		return persistence.NewWorkflowError("Update", workflow.ID, err)
	}

	query := `
		UPDATE workflows
		SET name = $2, description = $3, status = $4, steps = $5, engine_id = NULLIF($6, ''), updated_at = $7
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		workflow.ID, workflow.Name, workflow.Description, workflow.Status,
		steps, workflow.EngineID, time.Now().UTC(),
	)
	if err != nil {
		return persistence.NewWorkflowError("Update", workflow.ID, err)
	}

	return checkWorkflowAffected(result, "Update", workflow.ID)
}

func (r *WorkflowRepository) ReplaceSteps(ctx context.Context, id string, steps []*models.WorkflowStep) error {
	payload, err := marshalSteps(steps)
	if err != nil {
		return persistence.NewWorkflowError("ReplaceSteps", id, err)
	}

	query := `UPDATE workflows SET steps = $2, updated_at = $3 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, payload, time.Now().UTC())
	if err != nil {
		return persistence.NewWorkflowError("ReplaceSteps", id, err)
	}

	return checkWorkflowAffected(result, "ReplaceSteps", id)
}

func (r *WorkflowRepository) UpdateStatus(ctx context.Context, id string, status models.WorkflowStatus) error {
	query := `UPDATE workflows SET status = $2, updated_at = $3 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return persistence.NewWorkflowError("UpdateStatus", id, err)
	}

	return checkWorkflowAffected(result, "UpdateStatus", id)
}

func checkWorkflowAffected(result sql.Result, op, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewWorkflowError(op, id, err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError(op, id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

func marshalSteps(steps []*models.WorkflowStep) ([]byte, error) {
	if steps == nil {
		steps = []*models.WorkflowStep{}
	}

	data, err := json.Marshal(steps)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal steps: %w", err)
	}

	return data, nil
}

// rowScanner covers both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var (
		workflow models.Workflow
		steps    []byte
		engineID sql.NullString
	)

	err := row.Scan(
		&workflow.ID, &workflow.Name, &workflow.Description, &workflow.OrganizationID,
		&workflow.Status, &steps, &engineID, &workflow.CreatedAt, &workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(steps, &workflow.Steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
	}

	workflow.EngineID = engineID.String

	return &workflow, nil
}
