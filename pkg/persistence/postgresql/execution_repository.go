package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/crewdeck/crewdeck/pkg/models"
	"github.com/crewdeck/crewdeck/pkg/persistence"
)

// ExecutionRepository handles execution record database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const executionColumns = `
	id
  , workflow_id
  , external_execution_id
  , status
  , current_step_index
  , started_at
  , updated_at
`

func (r *ExecutionRepository) Create(ctx context.Context, execution *models.ExecutionRecord) error {
	query := `
		INSERT INTO execution_records (id, workflow_id, external_execution_id, status, current_step_index, started_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		execution.ID, execution.WorkflowID, execution.ExternalExecutionID,
		execution.Status, execution.CurrentStepIndex, execution.StartedAt, execution.UpdatedAt,
	)

	return err
}

func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.ExecutionRecord, error) {
	query := `SELECT ` + executionColumns + ` FROM execution_records WHERE id = $1`

	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *ExecutionRepository) GetByExternalID(ctx context.Context, externalID string) (*models.ExecutionRecord, error) {
	query := `SELECT ` + executionColumns + ` FROM execution_records WHERE external_execution_id = $1`

	return r.scanOne(r.db.QueryRowContext(ctx, query, externalID))
}

func (r *ExecutionRepository) UpdateStatusByExternalID(ctx context.Context, externalID string, status models.ExecutionStatus) error {
	query := `UPDATE execution_records SET status = $2, updated_at = $3 WHERE external_execution_id = $1`

	result, err := r.db.ExecContext(ctx, query, externalID, status, time.Now().UTC())
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return persistence.ErrExecutionNotFound
	}

	return nil
}

func (r *ExecutionRepository) scanOne(row rowScanner) (*models.ExecutionRecord, error) {
	var (
		execution  models.ExecutionRecord
		externalID sql.NullString
	)

	err := row.Scan(
		&execution.ID, &execution.WorkflowID, &externalID, &execution.Status,
		&execution.CurrentStepIndex, &execution.StartedAt, &execution.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, err
	}

	execution.ExternalExecutionID = externalID.String

	return &execution, nil
}
