package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/crewdeck/crewdeck/pkg/models"
	"github.com/crewdeck/crewdeck/pkg/persistence"
)

// ReviewRepository handles review request database operations.
type ReviewRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const reviewColumns = `
	id
  , execution_id
  , step_id
  , step_index
  , worker_name
  , status
  , action_payload
  , reviewer_id
  , feedback
  , edited_data
  , reviewed_at
  , chat_history
  , created_at
`

func (r *ReviewRepository) Create(ctx context.Context, review *models.ReviewRequest) error {
	actionPayload, err := json.Marshal(review.ActionPayload)
	if err != nil {
		return persistence.NewReviewError("Create", review.ID, err)
	}

	chatHistory, err := json.Marshal(review.ChatHistory)
	if err != nil {
		return persistence.NewReviewError("Create", review.ID, err)
	}

	editedData, err := marshalNullableMap(review.EditedData)
	if err != nil {
		return persistence.NewReviewError("Create", review.ID, err)
	}

	query := `
		INSERT INTO review_requests (
			id, execution_id, step_id, step_index, worker_name, status,
			action_payload, reviewer_id, feedback, edited_data, reviewed_at, chat_history, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10, $11, $12, $13)
	`

	_, err = r.db.ExecContext(ctx, query,
		review.ID, review.ExecutionID, review.StepID, review.StepIndex, review.WorkerName,
		review.Status, actionPayload, review.ReviewerID, review.Feedback, editedData,
		review.ReviewedAt, chatHistory, review.CreatedAt,
	)
	if err != nil {
		return persistence.NewReviewError("Create", review.ID, err)
	}

	return nil
}

func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*models.ReviewRequest, error) {
	query := `SELECT ` + reviewColumns + ` FROM review_requests WHERE id = $1`

	review, err := scanReview(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewReviewError("GetByID", id, persistence.ErrReviewNotFound)
		}

		return nil, persistence.NewReviewError("GetByID", id, err)
	}

	return review, nil
}

func (r *ReviewRepository) ListPendingByOrganization(ctx context.Context, organizationID string) ([]*models.ReviewRequest, error) {
	query := `
		SELECT ` + prefixedReviewColumns("r") + `
		FROM review_requests r
		JOIN execution_records e ON e.id = r.execution_id
		JOIN workflows w ON w.id = e.workflow_id
		WHERE r.status = 'pending' AND w.organization_id = $1
		ORDER BY r.created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending reviews: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	reviews := make([]*models.ReviewRequest, 0)

	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}

		reviews = append(reviews, review)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reviews: %w", err)
	}

	return reviews, nil
}

// Decide moves a pending review to a terminal status. The WHERE clause
// on status makes the update a compare-and-swap: zero rows affected on a
// still-existing review means another decision got there first.
func (r *ReviewRepository) Decide(ctx context.Context, id string, decision persistence.ReviewDecision) (*models.ReviewRequest, error) {
	editedData, err := marshalNullableMap(decision.EditedData)
	if err != nil {
		return nil, persistence.NewReviewError("Decide", id, err)
	}

	query := `
		UPDATE review_requests
		SET status = $2, feedback = NULLIF($3, ''), edited_data = $4, reviewer_id = NULLIF($5, ''), reviewed_at = $6
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + reviewColumns

	review, err := scanReview(r.db.QueryRowContext(ctx, query,
		id, decision.Status, decision.Feedback, editedData, decision.ReviewerID, decision.ReviewedAt,
	))
	if err == nil {
		return review, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewReviewError("Decide", id, err)
	}

	// Distinguish missing from already decided.
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM review_requests WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, persistence.NewReviewError("Decide", id, err)
	}

	if exists {
		return nil, persistence.NewReviewError("Decide", id, persistence.ErrReviewAlreadyDecided)
	}

	return nil, persistence.NewReviewError("Decide", id, persistence.ErrReviewNotFound)
}

func prefixedReviewColumns(alias string) string {
	return `
		` + alias + `.id
	  , ` + alias + `.execution_id
	  , ` + alias + `.step_id
	  , ` + alias + `.step_index
	  , ` + alias + `.worker_name
	  , ` + alias + `.status
	  , ` + alias + `.action_payload
	  , ` + alias + `.reviewer_id
	  , ` + alias + `.feedback
	  , ` + alias + `.edited_data
	  , ` + alias + `.reviewed_at
	  , ` + alias + `.chat_history
	  , ` + alias + `.created_at
	`
}

func marshalNullableMap(value map[string]any) (any, error) {
	if value == nil {
		return nil, nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal map: %w", err)
	}

	return data, nil
}

func scanReview(row rowScanner) (*models.ReviewRequest, error) {
	var (
		review        models.ReviewRequest
		actionPayload []byte
		chatHistory   []byte
		editedData    []byte
		reviewerID    sql.NullString
		feedback      sql.NullString
		reviewedAt    sql.NullTime
	)

	err := row.Scan(
		&review.ID, &review.ExecutionID, &review.StepID, &review.StepIndex, &review.WorkerName,
		&review.Status, &actionPayload, &reviewerID, &feedback, &editedData,
		&reviewedAt, &chatHistory, &review.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(actionPayload, &review.ActionPayload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal action payload: %w", err)
	}

	if err := json.Unmarshal(chatHistory, &review.ChatHistory); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chat history: %w", err)
	}

	if len(editedData) > 0 {
		if err := json.Unmarshal(editedData, &review.EditedData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal edited data: %w", err)
		}
	}

	review.ReviewerID = reviewerID.String
	review.Feedback = feedback.String

	if reviewedAt.Valid {
		review.ReviewedAt = &reviewedAt.Time
	}

	return &review, nil
}
