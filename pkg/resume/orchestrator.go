// Package resume delivers review decisions back to paused engine
// executions and reconciles execution status afterwards.
package resume

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/crewdeck/crewdeck/pkg/callback"
	"github.com/crewdeck/crewdeck/pkg/eventbus"
	"github.com/crewdeck/crewdeck/pkg/events"
	"github.com/crewdeck/crewdeck/pkg/models"
	"github.com/crewdeck/crewdeck/pkg/persistence"
)

// ErrCallbackBlocked indicates the stored resume URL points outside the
// engine allow-list and must not be called.
var ErrCallbackBlocked = errors.New("callback target is not on the engine allow-list")

// Poster posts a JSON payload to an absolute URL.
type Poster interface {
	PostJSON(ctx context.Context, url string, payload any) error
}

// Result reports what the resume pass accomplished. Warnings carry the
// non-fatal delivery problems so callers can surface them without
// failing the decision.
type Result struct {
	WorkflowResumed bool
	Delivered       bool
	Warnings        []string
}

// Orchestrator resumes paused executions after a review decision. The
// decision itself is already persisted when Resume runs; everything
// here is best-effort delivery plus status reconciliation.
type Orchestrator struct {
	allowList  *callback.AllowList
	poster     Poster
	executions persistence.ExecutionRepository
	publisher  eventbus.EventPublisher
	logger     *slog.Logger
}

func NewOrchestrator(
	allowList *callback.AllowList,
	poster Poster,
	executions persistence.ExecutionRepository,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		allowList:  allowList,
		poster:     poster,
		executions: executions,
		publisher:  publisher,
		logger:     logger.With("module", "resume"),
	}
}

// Resume posts the decision to the execution's resume webhook, updates
// the execution record, and notifies the legacy callback if one is
// stored. Only a blocked primary resume URL is a hard error; network
// failures and missing records degrade to warnings.
func (o *Orchestrator) Resume(ctx context.Context, review *models.ReviewRequest) (*Result, error) {
	result := &Result{}

	resumeURL := review.ActionPayload.ResumeWebhookURL
	if resumeURL != "" {
		if !o.allowList.IsAllowed(resumeURL) {
			return nil, fmt.Errorf("resume webhook %q: %w", resumeURL, ErrCallbackBlocked)
		}

		payload := buildDecisionPayload(review)

		if err := o.poster.PostJSON(ctx, resumeURL, payload); err != nil {
			o.logger.WarnContext(ctx, "Failed to deliver decision to resume webhook",
				"review_id", review.ID, "error", err)

			result.Warnings = append(result.Warnings,
				fmt.Sprintf("resume webhook delivery failed: %v", err))
		} else {
			result.WorkflowResumed = true
			result.Delivered = true
		}
	} else {
		result.Warnings = append(result.Warnings, "review has no resume webhook; execution was not resumed")
	}

	o.reconcileExecution(ctx, review, result)
	o.notifyLegacyCallback(ctx, review, result)

	return result, nil
}

// reconcileExecution moves the execution record out of waiting_review so
// its reported status matches the decision even when the engine-side
// resume was not delivered.
func (o *Orchestrator) reconcileExecution(ctx context.Context, review *models.ReviewRequest, result *Result) {
	externalID := review.ActionPayload.EngineExecutionID
	if externalID == "" {
		return
	}

	status := executionStatusFor(review.Status)

	err := o.executions.UpdateStatusByExternalID(ctx, externalID, status)
	if err != nil {
		if persistence.IsExecutionNotFound(err) {
			o.logger.WarnContext(ctx, "No execution record for engine execution",
				"external_execution_id", externalID)

			result.Warnings = append(result.Warnings,
				fmt.Sprintf("no execution record for engine execution %s", externalID))

			return
		}

		o.logger.ErrorContext(ctx, "Failed to update execution status",
			"external_execution_id", externalID, "error", err)

		result.Warnings = append(result.Warnings,
			fmt.Sprintf("execution status update failed: %v", err))

		return
	}

	o.publishStatusChange(ctx, review, externalID, status)
}

func (o *Orchestrator) publishStatusChange(ctx context.Context, review *models.ReviewRequest, externalID string, status models.ExecutionStatus) {
	if o.publisher == nil {
		return
	}

	event := events.ExecutionStatusChanged{
		BaseEvent: events.BaseEvent{
			Type:      events.ExecutionStatusChangedEvent,
			Timestamp: time.Now().UTC(),
		},
		ExecutionID:         review.ExecutionID,
		ExternalExecutionID: externalID,
		Status:              status,
	}

	if err := o.publisher.Publish(ctx, review.ExecutionID, event); err != nil {
		o.logger.WarnContext(ctx, "Failed to publish execution status event",
			"execution_id", review.ExecutionID, "error", err)
	}
}

// notifyLegacyCallback posts the decision to the older callbackUrl
// integration point. It is always best-effort, including when the URL
// is off the allow-list.
func (o *Orchestrator) notifyLegacyCallback(ctx context.Context, review *models.ReviewRequest, result *Result) {
	callbackURL := review.ActionPayload.CallbackURL
	if callbackURL == "" {
		return
	}

	if !o.allowList.IsAllowed(callbackURL) {
		o.logger.WarnContext(ctx, "Legacy callback target is not allow-listed",
			"review_id", review.ID, "callback_url", callbackURL)

		result.Warnings = append(result.Warnings,
			fmt.Sprintf("legacy callback %s is not allow-listed", callbackURL))

		return
	}

	if err := o.poster.PostJSON(ctx, callbackURL, buildDecisionPayload(review)); err != nil {
		o.logger.WarnContext(ctx, "Legacy callback delivery failed",
			"review_id", review.ID, "error", err)

		result.Warnings = append(result.Warnings,
			fmt.Sprintf("legacy callback delivery failed: %v", err))
	}
}

// buildDecisionPayload shapes the decision for the engine's wait node.
// responseData carries the edited data when the reviewer changed it,
// otherwise the original step data flows through unmodified.
func buildDecisionPayload(review *models.ReviewRequest) map[string]any {
	responseData := review.ActionPayload.StepData
	if review.EditedData != nil {
		responseData = review.EditedData
	}

	payload := map[string]any{
		"approved":     review.Status != models.ReviewStatusRejected,
		"reviewId":     review.ID,
		"status":       string(review.Status),
		"feedback":     review.Feedback,
		"editedData":   review.EditedData,
		"reviewerId":   review.ReviewerID,
		"responseData": responseData,
	}

	if review.ReviewedAt != nil {
		payload["reviewedAt"] = review.ReviewedAt.UTC().Format(time.RFC3339)
	}

	return payload
}

func executionStatusFor(status models.ReviewStatus) models.ExecutionStatus {
	if status == models.ReviewStatusRejected {
		return models.ExecutionStatusFailed
	}

	return models.ExecutionStatusRunning
}
