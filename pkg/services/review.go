package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/crewdeck/crewdeck/pkg/callback"
	"github.com/crewdeck/crewdeck/pkg/eventbus"
	"github.com/crewdeck/crewdeck/pkg/events"
	"github.com/crewdeck/crewdeck/pkg/models"
	"github.com/crewdeck/crewdeck/pkg/otelhelper"
	"github.com/crewdeck/crewdeck/pkg/persistence"
	"github.com/crewdeck/crewdeck/pkg/resume"
)

// ErrReviewNotFound is returned when a review is not found or the caller
// is not allowed to see it. Both cases are indistinguishable on purpose.
var ErrReviewNotFound = persistence.ErrReviewNotFound

// Resumer hands a decided review back to the paused execution.
type Resumer interface {
	Resume(ctx context.Context, review *models.ReviewRequest) (*resume.Result, error)
}

// Review implements the human review decision flow.
type Review struct {
	persistence persistence.Persistence
	allowList   *callback.AllowList
	resumer     Resumer
	publisher   eventbus.EventPublisher
	tracer      trace.Tracer
	logger      *slog.Logger
}

func NewReview(
	p persistence.Persistence,
	allowList *callback.AllowList,
	resumer Resumer,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *Review {
	return &Review{
		persistence: p,
		allowList:   allowList,
		resumer:     resumer,
		publisher:   publisher,
		tracer:      otel.Tracer("crewdeck.review"),
		logger:      logger.With("module", "review_service"),
	}
}

// DecisionRequest carries one reviewer decision.
type DecisionRequest struct {
	ReviewID       string
	OrganizationID string
	Status         models.ReviewStatus
	Feedback       string
	EditedData     map[string]any
	ReviewerID     string
}

// DecisionOutcome reports the result of a submitted decision.
type DecisionOutcome struct {
	Success         bool                `json:"success"`
	ReviewID        string              `json:"review_id"`
	Status          models.ReviewStatus `json:"status"`
	WorkflowResumed bool                `json:"workflow_resumed"`
	Message         string              `json:"message"`
	Warnings        []string            `json:"warnings,omitempty"`
}

// SubmitDecision validates, authorizes, and persists one review decision,
// then resumes the paused execution. The decision is committed exactly
// once; delivery problems after the commit degrade to warnings.
func (s *Review) SubmitDecision(ctx context.Context, req DecisionRequest) (*DecisionOutcome, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "review.submit_decision",
		attribute.String(otelhelper.ReviewIDKey, req.ReviewID),
		attribute.String(otelhelper.OrganizationIDKey, req.OrganizationID),
		attribute.String(otelhelper.ReviewStatusKey, string(req.Status)),
	)
	defer span.End()

	outcome, err := s.submitDecision(ctx, req)
	if err != nil {
		otelhelper.SetError(span, err)
	}

	return outcome, err
}

func (s *Review) submitDecision(ctx context.Context, req DecisionRequest) (*DecisionOutcome, error) {
	if err := s.validateDecisionRequest(req); err != nil {
		return nil, err
	}

	review, err := s.authorizeReview(ctx, req.OrganizationID, req.ReviewID)
	if err != nil {
		return nil, err
	}

	if !review.Status.IsTerminal() {
		// The resume target is checked before anything is written so a
		// poisoned URL never leaves the review stuck in a decided state.
		if target := review.ActionPayload.ResumeWebhookURL; target != "" && !s.allowList.IsAllowed(target) {
			return nil, NewValidationError(
				"SubmitDecision",
				"CALLBACK_NOT_ALLOWED",
				fmt.Sprintf("resume target %q is not an allowed engine host", target),
				ErrCallbackNotAllowed,
			)
		}
	}

	decided, err := s.persistence.ReviewRepository().Decide(ctx, req.ReviewID, persistence.ReviewDecision{
		Status:     req.Status,
		Feedback:   req.Feedback,
		EditedData: req.EditedData,
		ReviewerID: req.ReviewerID,
		ReviewedAt: time.Now().UTC(),
	})
	if err != nil {
		if persistence.IsReviewAlreadyDecided(err) {
			return nil, NewConflictError(
				"SubmitDecision",
				"REVIEW_ALREADY_DECIDED",
				fmt.Sprintf("review %s has already been decided", req.ReviewID),
				ErrReviewAlreadyDecided,
			)
		}

		if persistence.IsReviewNotFound(err) {
			return nil, ErrReviewNotFound
		}

		return nil, fmt.Errorf("failed to persist decision: %w", err)
	}

	resumeResult, err := s.resumer.Resume(ctx, decided)
	if err != nil {
		// The decision is committed at this point. Surface the delivery
		// failure without pretending the decision did not happen.
		s.logger.ErrorContext(ctx, "Resume failed after decision was persisted",
			"review_id", decided.ID, "error", err)

		resumeResult = &resume.Result{
			Warnings: []string{fmt.Sprintf("resume failed: %v", err)},
		}
	}

	s.publishDecision(ctx, decided, resumeResult.WorkflowResumed)

	return &DecisionOutcome{
		Success:         true,
		ReviewID:        decided.ID,
		Status:          decided.Status,
		WorkflowResumed: resumeResult.WorkflowResumed,
		Message:         decisionMessage(decided.Status, resumeResult.WorkflowResumed),
		Warnings:        resumeResult.Warnings,
	}, nil
}

// FetchReview returns a review the organization is allowed to see.
func (s *Review) FetchReview(ctx context.Context, organizationID, reviewID string) (*models.ReviewRequest, error) {
	if strings.TrimSpace(organizationID) == "" {
		return nil, ErrOrganizationIDRequired
	}

	if strings.TrimSpace(reviewID) == "" {
		return nil, ErrReviewIDRequired
	}

	return s.authorizeReview(ctx, organizationID, reviewID)
}

// ListPending returns the organization's open reviews.
func (s *Review) ListPending(ctx context.Context, organizationID string) ([]*models.ReviewRequest, error) {
	if strings.TrimSpace(organizationID) == "" {
		return nil, ErrOrganizationIDRequired
	}

	reviews, err := s.persistence.ReviewRepository().ListPendingByOrganization(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending reviews: %w", err)
	}

	return reviews, nil
}

func (s *Review) validateDecisionRequest(req DecisionRequest) error {
	if strings.TrimSpace(req.ReviewID) == "" {
		return ErrReviewIDRequired
	}

	if strings.TrimSpace(req.OrganizationID) == "" {
		return ErrOrganizationIDRequired
	}

	if req.Status == "" {
		return ErrDecisionRequired
	}

	if !req.Status.IsValidDecision() {
		return NewValidationError(
			"SubmitDecision",
			"INVALID_DECISION",
			fmt.Sprintf("invalid decision %q", req.Status),
			ErrInvalidDecision,
		)
	}

	return nil
}

// authorizeReview resolves the review's owning organization through its
// execution and workflow. Any broken link or a different organization
// yields the same not-found answer, so callers cannot enumerate reviews
// outside their tenant.
func (s *Review) authorizeReview(ctx context.Context, organizationID, reviewID string) (*models.ReviewRequest, error) {
	review, err := s.persistence.ReviewRepository().GetByID(ctx, reviewID)
	if err != nil {
		if persistence.IsReviewNotFound(err) {
			return nil, ErrReviewNotFound
		}

		return nil, fmt.Errorf("failed to load review: %w", err)
	}

	execution, err := s.persistence.ExecutionRepository().GetByID(ctx, review.ExecutionID)
	if err != nil {
		if persistence.IsExecutionNotFound(err) {
			return nil, ErrReviewNotFound
		}

		return nil, fmt.Errorf("failed to load execution: %w", err)
	}

	workflow, err := s.persistence.WorkflowRepository().GetByID(ctx, execution.WorkflowID)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return nil, ErrReviewNotFound
		}

		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}

	if workflow.OrganizationID != organizationID {
		return nil, ErrReviewNotFound
	}

	return review, nil
}

func (s *Review) publishDecision(ctx context.Context, review *models.ReviewRequest, resumed bool) {
	if s.publisher == nil {
		return
	}

	event := events.ReviewDecided{
		BaseEvent: events.BaseEvent{
			Type:      events.ReviewDecidedEvent,
			Timestamp: time.Now().UTC(),
		},
		ReviewID:        review.ID,
		ExecutionID:     review.ExecutionID,
		Status:          review.Status,
		ReviewerID:      review.ReviewerID,
		WorkflowResumed: resumed,
	}

	if err := s.publisher.Publish(ctx, review.ID, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish review decided event",
			"review_id", review.ID, "error", err)
	}
}

func decisionMessage(status models.ReviewStatus, resumed bool) string {
	if resumed {
		return fmt.Sprintf("Review %s and workflow resumed", status)
	}

	return fmt.Sprintf("Review %s; workflow was not resumed", status)
}
