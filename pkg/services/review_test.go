package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewdeck/crewdeck/pkg/callback"
	"github.com/crewdeck/crewdeck/pkg/eventbus"
	"github.com/crewdeck/crewdeck/pkg/events"
	"github.com/crewdeck/crewdeck/pkg/models"
	"github.com/crewdeck/crewdeck/pkg/persistence/file"
	"github.com/crewdeck/crewdeck/pkg/resume"
)

type fakeResumer struct {
	result  *resume.Result
	err     error
	resumed []*models.ReviewRequest
}

func (r *fakeResumer) Resume(_ context.Context, review *models.ReviewRequest) (*resume.Result, error) {
	r.resumed = append(r.resumed, review)

	if r.err != nil {
		return nil, r.err
	}

	if r.result != nil {
		return r.result, nil
	}

	return &resume.Result{WorkflowResumed: true, Delivered: true}, nil
}

type capturingPublisher struct {
	published []eventbus.Event
}

func (p *capturingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.published = append(p.published, event)

	return nil
}

type reviewFixture struct {
	persistence *file.Persistence
	service     *Review
	resumer     *fakeResumer
	publisher   *capturingPublisher
}

func newReviewFixture(t *testing.T) *reviewFixture {
	t.Helper()

	p := file.NewPersistence(t.TempDir())

	allowList, err := callback.NewAllowList("http://engine.internal:5678")
	require.NoError(t, err)

	resumer := &fakeResumer{}
	publisher := &capturingPublisher{}
	service := NewReview(p, allowList, resumer, publisher, slog.Default())

	return &reviewFixture{
		persistence: p,
		service:     service,
		resumer:     resumer,
		publisher:   publisher,
	}
}

// seedPendingReview stores a workflow, execution, and pending review for
// the given organization and returns the review ID.
func (f *reviewFixture) seedPendingReview(t *testing.T, organizationID, resumeURL string) string {
	t.Helper()

	ctx := t.Context()
	now := time.Now().UTC()

	workflow := &models.Workflow{
		ID:             "wf-" + organizationID,
		Name:           "Invoice Approval",
		OrganizationID: organizationID,
		Status:         models.WorkflowStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, f.persistence.WorkflowRepository().Create(ctx, workflow))

	execution := &models.ExecutionRecord{
		ID:                  "exec-" + organizationID,
		WorkflowID:          workflow.ID,
		ExternalExecutionID: "n8n-" + organizationID,
		Status:              models.ExecutionStatusWaitingReview,
		StartedAt:           now,
		UpdatedAt:           now,
	}
	require.NoError(t, f.persistence.ExecutionRepository().Create(ctx, execution))

	review := &models.ReviewRequest{
		ID:          "rev-" + organizationID,
		ExecutionID: execution.ID,
		StepID:      "s2",
		Status:      models.ReviewStatusPending,
		ActionPayload: models.ReviewActionPayload{
			ResumeWebhookURL:  resumeURL,
			EngineExecutionID: execution.ExternalExecutionID,
			StepData:          map[string]any{"amount": 250.0},
		},
		CreatedAt: now,
	}
	require.NoError(t, f.persistence.ReviewRepository().Create(ctx, review))

	return review.ID
}

func TestSubmitDecisionApproved(t *testing.T) {
	f := newReviewFixture(t)
	reviewID := f.seedPendingReview(t, "org-a", "http://engine.internal:5678/webhook-waiting/review-s2")

	outcome, err := f.service.SubmitDecision(t.Context(), DecisionRequest{
		ReviewID:       reviewID,
		OrganizationID: "org-a",
		Status:         models.ReviewStatusApproved,
		Feedback:       "ship it",
		ReviewerID:     "user-1",
	})
	require.NoError(t, err)

	assert.True(t, outcome.Success)
	assert.Equal(t, reviewID, outcome.ReviewID)
	assert.Equal(t, models.ReviewStatusApproved, outcome.Status)
	assert.True(t, outcome.WorkflowResumed)

	// The resumer received the decided review, not the pending one.
	require.Len(t, f.resumer.resumed, 1)
	assert.Equal(t, models.ReviewStatusApproved, f.resumer.resumed[0].Status)
	assert.Equal(t, "ship it", f.resumer.resumed[0].Feedback)
	require.NotNil(t, f.resumer.resumed[0].ReviewedAt)

	require.Len(t, f.publisher.published, 1)
	decided, ok := f.publisher.published[0].(events.ReviewDecided)
	require.True(t, ok)
	assert.Equal(t, reviewID, decided.ReviewID)
	assert.True(t, decided.WorkflowResumed)
}

func TestSubmitDecisionValidation(t *testing.T) {
	f := newReviewFixture(t)

	tests := []struct {
		name      string
		request   DecisionRequest
		wantErr   error
		wantCheck func(error) bool
	}{
		{
			name:      "missing review id",
			request:   DecisionRequest{OrganizationID: "org-a", Status: models.ReviewStatusApproved},
			wantErr:   ErrReviewIDRequired,
			wantCheck: IsValidationError,
		},
		{
			name:      "missing organization",
			request:   DecisionRequest{ReviewID: "rev-1", Status: models.ReviewStatusApproved},
			wantErr:   ErrOrganizationIDRequired,
			wantCheck: IsAuthError,
		},
		{
			name:      "missing status",
			request:   DecisionRequest{ReviewID: "rev-1", OrganizationID: "org-a"},
			wantErr:   ErrDecisionRequired,
			wantCheck: IsValidationError,
		},
		{
			name:      "pending is not a decision",
			request:   DecisionRequest{ReviewID: "rev-1", OrganizationID: "org-a", Status: models.ReviewStatusPending},
			wantErr:   ErrInvalidDecision,
			wantCheck: IsValidationError,
		},
		{
			name:      "unknown status",
			request:   DecisionRequest{ReviewID: "rev-1", OrganizationID: "org-a", Status: "maybe"},
			wantErr:   ErrInvalidDecision,
			wantCheck: IsValidationError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.SubmitDecision(t.Context(), tt.request)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, tt.wantCheck(err))
		})
	}
}

func TestSubmitDecisionCrossTenantLooksLikeNotFound(t *testing.T) {
	f := newReviewFixture(t)
	reviewID := f.seedPendingReview(t, "org-a", "http://engine.internal:5678/webhook-waiting/review-s2")

	_, crossTenantErr := f.service.SubmitDecision(t.Context(), DecisionRequest{
		ReviewID:       reviewID,
		OrganizationID: "org-b",
		Status:         models.ReviewStatusApproved,
	})
	require.Error(t, crossTenantErr)

	_, missingErr := f.service.SubmitDecision(t.Context(), DecisionRequest{
		ReviewID:       "no-such-review",
		OrganizationID: "org-b",
		Status:         models.ReviewStatusApproved,
	})
	require.Error(t, missingErr)

	// Cross-tenant access and a genuinely missing review must be
	// indistinguishable to the caller.
	assert.ErrorIs(t, crossTenantErr, ErrReviewNotFound)
	assert.ErrorIs(t, missingErr, ErrReviewNotFound)
	assert.Equal(t, crossTenantErr.Error(), missingErr.Error())
	assert.Empty(t, f.resumer.resumed)
}

func TestSubmitDecisionBlockedResumeTargetLeavesReviewPending(t *testing.T) {
	f := newReviewFixture(t)
	reviewID := f.seedPendingReview(t, "org-a", "http://attacker.example.com/steal")

	_, err := f.service.SubmitDecision(t.Context(), DecisionRequest{
		ReviewID:       reviewID,
		OrganizationID: "org-a",
		Status:         models.ReviewStatusApproved,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCallbackNotAllowed)
	assert.True(t, IsValidationError(err))

	// The decision must not have been persisted.
	review, err := f.persistence.ReviewRepository().GetByID(t.Context(), reviewID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusPending, review.Status)
	assert.Empty(t, f.resumer.resumed)
}

func TestSubmitDecisionTwiceConflicts(t *testing.T) {
	f := newReviewFixture(t)
	reviewID := f.seedPendingReview(t, "org-a", "http://engine.internal:5678/webhook-waiting/review-s2")

	request := DecisionRequest{
		ReviewID:       reviewID,
		OrganizationID: "org-a",
		Status:         models.ReviewStatusRejected,
	}

	_, err := f.service.SubmitDecision(t.Context(), request)
	require.NoError(t, err)

	request.Status = models.ReviewStatusApproved

	_, err = f.service.SubmitDecision(t.Context(), request)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReviewAlreadyDecided)
	assert.True(t, IsConflictError(err))

	// The first decision stands.
	review, err := f.persistence.ReviewRepository().GetByID(t.Context(), reviewID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusRejected, review.Status)
}

func TestSubmitDecisionResumeFailureIsNonFatal(t *testing.T) {
	f := newReviewFixture(t)
	f.resumer.err = errors.New("engine unreachable")
	reviewID := f.seedPendingReview(t, "org-a", "http://engine.internal:5678/webhook-waiting/review-s2")

	outcome, err := f.service.SubmitDecision(t.Context(), DecisionRequest{
		ReviewID:       reviewID,
		OrganizationID: "org-a",
		Status:         models.ReviewStatusApproved,
	})
	require.NoError(t, err)

	assert.True(t, outcome.Success)
	assert.False(t, outcome.WorkflowResumed)
	require.NotEmpty(t, outcome.Warnings)
	assert.Contains(t, outcome.Warnings[0], "resume failed")

	// The decision was committed before the resume attempt.
	review, err := f.persistence.ReviewRepository().GetByID(t.Context(), reviewID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusApproved, review.Status)
}

func TestSubmitDecisionEditedCarriesEditedData(t *testing.T) {
	f := newReviewFixture(t)
	reviewID := f.seedPendingReview(t, "org-a", "http://engine.internal:5678/webhook-waiting/review-s2")

	outcome, err := f.service.SubmitDecision(t.Context(), DecisionRequest{
		ReviewID:       reviewID,
		OrganizationID: "org-a",
		Status:         models.ReviewStatusEdited,
		EditedData:     map[string]any{"amount": 199.0},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusEdited, outcome.Status)

	require.Len(t, f.resumer.resumed, 1)
	assert.Equal(t, map[string]any{"amount": 199.0}, f.resumer.resumed[0].EditedData)
}

func TestFetchReview(t *testing.T) {
	f := newReviewFixture(t)
	reviewID := f.seedPendingReview(t, "org-a", "http://engine.internal:5678/webhook-waiting/review-s2")

	review, err := f.service.FetchReview(t.Context(), "org-a", reviewID)
	require.NoError(t, err)
	assert.Equal(t, reviewID, review.ID)

	_, err = f.service.FetchReview(t.Context(), "org-b", reviewID)
	assert.ErrorIs(t, err, ErrReviewNotFound)
}

func TestListPending(t *testing.T) {
	f := newReviewFixture(t)
	f.seedPendingReview(t, "org-a", "http://engine.internal:5678/webhook-waiting/review-s2")
	f.seedPendingReview(t, "org-b", "http://engine.internal:5678/webhook-waiting/review-s2")

	reviews, err := f.service.ListPending(t.Context(), "org-a")
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, "rev-org-a", reviews[0].ID)

	_, err = f.service.ListPending(t.Context(), "")
	assert.ErrorIs(t, err, ErrOrganizationIDRequired)
}
