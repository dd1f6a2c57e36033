package resume

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
	"github.com/crewdeck/crewdeck/pkg/models"
	"github.com/crewdeck/crewdeck/pkg/persistence"
)

type postedCall struct {
	url     string
	payload map[string]any
}

type fakePoster struct {
	calls   []postedCall
	failFor map[string]error
}

func (p *fakePoster) PostJSON(_ context.Context, url string, payload any) error {
	body, _ := payload.(map[string]any)
	p.calls = append(p.calls, postedCall{url: url, payload: body})

	if err, ok := p.failFor[url]; ok {
		return err
	}

	return nil
}

type fakeExecutionRepo struct {
	statusByExternalID map[string]models.ExecutionStatus
	missing            bool
	failure            error
}

func (r *fakeExecutionRepo) Create(context.Context, *models.ExecutionRecord) error {
	return nil
}

func (r *fakeExecutionRepo) GetByID(context.Context, string) (*models.ExecutionRecord, error) {
	return nil, persistence.ErrExecutionNotFound
}

func (r *fakeExecutionRepo) GetByExternalID(context.Context, string) (*models.ExecutionRecord, error) {
	return nil, persistence.ErrExecutionNotFound
}

func (r *fakeExecutionRepo) UpdateStatusByExternalID(_ context.Context, externalID string, status models.ExecutionStatus) error {
	if r.failure != nil {
		return r.failure
	}

	if r.missing {
		return persistence.ErrExecutionNotFound
	}

	if r.statusByExternalID == nil {
		r.statusByExternalID = make(map[string]models.ExecutionStatus)
	}

	r.statusByExternalID[externalID] = status

	return nil
}

type fakePublisher struct {
	published []eventbus.Event
}

func (p *fakePublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.published = append(p.published, event)

	return nil
}

func decidedReview(status models.ReviewStatus, payload models.ReviewActionPayload) *models.ReviewRequest {
	reviewedAt := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

	return &models.ReviewRequest{
		ID:            "rev-1",
		ExecutionID:   "exec-1",
		StepID:        "s2",
		Status:        status,
		ActionPayload: payload,
		ReviewerID:    "user-9",
		Feedback:      "looks good",
		ReviewedAt:    &reviewedAt,
		CreatedAt:     reviewedAt.Add(-time.Hour),
	}
}

func newTestOrchestrator(t *testing.T, poster *fakePoster, executions *fakeExecutionRepo, publisher *fakePublisher) *Orchestrator {
	t.Helper()

	allowList, err := callback.NewAllowList("http://engine.internal:5678")
	require.NoError(t, err)

	return NewOrchestrator(allowList, poster, executions, publisher, slog.Default())
}

func TestResumeApprovedDeliversAndReconciles(t *testing.T) {
	poster := &fakePoster{}
	executions := &fakeExecutionRepo{}
	publisher := &fakePublisher{}
	orchestrator := newTestOrchestrator(t, poster, executions, publisher)

	review := decidedReview(models.ReviewStatusApproved, models.ReviewActionPayload{
		ResumeWebhookURL:  "http://engine.internal:5678/webhook-waiting/review-s2",
		EngineExecutionID: "n8n-42",
		StepData:          map[string]any{"amount": 120.5},
	})

	result, err := orchestrator.Resume(context.Background(), review)
	require.NoError(t, err)

	assert.True(t, result.WorkflowResumed)
	assert.True(t, result.Delivered)
	assert.Empty(t, result.Warnings)

	require.Len(t, poster.calls, 1)
	payload := poster.calls[0].payload
	assert.Equal(t, true, payload["approved"])
	assert.Equal(t, "rev-1", payload["reviewId"])
	assert.Equal(t, "approved", payload["status"])
	assert.Equal(t, map[string]any{"amount": 120.5}, payload["responseData"])
	assert.Equal(t, "2025-03-14T09:30:00Z", payload["reviewedAt"])

	assert.Equal(t, models.ExecutionStatusRunning, executions.statusByExternalID["n8n-42"])
	require.Len(t, publisher.published, 1)
}

func TestResumeRejectedFailsExecution(t *testing.T) {
	poster := &fakePoster{}
	executions := &fakeExecutionRepo{}
	orchestrator := newTestOrchestrator(t, poster, executions, &fakePublisher{})

	review := decidedReview(models.ReviewStatusRejected, models.ReviewActionPayload{
		ResumeWebhookURL:  "http://engine.internal:5678/webhook-waiting/review-s2",
		EngineExecutionID: "n8n-42",
	})

	result, err := orchestrator.Resume(context.Background(), review)
	require.NoError(t, err)

	assert.True(t, result.WorkflowResumed)
	assert.Equal(t, false, poster.calls[0].payload["approved"])
	assert.Equal(t, models.ExecutionStatusFailed, executions.statusByExternalID["n8n-42"])
}

func TestResumeEditedUsesEditedDataAsResponse(t *testing.T) {
	poster := &fakePoster{}
	orchestrator := newTestOrchestrator(t, poster, &fakeExecutionRepo{}, &fakePublisher{})

	review := decidedReview(models.ReviewStatusEdited, models.ReviewActionPayload{
		ResumeWebhookURL: "http://engine.internal:5678/webhook-waiting/review-s2",
		StepData:         map[string]any{"amount": 120.5},
	})
	review.EditedData = map[string]any{"amount": 99.0}

	_, err := orchestrator.Resume(context.Background(), review)
	require.NoError(t, err)

	payload := poster.calls[0].payload
	assert.Equal(t, true, payload["approved"])
	assert.Equal(t, map[string]any{"amount": 99.0}, payload["responseData"])
	assert.Equal(t, map[string]any{"amount": 99.0}, payload["editedData"])
}

func TestResumeBlockedWebhookIsHardError(t *testing.T) {
	poster := &fakePoster{}
	orchestrator := newTestOrchestrator(t, poster, &fakeExecutionRepo{}, &fakePublisher{})

	review := decidedReview(models.ReviewStatusApproved, models.ReviewActionPayload{
		ResumeWebhookURL: "http://evil.example.com/exfiltrate",
	})

	_, err := orchestrator.Resume(context.Background(), review)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCallbackBlocked)
	assert.Empty(t, poster.calls)
}

func TestResumeDeliveryFailureIsNonFatal(t *testing.T) {
	resumeURL := "http://engine.internal:5678/webhook-waiting/review-s2"
	poster := &fakePoster{failFor: map[string]error{resumeURL: errors.New("connection refused")}}
	executions := &fakeExecutionRepo{}
	orchestrator := newTestOrchestrator(t, poster, executions, &fakePublisher{})

	review := decidedReview(models.ReviewStatusApproved, models.ReviewActionPayload{
		ResumeWebhookURL:  resumeURL,
		EngineExecutionID: "n8n-42",
	})

	result, err := orchestrator.Resume(context.Background(), review)
	require.NoError(t, err)

	assert.False(t, result.WorkflowResumed)
	assert.False(t, result.Delivered)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "delivery failed")

	// Reconciliation still runs so the record does not stay stuck.
	assert.Equal(t, models.ExecutionStatusRunning, executions.statusByExternalID["n8n-42"])
}

func TestResumeWithoutWebhookStillReconciles(t *testing.T) {
	poster := &fakePoster{}
	executions := &fakeExecutionRepo{}
	orchestrator := newTestOrchestrator(t, poster, executions, &fakePublisher{})

	review := decidedReview(models.ReviewStatusApproved, models.ReviewActionPayload{
		EngineExecutionID: "n8n-42",
	})

	result, err := orchestrator.Resume(context.Background(), review)
	require.NoError(t, err)

	assert.False(t, result.WorkflowResumed)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "no resume webhook")
	assert.Equal(t, models.ExecutionStatusRunning, executions.statusByExternalID["n8n-42"])
	assert.Empty(t, poster.calls)
}

func TestResumeMissingExecutionRecordIsWarning(t *testing.T) {
	poster := &fakePoster{}
	executions := &fakeExecutionRepo{missing: true}
	publisher := &fakePublisher{}
	orchestrator := newTestOrchestrator(t, poster, executions, publisher)

	review := decidedReview(models.ReviewStatusApproved, models.ReviewActionPayload{
		ResumeWebhookURL:  "http://engine.internal:5678/webhook-waiting/review-s2",
		EngineExecutionID: "n8n-missing",
	})

	result, err := orchestrator.Resume(context.Background(), review)
	require.NoError(t, err)

	assert.True(t, result.WorkflowResumed)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "no execution record")
	assert.Empty(t, publisher.published)
}

func TestResumeLegacyCallbackIsBestEffort(t *testing.T) {
	legacyURL := "http://engine.internal:5678/legacy/callback"
	poster := &fakePoster{failFor: map[string]error{legacyURL: errors.New("timeout")}}
	orchestrator := newTestOrchestrator(t, poster, &fakeExecutionRepo{}, &fakePublisher{})

	review := decidedReview(models.ReviewStatusApproved, models.ReviewActionPayload{
		ResumeWebhookURL: "http://engine.internal:5678/webhook-waiting/review-s2",
		CallbackURL:      legacyURL,
	})

	result, err := orchestrator.Resume(context.Background(), review)
	require.NoError(t, err)

	assert.True(t, result.WorkflowResumed)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "legacy callback")
	assert.Len(t, poster.calls, 2)
}

func TestResumeBlockedLegacyCallbackIsSkipped(t *testing.T) {
	poster := &fakePoster{}
	orchestrator := newTestOrchestrator(t, poster, &fakeExecutionRepo{}, &fakePublisher{})

	review := decidedReview(models.ReviewStatusApproved, models.ReviewActionPayload{
		ResumeWebhookURL: "http://engine.internal:5678/webhook-waiting/review-s2",
		CallbackURL:      "http://attacker.example.com/hook",
	})

	result, err := orchestrator.Resume(context.Background(), review)
	require.NoError(t, err)

	assert.True(t, result.WorkflowResumed)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "not allow-listed")
	assert.Len(t, poster.calls, 1)
}
