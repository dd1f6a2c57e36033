package models

import "time"

// ReviewStatus represents the state of a human review request. Pending is
// the initial state; the other three are terminal.
type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusRejected ReviewStatus = "rejected"
	ReviewStatusEdited   ReviewStatus = "edited"
)

// IsTerminal reports whether the status is a final decision.
func (s ReviewStatus) IsTerminal() bool {
	return s == ReviewStatusApproved || s == ReviewStatusRejected || s == ReviewStatusEdited
}

// IsValidDecision reports whether the status is one a reviewer may submit.
func (s ReviewStatus) IsValidDecision() bool {
	return s.IsTerminal()
}

// ReviewActionPayload is the resume context stored when a human-action
// wait node pauses a remote execution. The JSON keys match the engine's
// wire contract.
type ReviewActionPayload struct {
	ResumeWebhookURL  string         `json:"resumeWebhookUrl,omitempty"`
	EngineExecutionID string         `json:"n8nExecutionId,omitempty"`
	CallbackURL       string         `json:"callbackUrl,omitempty"` // Legacy secondary notification target
	StepData          map[string]any `json:"stepData,omitempty"`    // Original step data presented to the reviewer
}

// ChatMessage is one entry of the conversation shown alongside a review.
type ChatMessage struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	SentAt  time.Time `json:"sent_at"`
}

// ReviewRequest is a human approval gate created when a human-action step
// is reached during remote execution. It is decided at most once and
// never deleted.
type ReviewRequest struct {
	ID            string              `json:"id"`
	ExecutionID   string              `json:"execution_id"`
	StepID        string              `json:"step_id"`
	StepIndex     int                 `json:"step_index"`
	WorkerName    string              `json:"worker_name"`
	Status        ReviewStatus        `json:"status"`
	ActionPayload ReviewActionPayload `json:"action_payload"`
	ReviewerID    string              `json:"reviewer_id,omitempty"`
	Feedback      string              `json:"feedback,omitempty"`
	EditedData    map[string]any      `json:"edited_data,omitempty"`
	ReviewedAt    *time.Time          `json:"reviewed_at,omitempty"`
	ChatHistory   []ChatMessage       `json:"chat_history,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}
