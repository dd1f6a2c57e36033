// Package events defines the audit event types published when workflows
// and reviews change state.
package events

import (
	"time"

	"github.com/crewdeck/crewdeck/pkg/models"
)

type EventType string

// Topic is the bus topic all audit events are published to.
const Topic = "crewdeck.audit"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ReviewDecidedEvent          EventType = "review.decided"
	WorkflowActivatedEvent      EventType = "workflow.activated"
	ExecutionStatusChangedEvent EventType = "execution.status.changed"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// ReviewDecided records a terminal review decision and whether the
// paused remote execution acknowledged the resume call.
type ReviewDecided struct {
	BaseEvent

	ReviewID        string              `json:"review_id"`
	ExecutionID     string              `json:"execution_id"`
	Status          models.ReviewStatus `json:"status"`
	ReviewerID      string              `json:"reviewer_id,omitempty"`
	WorkflowResumed bool                `json:"workflow_resumed"`
}

func (e ReviewDecided) GetType() EventType {
	return ReviewDecidedEvent
}

// WorkflowActivated records a successful compile-and-deploy of a
// workflow to the execution engine.
type WorkflowActivated struct {
	BaseEvent

	WorkflowID     string `json:"workflow_id"`
	OrganizationID string `json:"organization_id"`
	EngineID       string `json:"engine_id"`
	NodeCount      int    `json:"node_count"`
}

func (e WorkflowActivated) GetType() EventType {
	return WorkflowActivatedEvent
}

// ExecutionStatusChanged records a status reconciliation applied to an
// execution record after a review decision.
type ExecutionStatusChanged struct {
	BaseEvent

	ExecutionID         string                 `json:"execution_id"`
	ExternalExecutionID string                 `json:"external_execution_id,omitempty"`
	Status              models.ExecutionStatus `json:"status"`
}

func (e ExecutionStatusChanged) GetType() EventType {
	return ExecutionStatusChangedEvent
}
