// Package audit consumes the audit event stream and records every
// event as a structured log line. It is the default sink for
// single-process deployments where no external consumer is attached.
package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/crewdeck/crewdeck/pkg/eventbus"
	"github.com/crewdeck/crewdeck/pkg/events"
)

type Logger struct {
	eventBus eventbus.EventBus
	logger   *slog.Logger
}

func NewLogger(eventBus eventbus.EventBus, logger *slog.Logger) *Logger {
	return &Logger{
		eventBus: eventBus,
		logger:   logger.With("module", "audit"),
	}
}

// Start registers the event handlers and begins consuming the audit
// topic. It returns once the subscription is established; consumption
// continues in the background until the bus is closed.
func (a *Logger) Start(ctx context.Context) error {
	handlers := map[events.EventType]eventbus.EventHandler{
		events.ReviewDecidedEvent:          a.handleReviewDecided,
		events.WorkflowActivatedEvent:      a.handleWorkflowActivated,
		events.ExecutionStatusChangedEvent: a.handleExecutionStatusChanged,
	}

	for eventType, handler := range handlers {
		if err := a.eventBus.Handle(eventType, handler); err != nil {
			return err
		}
	}

	return a.eventBus.Subscribe(ctx)
}

func (a *Logger) handleReviewDecided(ctx context.Context, event any) error {
	decided, ok := event.(*events.ReviewDecided)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	a.logger.InfoContext(ctx, "Review decided",
		"review_id", decided.ReviewID,
		"execution_id", decided.ExecutionID,
		"status", decided.Status,
		"reviewer_id", decided.ReviewerID,
		"workflow_resumed", decided.WorkflowResumed,
	)

	return nil
}

func (a *Logger) handleWorkflowActivated(ctx context.Context, event any) error {
	activated, ok := event.(*events.WorkflowActivated)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	a.logger.InfoContext(ctx, "Workflow activated",
		"workflow_id", activated.WorkflowID,
		"organization_id", activated.OrganizationID,
		"engine_id", activated.EngineID,
		"node_count", activated.NodeCount,
	)

	return nil
}

func (a *Logger) handleExecutionStatusChanged(ctx context.Context, event any) error {
	changed, ok := event.(*events.ExecutionStatusChanged)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	a.logger.InfoContext(ctx, "Execution status changed",
		"execution_id", changed.ExecutionID,
		"external_execution_id", changed.ExternalExecutionID,
		"status", changed.Status,
	)

	return nil
}
