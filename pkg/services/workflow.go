package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/crewdeck/crewdeck/pkg/compiler"
	"github.com/crewdeck/crewdeck/pkg/eventbus"
	"github.com/crewdeck/crewdeck/pkg/events"
	"github.com/crewdeck/crewdeck/pkg/models"
	"github.com/crewdeck/crewdeck/pkg/otelhelper"
	"github.com/crewdeck/crewdeck/pkg/persistence"
)

// ErrWorkflowNotFound is returned when a workflow is not found or belongs
// to another organization.
var ErrWorkflowNotFound = persistence.ErrWorkflowNotFound

// Deployer creates and activates workflows on the execution engine.
type Deployer interface {
	CreateWorkflow(ctx context.Context, graph *compiler.Graph) (string, error)
	ActivateWorkflow(ctx context.Context, engineID string) error
}

// Workflow implements workflow management and deployment.
type Workflow struct {
	persistence     persistence.Persistence
	deployer        Deployer
	baseCallbackURL string
	publisher       eventbus.EventPublisher
	tracer          trace.Tracer
	logger          *slog.Logger
}

func NewWorkflow(
	p persistence.Persistence,
	deployer Deployer,
	baseCallbackURL string,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *Workflow {
	return &Workflow{
		persistence:     p,
		deployer:        deployer,
		baseCallbackURL: baseCallbackURL,
		publisher:       publisher,
		tracer:          otel.Tracer("crewdeck.workflow"),
		logger:          logger.With("module", "workflow_service"),
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	if err := s.persistence.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// CreateRequest carries the fields of a new workflow.
type CreateRequest struct {
	OrganizationID string
	Name           string
	Description    string
}

// Create stores a new draft workflow with no steps.
func (s *Workflow) Create(ctx context.Context, req CreateRequest) (*models.Workflow, error) {
	if strings.TrimSpace(req.OrganizationID) == "" {
		return nil, ErrOrganizationIDRequired
	}

	if strings.TrimSpace(req.Name) == "" {
		return nil, ErrWorkflowNameRequired
	}

	now := time.Now().UTC()
	workflow := &models.Workflow{
		ID:             uuid.New().String(),
		Name:           strings.TrimSpace(req.Name),
		Description:    req.Description,
		OrganizationID: req.OrganizationID,
		Status:         models.WorkflowStatusDraft,
		Steps:          []*models.WorkflowStep{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.persistence.WorkflowRepository().Create(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	return workflow, nil
}

// FetchByID returns a workflow the organization owns.
func (s *Workflow) FetchByID(ctx context.Context, organizationID, id string) (*models.Workflow, error) {
	workflow, err := s.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return nil, ErrWorkflowNotFound
		}

		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}

	// Same answer for missing and foreign workflows.
	if workflow.OrganizationID != organizationID {
		return nil, ErrWorkflowNotFound
	}

	return workflow, nil
}

// List returns the organization's workflows.
func (s *Workflow) List(ctx context.Context, organizationID string) ([]*models.Workflow, error) {
	if strings.TrimSpace(organizationID) == "" {
		return nil, ErrOrganizationIDRequired
	}

	workflows, err := s.persistence.WorkflowRepository().ListByOrganization(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return workflows, nil
}

// UpdateRequest carries mutable workflow metadata.
type UpdateRequest struct {
	Name        string
	Description string
}

// Update changes a workflow's name and description.
func (s *Workflow) Update(ctx context.Context, organizationID, id string, req UpdateRequest) (*models.Workflow, error) {
	workflow, err := s.FetchByID(ctx, organizationID, id)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(req.Name) == "" {
		return nil, ErrWorkflowNameRequired
	}

	workflow.Name = strings.TrimSpace(req.Name)
	workflow.Description = req.Description
	workflow.UpdatedAt = time.Now().UTC()

	if err := s.persistence.WorkflowRepository().Update(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	return workflow, nil
}

// ReplaceSteps swaps a workflow's step list wholesale after validating
// every step's requirements payload against its type's schema.
func (s *Workflow) ReplaceSteps(ctx context.Context, organizationID, id string, steps []*models.WorkflowStep) (*models.Workflow, error) {
	workflow, err := s.FetchByID(ctx, organizationID, id)
	if err != nil {
		return nil, err
	}

	if !workflow.IsEditable() {
		return nil, NewConflictError(
			"ReplaceSteps",
			"WORKFLOW_NOT_EDITABLE",
			fmt.Sprintf("workflow %s is %s and cannot be edited", id, workflow.Status),
			ErrWorkflowNotEditable,
		)
	}

	if err := s.validateSteps(steps); err != nil {
		return nil, err
	}

	if err := s.persistence.WorkflowRepository().ReplaceSteps(ctx, id, steps); err != nil {
		return nil, fmt.Errorf("failed to replace steps: %w", err)
	}

	workflow.Steps = steps
	workflow.UpdatedAt = time.Now().UTC()

	return workflow, nil
}

// Activate compiles the workflow, deploys it to the execution engine,
// and marks it active.
func (s *Workflow) Activate(ctx context.Context, organizationID, id string) (*models.Workflow, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "workflow.activate",
		attribute.String(otelhelper.WorkflowIDKey, id),
		attribute.String(otelhelper.OrganizationIDKey, organizationID),
	)
	defer span.End()

	activated, err := s.activate(ctx, organizationID, id)
	if err != nil {
		otelhelper.SetError(span, err)
	}

	return activated, err
}

func (s *Workflow) activate(ctx context.Context, organizationID, id string) (*models.Workflow, error) {
	workflow, err := s.FetchByID(ctx, organizationID, id)
	if err != nil {
		return nil, err
	}

	if workflow.Status == models.WorkflowStatusArchived {
		return nil, NewConflictError(
			"Activate",
			"WORKFLOW_NOT_ACTIVATABLE",
			fmt.Sprintf("workflow %s is archived", id),
			ErrWorkflowNotActivatable,
		)
	}

	if len(workflow.Steps) == 0 {
		return nil, NewValidationError(
			"Activate",
			"WORKFLOW_EMPTY",
			fmt.Sprintf("workflow %s has no steps", id),
			ErrStepsInvalid,
		)
	}

	graph := compiler.Compile(workflow, s.baseCallbackURL)

	engineID, err := s.deployer.CreateWorkflow(ctx, graph)
	if err != nil {
		return nil, fmt.Errorf("failed to deploy workflow to engine: %w", err)
	}

	if err := s.deployer.ActivateWorkflow(ctx, engineID); err != nil {
		return nil, fmt.Errorf("failed to activate workflow on engine: %w", err)
	}

	workflow.EngineID = engineID
	workflow.Status = models.WorkflowStatusActive
	workflow.UpdatedAt = time.Now().UTC()

	if err := s.persistence.WorkflowRepository().Update(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to store engine deployment: %w", err)
	}

	s.publishActivated(ctx, workflow, len(graph.Nodes))

	return workflow, nil
}

// Archive retires a workflow. Archived workflows stay readable but
// reject edits and activation; archiving is idempotent.
func (s *Workflow) Archive(ctx context.Context, organizationID, id string) (*models.Workflow, error) {
	workflow, err := s.FetchByID(ctx, organizationID, id)
	if err != nil {
		return nil, err
	}

	if workflow.Status == models.WorkflowStatusArchived {
		return workflow, nil
	}

	if err := s.persistence.WorkflowRepository().UpdateStatus(ctx, id, models.WorkflowStatusArchived); err != nil {
		return nil, fmt.Errorf("failed to archive workflow: %w", err)
	}

	workflow.Status = models.WorkflowStatusArchived
	workflow.UpdatedAt = time.Now().UTC()

	return workflow, nil
}

// Graph compiles the workflow without deploying it, for previews.
func (s *Workflow) Graph(ctx context.Context, organizationID, id string) (*compiler.Graph, error) {
	workflow, err := s.FetchByID(ctx, organizationID, id)
	if err != nil {
		return nil, err
	}

	return compiler.Compile(workflow, s.baseCallbackURL), nil
}

func (s *Workflow) validateSteps(steps []*models.WorkflowStep) error {
	seen := make(map[string]struct{}, len(steps))

	for _, step := range steps {
		if strings.TrimSpace(step.ID) == "" {
			return NewValidationError(
				"ReplaceSteps",
				"STEP_ID_REQUIRED",
				"every step needs an id",
				ErrStepsInvalid,
			)
		}

		if _, dup := seen[step.ID]; dup {
			return NewValidationError(
				"ReplaceSteps",
				"STEP_ID_DUPLICATE",
				fmt.Sprintf("duplicate step id %q", step.ID),
				ErrStepsInvalid,
			)
		}

		seen[step.ID] = struct{}{}

		if step.AssignedTo != nil && step.Type != models.StepTypeAction {
			return NewValidationError(
				"ReplaceSteps",
				"STEP_ASSIGNMENT_INVALID",
				fmt.Sprintf("step %s: assignment is only valid on action steps", step.ID),
				ErrStepsInvalid,
			)
		}

		if err := s.validateRequirements(step); err != nil {
			return err
		}
	}

	return nil
}

func (s *Workflow) validateRequirements(step *models.WorkflowStep) error {
	requirements := step.Requirements
	if requirements == nil {
		return nil
	}

	schemaLoader := gojsonschema.NewGoLoader(models.RequirementsSchema(step.Type))
	documentLoader := gojsonschema.NewGoLoader(requirements)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("failed to validate step %s requirements: %w", step.ID, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return NewValidationError(
			"ReplaceSteps",
			"STEP_REQUIREMENTS_INVALID",
			fmt.Sprintf("step %s: %s", step.ID, strings.Join(details, "; ")),
			ErrStepsInvalid,
		)
	}

	return nil
}

func (s *Workflow) publishActivated(ctx context.Context, workflow *models.Workflow, nodeCount int) {
	if s.publisher == nil {
		return
	}

	event := events.WorkflowActivated{
		BaseEvent: events.BaseEvent{
			Type:      events.WorkflowActivatedEvent,
			Timestamp: time.Now().UTC(),
		},
		WorkflowID:     workflow.ID,
		OrganizationID: workflow.OrganizationID,
		EngineID:       workflow.EngineID,
		NodeCount:      nodeCount,
	}

	if err := s.publisher.Publish(ctx, workflow.ID, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish workflow activated event",
			"workflow_id", workflow.ID, "error", err)
	}
}
