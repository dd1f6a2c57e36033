// Package web provides HTTP handlers and REST API endpoints for workflow
// and review management.
package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/crewdeck/crewdeck/pkg/models"
	"github.com/crewdeck/crewdeck/pkg/services"
)

// OrganizationHeader carries the caller's tenant on every request.
const OrganizationHeader = "X-Organization-ID"

const organizationLocal = "organization_id"

type APIHandlers struct {
	workflowService *services.Workflow
	reviewService   *services.Review
	validator       *validator.Validate
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	reviewService *services.Review,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		workflowService: workflowService,
		reviewService:   reviewService,
		validator:       validator,
	}
}

// RequireOrganization rejects requests without a tenant header. Handlers
// downstream read the organization from locals.
func RequireOrganization() fiber.Handler {
	return func(c fiber.Ctx) error {
		organizationID := c.Get(OrganizationHeader)
		if organizationID == "" {
			return unauthorized(c, OrganizationHeader+" header is required")
		}

		c.Locals(organizationLocal, organizationID)

		return c.Next()
	}
}

func organizationID(c fiber.Ctx) string {
	id, _ := c.Locals(organizationLocal).(string)

	return id
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.workflowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Crewdeck API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Crewdeck API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.workflowService.List(c.Context(), organizationID(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows": workflows,
		"count":     len(workflows),
	})
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.workflowService.Create(c.Context(), services.CreateRequest{
		OrganizationID: organizationID(c),
		Name:           req.Name,
		Description:    req.Description,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.workflowService.FetchByID(c.Context(), organizationID(c), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.workflowService.Update(c.Context(), organizationID(c), id, services.UpdateRequest{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

// ReplaceWorkflowSteps swaps the whole step list of a workflow.
func (h *APIHandlers) ReplaceWorkflowSteps(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req ReplaceStepsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid step list: "+err.Error())
	}

	if req.Steps == nil {
		return badRequest(c, "steps is required")
	}

	updated, err := h.workflowService.ReplaceSteps(c.Context(), organizationID(c), id, req.Steps)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

// ArchiveWorkflow retires a workflow; records are never hard-deleted.
func (h *APIHandlers) ArchiveWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	archived, err := h.workflowService.Archive(c.Context(), organizationID(c), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(archived)
}

func (h *APIHandlers) ActivateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	activated, err := h.workflowService.Activate(c.Context(), organizationID(c), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(activated)
}

// GetWorkflowGraph returns the compiled engine graph without deploying it.
func (h *APIHandlers) GetWorkflowGraph(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	graph, err := h.workflowService.Graph(c.Context(), organizationID(c), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(graph)
}

// RespondToReview submits a reviewer decision and resumes the paused
// execution.
func (h *APIHandlers) RespondToReview(c fiber.Ctx) error {
	var req ReviewResponseRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	outcome, err := h.reviewService.SubmitDecision(c.Context(), services.DecisionRequest{
		ReviewID:       req.ReviewID,
		OrganizationID: organizationID(c),
		Status:         models.ReviewStatus(req.Status),
		Feedback:       req.Feedback,
		EditedData:     req.EditedData,
		ReviewerID:     req.ReviewerID,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(outcome)
}

func (h *APIHandlers) GetReview(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Review ID is required")
	}

	review, err := h.reviewService.FetchReview(c.Context(), organizationID(c), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(review)
}

func (h *APIHandlers) GetPendingReviews(c fiber.Ctx) error {
	reviews, err := h.reviewService.ListPending(c.Context(), organizationID(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"reviews": reviews,
		"count":   len(reviews),
	})
}
