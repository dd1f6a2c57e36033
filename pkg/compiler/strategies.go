package compiler

import (
	"strings"

	"github.com/crewdeck/crewdeck/pkg/models"
	"github.com/robfig/cron/v3"
)

// Callback endpoint paths appended to the base callback URL. The remote
// executor calls back into these when the corresponding node runs.
const (
	aiActionPath   = "/ai-actions"
	reviewPath     = "/reviews"
	decisionPath   = "/decisions"
	completionPath = "/executions/complete"
)

// waitWebhookPrefix prefixes the wait node's webhook path suffix. The
// step ID follows so a resume call can be traced back to its step.
const waitWebhookPrefix = "review-"

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// emitStep returns the node(s) a single non-trigger step translates to.
// Every missing or partial configuration degrades to a safe default
// node; emission never fails.
func emitStep(step *models.WorkflowStep, baseCallbackURL string, names *nameSet) []Node {
	switch step.Type {
	case models.StepTypeAction:
		if step.IsHumanAction() {
			return emitHumanAction(step, baseCallbackURL, names)
		}

		return []Node{emitAIAction(step, baseCallbackURL, names)}
	case models.StepTypeDecision:
		return []Node{emitDecision(step, baseCallbackURL, names)}
	case models.StepTypeSubWorkflow:
		return []Node{emitSubWorkflow(step, names)}
	case models.StepTypeEnd:
		return []Node{emitEnd(step, baseCallbackURL, names)}
	default:
		// Unknown types fall back to a placeholder rather than failing.
		return []Node{{
			Name:       names.claim(step.Label, "Step"),
			Type:       NodeTypeNoOp,
			Parameters: map[string]any{},
		}}
	}
}

// emitTrigger translates the anchoring step into exactly one trigger
// node. The step at index 0 is always treated as the trigger regardless
// of its declared type; a missing or unusable configuration degrades to
// a manual trigger.
func emitTrigger(step *models.WorkflowStep, names *nameSet) Node {
	name := names.claim(step.Label, "Trigger")
	req := step.TriggerRequirements()

	switch req.TriggerType {
	case models.TriggerTypeSchedule:
		if _, err := cronParser.Parse(req.Cron); err != nil {
			break
		}

		return Node{
			Name: name,
			Type: NodeTypeScheduleTrigger,
			Parameters: map[string]any{
				"rule": map[string]any{
					"interval": []any{
						map[string]any{
							"field":      "cronExpression",
							"expression": req.Cron,
						},
					},
				},
			},
		}
	case models.TriggerTypeWebhook:
		if req.WebhookPath == "" {
			break
		}

		return Node{
			Name: name,
			Type: NodeTypeWebhookTrigger,
			Parameters: map[string]any{
				"path":       strings.TrimPrefix(req.WebhookPath, "/"),
				"httpMethod": "POST",
			},
		}
	case models.TriggerTypeEmail:
		return Node{
			Name: name,
			Type: NodeTypeEmailTrigger,
			Parameters: map[string]any{
				"filter": req.EmailFilter,
			},
		}
	}

	return Node{
		Name:       name,
		Type:       NodeTypeManualTrigger,
		Parameters: map[string]any{},
	}
}

// emitAIAction emits one HTTP-call node targeting the AI action
// endpoint. The step's blueprint rides in the request body so the remote
// executor can enforce permitted operations before acting.
func emitAIAction(step *models.WorkflowStep, baseCallbackURL string, names *nameSet) Node {
	workerName := ""
	if step.AssignedTo != nil {
		workerName = step.AssignedTo.Name
	}

	return Node{
		Name: names.claim(step.Label, "AI Action"),
		Type: NodeTypeHTTPRequest,
		Parameters: map[string]any{
			"url":    baseCallbackURL + aiActionPath,
			"method": "POST",
			"body": map[string]any{
				"stepId":     step.ID,
				"label":      step.Label,
				"workerName": workerName,
				"blueprint":  step.ActionRequirements().Blueprint,
			},
		},
	}
}

// emitHumanAction emits the review-request/wait node pair. The pair is
// chained internally so it keeps exactly one incoming and one outgoing
// edge to neighboring steps. The wait node resumes via webhook and its
// path suffix embeds the step ID.
func emitHumanAction(step *models.WorkflowStep, baseCallbackURL string, names *nameSet) []Node {
	workerName := ""
	if step.AssignedTo != nil {
		workerName = step.AssignedTo.Name
	}

	request := Node{
		Name: names.claim(step.Label, "Review Request"),
		Type: NodeTypeHTTPRequest,
		Parameters: map[string]any{
			"url":    baseCallbackURL + reviewPath,
			"method": "POST",
			"body": map[string]any{
				"stepId":     step.ID,
				"label":      step.Label,
				"workerName": workerName,
			},
		},
	}

	wait := Node{
		Name: names.claim(step.Label+" Wait", "Wait"),
		Type: NodeTypeWait,
		Parameters: map[string]any{
			"resume": "webhook",
			"options": map[string]any{
				"webhookSuffix": waitWebhookPrefix + step.ID,
			},
		},
	}

	return []Node{request, wait}
}

// emitDecision emits one HTTP-call node to the generic decision
// endpoint. Decision steps are linearized like any other step; the
// compiled graph carries no conditional branches.
func emitDecision(step *models.WorkflowStep, baseCallbackURL string, names *nameSet) Node {
	return Node{
		Name: names.claim(step.Label, "Decision"),
		Type: NodeTypeHTTPRequest,
		Parameters: map[string]any{
			"url":    baseCallbackURL + decisionPath,
			"method": "POST",
			"body": map[string]any{
				"stepId": step.ID,
				"label":  step.Label,
			},
		},
	}
}

// emitSubWorkflow emits an execute-sub-workflow node when a target is
// configured, and a no-op placeholder otherwise. An unconfigured
// sub-workflow is a deliberate fallback, not an error.
func emitSubWorkflow(step *models.WorkflowStep, names *nameSet) Node {
	req := step.SubWorkflowRequirements()
	if req.SubWorkflowID == "" {
		return Node{
			Name:       names.claim(step.Label, "Sub-Workflow"),
			Type:       NodeTypeNoOp,
			Parameters: map[string]any{},
		}
	}

	return Node{
		Name: names.claim(step.Label, "Sub-Workflow"),
		Type: NodeTypeExecuteWorkflow,
		Parameters: map[string]any{
			"workflowId": req.SubWorkflowID,
		},
	}
}

// emitEnd emits one HTTP-call node to the execution-completion endpoint.
func emitEnd(step *models.WorkflowStep, baseCallbackURL string, names *nameSet) Node {
	return Node{
		Name: names.claim(step.Label, "End"),
		Type: NodeTypeHTTPRequest,
		Parameters: map[string]any{
			"url":    baseCallbackURL + completionPath,
			"method": "POST",
			"body": map[string]any{
				"stepId": step.ID,
			},
		},
	}
}
