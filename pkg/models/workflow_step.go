package models

import (
	"encoding/json"
	"fmt"
)

// StepType tags a workflow step with its translation rule.
type StepType string

const (
	StepTypeTrigger     StepType = "trigger"
	StepTypeAction      StepType = "action"
	StepTypeDecision    StepType = "decision"
	StepTypeEnd         StepType = "end"
	StepTypeSubWorkflow StepType = "subworkflow"
)

// AssigneeKind distinguishes who carries out an action step.
type AssigneeKind string

const (
	AssigneeKindAI    AssigneeKind = "ai"
	AssigneeKindHuman AssigneeKind = "human"
)

// Assignment names the worker an action step is assigned to. Only
// meaningful for action steps.
type Assignment struct {
	Kind AssigneeKind `json:"kind" validate:"required,oneof=ai human"`
	Name string       `json:"name"`
}

// TriggerType selects how a workflow run is started.
type TriggerType string

const (
	TriggerTypeManual   TriggerType = "manual"
	TriggerTypeSchedule TriggerType = "schedule"
	TriggerTypeWebhook  TriggerType = "webhook"
	TriggerTypeEmail    TriggerType = "email"
)

// StepRequirements is the per-type requirements payload of a step. Each
// step type has exactly one valid variant; constructing a step with a
// mismatched variant fails.
type StepRequirements interface {
	appliesTo() StepType
}

// TriggerRequirements configures a trigger step. Exactly the field
// matching TriggerType is read; the rest are ignored.
type TriggerRequirements struct {
	TriggerType TriggerType `json:"trigger_type"`
	Cron        string      `json:"cron,omitempty"`         // schedule
	WebhookPath string      `json:"webhook_path,omitempty"` // webhook
	EmailFilter string      `json:"email_filter,omitempty"` // email
}

func (TriggerRequirements) appliesTo() StepType { return StepTypeTrigger }

// Blueprint is the per-step allow/deny list of operations an AI-assigned
// action may perform. Enforced by the remote executor, carried verbatim
// through the compiler.
type Blueprint struct {
	GreenList []string `json:"greenList"`
	RedList   []string `json:"redList"`
}

// ActionRequirements configures an action step.
type ActionRequirements struct {
	Blueprint Blueprint `json:"blueprint"`
}

func (ActionRequirements) appliesTo() StepType { return StepTypeAction }

// SubWorkflowRequirements configures a sub-workflow step. An empty
// SubWorkflowID is a valid "not yet configured" state.
type SubWorkflowRequirements struct {
	SubWorkflowID string `json:"sub_workflow_id,omitempty"`
}

func (SubWorkflowRequirements) appliesTo() StepType { return StepTypeSubWorkflow }

// NoRequirements is the empty payload of decision and end steps.
type NoRequirements struct{}

func (NoRequirements) appliesTo() StepType { return "" }

// WorkflowStep is one entry in a workflow's ordered step list.
type WorkflowStep struct {
	ID           string           `json:"id"`
	Label        string           `json:"label"`
	Type         StepType         `json:"type"`
	Order        int              `json:"order"`
	AssignedTo   *Assignment      `json:"assigned_to,omitempty"`
	Requirements StepRequirements `json:"-"`
}

// NewStep builds a step and checks that the requirements variant matches
// the step type. AssignedTo is only accepted on action steps.
func NewStep(id, label string, stepType StepType, order int, assignedTo *Assignment, requirements StepRequirements) (*WorkflowStep, error) {
	if requirements == nil {
		requirements = defaultRequirements(stepType)
	}

	if err := checkRequirements(stepType, requirements); err != nil {
		return nil, err
	}

	if assignedTo != nil && stepType != StepTypeAction {
		return nil, fmt.Errorf("step %s: assignment is only valid on action steps, got %s", id, stepType)
	}

	return &WorkflowStep{
		ID:           id,
		Label:        label,
		Type:         stepType,
		Order:        order,
		AssignedTo:   assignedTo,
		Requirements: requirements,
	}, nil
}

// IsHumanAction reports whether the step is an action assigned to a human
// worker, which compiles to the review-request/wait node pair.
func (s *WorkflowStep) IsHumanAction() bool {
	return s.Type == StepTypeAction && s.AssignedTo != nil && s.AssignedTo.Kind == AssigneeKindHuman
}

// TriggerRequirements returns the trigger payload, or a manual-trigger
// default when the step carries none.
func (s *WorkflowStep) TriggerRequirements() TriggerRequirements {
	if req, ok := s.Requirements.(TriggerRequirements); ok {
		return req
	}

	return TriggerRequirements{TriggerType: TriggerTypeManual}
}

// ActionRequirements returns the action payload, or an empty blueprint
// when the step carries none.
func (s *WorkflowStep) ActionRequirements() ActionRequirements {
	if req, ok := s.Requirements.(ActionRequirements); ok {
		return req
	}

	return ActionRequirements{}
}

// SubWorkflowRequirements returns the sub-workflow payload, or the
// unconfigured default.
func (s *WorkflowStep) SubWorkflowRequirements() SubWorkflowRequirements {
	if req, ok := s.Requirements.(SubWorkflowRequirements); ok {
		return req
	}

	return SubWorkflowRequirements{}
}

func defaultRequirements(stepType StepType) StepRequirements {
	switch stepType {
	case StepTypeTrigger:
		return TriggerRequirements{TriggerType: TriggerTypeManual}
	case StepTypeAction:
		return ActionRequirements{}
	case StepTypeSubWorkflow:
		return SubWorkflowRequirements{}
	default:
		return NoRequirements{}
	}
}

func checkRequirements(stepType StepType, requirements StepRequirements) error {
	switch requirements.(type) {
	case NoRequirements:
		if stepType == StepTypeDecision || stepType == StepTypeEnd {
			return nil
		}
	default:
		if requirements.appliesTo() == stepType {
			return nil
		}
	}

	return fmt.Errorf("requirements %T are not valid for step type %s", requirements, stepType)
}

// stepJSON is the wire form of WorkflowStep with the requirements payload
// flattened next to the discriminating type tag.
type stepJSON struct {
	ID           string          `json:"id"`
	Label        string          `json:"label"`
	Type         StepType        `json:"type"`
	Order        int             `json:"order"`
	AssignedTo   *Assignment     `json:"assigned_to,omitempty"`
	Requirements json.RawMessage `json:"requirements,omitempty"`
}

// MarshalJSON encodes the requirements variant under a "requirements" key.
func (s *WorkflowStep) MarshalJSON() ([]byte, error) {
	out := stepJSON{
		ID:         s.ID,
		Label:      s.Label,
		Type:       s.Type,
		Order:      s.Order,
		AssignedTo: s.AssignedTo,
	}

	if s.Requirements != nil {
		raw, err := json.Marshal(s.Requirements)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal requirements for step %s: %w", s.ID, err)
		}

		out.Requirements = raw
	}

	return json.Marshal(out)
}

// UnmarshalJSON decodes the requirements payload into the variant selected
// by the step's type tag. Missing payloads decode to the type's default.
func (s *WorkflowStep) UnmarshalJSON(data []byte) error {
	var in stepJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	s.ID = in.ID
	s.Label = in.Label
	s.Type = in.Type
	s.Order = in.Order
	s.AssignedTo = in.AssignedTo

	if len(in.Requirements) == 0 {
		s.Requirements = defaultRequirements(in.Type)

		return nil
	}

	switch in.Type {
	case StepTypeTrigger:
		var req TriggerRequirements
		if err := json.Unmarshal(in.Requirements, &req); err != nil {
			return fmt.Errorf("failed to unmarshal trigger requirements for step %s: %w", in.ID, err)
		}

		if req.TriggerType == "" {
			req.TriggerType = TriggerTypeManual
		}

		s.Requirements = req
	case StepTypeAction:
		var req ActionRequirements
		if err := json.Unmarshal(in.Requirements, &req); err != nil {
			return fmt.Errorf("failed to unmarshal action requirements for step %s: %w", in.ID, err)
		}

		s.Requirements = req
	case StepTypeSubWorkflow:
		var req SubWorkflowRequirements
		if err := json.Unmarshal(in.Requirements, &req); err != nil {
			return fmt.Errorf("failed to unmarshal sub-workflow requirements for step %s: %w", in.ID, err)
		}

		s.Requirements = req
	case StepTypeDecision, StepTypeEnd:
		s.Requirements = NoRequirements{}
	default:
		return fmt.Errorf("unknown step type %q for step %s", in.Type, in.ID)
	}

	return nil
}
