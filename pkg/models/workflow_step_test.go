package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStep_ValidCombinations(t *testing.T) {
	step, err := NewStep("s1", "Start", StepTypeTrigger, 0, nil, TriggerRequirements{
		TriggerType: TriggerTypeSchedule,
		Cron:        "0 9 * * 1",
	})
	require.NoError(t, err)
	assert.Equal(t, TriggerTypeSchedule, step.TriggerRequirements().TriggerType)

	step, err = NewStep("s2", "Classify", StepTypeAction, 1,
		&Assignment{Kind: AssigneeKindAI, Name: "classifier"},
		ActionRequirements{Blueprint: Blueprint{GreenList: []string{"read"}, RedList: []string{"delete"}}},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"read"}, step.ActionRequirements().Blueprint.GreenList)
	assert.False(t, step.IsHumanAction())

	step, err = NewStep("s3", "Approve", StepTypeAction, 2,
		&Assignment{Kind: AssigneeKindHuman, Name: "reviewer"}, nil)
	require.NoError(t, err)
	assert.True(t, step.IsHumanAction())

	_, err = NewStep("s4", "Branch", StepTypeDecision, 3, nil, nil)
	require.NoError(t, err)

	step, err = NewStep("s5", "Delegate", StepTypeSubWorkflow, 4, nil, SubWorkflowRequirements{SubWorkflowID: "wf-9"})
	require.NoError(t, err)
	assert.Equal(t, "wf-9", step.SubWorkflowRequirements().SubWorkflowID)
}

func TestNewStep_RejectsMismatchedRequirements(t *testing.T) {
	_, err := NewStep("s1", "Start", StepTypeTrigger, 0, nil, ActionRequirements{})
	assert.Error(t, err)

	_, err = NewStep("s2", "End", StepTypeEnd, 1, nil, SubWorkflowRequirements{})
	assert.Error(t, err)
}

func TestNewStep_RejectsAssignmentOnNonAction(t *testing.T) {
	_, err := NewStep("s1", "Branch", StepTypeDecision, 1,
		&Assignment{Kind: AssigneeKindHuman}, nil)
	assert.Error(t, err)
}

func TestWorkflowStep_JSONRoundTrip(t *testing.T) {
	step, err := NewStep("s1", "Classify", StepTypeAction, 1,
		&Assignment{Kind: AssigneeKindAI, Name: "classifier"},
		ActionRequirements{Blueprint: Blueprint{GreenList: []string{"read", "write"}, RedList: []string{"delete"}}},
	)
	require.NoError(t, err)

	data, err := json.Marshal(step)
	require.NoError(t, err)

	var decoded WorkflowStep

	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, step.ID, decoded.ID)
	assert.Equal(t, step.ActionRequirements(), decoded.ActionRequirements())
}

func TestWorkflowStep_UnmarshalDefaultsMissingRequirements(t *testing.T) {
	var step WorkflowStep

	require.NoError(t, json.Unmarshal([]byte(`{"id":"s1","label":"Start","type":"trigger","order":0}`), &step))
	assert.Equal(t, TriggerTypeManual, step.TriggerRequirements().TriggerType)
}

func TestWorkflowStep_UnmarshalRejectsUnknownType(t *testing.T) {
	var step WorkflowStep

	err := json.Unmarshal([]byte(`{"id":"s1","type":"mystery","requirements":{}}`), &step)
	assert.Error(t, err)
}
