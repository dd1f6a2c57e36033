package models

// RequirementsSchema returns the JSON schema the requirements payload of
// the given step type must satisfy. Used at the API boundary; the
// compiler itself never validates and degrades to safe defaults instead.
func RequirementsSchema(stepType StepType) map[string]any {
	switch stepType {
	case StepTypeTrigger:
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"trigger_type": map[string]any{
					"type": "string",
					"enum": []any{"manual", "schedule", "webhook", "email"},
				},
				"cron":         map[string]any{"type": "string"},
				"webhook_path": map[string]any{"type": "string"},
				"email_filter": map[string]any{"type": "string"},
			},
			"additionalProperties": false,
		}
	case StepTypeAction:
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"blueprint": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"greenList": map[string]any{
							"type":  []any{"array", "null"},
							"items": map[string]any{"type": "string"},
						},
						"redList": map[string]any{
							"type":  []any{"array", "null"},
							"items": map[string]any{"type": "string"},
						},
					},
					"additionalProperties": false,
				},
			},
			"additionalProperties": false,
		}
	case StepTypeSubWorkflow:
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"sub_workflow_id": map[string]any{"type": "string"},
			},
			"additionalProperties": false,
		}
	default:
		// Decision and end steps carry no requirements.
		return map[string]any{
			"type":                 "object",
			"additionalProperties": false,
		}
	}
}
