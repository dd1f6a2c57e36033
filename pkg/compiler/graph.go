// Package compiler translates ordered workflow steps into the node and
// connection graph consumed by the external execution engine.
package compiler

// Engine node type identifiers. These must match the target engine's
// registry literally; the engine rejects unknown node types.
const (
	NodeTypeManualTrigger   = "n8n-nodes-base.manualTrigger"
	NodeTypeScheduleTrigger = "n8n-nodes-base.scheduleTrigger"
	NodeTypeWebhookTrigger  = "n8n-nodes-base.webhook"
	NodeTypeEmailTrigger    = "n8n-nodes-base.emailReadImap"
	NodeTypeHTTPRequest     = "n8n-nodes-base.httpRequest"
	NodeTypeWait            = "n8n-nodes-base.wait"
	NodeTypeExecuteWorkflow = "n8n-nodes-base.executeWorkflow"
	NodeTypeNoOp            = "n8n-nodes-base.noOp"
)

// Node is one node of a compiled graph.
type Node struct {
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Parameters map[string]any `json:"parameters"`
	Position   [2]int         `json:"position"`
}

// Settings are the fixed execution settings of every compiled graph.
type Settings struct {
	ExecutionOrder       string `json:"executionOrder"`
	SaveManualExecutions bool   `json:"saveManualExecutions"`
}

// Graph is the document handed to the execution engine. It is created
// fresh on every compile call and never mutated afterwards. Compiled
// graphs are always emitted inactive; activation is a separate engine
// call.
type Graph struct {
	Name        string              `json:"name"`
	Nodes       []Node              `json:"nodes"`
	Connections map[string][]string `json:"connections"`
	Settings    Settings            `json:"settings"`
	Active      bool                `json:"active"`
}

func defaultSettings() Settings {
	return Settings{
		ExecutionOrder:       "v1",
		SaveManualExecutions: true,
	}
}
