package subagent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/DewminaUdayashan/meridian/internal/agent"
	"github.com/DewminaUdayashan/meridian/internal/agentregistry"
)

// StatusTool reports on sub-agents tracked by the Agent Registry: a single
// agent by id, or every child of the calling agent.
type StatusTool struct {
	registry *agentregistry.Registry
}

// NewStatusTool creates a status tool bound to the given registry.
func NewStatusTool(registry *agentregistry.Registry) *StatusTool {
	return &StatusTool{registry: registry}
}

func (t *StatusTool) Name() string { return "subagent_status" }

func (t *StatusTool) Description() string {
	return "Check the status of a sub-agent by id, or list the sub-agents spawned by the calling agent."
}

func (t *StatusTool) Schema() json.RawMessage {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id": map[string]any{
				"type":        "string",
				"description": "Sub-agent id to check. Omit to list all children of the calling agent.",
			},
		},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *StatusTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	if t.registry == nil {
		return toolError("agent registry unavailable"), nil
	}

	var input struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid input: %v", err)), nil
	}

	if input.ID != "" {
		rec := t.registry.Get(input.ID)
		if rec == nil {
			return toolError(fmt.Sprintf("sub-agent not found: %s", input.ID)), nil
		}
		return &agent.ToolResult{Content: formatAgentStatus(rec)}, nil
	}

	parentID := ""
	if session := agent.SessionFromContext(ctx); session != nil {
		parentID = session.AgentID
	}
	children := t.registry.GetChildren(parentID)
	if len(children) == 0 {
		return &agent.ToolResult{Content: "No sub-agents found."}, nil
	}

	var out strings.Builder
	for i, rec := range children {
		if i > 0 {
			out.WriteString("\n")
		}
		out.WriteString(formatAgentStatus(rec))
	}
	return &agent.ToolResult{Content: out.String()}, nil
}

func formatAgentStatus(rec *agentregistry.Agent) string {
	status := "alive"
	if !rec.IsAlive() {
		status = "retired"
	}
	return fmt.Sprintf("%s (%s, %s): %s, uptime=%ds", rec.Name, rec.ID, rec.Role, status, rec.UptimeSeconds(time.Now()))
}

// CancelTool retires a sub-agent and cascades cancellation to its
// still-running sessions via the Spawner.
type CancelTool struct {
	spawner *agent.Spawner
}

// NewCancelTool creates a cancel tool bound to the given Spawner.
func NewCancelTool(spawner *agent.Spawner) *CancelTool {
	return &CancelTool{spawner: spawner}
}

func (t *CancelTool) Name() string { return "subagent_cancel" }

func (t *CancelTool) Description() string {
	return "Retire a sub-agent (draw its lastBreath) and cancel any session it is still running."
}

func (t *CancelTool) Schema() json.RawMessage {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id": map[string]any{
				"type":        "string",
				"description": "Sub-agent id to cancel.",
			},
		},
		"required": []string{"id"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *CancelTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	if t.spawner == nil {
		return toolError("sub-agent spawner unavailable"), nil
	}

	var input struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid input: %v", err)), nil
	}
	if input.ID == "" {
		return toolError("id is required"), nil
	}

	if err := t.spawner.Retire(input.ID); err != nil {
		return toolError(err.Error()), nil
	}
	return &agent.ToolResult{Content: fmt.Sprintf("sub-agent %s retired", input.ID)}, nil
}
