// Package subagent exposes the Sub-Agent Spawner as agent-callable tools.
package subagent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/DewminaUdayashan/meridian/internal/agent"
	"github.com/DewminaUdayashan/meridian/internal/agentregistry"
)

// spawnItem is one entry of a spawn request, standalone or inside a batch.
type spawnItem struct {
	Name            string `json:"name"`
	Goal            string `json:"goal"`
	Role            string `json:"role"`
	Tier            string `json:"tier"`
	DeactivateAfter *bool  `json:"deactivate_after"`
}

func (it spawnItem) toRequest(parentSessionID, parentAgentID string) agent.SpawnRequest {
	return agent.SpawnRequest{
		ParentSessionID: parentSessionID,
		ParentAgentID:   parentAgentID,
		Goal:            it.Goal,
		Name:            it.Name,
		Role:            it.Role,
		Tier:            parseTier(it.Tier),
		DeactivateAfter: it.DeactivateAfter,
	}
}

func parseTier(s string) agentregistry.Tier {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tier1", "1":
		return agentregistry.Tier1
	case "tier3", "3":
		return agentregistry.Tier3
	default:
		return agentregistry.Tier2
	}
}

// SpawnTool wraps the Sub-Agent Spawner (single and batch spawns, reuse of
// active agents by name, deactivate_after lifecycle) as a tool.
type SpawnTool struct {
	spawner *agent.Spawner
}

// NewSpawnTool creates a spawn tool bound to the given Spawner.
func NewSpawnTool(spawner *agent.Spawner) *SpawnTool {
	return &SpawnTool{spawner: spawner}
}

func (t *SpawnTool) Name() string { return "spawn_sub_agent" }

func (t *SpawnTool) Description() string {
	return "Spawn one or more sub-agents to work on goals, or reuse an already-active agent matched by name. Accepts a single spawn or a batch that runs concurrently; results preserve batch order."
}

func (t *SpawnTool) Schema() json.RawMessage {
	itemProps := map[string]any{
		"name": map[string]any{
			"type":        "string",
			"description": "Sub-agent name. If an active agent with this name exists it is reused instead of spawning a new one.",
		},
		"goal": map[string]any{
			"type":        "string",
			"description": "The task handed to the sub-agent as its first message.",
		},
		"role": map[string]any{
			"type":        "string",
			"description": "Role/persona for a newly spawned agent (e.g. 'researcher').",
		},
		"tier": map[string]any{
			"type":        "string",
			"enum":        []string{"tier1", "tier2", "tier3"},
			"description": "Hierarchy tier for a newly spawned agent. Defaults to tier2.",
		},
		"deactivate_after": map[string]any{
			"type":        "boolean",
			"description": "Whether the agent draws lastBreath once this goal finishes. Defaults to true for a new agent, false for a reused one.",
		},
	}
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
	for k, v := range itemProps {
		schema["properties"].(map[string]any)[k] = v
	}
	schema["properties"].(map[string]any)["batch"] = map[string]any{
		"type":        "array",
		"description": "Spawn multiple sub-agents concurrently instead of a single one; each entry has the same shape as the top-level fields.",
		"items": map[string]any{
			"type":       "object",
			"properties": itemProps,
			"required":   []string{"goal"},
		},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *SpawnTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	if t.spawner == nil {
		return toolError("sub-agent spawner unavailable"), nil
	}

	var input struct {
		spawnItem
		Batch []spawnItem `json:"batch"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid input: %v", err)), nil
	}

	items := input.Batch
	if len(items) == 0 {
		items = []spawnItem{input.spawnItem}
	}
	for _, it := range items {
		if strings.TrimSpace(it.Goal) == "" {
			return toolError("each spawn requires a non-empty goal"), nil
		}
	}

	parentAgentID, parentSessionID := "", ""
	if session := agent.SessionFromContext(ctx); session != nil {
		parentAgentID = session.AgentID
		parentSessionID = session.ID
	}

	reqs := make([]agent.SpawnRequest, len(items))
	for i, it := range items {
		reqs[i] = it.toRequest(parentSessionID, parentAgentID)
	}

	results := t.spawner.SpawnBatch(ctx, reqs)

	var out strings.Builder
	var hadError bool
	for i, r := range results {
		if i > 0 {
			out.WriteString("\n---\n")
		}
		if r.Err != nil {
			hadError = true
			fmt.Fprintf(&out, "%s: error: %s", r.Name, r.Err)
			continue
		}
		status := "spawned"
		if r.Reused {
			status = "reused"
		}
		fmt.Fprintf(&out, "%s (%s, %s, agent_id=%s): %s", r.Name, status, r.Tier, r.AgentID, r.Result)
	}

	return &agent.ToolResult{Content: out.String(), IsError: hadError && len(results) == 1}, nil
}

func toolError(message string) *agent.ToolResult {
	return &agent.ToolResult{Content: message, IsError: true}
}
