package subagent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/DewminaUdayashan/meridian/internal/agent"
	"github.com/DewminaUdayashan/meridian/internal/agentregistry"
	"github.com/DewminaUdayashan/meridian/internal/sessions"
)

// fixedProvider always returns the same text, useful for asserting on tool
// output independent of any real model call.
type fixedProvider struct {
	text string
}

func (p *fixedProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	ch := make(chan *agent.CompletionChunk, 1)
	ch <- &agent.CompletionChunk{Text: p.text}
	close(ch)
	return ch, nil
}

func (p *fixedProvider) Name() string          { return "fixed" }
func (p *fixedProvider) Models() []agent.Model { return nil }
func (p *fixedProvider) SupportsTools() bool    { return false }

func newTestSpawner(text string) (*agent.Spawner, *agentregistry.Registry) {
	runtime := agent.NewRuntime(&fixedProvider{text: text}, sessions.NewMemoryStore())
	registry := agentregistry.New(agentregistry.Config{})
	return agent.NewSpawner(runtime, registry), registry
}

func TestSpawnToolExecuteSingle(t *testing.T) {
	spawner, _ := newTestSpawner("done")
	tool := NewSpawnTool(spawner)

	if tool.Name() != "spawn_sub_agent" {
		t.Fatalf("Name() = %q, want spawn_sub_agent", tool.Name())
	}

	params, _ := json.Marshal(map[string]any{
		"name": "Researcher",
		"goal": "research the thing",
		"tier": "tier2",
	})

	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", result.Content)
	}
	if result.Content == "" {
		t.Fatal("expected non-empty tool output")
	}
}

func TestSpawnToolExecuteBatchDedupesByName(t *testing.T) {
	spawner, _ := newTestSpawner("ok")
	tool := NewSpawnTool(spawner)

	params, _ := json.Marshal(map[string]any{
		"batch": []map[string]any{
			{"name": "Viper", "goal": "task one"},
			{"name": "Viper", "goal": "task two"},
		},
	})

	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", result.Content)
	}

	// One spawn, one reuse: exactly one "spawned" marker and one "reused" marker.
	if got := countOccurrences(result.Content, "spawned"); got != 1 {
		t.Fatalf("expected exactly one birth, got %d occurrences of 'spawned' in %q", got, result.Content)
	}
	if got := countOccurrences(result.Content, "reused"); got != 1 {
		t.Fatalf("expected exactly one reuse, got %d occurrences of 'reused' in %q", got, result.Content)
	}
}

func TestSpawnToolRequiresGoal(t *testing.T) {
	spawner, _ := newTestSpawner("ok")
	tool := NewSpawnTool(spawner)

	params, _ := json.Marshal(map[string]any{"name": "NoGoal"})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error result when goal is missing")
	}
}

func TestSpawnToolWithoutSpawnerReturnsToolError(t *testing.T) {
	tool := NewSpawnTool(nil)

	params, _ := json.Marshal(map[string]any{"goal": "anything"})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected a tool-level error when no spawner is configured")
	}
}

func TestStatusToolReportsSpawnedAgent(t *testing.T) {
	spawner, registry := newTestSpawner("ok")
	spawnTool := NewSpawnTool(spawner)
	statusTool := NewStatusTool(registry)

	if statusTool.Name() != "subagent_status" {
		t.Fatalf("Name() = %q, want subagent_status", statusTool.Name())
	}

	params, _ := json.Marshal(map[string]any{"name": "Scout", "goal": "look around", "deactivate_after": false})
	spawnResult, err := spawnTool.Execute(context.Background(), params)
	if err != nil || spawnResult.IsError {
		t.Fatalf("spawn failed: err=%v result=%+v", err, spawnResult)
	}

	statusParams, _ := json.Marshal(map[string]any{})
	statusResult, err := statusTool.Execute(context.Background(), statusParams)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !containsStr(statusResult.Content, "Scout") {
		t.Fatalf("expected status listing to mention Scout, got: %s", statusResult.Content)
	}
}

func TestStatusToolUnknownAgentIsError(t *testing.T) {
	_, registry := newTestSpawner("ok")
	tool := NewStatusTool(registry)

	params, _ := json.Marshal(map[string]any{"id": "nonexistent"})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected a tool error for an unknown agent id")
	}
}

func TestCancelToolRetiresAgent(t *testing.T) {
	spawner, registry := newTestSpawner("ok")
	spawnTool := NewSpawnTool(spawner)
	cancelTool := NewCancelTool(spawner)

	if cancelTool.Name() != "subagent_cancel" {
		t.Fatalf("Name() = %q, want subagent_cancel", cancelTool.Name())
	}

	params, _ := json.Marshal(map[string]any{"name": "Worker", "goal": "do work", "deactivate_after": false})
	spawnResult, err := spawnTool.Execute(context.Background(), params)
	if err != nil || spawnResult.IsError {
		t.Fatalf("spawn failed: err=%v result=%+v", err, spawnResult)
	}

	agents := registry.GetActive()
	if len(agents) != 1 {
		t.Fatalf("expected exactly one active agent, got %d", len(agents))
	}

	cancelParams, _ := json.Marshal(map[string]any{"id": agents[0].ID})
	cancelResult, err := cancelTool.Execute(context.Background(), cancelParams)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelResult.IsError {
		t.Fatalf("unexpected cancel error: %s", cancelResult.Content)
	}
	if len(registry.GetActive()) != 0 {
		t.Fatal("expected the cancelled agent to no longer be active")
	}
}

func TestCancelToolRequiresID(t *testing.T) {
	spawner, _ := newTestSpawner("ok")
	tool := NewCancelTool(spawner)

	params, _ := json.Marshal(map[string]any{"id": ""})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected an error result for an empty id")
	}
}

func countOccurrences(s, substr string) int {
	count := 0
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			count++
			i += len(substr) - 1
		}
	}
	return count
}

func containsStr(s, substr string) bool {
	return countOccurrences(s, substr) > 0
}
