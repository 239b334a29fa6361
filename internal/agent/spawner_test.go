package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/DewminaUdayashan/meridian/internal/agentregistry"
)

// fixedTextProvider always answers with a fixed string, useful for
// asserting on the spawner's result-truncation behavior independent of
// the shared recordingProvider's hardcoded "ok" response.
type fixedTextProvider struct {
	text string
}

func (p *fixedTextProvider) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	ch := make(chan *CompletionChunk, 1)
	ch <- &CompletionChunk{Text: p.text}
	close(ch)
	return ch, nil
}

func (p *fixedTextProvider) Name() string        { return "fixed" }
func (p *fixedTextProvider) Models() []Model     { return nil }
func (p *fixedTextProvider) SupportsTools() bool { return false }

func TestSpawnBirthsNewAgentAndRunsTurn(t *testing.T) {
	runtime := NewRuntime(&recordingProvider{}, stubStore{})
	registry := agentregistry.New(agentregistry.Config{})
	spawner := NewSpawner(runtime, registry)

	result := spawner.Spawn(context.Background(), SpawnRequest{
		ParentSessionID: "parent-session",
		Goal:            "research the thing",
		Tier:            agentregistry.Tier2,
		Name:            "Researcher",
		Role:            "researcher",
	})

	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.Reused {
		t.Fatal("expected a fresh spawn, not a reuse")
	}
	if result.AgentID == "" {
		t.Fatal("expected a generated agent id")
	}
	if result.Result != "ok" {
		t.Fatalf("expected spawned agent's answer to be recorded, got %q", result.Result)
	}

	agentRec := registry.Get(result.AgentID)
	if agentRec == nil {
		t.Fatal("expected the spawned agent to be recorded in the registry")
	}
	if agentRec.IsAlive() {
		t.Fatal("expected a freshly spawned agent to draw lastBreath by default once its turn completes")
	}
	if agentRec.ActiveSessionID == "" {
		t.Fatal("expected the spawned agent to have an active session recorded")
	}
}

func TestSpawnReusesActiveAgentByName(t *testing.T) {
	runtime := NewRuntime(&recordingProvider{}, stubStore{})
	registry := agentregistry.New(agentregistry.Config{})
	spawner := NewSpawner(runtime, registry)

	keepAlive := false
	first := spawner.Spawn(context.Background(), SpawnRequest{
		Goal:            "first task",
		Tier:            agentregistry.Tier2,
		Name:            "Researcher",
		DeactivateAfter: &keepAlive,
	})
	if first.Err != nil {
		t.Fatalf("unexpected error: %v", first.Err)
	}

	second := spawner.Spawn(context.Background(), SpawnRequest{
		Goal: "second task",
		Tier: agentregistry.Tier2,
		Name: "researcher",
	})
	if second.Err != nil {
		t.Fatalf("unexpected error: %v", second.Err)
	}
	if !second.Reused {
		t.Fatal("expected second spawn with the same name to reuse the first agent")
	}
	if second.AgentID != first.AgentID {
		t.Fatalf("expected reuse to return the same agent id, got %s vs %s", second.AgentID, first.AgentID)
	}
	if second.Session.ID != first.Session.ID {
		t.Fatalf("expected reuse to keep the same session, got %s vs %s", second.Session.ID, first.Session.ID)
	}

	agentRec := registry.Get(second.AgentID)
	if agentRec == nil || !agentRec.IsAlive() {
		t.Fatal("expected a reused agent to stay alive by default")
	}
}

func TestSpawnDeactivateAfterOverridesReuseDefault(t *testing.T) {
	runtime := NewRuntime(&recordingProvider{}, stubStore{})
	registry := agentregistry.New(agentregistry.Config{})
	spawner := NewSpawner(runtime, registry)

	keepAlive := false
	first := spawner.Spawn(context.Background(), SpawnRequest{
		Goal:            "first task",
		Tier:            agentregistry.Tier2,
		Name:            "Closer",
		DeactivateAfter: &keepAlive,
	})
	if first.Err != nil {
		t.Fatalf("unexpected error: %v", first.Err)
	}

	retire := true
	second := spawner.Spawn(context.Background(), SpawnRequest{
		Goal:            "final task",
		Tier:            agentregistry.Tier2,
		Name:            "Closer",
		DeactivateAfter: &retire,
	})
	if second.Err != nil {
		t.Fatalf("unexpected error: %v", second.Err)
	}
	if !second.Reused {
		t.Fatal("expected the second spawn to reuse the first agent")
	}

	agentRec := registry.Get(second.AgentID)
	if agentRec == nil || agentRec.IsAlive() {
		t.Fatal("expected an explicit deactivate_after=true to draw lastBreath even on a reused agent")
	}
}

func TestSpawnBatchPreservesInputOrder(t *testing.T) {
	runtime := NewRuntime(&recordingProvider{}, stubStore{})
	registry := agentregistry.New(agentregistry.Config{})
	spawner := NewSpawner(runtime, registry)

	reqs := []SpawnRequest{
		{Goal: "a", Tier: agentregistry.Tier3, Name: "Agent A"},
		{Goal: "b", Tier: agentregistry.Tier3, Name: "Agent B"},
		{Goal: "c", Tier: agentregistry.Tier3, Name: "Agent C"},
	}

	results := spawner.SpawnBatch(context.Background(), reqs)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, want := range []string{"Agent A", "Agent B", "Agent C"} {
		if results[i] == nil || results[i].Name != want {
			t.Fatalf("expected result %d to be %s, got %+v", i, want, results[i])
		}
	}
}

func TestSpawnResultIsTruncated(t *testing.T) {
	longText := strings.Repeat("x", maxSpawnResultChars+250)
	runtime := NewRuntime(&fixedTextProvider{text: longText}, stubStore{})
	registry := agentregistry.New(agentregistry.Config{})
	spawner := NewSpawner(runtime, registry)

	result := spawner.Spawn(context.Background(), SpawnRequest{Goal: "go long", Tier: agentregistry.Tier3})
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if len(result.Result) != maxSpawnResultChars {
		t.Fatalf("expected result to be truncated to %d chars, got %d", maxSpawnResultChars, len(result.Result))
	}
}

func TestRetireCascadesCancellation(t *testing.T) {
	runtime := NewRuntime(&recordingProvider{}, stubStore{})
	registry := agentregistry.New(agentregistry.Config{})
	spawner := NewSpawner(runtime, registry)

	result := spawner.Spawn(context.Background(), SpawnRequest{Goal: "task", Tier: agentregistry.Tier2, Name: "Worker"})
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}

	if err := spawner.Retire(result.AgentID); err != nil {
		t.Fatalf("unexpected retire error: %v", err)
	}

	agentRec := registry.Get(result.AgentID)
	if agentRec == nil || agentRec.IsAlive() {
		t.Fatal("expected retired agent to no longer be alive")
	}
}
