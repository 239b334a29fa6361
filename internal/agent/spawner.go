package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DewminaUdayashan/meridian/internal/agentregistry"
	"github.com/DewminaUdayashan/meridian/internal/sessions"
	"github.com/DewminaUdayashan/meridian/pkg/models"
)

// maxSpawnResultChars truncates a spawned sub-agent's final answer before
// it is handed back to its parent as a tool result, so a runaway
// sub-agent cannot blow out the parent's context budget.
const maxSpawnResultChars = 500

// SpawnRequest describes a single sub-agent to create or reuse.
type SpawnRequest struct {
	// ParentTraceID identifies the trace the spawn was requested from.
	ParentTraceID string

	// ParentSessionID is the session of the agent doing the spawning.
	ParentSessionID string

	// ParentAgentID is the agent doing the spawning, used as the parent
	// edge for the new agent in the Agent Registry.
	ParentAgentID string

	// Goal is the task handed to the sub-agent as its first message.
	Goal string

	// Tier bounds the sub-agent's autonomy and model fallback chain size.
	Tier agentregistry.Tier

	// Name, if set, is both the new agent's display name and the key used
	// to look for an existing active agent to reuse instead of spawning
	// a new one.
	Name string

	// Role describes what kind of sub-agent this is (e.g. "researcher").
	Role string

	// DeactivateAfter controls whether the agent draws its lastBreath once
	// this goal finishes. Nil means "apply the default": true for a newly
	// spawned agent, false for one reused by name.
	DeactivateAfter *bool
}

// SpawnResult is what a spawn (new or reused) produced.
type SpawnResult struct {
	AgentID string
	Name    string
	Tier    agentregistry.Tier
	Session *models.Session
	Reused  bool
	Result  string
	Err     error
}

// Spawner creates and reuses sub-agents. A spawn either reuses an
// already-active agent matched by name (the distilled spec's reuse rule)
// or births a new one in the Agent Registry, drives it through a full
// Agent Runtime turn, and truncates its answer before returning it.
type Spawner struct {
	runtime  *Runtime
	registry *agentregistry.Registry
}

// NewSpawner constructs a Spawner bound to the given runtime (used to
// actually drive sub-agent turns) and agent registry (used for
// birth/reuse bookkeeping).
func NewSpawner(runtime *Runtime, registry *agentregistry.Registry) *Spawner {
	return &Spawner{runtime: runtime, registry: registry}
}

// Spawn creates or reuses a single sub-agent and runs it to completion
// against req.Goal, returning its (possibly truncated) final answer.
func (s *Spawner) Spawn(ctx context.Context, req SpawnRequest) *SpawnResult {
	if req.Name != "" {
		if existing := s.registry.FindActiveByName(req.Name); existing != nil {
			return s.runExisting(ctx, existing, req)
		}
	}

	agentRec, err := s.registry.Birth(req.Name, req.Tier, req.Role, req.ParentAgentID)
	if err != nil {
		return &SpawnResult{Name: req.Name, Tier: req.Tier, Err: fmt.Errorf("spawn: %w", err)}
	}

	session := &models.Session{
		ID:        uuid.NewString(),
		AgentID:   agentRec.ID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		Metadata: map[string]any{
			sessions.MetaKeyParentSession: req.ParentSessionID,
		},
	}
	if err := s.registry.SetActiveSession(agentRec.ID, session.ID); err != nil {
		return &SpawnResult{AgentID: agentRec.ID, Name: agentRec.Name, Tier: req.Tier, Session: session, Err: fmt.Errorf("spawn: %w", err)}
	}

	result, err := s.runTurn(ctx, session, req.Goal)
	if shouldDeactivate(req, true) {
		if lbErr := s.registry.LastBreath(agentRec.ID); lbErr != nil && err == nil {
			err = lbErr
		}
	}
	return &SpawnResult{
		AgentID: agentRec.ID,
		Name:    agentRec.Name,
		Tier:    req.Tier,
		Session: session,
		Result:  truncateSpawnResult(result),
		Err:     err,
	}
}

// runExisting drives an already-active agent (reused by name) with a new
// goal, on its existing active session.
func (s *Spawner) runExisting(ctx context.Context, existing *agentregistry.Agent, req SpawnRequest) *SpawnResult {
	session := &models.Session{
		ID:        existing.ActiveSessionID,
		AgentID:   existing.ID,
		UpdatedAt: time.Now(),
		Metadata: map[string]any{
			sessions.MetaKeyParentSession: req.ParentSessionID,
		},
	}
	if session.ID == "" {
		session.ID = uuid.NewString()
		session.CreatedAt = time.Now()
		if err := s.registry.SetActiveSession(existing.ID, session.ID); err != nil {
			return &SpawnResult{AgentID: existing.ID, Name: existing.Name, Tier: existing.Tier, Session: session, Reused: true, Err: fmt.Errorf("spawn reuse: %w", err)}
		}
	}

	result, err := s.runTurn(ctx, session, req.Goal)
	if shouldDeactivate(req, false) {
		if lbErr := s.registry.LastBreath(existing.ID); lbErr != nil && err == nil {
			err = lbErr
		}
	}
	return &SpawnResult{
		AgentID: existing.ID,
		Name:    existing.Name,
		Tier:    existing.Tier,
		Session: session,
		Reused:  true,
		Result:  truncateSpawnResult(result),
		Err:     err,
	}
}

// shouldDeactivate applies req.DeactivateAfter if the caller set it
// explicitly, falling back to defaultValue (true for a freshly spawned
// agent, false for one reused by name) otherwise.
func shouldDeactivate(req SpawnRequest, defaultValue bool) bool {
	if req.DeactivateAfter != nil {
		return *req.DeactivateAfter
	}
	return defaultValue
}

// runTurn drives one Agent Runtime turn to completion and collects the
// final assistant text from the response stream.
func (s *Spawner) runTurn(ctx context.Context, session *models.Session, goal string) (string, error) {
	msg := &models.Message{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Role:      models.RoleUser,
		Content:   goal,
		CreatedAt: time.Now(),
	}

	chunks, err := s.runtime.Process(ctx, session, msg)
	if err != nil {
		return "", err
	}

	var text string
	var runErr error
	for chunk := range chunks {
		if chunk == nil {
			continue
		}
		if chunk.Error != nil {
			runErr = chunk.Error
			continue
		}
		if chunk.Text != "" {
			text += chunk.Text
		}
	}
	return text, runErr
}

// SpawnBatch runs every request concurrently and joins the results in the
// same order the requests were given, regardless of completion order.
func (s *Spawner) SpawnBatch(ctx context.Context, reqs []SpawnRequest) []*SpawnResult {
	results := make([]*SpawnResult, len(reqs))

	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req SpawnRequest) {
			defer wg.Done()
			results[i] = s.Spawn(ctx, req)
		}(i, req)
	}
	wg.Wait()

	return results
}

// Retire draws a sub-agent's last breath and cascades cancellation to
// every session it (and its descendants) are still running.
func (s *Spawner) Retire(agentID string) error {
	agentRec := s.registry.Get(agentID)
	if agentRec == nil {
		return fmt.Errorf("retire: agent %s not found", agentID)
	}
	if err := s.registry.LastBreath(agentID); err != nil {
		return err
	}
	if agentRec.ActiveSessionID != "" {
		s.runtime.RuntimeRegistry().AbortHierarchy(agentRec.ActiveSessionID)
	}
	return nil
}

func truncateSpawnResult(s string) string {
	if len(s) <= maxSpawnResultChars {
		return s
	}
	return s[:maxSpawnResultChars]
}
