// Package agentregistry tracks the hierarchy of agents running inside the
// gateway: tier, parent/child edges, lifecycle (birth / last breath), and
// the model ids an agent is allowed to use. It is the single source of
// truth for "which agents exist" independent of whether they currently
// have a live runtime (that liveness tracking belongs to the runtime
// registry in internal/agent).
package agentregistry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Tier bounds how many model ids an agent may be assigned and, indirectly,
// how much autonomy it is granted. Tier 1 is the root; tiers 2 and 3 are
// spawned descendants.
type Tier int

const (
	Tier1 Tier = 1
	Tier2 Tier = 2
	Tier3 Tier = 3
)

// maxModelIDs returns the maximum number of model ids an agent of the
// given tier may carry in its fallback chain.
func maxModelIDs(t Tier) int {
	if t == Tier3 {
		return 3
	}
	return 5
}

// Agent is a single node in the hierarchy.
type Agent struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Tier           Tier      `json:"tier"`
	Role           string    `json:"role"`
	ParentAgentID  string    `json:"parent_agent_id,omitempty"`
	BirthTime      time.Time `json:"birth_time"`
	LastBreath     time.Time `json:"last_breath,omitempty"`
	Avatar         string    `json:"avatar,omitempty"`
	ModelIDs       []string  `json:"model_ids,omitempty"`
	ActiveSessionID string   `json:"active_session_id,omitempty"`
	Mode           string    `json:"mode,omitempty"`
	Topics         []string  `json:"topics,omitempty"`
	CronSchedule   string    `json:"cron_schedule,omitempty"`
}

// IsAlive reports whether the agent has not yet drawn its last breath.
func (a *Agent) IsAlive() bool {
	return a != nil && a.LastBreath.IsZero()
}

// UptimeSeconds returns how long the agent has been alive, measured to now
// if still alive or to its last breath if not.
func (a *Agent) UptimeSeconds(now time.Time) int64 {
	if a == nil || a.BirthTime.IsZero() {
		return 0
	}
	end := now
	if !a.LastBreath.IsZero() {
		end = a.LastBreath
	}
	if end.Before(a.BirthTime) {
		return 0
	}
	return int64(end.Sub(a.BirthTime).Seconds())
}

// Config configures a Registry.
type Config struct {
	// PersistPath, if set, is where the registry's state is atomically
	// rewritten after every mutation and restored from at construction.
	PersistPath string
}

// Registry is the mutex-guarded in-process store of all agents, live and
// dead. Persistence follows the teacher's subagent-registry shape: an
// atomic rewrite (".tmp" + rename) after every mutating call.
type Registry struct {
	mu       sync.RWMutex
	config   Config
	agents   map[string]*Agent
	restored bool
}

// New constructs a Registry and restores any persisted state.
func New(config Config) *Registry {
	r := &Registry{
		config: config,
		agents: make(map[string]*Agent),
	}
	r.restore()
	return r
}

// Birth registers a new agent and returns it. Exactly one tier-1 agent may
// exist at a time; attempting to birth a second is an error.
func (r *Registry) Birth(name string, tier Tier, role string, parentAgentID string) (*Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tier == Tier1 {
		for _, a := range r.agents {
			if a.Tier == Tier1 && a.IsAlive() {
				return nil, errors.New("a tier-1 agent is already alive")
			}
		}
	}

	agent := &Agent{
		ID:            uuid.NewString(),
		Name:          strings.TrimSpace(name),
		Tier:          tier,
		Role:          role,
		ParentAgentID: parentAgentID,
		BirthTime:     time.Now(),
	}
	r.agents[agent.ID] = agent
	r.persist()

	copied := *agent
	return &copied, nil
}

// LastBreath marks an agent as no longer alive. Idempotent.
func (r *Registry) LastBreath(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent := r.agents[id]
	if agent == nil {
		return fmt.Errorf("agent %s not found", id)
	}
	if agent.LastBreath.IsZero() {
		agent.LastBreath = time.Now()
		r.persist()
	}
	return nil
}

// Get returns a copy of the agent with the given id, or nil.
func (r *Registry) Get(id string) *Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent := r.agents[id]
	if agent == nil {
		return nil
	}
	copied := *agent
	return &copied
}

// GetActive returns copies of every currently-alive agent.
func (r *Registry) GetActive() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Agent
	for _, a := range r.agents {
		if a.IsAlive() {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out
}

// GetGraveyard returns copies of every agent that has drawn its last
// breath.
func (r *Registry) GetGraveyard() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Agent
	for _, a := range r.agents {
		if !a.IsAlive() {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out
}

// GetChildren returns copies of every agent whose ParentAgentID is the
// given id, alive or not.
func (r *Registry) GetChildren(parentAgentID string) []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Agent
	for _, a := range r.agents {
		if a.ParentAgentID == parentAgentID {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out
}

// FindActiveByName returns the first alive agent whose name matches,
// case-insensitively and after trimming whitespace. Iteration order over
// a Go map is unspecified, so when more than one alive agent shares a
// name this is a genuine race on which one is returned -- matching the
// distilled spec's documented, intentional first-match behavior rather
// than being tightened into a uniqueness constraint.
func (r *Registry) FindActiveByName(name string) *Agent {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.agents {
		if !a.IsAlive() {
			continue
		}
		if strings.ToLower(strings.TrimSpace(a.Name)) == needle {
			copied := *a
			return &copied
		}
	}
	return nil
}

// SetAvatar updates an agent's avatar.
func (r *Registry) SetAvatar(id, avatar string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent := r.agents[id]
	if agent == nil {
		return fmt.Errorf("agent %s not found", id)
	}
	agent.Avatar = avatar
	r.persist()
	return nil
}

// SetName renames an agent.
func (r *Registry) SetName(id, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent := r.agents[id]
	if agent == nil {
		return fmt.Errorf("agent %s not found", id)
	}
	agent.Name = strings.TrimSpace(name)
	r.persist()
	return nil
}

// SetModelIDs replaces an agent's model fallback chain, bounded by its
// tier: tier 3 agents may carry at most 3 model ids, tier 1 and 2 at most
// 5.
func (r *Registry) SetModelIDs(id string, modelIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent := r.agents[id]
	if agent == nil {
		return fmt.Errorf("agent %s not found", id)
	}
	if limit := maxModelIDs(agent.Tier); len(modelIDs) > limit {
		return fmt.Errorf("agent %s (tier %d) may carry at most %d model ids, got %d", id, agent.Tier, limit, len(modelIDs))
	}
	agent.ModelIDs = append([]string(nil), modelIDs...)
	r.persist()
	return nil
}

// SetActiveSession records the session an agent is currently driving.
func (r *Registry) SetActiveSession(id, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent := r.agents[id]
	if agent == nil {
		return fmt.Errorf("agent %s not found", id)
	}
	agent.ActiveSessionID = sessionID
	r.persist()
	return nil
}

// GetUptimeSeconds returns how long the agent has been alive.
func (r *Registry) GetUptimeSeconds(id string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent := r.agents[id]
	if agent == nil {
		return 0, fmt.Errorf("agent %s not found", id)
	}
	return agent.UptimeSeconds(time.Now()), nil
}

// persist atomically rewrites the registry's state to PersistPath. Caller
// must hold the write lock.
func (r *Registry) persist() {
	if r.config.PersistPath == "" {
		return
	}

	data, err := json.MarshalIndent(r.agents, "", "  ")
	if err != nil {
		return
	}

	dir := filepath.Dir(r.config.PersistPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}

	tmpPath := r.config.PersistPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return
	}
	_ = os.Rename(tmpPath, r.config.PersistPath)
}

// restore loads previously persisted state, if any. Caller must not yet
// have released the Registry to other goroutines.
func (r *Registry) restore() {
	if r.restored || r.config.PersistPath == "" {
		return
	}
	r.restored = true

	data, err := os.ReadFile(r.config.PersistPath)
	if err != nil {
		return
	}

	var agents map[string]*Agent
	if err := json.Unmarshal(data, &agents); err != nil {
		return
	}
	for id, agent := range agents {
		r.agents[id] = agent
	}
}
