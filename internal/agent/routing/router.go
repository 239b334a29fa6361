package routing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/DewminaUdayashan/meridian/internal/agent"
)

// cooldownSchedule is the cooldown ladder applied between consecutive
// quota/rate-limit failures of the same model, indexed by
// consecutiveFailures-1 and capped at the last entry. Mirrors the
// cron scheduler's backoff ladder (internal/cron): both express
// "exponential cooldown indexed by failure count, capped".
var cooldownSchedule = []time.Duration{
	30 * time.Second,
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	60 * time.Minute,
}

func cooldownForFailures(consecutiveFailures int) time.Duration {
	if consecutiveFailures <= 0 {
		return 0
	}
	idx := consecutiveFailures - 1
	if idx >= len(cooldownSchedule) {
		idx = len(cooldownSchedule) - 1
	}
	return cooldownSchedule[idx]
}

// modelHealth tracks one model's failure streak and, while in cooldown,
// when it next becomes eligible again.
type modelHealth struct {
	consecutiveFailures int
	unhealthyUntil      time.Time
	credentialFailed    bool
}

// Router selects an LLM provider for each request based on rules and heuristics.
type Router struct {
	defaultProvider string
	providers       map[string]agent.LLMProvider
	rules           []Rule
	preferLocal     bool
	localProviders  map[string]struct{}
	classifier      Classifier
	fallback        Target
	fixedCooldown   time.Duration
	healthMu        sync.Mutex
	health          map[string]*modelHealth
}

// Rule defines a routing rule.
type Rule struct {
	Name   string
	Match  Match
	Target Target
}

// Match defines rule matching conditions.
type Match struct {
	Patterns []string
	Tags     []string
}

// Target defines the destination provider and model.
type Target struct {
	Provider string
	Model    string
}

// Classifier assigns tags to a request.
type Classifier interface {
	Classify(req *agent.CompletionRequest) []string
}

// Config configures a Router.
type Config struct {
	DefaultProvider string
	PreferLocal     bool
	LocalProviders  []string
	Rules           []Rule
	Classifier      Classifier
	Fallback        Target

	// FailureCooldown, if set, overrides the built-in cooldownSchedule
	// ladder with a single fixed cooldown applied after every
	// quota/rate-limit failure instead of an escalating one. Most
	// callers should leave this zero and let the ladder apply.
	FailureCooldown time.Duration
}

// NewRouter creates a new Router.
func NewRouter(cfg Config, providers map[string]agent.LLMProvider) *Router {
	lp := make(map[string]struct{})
	for _, name := range cfg.LocalProviders {
		if n := normalizeID(name); n != "" {
			lp[n] = struct{}{}
		}
	}

	classifier := cfg.Classifier
	if classifier == nil {
		classifier = &HeuristicClassifier{}
	}

	return &Router{
		defaultProvider: normalizeID(cfg.DefaultProvider),
		providers:       providers,
		rules:           cfg.Rules,
		preferLocal:     cfg.PreferLocal,
		localProviders:  lp,
		classifier:      classifier,
		fallback:        cfg.Fallback,
		fixedCooldown:   cfg.FailureCooldown,
		health:          make(map[string]*modelHealth),
	}
}

// Complete routes the request to the selected provider.
func (r *Router) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	if req == nil {
		return nil, errInvalidRequest("request is nil")
	}
	candidates, err := r.candidates(req)
	if err != nil {
		return nil, err
	}
	var lastErr error
	for _, candidate := range candidates {
		copyReq := *req
		if copyReq.Model == "" && candidate.model != "" {
			copyReq.Model = candidate.model
		}
		stream, err := candidate.provider.Complete(ctx, &copyReq)
		if err == nil {
			r.markSuccess(candidate.name)
			return stream, nil
		}
		switch classifyRoutingError(err) {
		case errClassAuth:
			r.markCredentialFailed(candidate.name)
		case errClassQuota:
			r.markCooldown(candidate.name)
		default:
			// Transient/5xx errors move on to the next candidate without
			// starting a cooldown window for this one.
		}
		lastErr = err
	}
	if lastErr != nil {
		return nil, fmt.Errorf("routing: all %d candidates failed, last error: %w", len(candidates), lastErr)
	}
	return nil, errInvalidRequest("no providers configured")
}

// Name returns the router name.
func (r *Router) Name() string {
	if r.defaultProvider == "" {
		return "router"
	}
	return "router:" + r.defaultProvider
}

// Models returns a union of available models across providers.
func (r *Router) Models() []agent.Model {
	var models []agent.Model
	seen := make(map[string]struct{})
	for _, provider := range r.providers {
		for _, model := range provider.Models() {
			if _, ok := seen[model.ID]; ok {
				continue
			}
			seen[model.ID] = struct{}{}
			models = append(models, model)
		}
	}
	return models
}

// SupportsTools returns true if any provider supports tools.
func (r *Router) SupportsTools() bool {
	for _, provider := range r.providers {
		if provider.SupportsTools() {
			return true
		}
	}
	return false
}

type candidate struct {
	provider agent.LLMProvider
	model    string
	name     string
}

func (r *Router) candidates(req *agent.CompletionRequest) ([]candidate, error) {
	if r == nil {
		return nil, errInvalidRequest("no providers configured")
	}
	providerName, model := r.selectProvider(req)
	seen := make(map[string]struct{})
	var candidates []candidate
	r.appendCandidate(&candidates, seen, providerName, model)
	r.appendCandidate(&candidates, seen, r.fallback.Provider, r.fallback.Model)
	r.appendCandidate(&candidates, seen, r.defaultProvider, "")

	if len(req.Tools) > 0 {
		filtered := make([]candidate, 0, len(candidates))
		for _, candidate := range candidates {
			if candidate.provider != nil && candidate.provider.SupportsTools() {
				filtered = append(filtered, candidate)
			}
		}
		if len(filtered) == 0 {
			toolProvider := r.findToolProvider()
			if toolProvider != nil {
				filtered = append(filtered, candidate{provider: toolProvider, name: toolProvider.Name()})
			}
		}
		candidates = filtered
	}

	if len(candidates) == 0 {
		if len(req.Tools) > 0 {
			return nil, errInvalidRequest("no tool-capable providers available")
		}
		return nil, errInvalidRequest("no providers configured")
	}
	return candidates, nil
}

func (r *Router) appendCandidate(list *[]candidate, seen map[string]struct{}, name string, model string) {
	if r == nil {
		return
	}
	normalized := normalizeID(name)
	if normalized == "" {
		return
	}
	if _, ok := seen[normalized]; ok {
		return
	}
	if !r.isHealthy(normalized) {
		return
	}
	provider := r.lookupProvider(normalized)
	if provider == nil {
		return
	}
	seen[normalized] = struct{}{}
	*list = append(*list, candidate{provider: provider, model: model, name: normalized})
}

// errClass categorizes a provider error for routing purposes. Grounded on
// classifyProviderError in internal/agent/failover.go, narrowed to the
// three buckets the Model Router distinguishes: auth failures mark the
// credential unhealthy, quota/rate-limit failures start a cooldown
// window, everything else is treated as transient and simply tried
// elsewhere without penalizing the candidate.
type errClass int

const (
	errClassTransient errClass = iota
	errClassQuota
	errClassAuth
)

func classifyRoutingError(err error) errClass {
	if err == nil {
		return errClassTransient
	}
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "unauthorized"),
		strings.Contains(msg, "invalid api key"),
		strings.Contains(msg, "authentication"),
		strings.Contains(msg, "401"),
		strings.Contains(msg, "403"):
		return errClassAuth
	case strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "rate_limit"),
		strings.Contains(msg, "too many requests"),
		strings.Contains(msg, "429"),
		strings.Contains(msg, "quota"),
		strings.Contains(msg, "billing"),
		strings.Contains(msg, "payment"),
		strings.Contains(msg, "402"):
		return errClassQuota
	default:
		return errClassTransient
	}
}

// isHealthy reports whether a model may currently be tried: it is not
// mid-cooldown and its credential has not been marked failed.
func (r *Router) isHealthy(name string) bool {
	if r == nil {
		return true
	}
	name = normalizeID(name)
	if name == "" {
		return true
	}

	r.healthMu.Lock()
	defer r.healthMu.Unlock()

	state, ok := r.health[name]
	if !ok {
		return true
	}
	if state.credentialFailed {
		return false
	}
	if state.unhealthyUntil.IsZero() {
		return true
	}
	if time.Now().After(state.unhealthyUntil) {
		state.unhealthyUntil = time.Time{}
		return true
	}
	return false
}

// markCooldown records a quota/rate-limit failure and starts (or
// escalates) this model's cooldown window, following the exponential
// schedule indexed by its consecutive-failure count -- or the fixed
// cooldown override if one was configured.
func (r *Router) markCooldown(name string) {
	name = normalizeID(name)
	if name == "" {
		return
	}
	r.healthMu.Lock()
	defer r.healthMu.Unlock()

	state := r.health[name]
	if state == nil {
		state = &modelHealth{}
		r.health[name] = state
	}
	state.consecutiveFailures++

	cooldown := r.fixedCooldown
	if cooldown <= 0 {
		cooldown = cooldownForFailures(state.consecutiveFailures)
	}
	state.unhealthyUntil = time.Now().Add(cooldown)
}

// markCredentialFailed records an auth failure. Unlike cooldown, this is
// not time-based: the model stays unhealthy until markSuccess clears it
// (i.e. until the credential resolver supplies a working credential and
// a call actually succeeds).
func (r *Router) markCredentialFailed(name string) {
	name = normalizeID(name)
	if name == "" {
		return
	}
	r.healthMu.Lock()
	defer r.healthMu.Unlock()

	state := r.health[name]
	if state == nil {
		state = &modelHealth{}
		r.health[name] = state
	}
	state.credentialFailed = true
}

// markSuccess clears any failure streak for a model after a successful
// call.
func (r *Router) markSuccess(name string) {
	name = normalizeID(name)
	if name == "" {
		return
	}
	r.healthMu.Lock()
	delete(r.health, name)
	r.healthMu.Unlock()
}

func (r *Router) selectProvider(req *agent.CompletionRequest) (string, string) {
	tags := r.classifier.Classify(req)

	// Rule matching (first match wins).
	for _, rule := range r.rules {
		if ruleMatches(rule.Match, tags, req) {
			return normalizeID(rule.Target.Provider), rule.Target.Model
		}
	}

	// Prefer local provider if configured and available.
	if r.preferLocal && len(r.localProviders) > 0 && len(req.Tools) == 0 {
		for name := range r.localProviders {
			if r.lookupProvider(name) != nil {
				return name, ""
			}
		}
	}

	return r.defaultProvider, ""
}

func (r *Router) lookupProvider(name string) agent.LLMProvider {
	if name == "" {
		return nil
	}
	if provider, ok := r.providers[normalizeID(name)]; ok {
		return provider
	}
	return nil
}

func (r *Router) findToolProvider() agent.LLMProvider {
	if defaultProvider := r.lookupProvider(r.defaultProvider); defaultProvider != nil && defaultProvider.SupportsTools() {
		return defaultProvider
	}
	for _, provider := range r.providers {
		if provider.SupportsTools() {
			return provider
		}
	}
	return nil
}

func ruleMatches(match Match, tags []string, req *agent.CompletionRequest) bool {
	if len(match.Patterns) == 0 && len(match.Tags) == 0 {
		return false
	}
	content := lastUserContent(req)
	contentLower := strings.ToLower(content)

	if len(match.Patterns) > 0 {
		patternMatch := false
		for _, pattern := range match.Patterns {
			p := strings.ToLower(strings.TrimSpace(pattern))
			if p == "" {
				continue
			}
			if strings.Contains(contentLower, p) {
				patternMatch = true
				break
			}
		}
		if !patternMatch {
			return false
		}
	}

	if len(match.Tags) > 0 {
		for _, tag := range match.Tags {
			if containsTag(tags, tag) {
				return true
			}
		}
		return false
	}

	return true
}

func containsTag(tags []string, tag string) bool {
	needle := strings.ToLower(strings.TrimSpace(tag))
	if needle == "" {
		return false
	}
	for _, t := range tags {
		if strings.EqualFold(t, needle) {
			return true
		}
	}
	return false
}

func lastUserContent(req *agent.CompletionRequest) string {
	if req == nil {
		return ""
	}
	for i := len(req.Messages) - 1; i >= 0; i-- {
		msg := req.Messages[i]
		if msg.Role == "user" {
			return msg.Content
		}
	}
	if len(req.Messages) == 0 {
		return ""
	}
	return req.Messages[len(req.Messages)-1].Content
}

func normalizeID(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func errInvalidRequest(msg string) error {
	return fmt.Errorf("routing: %s", msg)
}
