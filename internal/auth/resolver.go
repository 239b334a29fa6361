package auth

import (
	"os"
	"strings"
	"sync"
)

// ResolvedAuth is a credential resolved for a single outbound provider call.
type ResolvedAuth struct {
	Provider  string
	ProfileID string
	Credential ProfileCredential
	// FromEnv is true when the credential came from an environment
	// variable rather than the profile store (no profile to mark
	// failed/verified in that case).
	FromEnv bool
}

// Resolver resolves outbound provider credentials for the Model Router and
// Provider Adapters, in front of a ProfileStore. Unlike ProfileStore's own
// GetCredential, Resolver never returns an error for "nothing available" --
// callers (the router) already have their own fallback-candidate logic, so
// a missing credential is just ok=false, not a wrapped error to unwrap.
type Resolver struct {
	store *ProfileStore

	cacheMu sync.Mutex
	cache   map[resolverCacheKey]ResolvedAuth
}

type resolverCacheKey struct {
	provider  string
	configHint string
}

// NewResolver wraps a ProfileStore for outbound-credential resolution.
func NewResolver(store *ProfileStore) *Resolver {
	return &Resolver{
		store: store,
		cache: make(map[resolverCacheKey]ResolvedAuth),
	}
}

// Resolve finds the best credential for provider, trying in order:
//  1. configHint, if non-empty, is looked up directly as a profile ID
//     (an explicit config-level credential reference).
//  2. the provider's active ("last good") profile, if it is healthy.
//  3. any other healthy profile for the provider.
//  4. the environment variable {PROVIDER}_API_KEY.
//
// Resolutions are cached by (provider, configHint) until MarkFailed evicts
// the entry; this keeps repeated calls from re-walking the profile store
// on every request in the common case where the same profile keeps
// succeeding.
func (r *Resolver) Resolve(provider, configHint string) (ResolvedAuth, bool) {
	if r == nil {
		return ResolvedAuth{}, false
	}
	key := resolverCacheKey{provider: provider, configHint: configHint}

	r.cacheMu.Lock()
	if cached, ok := r.cache[key]; ok {
		r.cacheMu.Unlock()
		return cached, true
	}
	r.cacheMu.Unlock()

	resolved, ok := r.resolveUncached(provider, configHint)
	if !ok {
		return ResolvedAuth{}, false
	}

	r.cacheMu.Lock()
	r.cache[key] = resolved
	r.cacheMu.Unlock()
	return resolved, true
}

func (r *Resolver) resolveUncached(provider, configHint string) (ResolvedAuth, bool) {
	if configHint != "" && r.store != nil {
		if cred, err := r.store.GetProfile(configHint); err == nil && cred != nil {
			return ResolvedAuth{Provider: provider, ProfileID: configHint, Credential: *cred}, true
		}
	}

	if r.store != nil {
		if cred, profileID, err := r.store.GetCredential(provider); err == nil && cred != nil {
			return ResolvedAuth{Provider: provider, ProfileID: profileID, Credential: *cred}, true
		}
	}

	if key := envKeyFor(provider); key != "" {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return ResolvedAuth{
				Provider:   provider,
				Credential: ProfileCredential{Type: CredentialAPIKey, Provider: provider, Key: value},
				FromEnv:    true,
			}, true
		}
	}

	return ResolvedAuth{}, false
}

// MarkFailed evicts any cached resolution for this (provider, configHint)
// pair and, if the credential came from the profile store, marks that
// profile unhealthy so the next Resolve skips it.
func (r *Resolver) MarkFailed(provider, configHint string, resolved ResolvedAuth) {
	if r == nil {
		return
	}
	r.cacheMu.Lock()
	delete(r.cache, resolverCacheKey{provider: provider, configHint: configHint})
	r.cacheMu.Unlock()

	if !resolved.FromEnv && resolved.ProfileID != "" && r.store != nil {
		r.store.MarkFailure(resolved.ProfileID)
	}
}

// MarkVerified records a successful call against the resolved credential,
// marking its profile healthy again (if it has one).
func (r *Resolver) MarkVerified(resolved ResolvedAuth) {
	if r == nil || resolved.FromEnv || resolved.ProfileID == "" || r.store == nil {
		return
	}
	r.store.MarkSuccess(resolved.ProfileID)
}

// envKeyFor derives the environment variable name used as the last-resort
// credential source for a provider, e.g. "openai" -> "OPENAI_API_KEY".
func envKeyFor(provider string) string {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return ""
	}
	normalized := strings.ToUpper(strings.ReplaceAll(provider, "-", "_"))
	return normalized + "_API_KEY"
}
