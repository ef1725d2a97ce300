package source

import (
	"context"

	"go.uber.org/zap"
)

// KeyAllocator hands out PRB_Source keys for new rows.
type KeyAllocator interface {
	NextSourceKey(ctx context.Context) (int64, error)
}

// Resolver combines a Policy with the equivalence cache.
type Resolver struct {
	policy Policy
	cache  *EquivalenceCache
	keys   KeyAllocator
}

// NewResolver creates a Resolver.
func NewResolver(policy Policy, cache *EquivalenceCache, keys KeyAllocator) *Resolver {
	return &Resolver{policy: policy, cache: cache, keys: keys}
}

// Policy returns the resolution policy in use.
func (r *Resolver) Policy() Policy {
	return r.policy
}

// Cache returns the equivalence cache.
func (r *Resolver) Cache() *EquivalenceCache {
	return r.cache
}

// Resolve returns the source for raw. When an equivalent source is already
// known it is returned and created is false. Otherwise the candidate gets a
// fresh key, is cached, and is returned with created true; the caller is
// responsible for persisting it.
func (r *Resolver) Resolve(ctx context.Context, raw RawAttributes) (src *MolecularSource, created bool, err error) {
	candidate, err := r.ResolveAttributesOnly(ctx, raw)
	if err != nil {
		return nil, false, err
	}
	return r.Collapse(ctx, candidate)
}

// ResolveAttributesOnly applies the policy without touching the cache. The
// result has no key and is only meant for comparison.
func (r *Resolver) ResolveAttributesOnly(ctx context.Context, raw RawAttributes) (*MolecularSource, error) {
	return r.policy.Resolve(ctx, raw)
}

// Collapse maps an unsaved candidate onto its cached equivalent, or keys and
// caches it as a new source.
func (r *Resolver) Collapse(ctx context.Context, candidate *MolecularSource) (*MolecularSource, bool, error) {
	existing, err := r.cache.Lookup(ctx, candidate)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		zap.L().Debug("source collapsed",
			zap.Int64("source_key", existing.Key),
			zap.String("fingerprint", existing.Fingerprint()),
		)
		return existing, false, nil
	}

	key, err := r.keys.NextSourceKey(ctx)
	if err != nil {
		return nil, false, resourceError(candidate, err)
	}
	candidate.Key = key
	r.cache.Add(candidate)
	return candidate, true, nil
}
