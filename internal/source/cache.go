package source

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// CacheMode selects how the equivalence cache is populated.
type CacheMode string

const (
	CacheEager CacheMode = "eager" // load every candidate row at construction
	CacheLazy  CacheMode = "lazy"  // query one fingerprint at a time on miss
)

// ParseCacheMode validates a configured cache mode.
func ParseCacheMode(s string) (CacheMode, error) {
	switch CacheMode(s) {
	case CacheEager, "":
		return CacheEager, nil
	case CacheLazy:
		return CacheLazy, nil
	default:
		return "", eris.Errorf("source: unknown cache mode %q (valid: eager, lazy)", s)
	}
}

// Filter decides whether a source may be a collapsing target.
type Filter func(*MolecularSource) bool

// Collapsible admits anonymous sources a curator has not edited. Named and
// curated sources are never interchangeable with other sources.
func Collapsible(src *MolecularSource) bool {
	return !src.CuratorEdited && src.Name == ""
}

// CacheLoader reads collapsing candidates from storage.
type CacheLoader interface {
	// LoadCollapsible returns every stored candidate row.
	LoadCollapsible(ctx context.Context) ([]*MolecularSource, error)
	// QueryByFingerprint returns stored rows whose attribute keys match candidate.
	QueryByFingerprint(ctx context.Context, candidate *MolecularSource) ([]*MolecularSource, error)
}

// EquivalenceCache maps fingerprints to the one source that represents them
// for the rest of the run. It is not safe for concurrent use; loads are
// sequential and the first source to claim a fingerprint keeps it.
type EquivalenceCache struct {
	loader  CacheLoader
	mode    CacheMode
	filter  Filter
	entries map[string]*MolecularSource
	misses  map[string]struct{} // lazy mode: fingerprints known to be absent from storage
	retired map[int64]struct{}  // keys updated in place this run; their stored rows are stale
}

// NewEquivalenceCache builds a cache. A nil filter means Collapsible. In
// eager mode every candidate is loaded before returning.
func NewEquivalenceCache(ctx context.Context, loader CacheLoader, mode CacheMode, filter Filter) (*EquivalenceCache, error) {
	if filter == nil {
		filter = Collapsible
	}
	c := &EquivalenceCache{
		loader:  loader,
		mode:    mode,
		filter:  filter,
		entries: make(map[string]*MolecularSource),
		misses:  make(map[string]struct{}),
		retired: make(map[int64]struct{}),
	}
	if mode != CacheEager {
		return c, nil
	}

	rows, err := loader.LoadCollapsible(ctx)
	if err != nil {
		return nil, resourceError(nil, eris.Wrap(err, "source: load equivalence cache"))
	}
	for _, src := range rows {
		c.Add(src)
	}
	zap.L().Info("equivalence cache loaded",
		zap.String("component", "source.cache"),
		zap.Int("rows", len(rows)),
		zap.Int("entries", len(c.entries)),
	)
	return c, nil
}

// Lookup returns the cached source equivalent to candidate, or nil.
func (c *EquivalenceCache) Lookup(ctx context.Context, candidate *MolecularSource) (*MolecularSource, error) {
	fp := candidate.Fingerprint()
	if src, ok := c.entries[fp]; ok {
		return src, nil
	}
	if c.mode == CacheEager {
		return nil, nil
	}
	if _, ok := c.misses[fp]; ok {
		return nil, nil
	}

	rows, err := c.loader.QueryByFingerprint(ctx, candidate)
	if err != nil {
		return nil, &Error{Kind: KindResource, Fingerprint: fp, Err: eris.Wrap(err, "source: query equivalent source")}
	}
	for _, src := range rows {
		if _, ok := c.retired[src.Key]; ok {
			continue
		}
		if src.Fingerprint() == fp && c.Add(src) {
			return src, nil
		}
	}
	c.misses[fp] = struct{}{}
	return nil, nil
}

// Add caches src under its fingerprint unless the fingerprint is taken or
// the filter rejects it. It reports whether src was added.
func (c *EquivalenceCache) Add(src *MolecularSource) bool {
	if !c.filter(src) {
		return false
	}
	fp := src.Fingerprint()
	if _, ok := c.entries[fp]; ok {
		return false
	}
	c.entries[fp] = src
	delete(c.misses, fp)
	return true
}

// Evict drops the entry stored under fingerprint if it holds the source with
// key, and retires key so lazy queries ignore its stored row. Used after an
// in-place update changes a row's attributes; the stored row keeps the old
// attributes until the queued update is flushed. Evict reports whether an
// entry was dropped.
func (c *EquivalenceCache) Evict(fingerprint string, key int64) bool {
	c.retired[key] = struct{}{}
	src, ok := c.entries[fingerprint]
	if !ok || src.Key != key {
		return false
	}
	delete(c.entries, fingerprint)
	return true
}

// Len returns the number of cached fingerprints.
func (c *EquivalenceCache) Len() int {
	return len(c.entries)
}

// Mode returns the population mode.
func (c *EquivalenceCache) Mode() CacheMode {
	return c.mode
}
