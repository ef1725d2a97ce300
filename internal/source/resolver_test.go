package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T, store *fakeStore, mode CacheMode) *Resolver {
	t.Helper()
	cache, err := NewEquivalenceCache(context.Background(), store, mode, nil)
	require.NoError(t, err)
	return NewResolver(newTestPolicy(t, PolicyAggregator), cache, store)
}

func TestFingerprint(t *testing.T) {
	a := anonymous(1, keyCB100, keyLiver, keyMale, keyHeLa)
	b := anonymous(2, keyCB100, keyLiver, keyMale, keyHeLa)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Equal(t, "1|110|211|311|411|600|500", a.Fingerprint())

	b.VectorTypeKey = 601
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())

	n := named(3, "IMAGE library 1")
	assert.Equal(t, "IMAGE library 1", n.Fingerprint())
}

func TestResolver_CollapsesEquivalentSources(t *testing.T) {
	store := newFakeStore()
	r := newTestResolver(t, store, CacheEager)
	raw := RawAttributes{Organism: "mouse, laboratory", Strain: "CB100", Tissue: "liver"}

	first, created, err := r.Resolve(context.Background(), raw)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(1001), first.Key)

	for range 5 {
		again, created, err := r.Resolve(context.Background(), raw)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Same(t, first, again)
	}

	// Different spelling, same keys.
	same, created, err := r.Resolve(context.Background(), RawAttributes{Organism: "Mouse, Laboratory", Strain: "cb100", Tissue: " LIVER"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.Key, same.Key)

	other, created, err := r.Resolve(context.Background(), RawAttributes{Organism: "mouse, laboratory", Strain: "C57BL/6J", Tissue: "liver"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.Key, other.Key)
	assert.Equal(t, 2, r.Cache().Len())
}

func TestResolver_CollapsesOntoStoredSource(t *testing.T) {
	store := newFakeStore()
	stored := anonymous(77, keyCB100, keyLiver, keyGenderNS, keyCellNS)
	stored.InStore = true
	store.stored = []*MolecularSource{stored}
	r := newTestResolver(t, store, CacheLazy)

	src, created, err := r.Resolve(context.Background(), RawAttributes{Organism: "mouse, laboratory", Strain: "CB100", Tissue: "liver"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(77), src.Key)
}

func TestResolver_ResolveAttributesOnlyLeavesCacheAlone(t *testing.T) {
	store := newFakeStore()
	r := newTestResolver(t, store, CacheLazy)

	src, err := r.ResolveAttributesOnly(context.Background(), RawAttributes{Organism: "mouse, laboratory"})
	require.NoError(t, err)
	assert.Zero(t, src.Key)
	assert.Zero(t, r.Cache().Len())
	assert.Zero(t, store.fingerprintQueries)
	assert.Equal(t, PolicyAggregator, r.Policy().Name())
}

func TestResolver_Errors(t *testing.T) {
	store := newFakeStore()
	r := newTestResolver(t, store, CacheLazy)

	_, _, err := r.Resolve(context.Background(), RawAttributes{})
	assert.Equal(t, KindNullOrganism, KindOf(err), "policy errors pass through unchanged")

	store.keyErr = errBoom
	_, _, err = r.Resolve(context.Background(), RawAttributes{Organism: "mouse, laboratory"})
	require.Error(t, err)
	assert.True(t, IsResourceError(err))
	assert.ErrorIs(t, err, errBoom)
	assert.Zero(t, r.Cache().Len(), "nothing cached without a key")

	store.keyErr = nil
	store.queryErr = errBoom
	_, _, err = r.Resolve(context.Background(), RawAttributes{Organism: "mouse, laboratory", Strain: "CB100"})
	assert.Equal(t, KindResource, KindOf(err))
}
