package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDiscovery(t *testing.T, store *fakeStore, qc *recorder, cfg DiscoveryConfig) *Discovery {
	t.Helper()
	return NewDiscovery(store, store, newTestResolver(t, store, CacheLazy), qc, cfg)
}

func TestMethod_String(t *testing.T) {
	assert.Equal(t, "found by library lookup", MethodLibraryName.String())
	assert.Equal(t, "found by associated clones", MethodAssociatedClones.String())
	assert.Equal(t, "resolved from attributes", MethodAttributes.String())
	assert.Equal(t, "unknown", MethodUnknown.String())
	assert.Equal(t, "clones", MethodAssociatedClones.Label())
}

func TestDiscover_ByLibraryName(t *testing.T) {
	store := newFakeStore()
	lib := named(500, "Soares mouse NML")
	store.named[lib.Name] = lib
	d := newTestDiscovery(t, store, &recorder{}, DiscoveryConfig{CloneSearch: true, MaxClones: 10})

	got, err := d.Discover(context.Background(), Record{
		SequenceKey: 1,
		Raw:         RawAttributes{Organism: "mouse, laboratory", LibraryName: "Soares mouse NML"},
		CloneIDs:    []string{"c1"},
	})
	require.NoError(t, err)
	assert.Equal(t, MethodLibraryName, got.Method)
	assert.Same(t, lib, got.Source)
	assert.Zero(t, store.cloneLimit, "clone search skipped after a name hit")
}

func TestDiscover_NotApplicableLibraryIgnored(t *testing.T) {
	store := newFakeStore()
	store.named[NotApplicable] = named(501, NotApplicable)
	d := newTestDiscovery(t, store, &recorder{}, DiscoveryConfig{})

	got, err := d.Discover(context.Background(), Record{
		Raw: RawAttributes{Organism: "mouse, laboratory", LibraryName: "NOT APPLICABLE"},
	})
	require.NoError(t, err)
	assert.Equal(t, MethodAttributes, got.Method)
	assert.True(t, got.Source.IsAnonymous())
}

func TestDiscover_UnknownLibraryFallsThrough(t *testing.T) {
	store := newFakeStore()
	d := newTestDiscovery(t, store, &recorder{}, DiscoveryConfig{})

	got, err := d.Discover(context.Background(), Record{
		Raw: RawAttributes{Organism: "mouse, laboratory", Tissue: "liver", LibraryName: "no such library"},
	})
	require.NoError(t, err)
	assert.Equal(t, MethodAttributes, got.Method)
	assert.Equal(t, keyLiver, got.Source.TissueKey)
	assert.Zero(t, got.Source.Key, "attribute candidates are not collapsed by discovery")
}

func TestDiscover_ByAgreeingClones(t *testing.T) {
	store := newFakeStore()
	lib := named(502, "clone library")
	store.named[lib.Name] = lib
	store.clones = []CloneSource{
		{CloneID: "c1", SourceKey: 502, SourceName: "clone library"},
		{CloneID: "c2", SourceKey: 9, SourceName: ""},
		{CloneID: "c3", SourceKey: 502, SourceName: "clone library"},
	}
	qc := &recorder{}
	d := newTestDiscovery(t, store, qc, DiscoveryConfig{CloneSearch: true, MaxClones: 10})

	got, err := d.Discover(context.Background(), Record{
		Raw:      RawAttributes{Organism: "mouse, laboratory"},
		CloneIDs: []string{"c1", "c2", "c3"},
	})
	require.NoError(t, err)
	assert.Equal(t, MethodAssociatedClones, got.Method)
	assert.Same(t, lib, got.Source)
	assert.Equal(t, 10, store.cloneLimit)
	assert.Zero(t, qc.total())
}

func TestDiscover_CloneConflict(t *testing.T) {
	store := newFakeStore()
	store.named["lib A"] = named(503, "lib A")
	store.named["lib B"] = named(504, "lib B")
	store.clones = []CloneSource{
		{CloneID: "c1", SourceKey: 503, SourceName: "lib A"},
		{CloneID: "c2", SourceKey: 504, SourceName: "lib B"},
		{CloneID: "c3", SourceKey: 503, SourceName: "lib A"},
	}
	qc := &recorder{}
	d := newTestDiscovery(t, store, qc, DiscoveryConfig{CloneSearch: true})

	got, err := d.Discover(context.Background(), Record{
		SequenceKey: 42,
		Raw:         RawAttributes{Organism: "mouse, laboratory"},
		CloneIDs:    []string{"c1", "c2", "c3"},
	})
	require.NoError(t, err)
	assert.Equal(t, MethodAttributes, got.Method, "conflicting clones are discarded")

	require.Len(t, qc.conflicts, 1)
	assert.Equal(t, NameConflict{
		SequenceKey: 42,
		CloneIDs:    []string{"c1", "c2"},
		Names:       []string{"lib A", "lib B"},
	}, qc.conflicts[0])
}

func TestDiscover_CloneConflictReportFailure(t *testing.T) {
	store := newFakeStore()
	store.clones = []CloneSource{
		{CloneID: "c1", SourceName: "lib A"},
		{CloneID: "c2", SourceName: "lib B"},
	}
	d := newTestDiscovery(t, store, &recorder{err: errBoom}, DiscoveryConfig{CloneSearch: true})

	_, err := d.Discover(context.Background(), Record{
		Raw:      RawAttributes{Organism: "mouse, laboratory"},
		CloneIDs: []string{"c1", "c2"},
	})
	assert.True(t, IsResourceError(err))
}

func TestDiscover_CloneLimit(t *testing.T) {
	store := newFakeStore()
	for _, id := range []string{"c1", "c2", "c3", "c4"} {
		store.clones = append(store.clones, CloneSource{CloneID: id, SourceName: "lib"})
	}
	d := newTestDiscovery(t, store, &recorder{}, DiscoveryConfig{CloneSearch: true, MaxClones: 2})

	_, err := d.Discover(context.Background(), Record{
		Raw:      RawAttributes{Organism: "mouse, laboratory"},
		CloneIDs: []string{"c1", "c2", "c3", "c4"},
	})
	require.Error(t, err)
	assert.Equal(t, KindCloneLimit, KindOf(err))
	assert.True(t, IsResourceError(err))
	assert.Contains(t, err.Error(), "limit of 2")
}

func TestDiscover_CloneSearchDisabled(t *testing.T) {
	store := newFakeStore()
	store.named["lib"] = named(505, "lib")
	store.clones = []CloneSource{{CloneID: "c1", SourceName: "lib"}}
	d := newTestDiscovery(t, store, &recorder{}, DiscoveryConfig{CloneSearch: false})

	got, err := d.Discover(context.Background(), Record{
		Raw:      RawAttributes{Organism: "mouse, laboratory"},
		CloneIDs: []string{"c1"},
	})
	require.NoError(t, err)
	assert.Equal(t, MethodAttributes, got.Method)

	d = NewDiscovery(store, nil, newTestResolver(t, store, CacheLazy), &recorder{}, DiscoveryConfig{CloneSearch: true})
	got, err = d.Discover(context.Background(), Record{
		Raw:      RawAttributes{Organism: "mouse, laboratory"},
		CloneIDs: []string{"c1"},
	})
	require.NoError(t, err)
	assert.Equal(t, MethodAttributes, got.Method, "no finder, no clone search")
}

func TestDiscover_Errors(t *testing.T) {
	store := newFakeStore()
	store.nameErr = errBoom
	d := newTestDiscovery(t, store, &recorder{}, DiscoveryConfig{})

	_, err := d.Discover(context.Background(), Record{
		Raw: RawAttributes{Organism: "mouse, laboratory", LibraryName: "lib"},
	})
	require.Error(t, err)
	assert.Equal(t, KindResource, KindOf(err))
	assert.ErrorIs(t, err, errBoom)

	_, err = d.Discover(context.Background(), Record{Raw: RawAttributes{Strain: "CB100"}})
	assert.Equal(t, KindNullOrganism, KindOf(err))
}
