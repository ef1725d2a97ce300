package vocab

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMapResolver_Lookup(t *testing.T) {
	m := NewMapResolver()
	m.Add(Tissue, "Placenta Day 21", 210)
	m.Merge(Gender, map[string]int64{"Female": 1, "Male": 2})

	key, err := m.Lookup(context.Background(), Tissue, "  placenta day 21 ")
	require.NoError(t, err)
	assert.Equal(t, int64(210), key)

	key, err = m.Lookup(context.Background(), Gender, "MALE")
	require.NoError(t, err)
	assert.Equal(t, int64(2), key)

	assert.Equal(t, 2, m.Len(Gender))
	assert.Zero(t, m.Len(Strain))
}

func TestMapResolver_NotFound(t *testing.T) {
	m := NewMapResolver()
	m.Add(Tissue, "liver", 1)

	_, err := m.Lookup(context.Background(), Tissue, "spleen")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), `tissue term "spleen" not found`)

	// Same term, different domain.
	_, err = m.Lookup(context.Background(), Strain, "liver")
	assert.True(t, IsNotFound(err))

	_, err = m.Lookup(context.Background(), Tissue, "   ")
	assert.True(t, IsNotFound(err))
}

func TestMapResolver_LaterAddWins(t *testing.T) {
	m := NewMapResolver()
	m.Add(Strain, "CB100", 1)
	m.Add(Strain, "cb100", 2)

	key, err := m.Lookup(context.Background(), Strain, "CB100")
	require.NoError(t, err)
	assert.Equal(t, int64(2), key)
	assert.Equal(t, 1, m.Len(Strain))
}

func TestMapResolver_MergeCollisionKeepsLowestKey(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	terms := map[string]int64{"CB100": 115, "cb100": 110, "Cb100 ": 130, "C57BL/6J": 111}
	for range 20 {
		m := NewMapResolver()
		m.Merge(Strain, terms)

		key, err := m.Lookup(context.Background(), Strain, "CB100")
		require.NoError(t, err)
		assert.Equal(t, int64(110), key)
		assert.Equal(t, 2, m.Len(Strain))
	}

	entries := logs.FilterMessage("vocabulary terms collide after case folding").All()
	require.NotEmpty(t, entries)
	fields := entries[0].ContextMap()
	assert.Equal(t, "strain", fields["domain"])
	assert.Equal(t, "cb100", fields["term"])
}

func TestMapResolver_MergeReplacesEarlierBatch(t *testing.T) {
	m := NewMapResolver()
	m.Merge(OrganismToStrain, map[string]int64{"Mus abbotti": 700})
	m.Merge(OrganismToStrain, map[string]int64{"mus abbotti": 777})

	key, err := m.Lookup(context.Background(), OrganismToStrain, "Mus abbotti")
	require.NoError(t, err)
	assert.Equal(t, int64(777), key, "a later batch overrides")
}
