package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgijax/srcload/internal/vocab"
)

var allPolicies = []string{PolicyAggregator, PolicyGenBank, PolicyStrict, PolicyMinimal}

func TestNewPolicy(t *testing.T) {
	for _, name := range allPolicies {
		p := newTestPolicy(t, name)
		assert.Equal(t, name, p.Name())
	}

	p := newTestPolicy(t, "")
	assert.Equal(t, PolicyAggregator, p.Name())

	p = newTestPolicy(t, " GenBank ")
	assert.Equal(t, PolicyGenBank, p.Name())

	_, err := NewPolicy("bogus", newTestVocab(), newTestSentinels(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown policy")
}

func TestAggregator_AllAttributesResolve(t *testing.T) {
	p := newTestPolicy(t, PolicyAggregator)

	src, err := p.Resolve(context.Background(), RawAttributes{
		Organism: "mouse, laboratory",
		Tissue:   "placenta day 21",
		Strain:   "CB100",
		Gender:   "Feminine",
		CellLine: "B-cells",
	})
	require.NoError(t, err)

	assert.Equal(t, keyMouse, src.OrganismKey)
	assert.Equal(t, NotResolved, src.Age)
	assert.Equal(t, keyBCells, src.CellLineKey)
	assert.Equal(t, keyFeminine, src.GenderKey)
	assert.Equal(t, keyCB100, src.StrainKey)
	assert.Equal(t, keyPlacenta, src.TissueKey)
	assert.Equal(t, keySegmentNA, src.SegmentTypeKey)
	assert.Equal(t, keyVectorNA, src.VectorTypeKey)
	assert.Empty(t, src.Name)
	assert.Zero(t, src.Key)
}

func TestAggregator_OrganismOnly(t *testing.T) {
	p := newTestPolicy(t, PolicyAggregator)

	src, err := p.Resolve(context.Background(), RawAttributes{Organism: "mouse, laboratory"})
	require.NoError(t, err)

	assert.Equal(t, keyCellNS, src.CellLineKey)
	assert.Equal(t, keyGenderNS, src.GenderKey)
	assert.Equal(t, keyStrainNS, src.StrainKey)
	assert.Equal(t, keyTissueNS, src.TissueKey)
	assert.Equal(t, NotResolved, src.Age)
}

func TestAggregator_UnresolvableValues(t *testing.T) {
	p := newTestPolicy(t, PolicyAggregator)

	src, err := p.Resolve(context.Background(), RawAttributes{
		Organism: "mouse, laboratory",
		CellLine: "unresolvable value",
		Gender:   "unresolvable value",
		Strain:   "unresolvable value",
		Tissue:   "unresolvable value",
	})
	require.NoError(t, err)

	assert.Equal(t, keyCellNR, src.CellLineKey)
	assert.Equal(t, keyGenderNR, src.GenderKey)
	assert.Equal(t, keyStrainNR, src.StrainKey)
	assert.Equal(t, keyTissueNR, src.TissueKey)
}

func TestAggregator_UnknownOrganismIsOther(t *testing.T) {
	p := newTestPolicy(t, PolicyAggregator)

	src, err := p.Resolve(context.Background(), RawAttributes{
		Organism: "goat",
		Strain:   "CB100",
		Tissue:   "liver",
		Age:      "adult",
	})
	require.NoError(t, err)

	assert.Equal(t, keyOther, src.OrganismKey)
	assert.Equal(t, keyCellNA, src.CellLineKey)
	assert.Equal(t, keyGenderNA, src.GenderKey)
	assert.Equal(t, keyStrainNA, src.StrainKey)
	assert.Equal(t, keyTissueNA, src.TissueKey)
	assert.Equal(t, NotApplicable, src.Age)
}

func TestAggregator_OrganismImpliesStrain(t *testing.T) {
	p := newTestPolicy(t, PolicyAggregator)

	src, err := p.Resolve(context.Background(), RawAttributes{
		Organism: "Mus abbotti test",
		Strain:   "CB100",
	})
	require.NoError(t, err)

	assert.Equal(t, keyMouse, src.OrganismKey)
	assert.Equal(t, keyAbbotti, src.StrainKey)
}

func TestGenBank_OrganismImpliesStrain(t *testing.T) {
	p := newTestPolicy(t, PolicyGenBank)

	src, err := p.Resolve(context.Background(), RawAttributes{
		Organism: "Mus abbotti test",
		Strain:   "CB100",
	})
	require.NoError(t, err)
	assert.Equal(t, keyAbbotti, src.StrainKey)
}

func TestGenBank_StrainOverrideOnlyFromTranslation(t *testing.T) {
	v := newTestVocab()
	// A strain that happens to share the organism's spelling must not override.
	v.Add(vocab.Strain, "mouse, laboratory", 999)
	p, err := NewPolicy(PolicyGenBank, v, newTestSentinels(t))
	require.NoError(t, err)

	src, err := p.Resolve(context.Background(), RawAttributes{Organism: "mouse, laboratory", Strain: "CB100"})
	require.NoError(t, err)
	assert.Equal(t, keyCB100, src.StrainKey)
}

func TestGenBank_UnknownOrganismFails(t *testing.T) {
	p := newTestPolicy(t, PolicyGenBank)

	_, err := p.Resolve(context.Background(), RawAttributes{Organism: "goat"})
	require.Error(t, err)
	assert.Equal(t, KindUnresolvedOrganism, KindOf(err))
	assert.True(t, IsInputError(err))
	assert.Contains(t, err.Error(), `"goat"`)
}

func TestMandatoryOrganism_AllPolicies(t *testing.T) {
	for _, name := range allPolicies {
		t.Run(name, func(t *testing.T) {
			p := newTestPolicy(t, name)
			for _, raw := range []RawAttributes{
				{},
				{Organism: "   "},
				{Strain: "CB100", Tissue: "liver", Gender: "Male", CellLine: "HeLa", Age: NotSpecified},
			} {
				_, err := p.Resolve(context.Background(), raw)
				require.Error(t, err)
				assert.Equal(t, KindNullOrganism, KindOf(err))
				assert.True(t, IsInputError(err))
			}
		})
	}
}

func TestOrganismBranch_Completeness(t *testing.T) {
	populated := RawAttributes{
		Strain:   "CB100",
		Tissue:   "liver",
		Gender:   "Male",
		CellLine: "HeLa",
		Age:      "embryo",
	}
	cases := []struct {
		organism string
		want     int64
	}{
		{"human", keyHuman},
		{"rat", keyRat},
		{"zebrafish", keyOther},
		{"Other", keyOther},
	}
	for _, policy := range []string{PolicyAggregator, PolicyGenBank, PolicyStrict} {
		for _, tc := range cases {
			t.Run(policy+"/"+tc.organism, func(t *testing.T) {
				raw := populated
				raw.Organism = tc.organism
				if policy == PolicyStrict {
					raw.Age = NotSpecified
				}

				src, err := newTestPolicy(t, policy).Resolve(context.Background(), raw)
				require.NoError(t, err)
				assert.Equal(t, tc.want, src.OrganismKey)
				assert.Equal(t, keyStrainNA, src.StrainKey)
				assert.Equal(t, keyTissueNA, src.TissueKey)
				assert.Equal(t, keyGenderNA, src.GenderKey)
				assert.Equal(t, keyCellNA, src.CellLineKey)
				assert.Equal(t, NotApplicable, src.Age)
			})
		}
	}
}

func TestPolicy_DoesNotModifyRaw(t *testing.T) {
	raw := RawAttributes{Organism: " mouse, laboratory ", Strain: "CB100", Age: "adult"}
	before := raw
	_, err := newTestPolicy(t, PolicyAggregator).Resolve(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, before, raw)
}

func TestPolicy_CaseInsensitiveLookup(t *testing.T) {
	src, err := newTestPolicy(t, PolicyAggregator).Resolve(context.Background(), RawAttributes{
		Organism: "MOUSE, Laboratory",
		Tissue:   "  Liver ",
	})
	require.NoError(t, err)
	assert.Equal(t, keyMouse, src.OrganismKey)
	assert.Equal(t, keyLiver, src.TissueKey)
}

func TestPolicy_VocabularyFailureBindsField(t *testing.T) {
	p, err := NewPolicy(PolicyAggregator, failingVocab{err: errBoom}, newTestSentinels(t))
	require.NoError(t, err)

	_, err = p.Resolve(context.Background(), RawAttributes{Organism: "mouse, laboratory"})
	require.Error(t, err)
	assert.Equal(t, KindResolution, KindOf(err))
	assert.True(t, IsResourceError(err))
	assert.ErrorIs(t, err, errBoom)

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, AttrOrganism, se.Field)
}

func TestStrict_AllPresent(t *testing.T) {
	p := newTestPolicy(t, PolicyStrict)

	src, err := p.Resolve(context.Background(), RawAttributes{
		Organism: "mouse, laboratory",
		Strain:   "C57BL/6J",
		Tissue:   "liver",
		Gender:   "male",
		CellLine: "HeLa",
		Age:      "not specified",
	})
	require.NoError(t, err)

	assert.Equal(t, keyMouse, src.OrganismKey)
	assert.Equal(t, keyC57, src.StrainKey)
	assert.Equal(t, keyLiver, src.TissueKey)
	assert.Equal(t, keyMale, src.GenderKey)
	assert.Equal(t, keyHeLa, src.CellLineKey)
	assert.Equal(t, NotSpecified, src.Age)
	assert.Equal(t, keyVectorNA, src.VectorTypeKey)
}

func TestStrict_ValidatesBeforeOrganismBranch(t *testing.T) {
	p := newTestPolicy(t, PolicyStrict)

	// Human still needs every field present and resolvable.
	_, err := p.Resolve(context.Background(), RawAttributes{
		Organism: "human",
		Tissue:   "liver",
		Gender:   "Male",
		CellLine: "HeLa",
		Age:      NotSpecified,
	})
	require.Error(t, err)
	assert.Equal(t, KindUnresolvedAttribute, KindOf(err))
	assert.Contains(t, err.Error(), "strain is required")
}

func TestStrict_Failures(t *testing.T) {
	full := RawAttributes{
		Organism: "mouse, laboratory",
		Strain:   "CB100",
		Tissue:   "liver",
		Gender:   "Male",
		CellLine: "HeLa",
		Age:      NotResolved,
	}
	cases := []struct {
		name  string
		edit  func(*RawAttributes)
		kind  Kind
		field Attribute
		msg   string
	}{
		{"unknown organism", func(r *RawAttributes) { r.Organism = "goat" }, KindUnresolvedOrganism, AttrOrganism, `organism "goat"`},
		{"missing strain", func(r *RawAttributes) { r.Strain = "" }, KindUnresolvedAttribute, AttrStrain, "strain is required"},
		{"unknown tissue", func(r *RawAttributes) { r.Tissue = "spleen" }, KindUnresolvedAttribute, AttrTissue, `tissue "spleen"`},
		{"missing gender", func(r *RawAttributes) { r.Gender = " " }, KindUnresolvedAttribute, AttrGender, "gender is required"},
		{"unknown cell line", func(r *RawAttributes) { r.CellLine = "CHO" }, KindUnresolvedAttribute, AttrCellLine, `cellLine "CHO"`},
		{"free text age", func(r *RawAttributes) { r.Age = "adult" }, KindUnresolvedAttribute, AttrAge, `age "adult"`},
	}
	p := newTestPolicy(t, PolicyStrict)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := full
			tc.edit(&raw)

			_, err := p.Resolve(context.Background(), raw)
			require.Error(t, err)
			assert.Equal(t, tc.kind, KindOf(err))
			assert.True(t, IsInputError(err))
			assert.Contains(t, err.Error(), tc.msg)

			var se *Error
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tc.field, se.Field)
		})
	}
}

func TestMinimal(t *testing.T) {
	p := newTestPolicy(t, PolicyMinimal)
	populated := RawAttributes{Strain: "CB100", Tissue: "liver", Gender: "Male", CellLine: "HeLa", Age: "adult"}

	cases := []struct {
		organism string
		want     int64
	}{
		{"mouse, laboratory", keyMouse},
		{"human", keyHuman},
		{"rat", keyRat},
		{"zebrafish", keyOther},
	}
	for _, tc := range cases {
		raw := populated
		raw.Organism = tc.organism
		src, err := p.Resolve(context.Background(), raw)
		require.NoError(t, err, tc.organism)
		assert.Equal(t, tc.want, src.OrganismKey, tc.organism)
		assert.Equal(t, keyStrainNA, src.StrainKey)
		assert.Equal(t, keyTissueNA, src.TissueKey)
		assert.Equal(t, keyGenderNA, src.GenderKey)
		assert.Equal(t, keyCellNA, src.CellLineKey)
		assert.Equal(t, NotApplicable, src.Age)
	}

	_, err := p.Resolve(context.Background(), RawAttributes{Organism: "goat"})
	assert.Equal(t, KindUnresolvedOrganism, KindOf(err))
}

func TestLoadSentinels(t *testing.T) {
	s, err := LoadSentinels(context.Background(), newTestVocab())
	require.NoError(t, err)
	assert.Equal(t, keyMouse, s.Mouse)
	assert.Equal(t, keyOther, s.Other)
	assert.Equal(t, keyCellNR, s.For(AttrCellLine).NotResolved)
	assert.Equal(t, keyTissueNS, s.For(AttrTissue).NotSpecified)
	assert.Equal(t, keyVectorNA, s.For(AttrVectorType).NotApplicable)
	assert.Equal(t, DomainSentinels{}, s.For(AttrAge))
}

func TestLoadSentinels_MissingTerm(t *testing.T) {
	v := vocab.NewMapResolver()
	v.Add(vocab.Organism, OrganismMouse, keyMouse)

	_, err := LoadSentinels(context.Background(), v)
	require.Error(t, err)
	assert.Equal(t, KindResolution, KindOf(err))
	assert.True(t, vocab.IsNotFound(err))

	_, err = LoadSentinels(context.Background(), failingVocab{err: errBoom})
	assert.ErrorIs(t, err, errBoom)
}
