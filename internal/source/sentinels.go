package source

import (
	"context"

	"github.com/mgijax/srcload/internal/vocab"
)

// Organism terms with special handling during resolution.
const (
	OrganismMouse = "mouse, laboratory"
	OrganismHuman = "human"
	OrganismRat   = "rat"
	OrganismOther = "Other"
)

// DomainSentinels are a vocabulary's keys for the three sentinel terms.
type DomainSentinels struct {
	NotApplicable int64
	NotSpecified  int64
	NotResolved   int64
}

// Sentinels holds the keys the resolution policies fall back to.
type Sentinels struct {
	Mouse int64
	Human int64
	Rat   int64
	Other int64

	Strain      DomainSentinels
	Tissue      DomainSentinels
	Gender      DomainSentinels
	CellLine    DomainSentinels
	SegmentType DomainSentinels // only NotApplicable is used
	VectorType  DomainSentinels // only NotApplicable is used
}

// For returns the sentinels of a's vocabulary.
func (s Sentinels) For(a Attribute) DomainSentinels {
	switch a {
	case AttrStrain:
		return s.Strain
	case AttrTissue:
		return s.Tissue
	case AttrGender:
		return s.Gender
	case AttrCellLine:
		return s.CellLine
	case AttrSegmentType:
		return s.SegmentType
	case AttrVectorType:
		return s.VectorType
	default:
		return DomainSentinels{}
	}
}

type sentinelTerm struct {
	domain vocab.Domain
	attr   Attribute
	term   string
	dst    *int64
}

// LoadSentinels resolves every sentinel key once per run.
func LoadSentinels(ctx context.Context, v vocab.Resolver) (Sentinels, error) {
	var s Sentinels
	terms := []sentinelTerm{
		{vocab.Organism, AttrOrganism, OrganismMouse, &s.Mouse},
		{vocab.Organism, AttrOrganism, OrganismHuman, &s.Human},
		{vocab.Organism, AttrOrganism, OrganismRat, &s.Rat},
		{vocab.Organism, AttrOrganism, OrganismOther, &s.Other},
		{vocab.SegmentType, AttrSegmentType, NotApplicable, &s.SegmentType.NotApplicable},
		{vocab.VectorType, AttrVectorType, NotApplicable, &s.VectorType.NotApplicable},
	}
	for _, d := range []struct {
		domain vocab.Domain
		attr   Attribute
		dst    *DomainSentinels
	}{
		{vocab.Strain, AttrStrain, &s.Strain},
		{vocab.Tissue, AttrTissue, &s.Tissue},
		{vocab.Gender, AttrGender, &s.Gender},
		{vocab.CellLine, AttrCellLine, &s.CellLine},
	} {
		terms = append(terms,
			sentinelTerm{d.domain, d.attr, NotApplicable, &d.dst.NotApplicable},
			sentinelTerm{d.domain, d.attr, NotSpecified, &d.dst.NotSpecified},
			sentinelTerm{d.domain, d.attr, NotResolved, &d.dst.NotResolved},
		)
	}

	for _, t := range terms {
		key, err := v.Lookup(ctx, t.domain, t.term)
		if err != nil {
			return Sentinels{}, &Error{Kind: KindResolution, Field: t.attr, Value: t.term, Err: err}
		}
		*t.dst = key
	}
	return s, nil
}
