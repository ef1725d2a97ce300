package source

import (
	"context"
	"strings"
)

// StrictPolicy requires every attribute to be present and resolvable. It
// substitutes no sentinels and accepts only the sentinel age values. Once
// the record validates, non-mouse organisms take the usual Not Applicable
// branch.
type StrictPolicy struct {
	lookups
}

// Name implements Policy.
func (p *StrictPolicy) Name() string { return PolicyStrict }

// Resolve implements Policy.
func (p *StrictPolicy) Resolve(ctx context.Context, raw RawAttributes) (*MolecularSource, error) {
	src := p.newSource()

	organismKey, err := p.organism(ctx, raw.Organism, true)
	if err != nil {
		return nil, err
	}
	src.OrganismKey = organismKey

	for _, a := range []Attribute{AttrStrain, AttrTissue, AttrGender, AttrCellLine} {
		key, err := p.required(ctx, a, raw.Get(a))
		if err != nil {
			return nil, err
		}
		src.SetAttributeKey(a, key)
	}

	age, ok := validAge(raw.Age)
	if !ok {
		return nil, &Error{Kind: KindUnresolvedAttribute, Field: AttrAge, Value: raw.Age}
	}
	src.Age = age

	p.applyOrganismBranch(src, organismKey)
	return src, nil
}

func (p *StrictPolicy) required(ctx context.Context, a Attribute, raw string) (int64, error) {
	if !present(raw) {
		return 0, &Error{Kind: KindUnresolvedAttribute, Field: a}
	}
	key, found, err := p.lookup(ctx, attributeDomains[a], a, raw)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, &Error{Kind: KindUnresolvedAttribute, Field: a, Value: raw}
	}
	return key, nil
}

// validAge returns the canonical spelling of a sentinel age.
func validAge(raw string) (string, bool) {
	for _, s := range []string{NotApplicable, NotResolved, NotSpecified} {
		if strings.EqualFold(strings.TrimSpace(raw), s) {
			return s, true
		}
	}
	return "", false
}
