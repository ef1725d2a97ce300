package source

import (
	"context"

	"github.com/mgijax/srcload/internal/vocab"
)

// AggregatorPolicy is the baseline policy for aggregator feeds, whose
// organism strings are noisy: an unknown organism becomes Other instead of
// failing, and the organism string is tried directly as a strain name.
type AggregatorPolicy struct {
	lookups
}

// Name implements Policy.
func (p *AggregatorPolicy) Name() string { return PolicyAggregator }

// Resolve implements Policy.
func (p *AggregatorPolicy) Resolve(ctx context.Context, raw RawAttributes) (*MolecularSource, error) {
	return resolveMapped(ctx, p.lookups, raw, false, vocab.Strain)
}

// GenBankPolicy is the policy for authoritative feeds: an organism that does
// not resolve fails the record, and organism strings imply strains only
// through the curated organism-to-strain translation.
type GenBankPolicy struct {
	lookups
}

// Name implements Policy.
func (p *GenBankPolicy) Name() string { return PolicyGenBank }

// Resolve implements Policy.
func (p *GenBankPolicy) Resolve(ctx context.Context, raw RawAttributes) (*MolecularSource, error) {
	return resolveMapped(ctx, p.lookups, raw, true, vocab.OrganismToStrain)
}

// resolveMapped is the shared mapping algorithm:
//  1. vector and segment type are Not Applicable
//  2. organism is required and resolved (Other or failure when unknown)
//  3. non-mouse organisms get Not Applicable for every other field
//  4. a mouse organism string may itself name a strain
//  5. tissue, gender, cell line and strain fall back to Not Specified / Not Resolved
//  6. age is Not Resolved
func resolveMapped(ctx context.Context, l lookups, raw RawAttributes, strictOrganism bool, strainDomain vocab.Domain) (*MolecularSource, error) {
	src := l.newSource()

	orgKey, err := l.organism(ctx, raw.Organism, strictOrganism)
	if err != nil {
		return nil, err
	}
	if l.applyOrganismBranch(src, orgKey) {
		return src, nil
	}

	strainKey, strainFromOrganism, err := l.lookup(ctx, strainDomain, AttrStrain, raw.Organism)
	if err != nil {
		return nil, err
	}

	if src.TissueKey, err = l.lookupOrSentinel(ctx, AttrTissue, raw.Tissue); err != nil {
		return nil, err
	}
	if src.GenderKey, err = l.lookupOrSentinel(ctx, AttrGender, raw.Gender); err != nil {
		return nil, err
	}
	if src.CellLineKey, err = l.lookupOrSentinel(ctx, AttrCellLine, raw.CellLine); err != nil {
		return nil, err
	}
	if strainFromOrganism {
		src.StrainKey = strainKey
	} else if src.StrainKey, err = l.lookupOrSentinel(ctx, AttrStrain, raw.Strain); err != nil {
		return nil, err
	}

	src.Age = NotResolved
	return src, nil
}
