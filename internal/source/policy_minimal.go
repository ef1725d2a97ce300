package source

import "context"

// MinimalPolicy resolves the organism only. Every other field is Not
// Applicable whatever the input says, and an unknown organism fails the record.
type MinimalPolicy struct {
	lookups
}

// Name implements Policy.
func (p *MinimalPolicy) Name() string { return PolicyMinimal }

// Resolve implements Policy.
func (p *MinimalPolicy) Resolve(ctx context.Context, raw RawAttributes) (*MolecularSource, error) {
	src := p.newSource()
	orgKey, err := p.organism(ctx, raw.Organism, true)
	if err != nil {
		return nil, err
	}
	switch orgKey {
	case p.sentinels.Mouse, p.sentinels.Human, p.sentinels.Rat:
		src.OrganismKey = orgKey
	default:
		src.OrganismKey = p.sentinels.Other
	}
	p.notApplicable(src)
	return src, nil
}
