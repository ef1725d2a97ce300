package source

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/mgijax/srcload/internal/vocab"
)

// Policy names accepted by NewPolicy.
const (
	PolicyAggregator = "aggregator"
	PolicyGenBank    = "genbank"
	PolicyStrict     = "strict"
	PolicyMinimal    = "minimal"
)

// Policy resolves raw attributes into a fully keyed, unsaved source. It never
// modifies raw and has no side effects beyond vocabulary lookups.
type Policy interface {
	Name() string
	Resolve(ctx context.Context, raw RawAttributes) (*MolecularSource, error)
}

// NewPolicy returns the named policy.
func NewPolicy(name string, v vocab.Resolver, s Sentinels) (Policy, error) {
	l := lookups{vocab: v, sentinels: s}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case PolicyAggregator, "":
		return &AggregatorPolicy{lookups: l}, nil
	case PolicyGenBank:
		return &GenBankPolicy{lookups: l}, nil
	case PolicyStrict:
		return &StrictPolicy{lookups: l}, nil
	case PolicyMinimal:
		return &MinimalPolicy{lookups: l}, nil
	default:
		return nil, eris.Errorf("source: unknown policy %q (valid: aggregator, genbank, strict, minimal)", name)
	}
}

// attributeDomains maps resolvable attributes to their vocabularies.
var attributeDomains = map[Attribute]vocab.Domain{
	AttrOrganism: vocab.Organism,
	AttrStrain:   vocab.Strain,
	AttrTissue:   vocab.Tissue,
	AttrGender:   vocab.Gender,
	AttrCellLine: vocab.CellLine,
}

// lookups is the vocabulary access shared by every policy.
type lookups struct {
	vocab     vocab.Resolver
	sentinels Sentinels
}

// newSource starts a candidate with vector and segment type set to Not Applicable.
func (l lookups) newSource() *MolecularSource {
	return &MolecularSource{
		SegmentTypeKey: l.sentinels.SegmentType.NotApplicable,
		VectorTypeKey:  l.sentinels.VectorType.NotApplicable,
	}
}

// lookup resolves raw in a's vocabulary. found is false when the term is not
// in the vocabulary; any other failure is a KindResolution error.
func (l lookups) lookup(ctx context.Context, d vocab.Domain, a Attribute, raw string) (key int64, found bool, err error) {
	key, err = l.vocab.Lookup(ctx, d, strings.TrimSpace(raw))
	if err == nil {
		return key, true, nil
	}
	if vocab.IsNotFound(err) {
		return 0, false, nil
	}
	return 0, false, &Error{Kind: KindResolution, Field: a, Value: raw, Err: err}
}

// lookupOrSentinel resolves raw, falling back to Not Specified for absent
// values and Not Resolved for unknown ones.
func (l lookups) lookupOrSentinel(ctx context.Context, a Attribute, raw string) (int64, error) {
	ds := l.sentinels.For(a)
	if !present(raw) {
		return ds.NotSpecified, nil
	}
	key, found, err := l.lookup(ctx, attributeDomains[a], a, raw)
	if err != nil {
		return 0, err
	}
	if !found {
		return ds.NotResolved, nil
	}
	return key, nil
}

// organism resolves the mandatory organism. With strict set an unknown
// organism fails the record; otherwise it becomes Other.
func (l lookups) organism(ctx context.Context, raw string, strict bool) (int64, error) {
	if !present(raw) {
		return 0, &Error{Kind: KindNullOrganism, Field: AttrOrganism}
	}
	key, found, err := l.lookup(ctx, vocab.Organism, AttrOrganism, raw)
	if err != nil {
		return 0, err
	}
	if !found {
		if strict {
			return 0, &Error{Kind: KindUnresolvedOrganism, Field: AttrOrganism, Value: raw}
		}
		return l.sentinels.Other, nil
	}
	return key, nil
}

// applyOrganismBranch sets the organism key and, for anything but mouse,
// marks every organism-dependent field Not Applicable. It reports whether
// resolution should stop.
func (l lookups) applyOrganismBranch(src *MolecularSource, organismKey int64) bool {
	s := l.sentinels
	switch organismKey {
	case s.Mouse:
		src.OrganismKey = organismKey
		return false
	case s.Human, s.Rat:
		src.OrganismKey = organismKey
	default:
		src.OrganismKey = s.Other
	}
	l.notApplicable(src)
	return true
}

// notApplicable sets every organism-dependent field to Not Applicable.
func (l lookups) notApplicable(src *MolecularSource) {
	s := l.sentinels
	src.CellLineKey = s.CellLine.NotApplicable
	src.GenderKey = s.Gender.NotApplicable
	src.StrainKey = s.Strain.NotApplicable
	src.TissueKey = s.Tissue.NotApplicable
	src.Age = NotApplicable
}
