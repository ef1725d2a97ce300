// Package source resolves the raw biological attributes of molecular sources
// into keyed MGD source rows. It collapses equivalent anonymous sources onto
// one row and reconciles persisted sources against incoming data without
// overwriting curator edits.
package source

import (
	"context"
	"strconv"
	"strings"
)

// Age sentinels. Age has no controlled vocabulary, so these are stored as text.
const (
	NotApplicable = "Not Applicable"
	NotResolved   = "Not Resolved"
	NotSpecified  = "Not Specified"
)

// Attribute names a source field.
type Attribute string

const (
	AttrOrganism    Attribute = "organism"
	AttrStrain      Attribute = "strain"
	AttrTissue      Attribute = "tissue"
	AttrGender      Attribute = "gender"
	AttrCellLine    Attribute = "cellLine"
	AttrAge         Attribute = "age"
	AttrSegmentType Attribute = "segmentType"
	AttrVectorType  Attribute = "vectorType"
	AttrLibrary     Attribute = "library"
)

// Column returns the PRB_Source column recorded in the attribute history.
func (a Attribute) Column() string {
	switch a {
	case AttrOrganism:
		return "_Organism_key"
	case AttrStrain:
		return "_Strain_key"
	case AttrTissue:
		return "_Tissue_key"
	case AttrGender:
		return "_Gender_key"
	case AttrCellLine:
		return "_CellLine_key"
	case AttrAge:
		return "age"
	case AttrSegmentType:
		return "_SegmentType_key"
	case AttrVectorType:
		return "_Vector_key"
	case AttrLibrary:
		return "name"
	default:
		return string(a)
	}
}

// curatableAttributes carry a per-field curator-edit flag.
var curatableAttributes = []Attribute{AttrOrganism, AttrStrain, AttrTissue, AttrGender, AttrCellLine, AttrAge}

// RawAttributes are the free-text attributes of one input record. An empty
// field means the input did not specify it.
type RawAttributes struct {
	Organism    string
	Strain      string
	Tissue      string
	Gender      string
	CellLine    string
	Age         string
	LibraryName string
}

// Reset clears every field so the value can be reused for the next record.
func (r *RawAttributes) Reset() {
	*r = RawAttributes{}
}

// Get returns the raw value for a.
func (r RawAttributes) Get(a Attribute) string {
	switch a {
	case AttrOrganism:
		return r.Organism
	case AttrStrain:
		return r.Strain
	case AttrTissue:
		return r.Tissue
	case AttrGender:
		return r.Gender
	case AttrCellLine:
		return r.CellLine
	case AttrAge:
		return r.Age
	case AttrLibrary:
		return r.LibraryName
	default:
		return ""
	}
}

func present(s string) bool {
	return strings.TrimSpace(s) != ""
}

// MolecularSource is a keyed PRB_Source row.
type MolecularSource struct {
	Key            int64 // 0 until persisted or queued for insert
	OrganismKey    int64
	StrainKey      int64
	TissueKey      int64
	CellLineKey    int64
	GenderKey      int64
	SegmentTypeKey int64
	VectorTypeKey  int64
	Age            string
	Name           string // empty for anonymous sources

	// CuratorEdited is the row-level flag; per-field flags are only
	// consulted when it is set.
	CuratorEdited bool

	InStore bool // row exists in the database
	InBatch bool // row is queued for insert

	curated *CuratedFlags
}

// IsAnonymous reports whether the source has no library name.
func (s *MolecularSource) IsAnonymous() bool {
	return s.Name == ""
}

// Fingerprint is the equivalence key: the name for named sources, otherwise
// the fixed-order attribute keys.
func (s *MolecularSource) Fingerprint() string {
	if s.Name != "" {
		return s.Name
	}
	var b strings.Builder
	for i, k := range []int64{
		s.OrganismKey, s.StrainKey, s.TissueKey, s.GenderKey,
		s.CellLineKey, s.VectorTypeKey, s.SegmentTypeKey,
	} {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(strconv.FormatInt(k, 10))
	}
	return b.String()
}

// AttributeKey returns the vocabulary key held for a.
func (s *MolecularSource) AttributeKey(a Attribute) int64 {
	switch a {
	case AttrOrganism:
		return s.OrganismKey
	case AttrStrain:
		return s.StrainKey
	case AttrTissue:
		return s.TissueKey
	case AttrGender:
		return s.GenderKey
	case AttrCellLine:
		return s.CellLineKey
	case AttrSegmentType:
		return s.SegmentTypeKey
	case AttrVectorType:
		return s.VectorTypeKey
	default:
		return 0
	}
}

// SetAttributeKey stores key for a. Non-key attributes are ignored.
func (s *MolecularSource) SetAttributeKey(a Attribute, key int64) {
	switch a {
	case AttrOrganism:
		s.OrganismKey = key
	case AttrStrain:
		s.StrainKey = key
	case AttrTissue:
		s.TissueKey = key
	case AttrGender:
		s.GenderKey = key
	case AttrCellLine:
		s.CellLineKey = key
	case AttrSegmentType:
		s.SegmentTypeKey = key
	case AttrVectorType:
		s.VectorTypeKey = key
	}
}

// Clone returns a copy, including any loaded curator flags.
func (s *MolecularSource) Clone() *MolecularSource {
	c := *s
	if s.curated != nil {
		flags := *s.curated
		c.curated = &flags
	}
	return &c
}

// CuratedFlags records which fields a curator has edited.
type CuratedFlags struct {
	Organism bool
	Strain   bool
	Tissue   bool
	Gender   bool
	CellLine bool
	Age      bool
}

func (f *CuratedFlags) set(a Attribute, v bool) {
	switch a {
	case AttrOrganism:
		f.Organism = v
	case AttrStrain:
		f.Strain = v
	case AttrTissue:
		f.Tissue = v
	case AttrGender:
		f.Gender = v
	case AttrCellLine:
		f.CellLine = v
	case AttrAge:
		f.Age = v
	}
}

func (f CuratedFlags) get(a Attribute) bool {
	switch a {
	case AttrOrganism:
		return f.Organism
	case AttrStrain:
		return f.Strain
	case AttrTissue:
		return f.Tissue
	case AttrGender:
		return f.Gender
	case AttrCellLine:
		return f.CellLine
	case AttrAge:
		return f.Age
	default:
		return false
	}
}

// CurationHistory answers whether a curator changed a column of a source.
type CurationHistory interface {
	IsCurated(ctx context.Context, sourceKey int64, column string) (bool, error)
}

// EnsureCuratedFlagsLoaded populates the per-field curator flags once. Sources
// that are not curator-edited, or not yet persisted, get all-false flags
// without consulting history.
func (s *MolecularSource) EnsureCuratedFlagsLoaded(ctx context.Context, h CurationHistory) error {
	if s.curated != nil {
		return nil
	}
	var flags CuratedFlags
	if s.CuratorEdited && s.Key != 0 {
		for _, a := range curatableAttributes {
			ok, err := h.IsCurated(ctx, s.Key, a.Column())
			if err != nil {
				return &Error{Kind: KindResource, Field: a, SourceKey: s.Key, Fingerprint: s.Fingerprint(), Err: err}
			}
			flags.set(a, ok)
		}
	}
	s.curated = &flags
	return nil
}

// SetCuratedFlags replaces the per-field flags, e.g. when a gateway already
// read the history alongside the row.
func (s *MolecularSource) SetCuratedFlags(f CuratedFlags) {
	s.curated = &f
}

// CuratedFlags returns the loaded flags and whether they have been loaded.
func (s *MolecularSource) CuratedFlags() (CuratedFlags, bool) {
	if s.curated == nil {
		return CuratedFlags{}, false
	}
	return *s.curated, true
}

// IsCurated reports the curator flag for a. Before the flags are loaded a
// curator-edited source reports every field as curated.
func (s *MolecularSource) IsCurated(a Attribute) bool {
	if !s.CuratorEdited {
		return false
	}
	if s.curated == nil {
		return true
	}
	return s.curated.get(a)
}

// CheckInsertable returns a state error when src is already persisted or queued.
func CheckInsertable(src *MolecularSource) error {
	switch {
	case src.InStore:
		return &Error{Kind: KindAlreadyPersisted, SourceKey: src.Key, Fingerprint: src.Fingerprint()}
	case src.InBatch:
		return &Error{Kind: KindAlreadyBatched, SourceKey: src.Key, Fingerprint: src.Fingerprint()}
	}
	return nil
}
