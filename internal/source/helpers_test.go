package source

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mgijax/srcload/internal/vocab"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// Vocabulary keys used throughout the tests.
const (
	keyMouse int64 = 1
	keyHuman int64 = 2
	keyRat   int64 = 3
	keyOther int64 = 4
	keyFish  int64 = 5

	keyStrainNA int64 = 100
	keyStrainNS int64 = 101
	keyStrainNR int64 = 102
	keyCB100    int64 = 110
	keyC57      int64 = 111
	keyAbbotti  int64 = 777 // strain implied by "Mus abbotti test"

	keyTissueNA  int64 = 200
	keyTissueNS  int64 = 201
	keyTissueNR  int64 = 202
	keyPlacenta  int64 = 210
	keyLiver     int64 = 211
	keyGenderNA  int64 = 300
	keyGenderNS  int64 = 301
	keyGenderNR  int64 = 302
	keyFeminine  int64 = 310
	keyMale      int64 = 311
	keyCellNA    int64 = 400
	keyCellNS    int64 = 401
	keyCellNR    int64 = 402
	keyBCells    int64 = 410
	keyHeLa      int64 = 411
	keySegmentNA int64 = 500
	keyVectorNA  int64 = 600
)

func newTestVocab() *vocab.MapResolver {
	v := vocab.NewMapResolver()
	v.Merge(vocab.Organism, map[string]int64{
		OrganismMouse:      keyMouse,
		OrganismHuman:      keyHuman,
		OrganismRat:        keyRat,
		OrganismOther:      keyOther,
		"zebrafish":        keyFish,
		"Mus abbotti test": keyMouse,
	})
	v.Merge(vocab.Strain, map[string]int64{
		NotApplicable:      keyStrainNA,
		NotSpecified:       keyStrainNS,
		NotResolved:        keyStrainNR,
		"CB100":            keyCB100,
		"C57BL/6J":         keyC57,
		"Mus abbotti test": keyAbbotti,
	})
	v.Merge(vocab.OrganismToStrain, map[string]int64{
		"Mus abbotti test": keyAbbotti,
	})
	v.Merge(vocab.Tissue, map[string]int64{
		NotApplicable:     keyTissueNA,
		NotSpecified:      keyTissueNS,
		NotResolved:       keyTissueNR,
		"placenta day 21": keyPlacenta,
		"liver":           keyLiver,
	})
	v.Merge(vocab.Gender, map[string]int64{
		NotApplicable: keyGenderNA,
		NotSpecified:  keyGenderNS,
		NotResolved:   keyGenderNR,
		"Feminine":    keyFeminine,
		"Male":        keyMale,
	})
	v.Merge(vocab.CellLine, map[string]int64{
		NotApplicable: keyCellNA,
		NotSpecified:  keyCellNS,
		NotResolved:   keyCellNR,
		"B-cells":     keyBCells,
		"HeLa":        keyHeLa,
	})
	v.Add(vocab.SegmentType, NotApplicable, keySegmentNA)
	v.Add(vocab.VectorType, NotApplicable, keyVectorNA)
	return v
}

func newTestSentinels(t *testing.T) Sentinels {
	t.Helper()
	s, err := LoadSentinels(context.Background(), newTestVocab())
	require.NoError(t, err)
	return s
}

func newTestPolicy(t *testing.T, name string) Policy {
	t.Helper()
	p, err := NewPolicy(name, newTestVocab(), newTestSentinels(t))
	require.NoError(t, err)
	return p
}

// failingVocab fails every lookup with a non-NotFound error.
type failingVocab struct {
	err error
}

func (f failingVocab) Lookup(context.Context, vocab.Domain, string) (int64, error) {
	return 0, f.err
}

// anonymous returns a resolved, unnamed mouse source.
func anonymous(key, strain, tissue, gender, cell int64) *MolecularSource {
	return &MolecularSource{
		Key:            key,
		OrganismKey:    keyMouse,
		StrainKey:      strain,
		TissueKey:      tissue,
		GenderKey:      gender,
		CellLineKey:    cell,
		SegmentTypeKey: keySegmentNA,
		VectorTypeKey:  keyVectorNA,
		Age:            NotResolved,
	}
}

func named(key int64, name string) *MolecularSource {
	src := anonymous(key, keyStrainNS, keyTissueNS, keyGenderNS, keyCellNS)
	src.Name = name
	src.InStore = true
	return src
}

var errBoom = errors.New("boom")

// fakeStore is an in-memory stand-in for the persistence gateway.
type fakeStore struct {
	collapsible []*MolecularSource
	stored      []*MolecularSource // rows visible to QueryByFingerprint
	named       map[string]*MolecularSource
	clones      []CloneSource
	assocs      map[int64]*Association // by sequence key
	sources     map[int64]*MolecularSource
	curated     map[int64]map[string]bool
	nextKey     int64

	inserts []*MolecularSource
	updates []AssociationUpdate

	fingerprintQueries int
	historyQueries     int
	cloneLimit         int

	loadErr    error
	queryErr   error
	nameErr    error
	keyErr     error
	updateErr  error
	historyErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		named:   make(map[string]*MolecularSource),
		assocs:  make(map[int64]*Association),
		sources: make(map[int64]*MolecularSource),
		curated: make(map[int64]map[string]bool),
		nextKey: 1000,
	}
}

func (f *fakeStore) LoadCollapsible(context.Context) ([]*MolecularSource, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.collapsible, nil
}

func (f *fakeStore) QueryByFingerprint(_ context.Context, candidate *MolecularSource) ([]*MolecularSource, error) {
	f.fingerprintQueries++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	var out []*MolecularSource
	for _, src := range f.stored {
		if src.Fingerprint() == candidate.Fingerprint() {
			out = append(out, src)
		}
	}
	return out, nil
}

func (f *fakeStore) FindByName(_ context.Context, name string) (*MolecularSource, error) {
	if f.nameErr != nil {
		return nil, f.nameErr
	}
	return f.named[name], nil
}

func (f *fakeStore) CloneSources(_ context.Context, _ []string, limit int) ([]CloneSource, error) {
	f.cloneLimit = limit
	if limit > 0 && len(f.clones) > limit+1 {
		return f.clones[:limit+1], nil
	}
	return f.clones, nil
}

func (f *fakeStore) IsCurated(_ context.Context, sourceKey int64, column string) (bool, error) {
	f.historyQueries++
	if f.historyErr != nil {
		return false, f.historyErr
	}
	return f.curated[sourceKey][column], nil
}

func (f *fakeStore) NextSourceKey(context.Context) (int64, error) {
	if f.keyErr != nil {
		return 0, f.keyErr
	}
	f.nextKey++
	return f.nextKey, nil
}

func (f *fakeStore) FindAssociation(_ context.Context, sequenceKey, organismKey int64) (*Association, error) {
	a, ok := f.assocs[sequenceKey]
	if !ok || a.OrganismKey != organismKey {
		return nil, nil
	}
	return a, nil
}

func (f *fakeStore) GetSource(_ context.Context, key int64) (*MolecularSource, error) {
	src, ok := f.sources[key]
	if !ok {
		return nil, nil
	}
	return src.Clone(), nil
}

func (f *fakeStore) QueueInsert(_ context.Context, src *MolecularSource) error {
	if err := CheckInsertable(src); err != nil {
		return err
	}
	src.InBatch = true
	f.inserts = append(f.inserts, src)
	return nil
}

func (f *fakeStore) QueueUpdate(_ context.Context, u AssociationUpdate) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, u)
	return nil
}

// recorder collects QC events.
type recorder struct {
	discrepancies []AttributeDiscrepancy
	conflicts     []NameConflict
	changes       []ChangedLibrary
	err           error
}

func (r *recorder) ReportAttributeDiscrepancy(_ context.Context, e AttributeDiscrepancy) error {
	r.discrepancies = append(r.discrepancies, e)
	return r.err
}

func (r *recorder) ReportNameConflict(_ context.Context, e NameConflict) error {
	r.conflicts = append(r.conflicts, e)
	return r.err
}

func (r *recorder) ReportChangedLibrary(_ context.Context, e ChangedLibrary) error {
	r.changes = append(r.changes, e)
	return r.err
}

func (r *recorder) total() int {
	return len(r.discrepancies) + len(r.conflicts) + len(r.changes)
}
