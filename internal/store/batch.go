package store

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mgijax/srcload/internal/db"
	"github.com/mgijax/srcload/internal/source"
)

const (
	sourceTable = "mgd.prb_source"
	assocTable  = "mgd.seq_source_assoc"

	sqlProcessSource = `SELECT mgd.prb_process_seqloader_source($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
)

var (
	sourceInsertColumns = []string{
		"_source_key", "_segmenttype_key", "_vector_key", "_organism_key", "_strain_key",
		"_tissue_key", "_gender_key", "_cellline_key", "name", "age", "iscuratoredited", "modified_by",
	}
	assocInsertColumns = []string{"_sequence_key", "_source_key"}
)

type pendingAssoc struct {
	sequenceKey int64
	src         *source.MolecularSource
}

// Batch stages the writes of a run: new sources, new associations, and
// reconciliation updates. Flush applies them in one transaction; a failed
// flush keeps everything queued so it can be retried.
type Batch struct {
	pool       db.Pool
	modifiedBy string

	sources []*source.MolecularSource
	assocs  []pendingAssoc
	updates []source.AssociationUpdate
}

// NewBatch creates a Batch writing through pool. modifiedBy is recorded on
// every source row the batch writes.
func NewBatch(pool db.Pool, modifiedBy string) *Batch {
	return &Batch{pool: pool, modifiedBy: modifiedBy}
}

// QueueInsert implements source.Inserter.
func (b *Batch) QueueInsert(_ context.Context, src *source.MolecularSource) error {
	if err := source.CheckInsertable(src); err != nil {
		return err
	}
	if src.Key == 0 {
		return eris.New("store: queue insert: source has no key")
	}
	src.InBatch = true
	b.sources = append(b.sources, src)
	return nil
}

// QueueAssociation stages a new sequence/source association.
func (b *Batch) QueueAssociation(_ context.Context, sequenceKey int64, src *source.MolecularSource) error {
	if src == nil || src.Key == 0 {
		return eris.Errorf("store: queue association for sequence %d: source has no key", sequenceKey)
	}
	b.assocs = append(b.assocs, pendingAssoc{sequenceKey: sequenceKey, src: src})
	return nil
}

// QueueUpdate implements source.Updater.
func (b *Batch) QueueUpdate(_ context.Context, u source.AssociationUpdate) error {
	if u.Source == nil {
		return eris.Errorf("store: queue update for association %d: no source", u.Association.Key)
	}
	b.updates = append(b.updates, u)
	return nil
}

// Pending returns the number of queued writes.
func (b *Batch) Pending() int {
	return len(b.sources) + len(b.assocs) + len(b.updates)
}

// Flush writes sources, then associations, then updates, and commits.
func (b *Batch) Flush(ctx context.Context) (FlushResult, error) {
	var res FlushResult
	if b.Pending() == 0 {
		return res, nil
	}

	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return res, eris.Wrap(err, "store: begin flush")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if res.Sources, err = db.CopyInto(ctx, tx, sourceTable, sourceInsertColumns, b.sourceRows()); err != nil {
		return FlushResult{}, eris.Wrap(err, "store: flush sources")
	}
	if res.Associations, err = db.CopyInto(ctx, tx, assocTable, assocInsertColumns, b.assocRows()); err != nil {
		return FlushResult{}, eris.Wrap(err, "store: flush associations")
	}
	for _, u := range b.updates {
		if _, err := tx.Exec(ctx, sqlProcessSource, b.updateArgs(u)...); err != nil {
			return FlushResult{}, eris.Wrapf(err, "store: update association %d", u.Association.Key)
		}
		res.Updates++
	}

	if err := tx.Commit(ctx); err != nil {
		return FlushResult{}, eris.Wrap(err, "store: commit flush")
	}

	for _, src := range b.sources {
		src.InBatch = false
		src.InStore = true
	}
	b.sources, b.assocs, b.updates = nil, nil, nil

	zap.L().Debug("batch flushed",
		zap.String("component", "store.batch"),
		zap.Int64("sources", res.Sources),
		zap.Int64("associations", res.Associations),
		zap.Int64("updates", res.Updates),
	)
	return res, nil
}

func (b *Batch) sourceRows() [][]any {
	rows := make([][]any, 0, len(b.sources))
	for _, s := range b.sources {
		rows = append(rows, []any{
			s.Key, s.SegmentTypeKey, s.VectorTypeKey, s.OrganismKey, s.StrainKey,
			s.TissueKey, s.GenderKey, s.CellLineKey, nullable(s.Name), s.Age, s.CuratorEdited, b.modifiedBy,
		})
	}
	return rows
}

func (b *Batch) assocRows() [][]any {
	rows := make([][]any, 0, len(b.assocs))
	for _, a := range b.assocs {
		rows = append(rows, []any{a.sequenceKey, a.src.Key})
	}
	return rows
}

func (b *Batch) updateArgs(u source.AssociationUpdate) []any {
	s := u.Source
	return []any{
		u.Association.Key, u.Association.SequenceKey, s.Key,
		s.OrganismKey, s.StrainKey, s.TissueKey, s.GenderKey, s.CellLineKey,
		nullable(s.Name), s.Age, u.Repoint, b.modifiedBy,
	}
}

// nullable maps the empty string to NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
