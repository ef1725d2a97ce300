package source

import (
	"context"

	"go.uber.org/zap"
)

// Association links a sequence to its source (SEQ_Source_Assoc).
type Association struct {
	Key         int64
	SequenceKey int64
	SourceKey   int64
	OrganismKey int64
}

// AssociationUpdate is one queued write covering the source row and the
// association row. With Repoint set the association moves to Source and the
// source row is left alone; otherwise Source is updated in place.
type AssociationUpdate struct {
	Association Association
	Source      *MolecularSource
	Repoint     bool
}

// Updater queues association updates for the next flush.
type Updater interface {
	QueueUpdate(ctx context.Context, u AssociationUpdate) error
}

// reconciledAttributes are compared field by field for anonymous sources.
// Age is not reconciled: it has no controlled vocabulary to report against
// and stays with manual curation.
var reconciledAttributes = []Attribute{AttrStrain, AttrCellLine, AttrGender, AttrTissue}

// Reconciler brings a persisted source in line with a new observation of the
// same sequence.
type Reconciler struct {
	updates Updater
	qc      Reporter
}

// NewReconciler creates a Reconciler.
func NewReconciler(updates Updater, qc Reporter) *Reconciler {
	return &Reconciler{updates: updates, qc: qc}
}

// Reconcile compares existing, the source currently associated with the
// sequence, against incoming and queues at most one update. existing must
// have its curator flags loaded; until then every field of a curator-edited
// source is treated as locked. It reports whether an update was queued.
//
// existing is only modified after the update has been queued. A QC delivery
// failure is returned after the update, with updated still reporting it.
func (r *Reconciler) Reconcile(ctx context.Context, existing, incoming *MolecularSource, assoc Association, raw RawAttributes, method Method) (bool, error) {
	if incoming.IsAnonymous() {
		return r.reconcileAnonymous(ctx, existing, incoming, assoc, raw, method)
	}
	return r.reconcileNamed(ctx, existing, incoming, assoc, method)
}

func (r *Reconciler) reconcileAnonymous(ctx context.Context, existing, incoming *MolecularSource, assoc Association, raw RawAttributes, method Method) (bool, error) {
	work := existing.Clone()
	dirty := false
	var events []qcEvent

	if !existing.IsAnonymous() {
		events = append(events, ChangedLibrary{
			SequenceKey: assoc.SequenceKey,
			OldName:     existing.Name,
			Method:      method,
		})
		work.Name = ""
		dirty = true
	}

	for _, a := range reconciledAttributes {
		have, want := existing.AttributeKey(a), incoming.AttributeKey(a)
		if have == want {
			continue
		}
		if existing.IsCurated(a) {
			events = append(events, AttributeDiscrepancy{
				SequenceKey:   assoc.SequenceKey,
				SourceKey:     existing.Key,
				Attribute:     a,
				ExistingKey:   have,
				IncomingKey:   want,
				IncomingValue: raw.Get(a),
			})
			continue
		}
		work.SetAttributeKey(a, want)
		dirty = true
	}

	if dirty {
		if err := r.updates.QueueUpdate(ctx, AssociationUpdate{Association: assoc, Source: work}); err != nil {
			return false, resourceError(existing, err)
		}
		zap.L().Debug("source updated in place",
			zap.String("component", "source.reconcile"),
			zap.Int64("source_key", existing.Key),
			zap.String("old_fingerprint", existing.Fingerprint()),
			zap.String("new_fingerprint", work.Fingerprint()),
		)
		*existing = *work
	}
	return dirty, deliverAll(ctx, r.qc, existing, events)
}

func (r *Reconciler) reconcileNamed(ctx context.Context, existing, incoming *MolecularSource, assoc Association, method Method) (bool, error) {
	if existing.Name == incoming.Name {
		return false, nil
	}

	moved := assoc
	moved.SourceKey = incoming.Key
	if err := r.updates.QueueUpdate(ctx, AssociationUpdate{Association: moved, Source: incoming, Repoint: true}); err != nil {
		return false, resourceError(existing, err)
	}
	zap.L().Debug("association repointed",
		zap.String("component", "source.reconcile"),
		zap.Int64("sequence_key", assoc.SequenceKey),
		zap.Int64("from_source_key", existing.Key),
		zap.Int64("to_source_key", incoming.Key),
	)

	changed := ChangedLibrary{
		SequenceKey: assoc.SequenceKey,
		OldName:     existing.Name,
		NewName:     incoming.Name,
		Method:      method,
	}
	return true, deliverAll(ctx, r.qc, incoming, []qcEvent{changed})
}
