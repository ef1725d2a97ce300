package source

import "context"

// AttributeDiscrepancy records an incoming value that was not applied
// because a curator edited the field.
type AttributeDiscrepancy struct {
	SequenceKey   int64
	SourceKey     int64
	Attribute     Attribute
	ExistingKey   int64
	IncomingKey   int64
	IncomingValue string // raw input text
}

// NameConflict records associated clones that disagree on the library name.
type NameConflict struct {
	SequenceKey int64
	CloneIDs    []string
	Names       []string
}

// ChangedLibrary records a sequence moving between library associations.
type ChangedLibrary struct {
	SequenceKey int64
	OldName     string // empty when the old source was anonymous
	NewName     string // empty when the new source is anonymous
	Method      Method
}

// Reporter receives QC events. Reporting errors are resource errors; they
// never change an outcome that has already been decided.
type Reporter interface {
	ReportAttributeDiscrepancy(ctx context.Context, e AttributeDiscrepancy) error
	ReportNameConflict(ctx context.Context, e NameConflict) error
	ReportChangedLibrary(ctx context.Context, e ChangedLibrary) error
}

// qcEvent is one pending report.
type qcEvent interface {
	deliver(ctx context.Context, r Reporter) error
}

func (e AttributeDiscrepancy) deliver(ctx context.Context, r Reporter) error {
	return r.ReportAttributeDiscrepancy(ctx, e)
}

func (e NameConflict) deliver(ctx context.Context, r Reporter) error {
	return r.ReportNameConflict(ctx, e)
}

func (e ChangedLibrary) deliver(ctx context.Context, r Reporter) error {
	return r.ReportChangedLibrary(ctx, e)
}

// deliverAll sends events in order and returns the first failure as a
// resource error bound to src.
func deliverAll(ctx context.Context, r Reporter, src *MolecularSource, events []qcEvent) error {
	for _, e := range events {
		if err := e.deliver(ctx, r); err != nil {
			return resourceError(src, err)
		}
	}
	return nil
}
