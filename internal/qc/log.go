package qc

import (
	"context"

	"go.uber.org/zap"

	"github.com/mgijax/srcload/internal/source"
)

// LogReporter writes QC events to a zap logger at warn level.
type LogReporter struct {
	log *zap.Logger
}

var _ source.Reporter = (*LogReporter)(nil)

// NewLogReporter returns a LogReporter on l, or on the global logger when l is nil.
func NewLogReporter(l *zap.Logger) *LogReporter {
	if l == nil {
		l = zap.L()
	}
	return &LogReporter{log: l.With(zap.String("component", "qc"))}
}

func (r *LogReporter) ReportAttributeDiscrepancy(_ context.Context, e source.AttributeDiscrepancy) error {
	r.log.Warn("curated attribute not updated",
		zap.Int64("sequence_key", e.SequenceKey),
		zap.Int64("source_key", e.SourceKey),
		zap.String("attribute", string(e.Attribute)),
		zap.Int64("existing_key", e.ExistingKey),
		zap.Int64("incoming_key", e.IncomingKey),
		zap.String("incoming_value", e.IncomingValue),
	)
	return nil
}

func (r *LogReporter) ReportNameConflict(_ context.Context, e source.NameConflict) error {
	r.log.Warn("associated clones disagree on library",
		zap.Int64("sequence_key", e.SequenceKey),
		zap.Strings("clone_ids", e.CloneIDs),
		zap.Strings("names", e.Names),
	)
	return nil
}

func (r *LogReporter) ReportChangedLibrary(_ context.Context, e source.ChangedLibrary) error {
	r.log.Warn("sequence changed library",
		zap.Int64("sequence_key", e.SequenceKey),
		zap.String("old_name", e.OldName),
		zap.String("new_name", e.NewName),
		zap.String("method", e.Method.String()),
	)
	return nil
}
