package qc

import (
	"context"

	"github.com/mgijax/srcload/internal/source"
)

// Multi fans each event out to every reporter in order. The first failure
// stops delivery and is returned.
type Multi []source.Reporter

var _ source.Reporter = Multi(nil)

func (m Multi) ReportAttributeDiscrepancy(ctx context.Context, e source.AttributeDiscrepancy) error {
	for _, r := range m {
		if err := r.ReportAttributeDiscrepancy(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) ReportNameConflict(ctx context.Context, e source.NameConflict) error {
	for _, r := range m {
		if err := r.ReportNameConflict(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) ReportChangedLibrary(ctx context.Context, e source.ChangedLibrary) error {
	for _, r := range m {
		if err := r.ReportChangedLibrary(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
