// Package store is the MGD persistence gateway: source and association reads,
// the clone lookup, key allocation, and the batched writes of a load run.
package store

import (
	"context"

	"github.com/mgijax/srcload/internal/source"
)

// Gateway is everything the source package reads from MGD.
type Gateway interface {
	source.CacheLoader
	source.NamedSourceFinder
	source.CloneSourceFinder
	source.CurationHistory
	source.KeyAllocator
	source.Gateway

	Close() error
}

// Writer queues the writes of a run and applies them in one transaction.
type Writer interface {
	source.Inserter
	source.Updater

	QueueAssociation(ctx context.Context, sequenceKey int64, src *source.MolecularSource) error
	Pending() int
	Flush(ctx context.Context) (FlushResult, error)
}

// FlushResult counts the rows written by one flush.
type FlushResult struct {
	Sources      int64
	Associations int64
	Updates      int64
}

var (
	_ Gateway = (*PostgresGateway)(nil)
	_ Writer  = (*Batch)(nil)
)
