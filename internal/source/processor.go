package source

import (
	"context"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Gateway reads the persisted state the processor needs.
type Gateway interface {
	// FindAssociation returns the sequence's association for organismKey, or nil.
	FindAssociation(ctx context.Context, sequenceKey, organismKey int64) (*Association, error)
	// GetSource returns the source with key, or nil.
	GetSource(ctx context.Context, key int64) (*MolecularSource, error)
}

// Inserter queues new sources for insertion. Implementations must reject
// sources that are persisted or already queued (see CheckInsertable).
type Inserter interface {
	QueueInsert(ctx context.Context, src *MolecularSource) error
}

// Observer is notified of every processed record.
type Observer interface {
	RecordProcessed(res *Result)
	RecordFailed(err error)
}

// Result describes what happened to one record.
type Result struct {
	SequenceKey int64
	Source      *MolecularSource
	Method      Method
	// New is set when the sequence had no association for the organism; the
	// loader creates the association.
	New bool
	// Created is set when Source is a new row queued for insert.
	Created bool
	// Updated is set when reconciliation queued an association update.
	Updated bool
}

// Stats are per-run counters.
type Stats struct {
	Records   int
	New       int
	Existing  int
	Created   int
	Collapsed int
	Updated   int
	Failed    int
	ByMethod  map[Method]int
}

// Processor runs the per-record state machine: discovery, then either the
// new-record path or reconciliation of the existing association. It is not
// safe for concurrent use.
type Processor struct {
	discovery  *Discovery
	resolver   *Resolver
	reconciler *Reconciler
	gateway    Gateway
	history    CurationHistory
	inserter   Inserter
	observer   Observer
	stats      Stats

	// seen holds the sequence/organism pairs handled this run. Storage only
	// reflects them after a flush, so repeats are caught here.
	seen map[sequenceOrganism]int64
}

type sequenceOrganism struct {
	sequenceKey int64
	organismKey int64
}

// ProcessorDeps groups the collaborators of a Processor.
type ProcessorDeps struct {
	Discovery  *Discovery
	Resolver   *Resolver
	Reconciler *Reconciler
	Gateway    Gateway
	History    CurationHistory
	Inserter   Inserter
	Observer   Observer // optional
}

// NewProcessor creates a Processor.
func NewProcessor(d ProcessorDeps) *Processor {
	return &Processor{
		discovery:  d.Discovery,
		resolver:   d.Resolver,
		reconciler: d.Reconciler,
		gateway:    d.Gateway,
		history:    d.History,
		inserter:   d.Inserter,
		observer:   d.Observer,
		stats:      Stats{ByMethod: make(map[Method]int)},
		seen:       make(map[sequenceOrganism]int64),
	}
}

// Process determines the source of one record. On a QC delivery failure the
// result is returned together with the error, since the outcome has already
// been queued.
func (p *Processor) Process(ctx context.Context, rec Record) (*Result, error) {
	res, err := p.process(ctx, rec)
	p.stats.Records++
	if res != nil {
		p.count(res)
	}
	if err != nil {
		p.stats.Failed++
		if p.observer != nil {
			p.observer.RecordFailed(err)
		}
		return res, err
	}
	if p.observer != nil {
		p.observer.RecordProcessed(res)
	}
	return res, nil
}

func (p *Processor) process(ctx context.Context, rec Record) (*Result, error) {
	found, err := p.discovery.Discover(ctx, rec)
	if err != nil {
		return nil, err
	}
	res := &Result{SequenceKey: rec.SequenceKey, Method: found.Method}

	pair := sequenceOrganism{rec.SequenceKey, found.Source.OrganismKey}
	if srcKey, ok := p.seen[pair]; ok {
		return nil, &Error{
			Kind:      KindDuplicateSequence,
			Value:     strconv.FormatInt(rec.SequenceKey, 10),
			SourceKey: srcKey,
		}
	}

	assoc, err := p.gateway.FindAssociation(ctx, rec.SequenceKey, found.Source.OrganismKey)
	if err != nil {
		return nil, resourceError(nil, eris.Wrapf(err, "source: find association for sequence %d", rec.SequenceKey))
	}
	if assoc == nil {
		res, err = p.newRecord(ctx, res, found)
	} else {
		res, err = p.existingRecord(ctx, res, rec, found, *assoc)
	}
	if res != nil {
		p.seen[pair] = res.Source.Key
	}
	return res, err
}

func (p *Processor) newRecord(ctx context.Context, res *Result, found *Discovered) (*Result, error) {
	res.New = true
	res.Source = found.Source
	if found.Method != MethodAttributes {
		return res, nil
	}

	src, created, err := p.resolver.Collapse(ctx, found.Source)
	if err != nil {
		return nil, err
	}
	if created {
		if err := p.inserter.QueueInsert(ctx, src); err != nil {
			return nil, err
		}
	}
	res.Source = src
	res.Created = created
	return res, nil
}

func (p *Processor) existingRecord(ctx context.Context, res *Result, rec Record, found *Discovered, assoc Association) (*Result, error) {
	existing, err := p.gateway.GetSource(ctx, assoc.SourceKey)
	if err != nil {
		return nil, &Error{Kind: KindResource, SourceKey: assoc.SourceKey, Err: err}
	}
	if existing == nil {
		return nil, &Error{
			Kind:      KindResource,
			SourceKey: assoc.SourceKey,
			Err:       eris.Errorf("source: association %d references a missing source", assoc.Key),
		}
	}
	if err := existing.EnsureCuratedFlagsLoaded(ctx, p.history); err != nil {
		return nil, err
	}

	oldFingerprint := existing.Fingerprint()
	updated, err := p.reconciler.Reconcile(ctx, existing, found.Source, assoc, rec.Raw, found.Method)
	res.Updated = updated
	res.Source = existing
	if updated {
		if found.Source.IsAnonymous() {
			// The row now carries different attributes; the cache must not
			// keep handing out its old fingerprint.
			cache := p.resolver.Cache()
			cache.Evict(oldFingerprint, existing.Key)
			cache.Add(existing)
		} else {
			res.Source = found.Source
		}
	}
	if err != nil {
		if !updated {
			return nil, err
		}
		return res, err
	}
	return res, nil
}

func (p *Processor) count(res *Result) {
	p.stats.ByMethod[res.Method]++
	switch {
	case res.New && res.Created:
		p.stats.New++
		p.stats.Created++
	case res.New:
		p.stats.New++
		if res.Method == MethodAttributes {
			p.stats.Collapsed++
		}
	default:
		p.stats.Existing++
	}
	if res.Updated {
		p.stats.Updated++
	}
}

// Stats returns a copy of the run counters.
func (p *Processor) Stats() Stats {
	s := p.stats
	s.ByMethod = make(map[Method]int, len(p.stats.ByMethod))
	for m, n := range p.stats.ByMethod {
		s.ByMethod[m] = n
	}
	return s
}

// LogStats writes the run counters at info level.
func (p *Processor) LogStats() {
	s := p.Stats()
	zap.L().Info("source processing complete",
		zap.String("component", "source.processor"),
		zap.Int("records", s.Records),
		zap.Int("new", s.New),
		zap.Int("existing", s.Existing),
		zap.Int("created", s.Created),
		zap.Int("collapsed", s.Collapsed),
		zap.Int("updated", s.Updated),
		zap.Int("failed", s.Failed),
		zap.Int("by_library", s.ByMethod[MethodLibraryName]),
		zap.Int("by_clones", s.ByMethod[MethodAssociatedClones]),
		zap.Int("by_attributes", s.ByMethod[MethodAttributes]),
	)
}
