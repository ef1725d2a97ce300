package source

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Method says how a record's source was found.
type Method int

const (
	MethodUnknown Method = iota
	MethodLibraryName
	MethodAssociatedClones
	MethodAttributes
)

// String returns the wording used in QC reports.
func (m Method) String() string {
	switch m {
	case MethodLibraryName:
		return "found by library lookup"
	case MethodAssociatedClones:
		return "found by associated clones"
	case MethodAttributes:
		return "resolved from attributes"
	default:
		return "unknown"
	}
}

// Label returns a short name for logs and metrics.
func (m Method) Label() string {
	switch m {
	case MethodLibraryName:
		return "library"
	case MethodAssociatedClones:
		return "clones"
	case MethodAttributes:
		return "attributes"
	default:
		return "unknown"
	}
}

// Record is one input record.
type Record struct {
	SequenceKey int64
	Raw         RawAttributes
	CloneIDs    []string
}

// CloneSource is a clone associated with a record, with its source.
type CloneSource struct {
	CloneID    string
	SourceKey  int64
	SourceName string // empty for anonymous sources
}

// NamedSourceFinder looks up persisted named sources. A missing name returns nil, nil.
type NamedSourceFinder interface {
	FindByName(ctx context.Context, name string) (*MolecularSource, error)
}

// CloneSourceFinder returns the sources of the given clones. With a positive
// limit it stops after limit+1 rows.
type CloneSourceFinder interface {
	CloneSources(ctx context.Context, cloneIDs []string, limit int) ([]CloneSource, error)
}

// DiscoveryConfig toggles the clone search and caps its fan-out.
type DiscoveryConfig struct {
	CloneSearch bool
	MaxClones   int // 0 = unlimited
}

// Discovered is the outcome of Discover. For MethodAttributes the source is
// an unsaved candidate that has not been collapsed.
type Discovered struct {
	Source *MolecularSource
	Method Method
}

// Discovery locates the source for a record: by library name, then by the
// library of its associated clones, then by attribute resolution.
type Discovery struct {
	named    NamedSourceFinder
	clones   CloneSourceFinder
	resolver *Resolver
	qc       Reporter
	cfg      DiscoveryConfig
}

// NewDiscovery creates a Discovery. clones may be nil when the clone search is disabled.
func NewDiscovery(named NamedSourceFinder, clones CloneSourceFinder, resolver *Resolver, qc Reporter, cfg DiscoveryConfig) *Discovery {
	if clones == nil {
		cfg.CloneSearch = false
	}
	return &Discovery{named: named, clones: clones, resolver: resolver, qc: qc, cfg: cfg}
}

// Discover runs the lookup chain and stops at the first hit.
func (d *Discovery) Discover(ctx context.Context, rec Record) (*Discovered, error) {
	log := zap.L().With(zap.String("component", "source.discovery"), zap.Int64("sequence_key", rec.SequenceKey))

	if lib := strings.TrimSpace(rec.Raw.LibraryName); lib != "" && !strings.EqualFold(lib, NotApplicable) {
		src, err := d.named.FindByName(ctx, lib)
		if err != nil {
			return nil, &Error{Kind: KindResource, Field: AttrLibrary, Value: lib, Err: err}
		}
		if src != nil {
			return &Discovered{Source: src, Method: MethodLibraryName}, nil
		}
		log.Debug("library not found, falling back", zap.String("library", lib))
	}

	if d.cfg.CloneSearch && len(rec.CloneIDs) > 0 {
		src, err := d.byClones(ctx, rec)
		if err != nil {
			return nil, err
		}
		if src != nil {
			return &Discovered{Source: src, Method: MethodAssociatedClones}, nil
		}
	}

	candidate, err := d.resolver.ResolveAttributesOnly(ctx, rec.Raw)
	if err != nil {
		return nil, err
	}
	return &Discovered{Source: candidate, Method: MethodAttributes}, nil
}

// byClones returns the named source all associated clones agree on. Clones
// that disagree produce a NameConflict report and no source.
func (d *Discovery) byClones(ctx context.Context, rec Record) (*MolecularSource, error) {
	rows, err := d.clones.CloneSources(ctx, rec.CloneIDs, d.cfg.MaxClones)
	if err != nil {
		return nil, &Error{Kind: KindResource, Err: err}
	}
	if d.cfg.MaxClones > 0 && len(rows) > d.cfg.MaxClones {
		return nil, &Error{Kind: KindCloneLimit, Limit: d.cfg.MaxClones}
	}

	var names, cloneIDs []string
	seen := make(map[string]bool)
	for _, r := range rows {
		if r.SourceName == "" || seen[r.SourceName] {
			continue
		}
		seen[r.SourceName] = true
		names = append(names, r.SourceName)
		cloneIDs = append(cloneIDs, r.CloneID)
	}

	switch len(names) {
	case 0:
		return nil, nil
	case 1:
	default:
		conflict := NameConflict{SequenceKey: rec.SequenceKey, CloneIDs: cloneIDs, Names: names}
		if err := deliverAll(ctx, d.qc, nil, []qcEvent{conflict}); err != nil {
			return nil, err
		}
		return nil, nil
	}

	src, err := d.named.FindByName(ctx, names[0])
	if err != nil {
		return nil, &Error{Kind: KindResource, Field: AttrLibrary, Value: names[0], Err: err}
	}
	return src, nil
}
