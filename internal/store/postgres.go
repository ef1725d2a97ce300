package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/mgijax/srcload/internal/db"
	"github.com/mgijax/srcload/internal/source"
)

// sourceMGIType is the MGI_AttributeHistory object type of PRB_Source rows.
const sourceMGIType = 5

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const sourceColumns = `s._source_key, s._organism_key, s._strain_key, s._tissue_key, s._gender_key,
	s._cellline_key, s._segmenttype_key, s._vector_key, s.name, s.age, s.iscuratoredited`

const (
	sqlLoadCollapsible = `SELECT ` + sourceColumns + ` FROM mgd.prb_source s
WHERE s.name IS NULL AND NOT s.iscuratoredited`

	sqlQueryByFingerprint = `SELECT ` + sourceColumns + ` FROM mgd.prb_source s
WHERE s.name IS NULL
	AND s._organism_key = $1 AND s._strain_key = $2 AND s._tissue_key = $3
	AND s._gender_key = $4 AND s._cellline_key = $5
	AND s._vector_key = $6 AND s._segmenttype_key = $7
ORDER BY s._source_key`

	sqlFindByName = `SELECT ` + sourceColumns + ` FROM mgd.prb_source s WHERE s.name = $1 ORDER BY s._source_key LIMIT 1`

	sqlGetSource = `SELECT ` + sourceColumns + ` FROM mgd.prb_source s WHERE s._source_key = $1`

	sqlFindAssociation = `SELECT a._assoc_key, a._sequence_key, a._source_key, s._organism_key
FROM mgd.seq_source_assoc a
JOIN mgd.prb_source s ON s._source_key = a._source_key
WHERE a._sequence_key = $1 AND s._organism_key = $2
ORDER BY a._assoc_key LIMIT 1`

	sqlIsCurated = `SELECT EXISTS (
	SELECT 1 FROM mgd.mgi_attributehistory h
	WHERE h._object_key = $1 AND h._mgitype_key = $2 AND lower(h.columnname) = lower($3)
)`

	sqlMaxSourceKey = `SELECT COALESCE(MAX(_source_key), 0) FROM mgd.prb_source`
)

// PostgresGateway implements Gateway on an MGD database.
type PostgresGateway struct {
	pool    db.Pool
	closeFn func()
	clones  *cloneCache

	mu      sync.Mutex
	nextKey int64 // 0 until seeded from MAX(_source_key)
}

// GatewayOptions configure a PostgresGateway.
type GatewayOptions struct {
	CloneCacheMode source.CacheMode
	CloneCacheSize int
}

// NewPostgres opens a pool and returns a gateway on it.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig, opts GatewayOptions) (*PostgresGateway, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	g, err := NewGateway(ctx, pool, opts)
	if err != nil {
		pool.Close()
		return nil, err
	}
	g.closeFn = pool.Close
	return g, nil
}

// NewGateway wraps an existing pool. An eager clone cache is loaded here.
func NewGateway(ctx context.Context, pool db.Pool, opts GatewayOptions) (*PostgresGateway, error) {
	clones, err := newCloneCache(ctx, pool, opts.CloneCacheMode, opts.CloneCacheSize)
	if err != nil {
		return nil, err
	}
	return &PostgresGateway{pool: pool, clones: clones}, nil
}

// Pool returns the underlying pool for the batch writer and migrations.
func (g *PostgresGateway) Pool() db.Pool {
	return g.pool
}

// Close releases the pool if the gateway opened it.
func (g *PostgresGateway) Close() error {
	if g.closeFn != nil {
		g.closeFn()
	}
	return nil
}

// scanSource reads one sourceColumns row.
func scanSource(row pgx.Row) (*source.MolecularSource, error) {
	var (
		src  source.MolecularSource
		name *string
	)
	err := row.Scan(
		&src.Key, &src.OrganismKey, &src.StrainKey, &src.TissueKey, &src.GenderKey,
		&src.CellLineKey, &src.SegmentTypeKey, &src.VectorTypeKey, &name, &src.Age, &src.CuratorEdited,
	)
	if err != nil {
		return nil, err
	}
	if name != nil {
		src.Name = *name
	}
	src.InStore = true
	return &src, nil
}

func (g *PostgresGateway) querySources(ctx context.Context, sql string, args ...any) ([]*source.MolecularSource, error) {
	rows, err := g.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*source.MolecularSource
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// LoadCollapsible implements source.CacheLoader.
func (g *PostgresGateway) LoadCollapsible(ctx context.Context) ([]*source.MolecularSource, error) {
	out, err := g.querySources(ctx, sqlLoadCollapsible)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load collapsible sources")
	}
	return out, nil
}

// QueryByFingerprint implements source.CacheLoader.
func (g *PostgresGateway) QueryByFingerprint(ctx context.Context, c *source.MolecularSource) ([]*source.MolecularSource, error) {
	out, err := g.querySources(ctx, sqlQueryByFingerprint,
		c.OrganismKey, c.StrainKey, c.TissueKey, c.GenderKey, c.CellLineKey, c.VectorTypeKey, c.SegmentTypeKey,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query sources by fingerprint")
	}
	return out, nil
}

// FindByName implements source.NamedSourceFinder.
func (g *PostgresGateway) FindByName(ctx context.Context, name string) (*source.MolecularSource, error) {
	src, err := scanSource(g.pool.QueryRow(ctx, sqlFindByName, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find source %q", name)
	}
	return src, nil
}

// GetSource implements source.Gateway.
func (g *PostgresGateway) GetSource(ctx context.Context, key int64) (*source.MolecularSource, error) {
	src, err := scanSource(g.pool.QueryRow(ctx, sqlGetSource, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get source %d", key)
	}
	return src, nil
}

// FindAssociation implements source.Gateway.
func (g *PostgresGateway) FindAssociation(ctx context.Context, sequenceKey, organismKey int64) (*source.Association, error) {
	var a source.Association
	err := g.pool.QueryRow(ctx, sqlFindAssociation, sequenceKey, organismKey).
		Scan(&a.Key, &a.SequenceKey, &a.SourceKey, &a.OrganismKey)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find association for sequence %d", sequenceKey)
	}
	return &a, nil
}

// IsCurated implements source.CurationHistory.
func (g *PostgresGateway) IsCurated(ctx context.Context, sourceKey int64, column string) (bool, error) {
	var curated bool
	if err := g.pool.QueryRow(ctx, sqlIsCurated, sourceKey, sourceMGIType, column).Scan(&curated); err != nil {
		return false, eris.Wrapf(err, "postgres: attribute history for source %d", sourceKey)
	}
	return curated, nil
}

// NextSourceKey implements source.KeyAllocator. The counter is seeded from
// the table once and then advanced in memory; the run is the only writer.
func (g *PostgresGateway) NextSourceKey(ctx context.Context) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.nextKey == 0 {
		var maxKey int64
		if err := g.pool.QueryRow(ctx, sqlMaxSourceKey).Scan(&maxKey); err != nil {
			return 0, eris.Wrap(err, "postgres: seed source key")
		}
		g.nextKey = maxKey + 1
	}
	key := g.nextKey
	g.nextKey++
	return key, nil
}

// CloneSources implements source.CloneSourceFinder.
func (g *PostgresGateway) CloneSources(ctx context.Context, cloneIDs []string, limit int) ([]source.CloneSource, error) {
	return g.clones.lookup(ctx, cloneIDs, limit)
}
