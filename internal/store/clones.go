package store

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mgijax/srcload/internal/db"
	"github.com/mgijax/srcload/internal/source"
)

// DefaultCloneCacheSize bounds the lazy clone cache when no size is configured.
const DefaultCloneCacheSize = 10000

const (
	sqlAllClones = `SELECT p.name, p._source_key, s.name
FROM mgd.prb_probe p
JOIN mgd.prb_source s ON s._source_key = p._source_key`

	sqlClonesByID = sqlAllClones + `
WHERE p.name = ANY($1)`
)

// cloneCache resolves clone IDs to the sources of their probes. In eager mode
// every probe is read at startup; in lazy mode IDs are queried on demand and
// kept in an LRU.
type cloneCache struct {
	pool db.Pool
	mode source.CacheMode
	all  map[string][]source.CloneSource
	lru  *lru.Cache[string, []source.CloneSource]
}

func newCloneCache(ctx context.Context, pool db.Pool, mode source.CacheMode, size int) (*cloneCache, error) {
	c := &cloneCache{pool: pool, mode: mode}
	if mode == source.CacheEager {
		all, err := c.query(ctx, sqlAllClones)
		if err != nil {
			return nil, err
		}
		c.all = all
		zap.L().Info("clone cache loaded",
			zap.String("component", "store.clones"),
			zap.Int("clones", len(all)),
		)
		return c, nil
	}

	if size <= 0 {
		size = DefaultCloneCacheSize
	}
	cache, err := lru.New[string, []source.CloneSource](size)
	if err != nil {
		return nil, eris.Wrap(err, "store: create clone cache")
	}
	c.lru = cache
	return c, nil
}

func (c *cloneCache) query(ctx context.Context, sql string, args ...any) (map[string][]source.CloneSource, error) {
	rows, err := c.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: query clones")
	}
	defer rows.Close()

	out := make(map[string][]source.CloneSource)
	for rows.Next() {
		var (
			cs   source.CloneSource
			name *string
		)
		if err := rows.Scan(&cs.CloneID, &cs.SourceKey, &name); err != nil {
			return nil, eris.Wrap(err, "store: scan clone")
		}
		if name != nil {
			cs.SourceName = *name
		}
		out[cs.CloneID] = append(out[cs.CloneID], cs)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: read clones")
	}
	return out, nil
}

// lookup returns the clone rows for ids in input order. With a positive limit
// it stops after limit+1 rows so the caller can tell the cap was exceeded.
func (c *cloneCache) lookup(ctx context.Context, ids []string, limit int) ([]source.CloneSource, error) {
	found := c.all
	if c.mode != source.CacheEager {
		var err error
		if found, err = c.fetch(ctx, ids); err != nil {
			return nil, err
		}
	}

	var out []source.CloneSource
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		for _, cs := range found[id] {
			out = append(out, cs)
			if limit > 0 && len(out) > limit {
				return out, nil
			}
		}
	}
	return out, nil
}

// fetch serves ids from the LRU and queries the misses in one round trip.
// IDs with no probe are cached as empty so they are not queried again.
func (c *cloneCache) fetch(ctx context.Context, ids []string) (map[string][]source.CloneSource, error) {
	found := make(map[string][]source.CloneSource, len(ids))
	var missing []string
	for _, id := range ids {
		if rows, ok := c.lru.Get(id); ok {
			found[id] = rows
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return found, nil
	}

	fetched, err := c.query(ctx, sqlClonesByID, missing)
	if err != nil {
		return nil, err
	}
	for _, id := range missing {
		rows := fetched[id]
		c.lru.Add(id, rows)
		found[id] = rows
	}
	return found, nil
}
