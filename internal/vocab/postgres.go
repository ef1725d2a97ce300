package vocab

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mgijax/srcload/internal/db"
)

// domainQueries returns (term, key) pairs for each domain. Organism names
// include the curated organism translations so raw synonyms resolve too.
var domainQueries = map[Domain]string{
	Organism: `
SELECT o.commonname, o._organism_key FROM mgd.mgi_organism o
UNION ALL
SELECT t.badname, t._object_key
FROM mgd.mgi_translation t
JOIN mgd.mgi_translationtype tt ON tt._translationtype_key = t._translationtype_key
WHERE tt.translationtype = 'Organism'`,
	Strain:      `SELECT s.strain, s._strain_key FROM mgd.prb_strain s`,
	Tissue:      `SELECT t.tissue, t._tissue_key FROM mgd.prb_tissue t`,
	Gender:      vocabTermSQL("Gender"),
	CellLine:    vocabTermSQL("Cell Line"),
	SegmentType: vocabTermSQL("Segment Type"),
	VectorType:  vocabTermSQL("Segment Vector Type"),
	OrganismToStrain: `
SELECT t.badname, t._object_key
FROM mgd.mgi_translation t
JOIN mgd.mgi_translationtype tt ON tt._translationtype_key = t._translationtype_key
WHERE tt.translationtype = 'Organism to Strain'`,
}

func vocabTermSQL(vocabName string) string {
	return `
SELECT t.term, t._term_key
FROM mgd.voc_term t
JOIN mgd.voc_vocab v ON v._vocab_key = t._vocab_key
WHERE v.name = '` + vocabName + `'`
}

// PostgresResolver resolves terms from MGD vocabulary tables. All domains are
// read into memory by Preload; Lookup never touches the database.
type PostgresResolver struct {
	pool   db.Pool
	terms  *MapResolver
	loaded bool
}

// NewPostgresResolver creates a resolver backed by pool.
func NewPostgresResolver(pool db.Pool) *PostgresResolver {
	return &PostgresResolver{pool: pool, terms: NewMapResolver()}
}

// Preload reads every vocabulary domain concurrently. Each domain is
// collected into its own map and merged once all queries succeed.
func (r *PostgresResolver) Preload(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "vocab.postgres"))

	results := make([]map[string]int64, len(Domains))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range Domains {
		g.Go(func() error {
			terms, err := r.loadDomain(gctx, d)
			if err != nil {
				return err
			}
			results[i] = terms
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, d := range Domains {
		r.terms.Merge(d, results[i])
		log.Debug("vocabulary loaded", zap.String("domain", string(d)), zap.Int("terms", len(results[i])))
	}
	r.loaded = true
	return nil
}

func (r *PostgresResolver) loadDomain(ctx context.Context, d Domain) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx, domainQueries[d])
	if err != nil {
		return nil, eris.Wrapf(err, "vocab: query %s", d)
	}
	defer rows.Close()

	terms := make(map[string]int64)
	for rows.Next() {
		var term string
		var key int64
		if err := rows.Scan(&term, &key); err != nil {
			return nil, eris.Wrapf(err, "vocab: scan %s", d)
		}
		if prev, ok := terms[term]; ok && prev <= key {
			continue
		}
		terms[term] = key
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "vocab: read %s", d)
	}
	return terms, nil
}

// Extend merges extra terms into domain, e.g. from a translation file.
func (r *PostgresResolver) Extend(domain Domain, terms map[string]int64) {
	r.terms.Merge(domain, terms)
}

// Lookup implements Resolver.
func (r *PostgresResolver) Lookup(ctx context.Context, domain Domain, term string) (int64, error) {
	if !r.loaded {
		return 0, eris.Errorf("vocab: lookup in %s before preload", domain)
	}
	return r.terms.Lookup(ctx, domain, term)
}
