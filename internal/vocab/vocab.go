// Package vocab resolves free-text terms to MGD controlled-vocabulary keys.
package vocab

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
)

// Domain identifies a controlled vocabulary.
type Domain string

const (
	Organism         Domain = "organism"
	Strain           Domain = "strain"
	Tissue           Domain = "tissue"
	Gender           Domain = "gender"
	CellLine         Domain = "cell_line"
	SegmentType      Domain = "segment_type"
	VectorType       Domain = "vector_type"
	OrganismToStrain Domain = "organism_to_strain" // organism strings that imply a strain
)

// Domains lists every domain in load order.
var Domains = []Domain{Organism, Strain, Tissue, Gender, CellLine, SegmentType, VectorType, OrganismToStrain}

// Resolver maps a term in a domain to its key.
type Resolver interface {
	Lookup(ctx context.Context, domain Domain, term string) (int64, error)
}

// NotFoundError reports a term that has no key in a domain.
type NotFoundError struct {
	Domain Domain
	Term   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("vocab: %s term %q not found", e.Domain, e.Term)
}

// IsNotFound reports whether err (or anything it wraps) is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

var folder = cases.Fold()

// normalize folds case and surrounding whitespace so lookups ignore both.
func normalize(term string) string {
	return folder.String(strings.TrimSpace(term))
}

// MapResolver is an in-memory Resolver. The zero value is not usable; use NewMapResolver.
type MapResolver struct {
	mu    sync.RWMutex
	terms map[Domain]map[string]int64
}

// NewMapResolver creates an empty MapResolver.
func NewMapResolver() *MapResolver {
	return &MapResolver{terms: make(map[Domain]map[string]int64)}
}

// Add registers term under domain. A later Add for the same term replaces the key.
func (m *MapResolver) Add(domain Domain, term string, key int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.terms[domain]
	if !ok {
		d = make(map[string]int64)
		m.terms[domain] = d
	}
	d[normalize(term)] = key
}

// Merge copies every entry of terms into domain, replacing existing keys.
// Terms in the batch that fold to the same text keep the lowest key.
func (m *MapResolver) Merge(domain Domain, terms map[string]int64) {
	folded := make(map[string]int64, len(terms))
	for term, key := range terms {
		n := normalize(term)
		prev, ok := folded[n]
		if !ok {
			folded[n] = key
			continue
		}
		if prev == key {
			continue
		}
		kept, dropped := min(prev, key), max(prev, key)
		zap.L().Warn("vocabulary terms collide after case folding",
			zap.String("component", "vocab"),
			zap.String("domain", string(domain)),
			zap.String("term", n),
			zap.Int64("kept_key", kept),
			zap.Int64("dropped_key", dropped),
		)
		folded[n] = kept
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.terms[domain]
	if !ok {
		d = make(map[string]int64, len(folded))
		m.terms[domain] = d
	}
	for n, key := range folded {
		d[n] = key
	}
}

// Lookup implements Resolver.
func (m *MapResolver) Lookup(_ context.Context, domain Domain, term string) (int64, error) {
	n := normalize(term)
	if n == "" {
		return 0, &NotFoundError{Domain: domain, Term: term}
	}
	m.mu.RLock()
	key, ok := m.terms[domain][n]
	m.mu.RUnlock()
	if !ok {
		return 0, &NotFoundError{Domain: domain, Term: term}
	}
	return key, nil
}

// Len returns the number of terms loaded for domain.
func (m *MapResolver) Len(domain Domain) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.terms[domain])
}
