// Package search ranks stored records by cosine similarity to a query
// embedding.
//
// The engine is a brute-force linear scan, which is the right tool for a
// personal/team knowledge base of thousands of records. It works against a
// narrow RecordScanner interface so a smarter index can replace the scan
// without touching callers.
package search

import (
	"fmt"
	"math"
	"sort"

	"github.com/fyrsmithlabs/ingatd/internal/domain"
)

// Result limits. Callers asking for nothing get DefaultLimit; nobody gets
// more than MaxLimit.
const (
	DefaultLimit = 8
	MaxLimit     = 50
)

// RecordScanner streams stored records, optionally restricted to a project.
type RecordScanner interface {
	Scan(project string, fn func(domain.ContextRecord) error) error
}

// Engine scores records against query embeddings.
type Engine struct {
	scanner RecordScanner
}

// NewEngine creates a search engine over the given scanner.
func NewEngine(scanner RecordScanner) *Engine {
	return &Engine{scanner: scanner}
}

// Search returns up to limit results ordered by descending score, ties
// broken by most-recent creation time. Records whose stored embedding has a
// different dimensionality than the query are skipped, not errors: the
// corpus may hold vectors from a previously active backend.
func (e *Engine) Search(query domain.Embedding, filters domain.QueryFilters, limit int) ([]domain.SearchResult, error) {
	if query.Dimensions() == 0 {
		return nil, fmt.Errorf("%w: query embedding is empty", domain.ErrValidation)
	}
	limit = ClampLimit(limit)

	var results []domain.SearchResult

	err := e.scanner.Scan(filters.Project, func(rec domain.ContextRecord) error {
		if !rec.MatchesFilters(filters) {
			return nil
		}
		if rec.Embedding.Dimensions() != query.Dimensions() {
			return nil
		}

		results = append(results, domain.SearchResult{
			ID:        rec.ID,
			Project:   rec.Project,
			Summary:   rec.Summary,
			Body:      rec.Body,
			Tags:      rec.Tags,
			Kind:      rec.Kind,
			Score:     score(query.Vector, rec.Embedding.Vector),
			CreatedAt: rec.CreatedAt,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})

	if len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// ClampLimit applies the default and ceiling to a caller-supplied limit.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// score maps cosine similarity onto [0,1]. Vectors from the hash engine are
// non-negative so their cosine already lands there; anything negative from
// other engines clamps to zero.
func score(query, candidate []float32) float32 {
	var dot, qNorm, cNorm float64
	for i := range query {
		q := float64(query[i])
		c := float64(candidate[i])
		dot += q * c
		qNorm += q * q
		cNorm += c * c
	}

	denom := math.Sqrt(qNorm) * math.Sqrt(cNorm)
	if denom == 0 {
		return 0
	}

	cos := dot / denom
	if cos < 0 {
		return 0
	}
	if cos > 1 {
		return 1
	}
	return float32(cos)
}
