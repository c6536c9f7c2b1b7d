// Package vectorindex implements a flat inner-product similarity index.
// One index is built per document over the embedding vectors of its chunks;
// row i of the index corresponds to chunk i of the document. Indexes are
// immutable after build and safe for concurrent readers.
package vectorindex

import (
	"fmt"
	"sort"
)

// Flat is an exact (brute-force) inner-product index over float32 vectors.
type Flat struct {
	dim     int
	vectors [][]float32
}

// Build constructs an index over the given vectors in insertion order.
// The dimension is fixed by the first vector; all vectors must match it.
func Build(vectors [][]float32) (*Flat, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("cannot build index from zero vectors")
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("cannot build index from zero-dimension vectors")
	}
	rows := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d has dimension %d, index dimension is %d", i, len(v), dim)
		}
		row := make([]float32, dim)
		copy(row, v)
		rows[i] = row
	}
	return &Flat{dim: dim, vectors: rows}, nil
}

// Len returns the number of rows in the index.
func (f *Flat) Len() int { return len(f.vectors) }

// Dim returns the vector dimension of the index.
func (f *Flat) Dim() int { return f.dim }

// Search returns the indices and inner-product scores of the k rows most
// similar to query, ordered by descending score. Ties break toward the lower
// row index, so results are stable for a fixed index and query. Fewer than k
// results are returned when the index holds fewer rows.
func (f *Flat) Search(query []float32, k int) ([]int, []float32, error) {
	if len(query) != f.dim {
		return nil, nil, fmt.Errorf("query has dimension %d, index dimension is %d", len(query), f.dim)
	}
	if k <= 0 {
		return nil, nil, fmt.Errorf("k must be positive, got %d", k)
	}

	scores := make([]float32, len(f.vectors))
	for i, row := range f.vectors {
		var dot float32
		for j, q := range query {
			dot += row[j] * q
		}
		scores[i] = dot
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	if k > len(order) {
		k = len(order)
	}
	indices := make([]int, k)
	topScores := make([]float32, k)
	for i := 0; i < k; i++ {
		indices[i] = order[i]
		topScores[i] = scores[order[i]]
	}
	return indices, topScores, nil
}
