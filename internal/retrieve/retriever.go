// Package retrieve implements cross-source retrieval: a query vector fans
// out over the per-document indexes of a set of sources, and the candidates
// merge into a single score-ranked list.
package retrieve

import (
	"context"
	"errors"
	"sort"
	"sync"

	"studylm/internal/contextutil"
	"studylm/internal/document"
	"studylm/internal/store"
)

var (
	// ErrEmptySourceSet is returned when retrieval is requested over zero
	// document identifiers.
	ErrEmptySourceSet = errors.New("no sources to search")
	// ErrNoSourcesReady is returned when none of the requested documents has
	// a loadable index.
	ErrNoSourcesReady = errors.New("no indexed sources ready")
)

// Result is one retrieved chunk with its similarity score and provenance.
type Result struct {
	Score      float32
	DocumentID string
	ChunkIndex int
	Chunk      document.Chunk
}

// Retriever runs per-document searches and merges the results globally.
type Retriever struct {
	store *store.Store
}

// New creates a Retriever over the given artifact store.
func New(s *store.Store) *Retriever {
	return &Retriever{store: s}
}

// Retrieve searches each document in ids for the topK nearest chunks to
// queryVector, then merges all candidates and returns the global topK ordered
// by descending score.
//
// Each source contributes up to topK candidates before the global merge
// (per-source K equals the aggregate K): a deliberate breadth-first recall
// strategy, so a single strong source can dominate every top slot.
// Identifiers whose index or chunk artifacts are missing are skipped.
func (r *Retriever) Retrieve(ctx context.Context, ids []string, queryVector []float32, topK int) ([]Result, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if len(ids) == 0 {
		return nil, ErrEmptySourceSet
	}
	if topK <= 0 {
		topK = 6
	}

	var (
		mu      sync.Mutex
		results []Result
		loaded  int
	)

	// Per-source searches are pure reads over immutable indexes, so they fan
	// out concurrently.
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()

			idx, err := r.store.LoadIndex(id)
			if err != nil {
				if errors.Is(err, store.ErrIndexNotFound) {
					logger.DebugContext(ctx, "skipping source without index", "file_id", id)
				} else {
					logger.WarnContext(ctx, "failed to load index", "file_id", id, "error", err)
				}
				return
			}
			chunks, err := r.store.LoadChunks(id)
			if err != nil {
				logger.WarnContext(ctx, "skipping source without chunk metadata", "file_id", id, "error", err)
				return
			}

			indices, scores, err := idx.Search(queryVector, topK)
			if err != nil {
				logger.WarnContext(ctx, "search failed for source", "file_id", id, "error", err)
				return
			}

			mu.Lock()
			defer mu.Unlock()
			loaded++
			for i, row := range indices {
				if row < 0 || row >= len(chunks) {
					continue
				}
				results = append(results, Result{
					Score:      scores[i],
					DocumentID: id,
					ChunkIndex: row,
					Chunk:      chunks[row],
				})
			}
		}(id)
	}
	wg.Wait()

	if loaded == 0 || len(results) == 0 {
		return nil, ErrNoSourcesReady
	}

	// Global ranking is purely score-based; ties break by document id then
	// row so the merged order is deterministic.
	sort.SliceStable(results, func(a, b int) bool {
		if results[a].Score != results[b].Score {
			return results[a].Score > results[b].Score
		}
		if results[a].DocumentID != results[b].DocumentID {
			return results[a].DocumentID < results[b].DocumentID
		}
		return results[a].ChunkIndex < results[b].ChunkIndex
	})

	if len(results) > topK {
		results = results[:topK]
	}

	logger.DebugContext(ctx, "cross-source retrieval completed",
		"sources_requested", len(ids),
		"sources_loaded", loaded,
		"results", len(results),
	)
	return results, nil
}
