// Package retriever implements the first resolution stage: a semantic
// sweep that ranks catalog intents and Fast Memory exemplars by cosine
// similarity to the input vector and keeps the top few candidates.
package retriever

import (
	"context"
	"log/slog"
	"sort"

	"github.com/intentd/intentd/engine/catalog"
	"github.com/intentd/intentd/engine/memory"
	"github.com/intentd/intentd/engine/vec"
)

// Candidate sources.
const (
	SourceRetrieval = "retrieval"
	SourceMemory    = "memory"
)

// DefaultTopK is the number of candidates the sweep keeps.
const DefaultTopK = 5

// Candidate is one surviving intent with its similarity evidence.
type Candidate struct {
	Intent     *catalog.Intent
	Similarity float32
	Source     string
	// ExemplarID names the Fast Memory entry behind a memory candidate.
	ExemplarID string
}

// Retriever performs the semantic sweep over a fixed catalog and a live
// Fast Memory.
type Retriever struct {
	catalog *catalog.Catalog
	memory  memory.Store
	topK    int
}

// New creates a retriever. topK <= 0 selects DefaultTopK. memory may be
// nil, in which case only the catalog is searched.
func New(cat *catalog.Catalog, mem memory.Store, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{catalog: cat, memory: mem, topK: topK}
}

// Retrieve ranks the union of catalog intents and memory exemplars against
// the query vector and returns the top candidates, deduplicated per intent.
// When the same intent surfaces from both sources, the memory hit wins:
// a confirmed exemplar is stronger evidence than a static description.
// A Fast Memory failure degrades to catalog-only retrieval.
func (r *Retriever) Retrieve(ctx context.Context, queryVector []float32) []Candidate {
	best := map[string]Candidate{}

	for _, intent := range r.catalog.All() {
		similarity := vec.Similarity(queryVector, intent.Embedding)
		if similarity <= 0 {
			continue
		}
		best[intent.ID] = Candidate{
			Intent:     intent,
			Similarity: similarity,
			Source:     SourceRetrieval,
		}
	}

	if r.memory != nil {
		hits, err := r.memory.Query(ctx, queryVector, r.topK)
		if err != nil {
			slog.Warn("fast memory query failed, continuing with catalog only", "error", err)
		} else {
			for _, hit := range hits {
				if hit.Similarity <= 0 {
					continue
				}
				intent := r.catalog.GetByID(hit.IntentID)
				if intent == nil {
					slog.Warn("skipping exemplar for unknown intent", "exemplar_id", hit.ID, "intent_id", hit.IntentID)
					continue
				}
				// Memory precedence: on a collision the exemplar replaces
				// the catalog hit outright, carrying its own stored
				// similarity rather than the catalog's.
				best[intent.ID] = Candidate{
					Intent:     intent,
					Similarity: hit.Similarity,
					Source:     SourceMemory,
					ExemplarID: hit.ID,
				}
			}
		}
	}

	candidates := make([]Candidate, 0, len(best))
	for _, c := range best {
		candidates = append(candidates, c)
	}

	// Deterministic ranking: similarity descending, then catalog order.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		return candidates[i].Intent.Ordinal < candidates[j].Intent.Ordinal
	})
	if len(candidates) > r.topK {
		candidates = candidates[:r.topK]
	}
	return candidates
}
