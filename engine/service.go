// Package engine assembles the two-stage intent resolution pipeline:
// input normalization, embedding, semantic candidate retrieval, hard-stop
// validation with context boosting, and the feedback loop that grows Fast
// Memory.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/intentd/intentd/engine/catalog"
	"github.com/intentd/intentd/engine/crm"
	"github.com/intentd/intentd/engine/feedback"
	"github.com/intentd/intentd/engine/memory"
	"github.com/intentd/intentd/engine/metrics"
	"github.com/intentd/intentd/engine/normalize"
	"github.com/intentd/intentd/engine/retriever"
	"github.com/intentd/intentd/engine/validator"
	"github.com/intentd/intentd/store"
)

// AutosaveConfidence is the minimum confidence at which a non-fallback
// resolution is written into Fast Memory without waiting for feedback.
const AutosaveConfidence = 0.85

// Config tunes the resolver.
type Config struct {
	// FallbackThreshold is the minimum winning score; below it the engine
	// answers with the uncertainty fallback.
	FallbackThreshold float64

	// TopK bounds the Stage 1 candidate set.
	TopK int

	// MemoryAutosave enables writing high-confidence wins into Fast Memory.
	MemoryAutosave bool

	// NormalizeInput enables slang/phonetic normalization before embedding.
	NormalizeInput bool

	// Weights overrides individual context factor weights.
	Weights map[string]float64
}

// Resolver is the engine facade the transport layer talks to.
type Resolver struct {
	catalog   *catalog.Catalog
	embedder  EmbeddingService
	retriever *retriever.Retriever
	validator *validator.Validator
	matrix    *crm.Matrix
	memory    memory.Store
	loop      *feedback.Loop
	exporter  *metrics.Exporter
	cfg       Config

	bgWg sync.WaitGroup
}

// NewResolver wires the pipeline. exporter may be nil to disable metrics.
func NewResolver(cat *catalog.Catalog, embedder EmbeddingService, mem memory.Store, loop *feedback.Loop, exporter *metrics.Exporter, cfg Config) (*Resolver, error) {
	if cat == nil {
		return nil, errors.New("catalog required")
	}
	if embedder == nil {
		return nil, errors.New("embedding service required")
	}
	if cfg.FallbackThreshold <= 0 {
		cfg.FallbackThreshold = 0.6
	}

	matrix, err := crm.New(cfg.Weights)
	if err != nil {
		return nil, err
	}

	return &Resolver{
		catalog:   cat,
		embedder:  embedder,
		retriever: retriever.New(cat, mem, cfg.TopK),
		validator: validator.New(matrix, cfg.FallbackThreshold),
		matrix:    matrix,
		memory:    mem,
		loop:      loop,
		exporter:  exporter,
		cfg:       cfg,
	}, nil
}

// CandidateView is one Stage 1 candidate in an API response.
type CandidateView struct {
	IntentID   string  `json:"intent_id"`
	Similarity float32 `json:"similarity"`
	Source     string  `json:"source"`
}

// Resolution is the outcome of one resolve call.
type Resolution struct {
	IntentID       string  `json:"intent_id"`
	CanonicalText  string  `json:"canonical_text"`
	Description    string  `json:"description"`
	Score          float64 `json:"score"`
	Similarity     float32 `json:"similarity"`
	Confidence     float64 `json:"confidence"`
	Source         string  `json:"source,omitempty"`
	Fallback       bool    `json:"fallback"`
	FallbackReason string  `json:"fallback_reason,omitempty"`
	NormalizedText string  `json:"normalized_text,omitempty"`

	// Stage1Passed reports whether the semantic sweep produced any
	// candidates; Stage2Passed reports whether validation settled on a
	// winner instead of the uncertainty fallback.
	Stage1Passed bool `json:"stage1_passed"`
	Stage2Passed bool `json:"stage2_passed"`

	ActiveFactors []string            `json:"active_factors"`
	Candidates    []CandidateView     `json:"candidates"`
	Discarded     []validator.Discard `json:"discarded,omitempty"`

	verified *validator.VerifiedIntent
}

// Explanation is a Resolution with the full matrix diagnostics attached.
type Explanation struct {
	Resolution

	Weights       map[string]float64            `json:"weights"`
	Deltas        map[string]float64            `json:"deltas,omitempty"`
	Contributions map[string]map[string]float64 `json:"contributions,omitempty"`
	TopBoosts     []crm.Mover                   `json:"top_boosts,omitempty"`
	TopPenalties  []crm.Mover                   `json:"top_penalties,omitempty"`
}

// Resolve runs the full two-stage pipeline for one input.
func (r *Resolver) Resolve(ctx context.Context, text string, snap crm.ContextSnapshot) (*Resolution, error) {
	if text == "" {
		return nil, errors.New("input text required")
	}

	embedText := text
	var normalized normalize.Result
	if r.cfg.NormalizeInput {
		normalized = normalize.Text(text)
		embedText = normalized.Text
		// Derive input fidelity from the observed distortion unless the
		// caller supplied an explicit value.
		if snap.InputFidelity == nil && normalized.Distortion > 0 {
			fidelity := 1 - normalized.Distortion
			snap.InputFidelity = &fidelity
		}
	}

	vector, err := r.embedder.Embed(ctx, embedText)
	if err != nil {
		return nil, errors.Wrap(err, "failed to embed input")
	}

	stage1Start := time.Now()
	candidates := r.retriever.Retrieve(ctx, vector)
	r.observeStage("retrieval", stage1Start, len(candidates))

	stage2Start := time.Now()
	verified := r.validator.Verify(candidates, snap)
	r.observeStage("validation", stage2Start, -1)

	resolution := buildResolution(verified, candidates)
	resolution.NormalizedText = normalized.Text

	r.recordOutcome(resolution)
	r.maybeAutosave(text, normalized.Text, vector, resolution)
	return resolution, nil
}

// Explain runs Resolve and attaches the matrix diagnostics. It is
// stateless: explaining does not autosave and counts as a regular
// resolution in the metrics.
func (r *Resolver) Explain(ctx context.Context, text string, snap crm.ContextSnapshot) (*Explanation, error) {
	resolution, err := r.Resolve(ctx, text, snap)
	if err != nil {
		return nil, err
	}
	return r.explain(resolution), nil
}

func (r *Resolver) explain(resolution *Resolution) *Explanation {
	out := &Explanation{Resolution: *resolution}
	out.Weights = r.matrix.Weights()
	if result := resolution.verified.Matrix; result != nil {
		out.Deltas = result.Deltas
		out.Contributions = result.Contributions
		out.TopBoosts, out.TopPenalties = result.TopMovers(3)
	}
	return out
}

// SubmitFeedback forwards a verdict to the feedback loop, embedding the
// input so a correction can be stored as an exemplar.
func (r *Resolver) SubmitFeedback(ctx context.Context, signal feedback.Signal) (*feedback.Ack, error) {
	if r.loop == nil {
		return nil, errors.New("feedback loop not configured")
	}

	if len(signal.Embedding) == 0 {
		embedText := signal.UserText
		if r.cfg.NormalizeInput {
			normalized := normalize.Text(signal.UserText)
			signal.NormalizedText = normalized.Text
			embedText = normalized.Text
		}
		vector, err := r.embedder.Embed(ctx, embedText)
		if err != nil {
			return nil, errors.Wrap(err, "failed to embed feedback input")
		}
		signal.Embedding = vector
	}

	ack, err := r.loop.Submit(ctx, signal)
	if err != nil {
		return nil, err
	}
	if r.exporter != nil {
		r.exporter.RecordFeedback(ack.Action)
		if r.memory != nil {
			if count, countErr := r.memory.Count(ctx); countErr == nil {
				r.exporter.SetExemplarCount(count)
			}
		}
	}
	return ack, nil
}

// ReviewQueue lists parked resolutions.
func (r *Resolver) ReviewQueue(ctx context.Context, status string, limit int) ([]*store.ReviewQueueItem, error) {
	if r.loop == nil {
		return nil, errors.New("feedback loop not configured")
	}
	return r.loop.ReviewQueue(ctx, status, limit)
}

// MarkReviewed resolves a review item and promotes it to Fast Memory.
func (r *Resolver) MarkReviewed(ctx context.Context, id, resolvedIntentID string) (*store.ReviewQueueItem, error) {
	if r.loop == nil {
		return nil, errors.New("feedback loop not configured")
	}
	items, err := r.loop.ReviewQueue(ctx, "", 0)
	if err != nil {
		return nil, err
	}

	var embedding []float32
	for _, item := range items {
		if item.ID == id {
			embedText := item.UserText
			if r.cfg.NormalizeInput {
				embedText = normalize.Text(item.UserText).Text
			}
			if vector, embedErr := r.embedder.Embed(ctx, embedText); embedErr == nil {
				embedding = vector
			} else {
				slog.Warn("failed to embed reviewed input, resolving without exemplar", "review_id", id, "error", embedErr)
			}
			break
		}
	}
	item, err := r.loop.MarkReviewed(ctx, id, resolvedIntentID, embedding)
	if err != nil {
		return nil, err
	}
	if r.exporter != nil && r.memory != nil {
		if count, countErr := r.memory.Count(ctx); countErr == nil {
			r.exporter.SetExemplarCount(count)
		}
	}
	return item, nil
}

// Stats returns feedback statistics with the live exemplar count.
func (r *Resolver) Stats(ctx context.Context) (*store.FeedbackStats, error) {
	if r.loop == nil {
		return nil, errors.New("feedback loop not configured")
	}
	stats, err := r.loop.Stats(ctx)
	if err != nil {
		return nil, err
	}
	if r.memory != nil {
		if count, countErr := r.memory.Count(ctx); countErr == nil {
			stats.ExemplarCount = count
		}
	}
	if r.exporter != nil {
		r.exporter.SetAccuracy(stats.Accuracy)
		r.exporter.SetExemplarCount(stats.ExemplarCount)
	}
	return stats, nil
}

// Catalog exposes the loaded intent corpus.
func (r *Resolver) Catalog() *catalog.Catalog {
	return r.catalog
}

// Shutdown waits for in-flight background work (memory autosaves).
func (r *Resolver) Shutdown() {
	r.bgWg.Wait()
}

func (r *Resolver) observeStage(stage string, start time.Time, candidateCount int) {
	if r.exporter == nil {
		return
	}
	r.exporter.RecordStageLatency(stage, time.Since(start))
	if candidateCount >= 0 {
		r.exporter.RecordCandidateCount(candidateCount)
	}
}

func (r *Resolver) recordOutcome(resolution *Resolution) {
	if r.exporter == nil {
		return
	}
	if resolution.Fallback {
		r.exporter.RecordResolution("fallback", resolution.Source)
		r.exporter.RecordFallback(resolution.FallbackReason)
		return
	}
	r.exporter.RecordResolution("resolved", resolution.Source)
}

// maybeAutosave writes a high-confidence win into Fast Memory in the
// background. Failures are logged, never surfaced.
func (r *Resolver) maybeAutosave(rawText, normalizedText string, vector []float32, resolution *Resolution) {
	if !r.cfg.MemoryAutosave || r.memory == nil ||
		resolution.Fallback || resolution.Confidence < AutosaveConfidence {
		return
	}
	// Memory hits are already exemplars; re-saving them only duplicates.
	if resolution.Source == retriever.SourceMemory {
		return
	}

	r.bgWg.Add(1)
	go func() {
		defer r.bgWg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := r.memory.Add(ctx, memory.Entry{
			UserText:       rawText,
			NormalizedText: normalizedText,
			IntentID:       resolution.IntentID,
			Embedding:      vector,
			Confidence:     resolution.Confidence,
			Source:         store.ExemplarSourceAutosave,
		}); err != nil {
			slog.Warn("fast memory autosave failed", "intent_id", resolution.IntentID, "error", err)
		}
	}()
}

func buildResolution(verified *validator.VerifiedIntent, candidates []retriever.Candidate) *Resolution {
	views := make([]CandidateView, 0, len(candidates))
	for _, c := range candidates {
		views = append(views, CandidateView{
			IntentID:   c.Intent.ID,
			Similarity: c.Similarity,
			Source:     c.Source,
		})
	}

	resolution := &Resolution{
		IntentID:       verified.Intent.ID,
		CanonicalText:  verified.Intent.CanonicalText,
		Description:    verified.Intent.Description,
		Score:          verified.Score,
		Similarity:     verified.Similarity,
		Confidence:     verified.Confidence,
		Source:         verified.Source,
		Fallback:       verified.Fallback,
		FallbackReason: verified.FallbackReason,
		Stage1Passed:   len(candidates) > 0,
		Stage2Passed:   !verified.Fallback,
		Candidates:     views,
		Discarded:      verified.Discarded,
		verified:       verified,
	}
	if verified.Matrix != nil {
		resolution.ActiveFactors = verified.Matrix.ActiveFactors
	}
	return resolution
}
