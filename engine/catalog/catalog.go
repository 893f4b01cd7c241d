// Package catalog loads and holds the fixed intent corpus.
//
// The catalog is read-only after load: embeddings for every canonical text
// are computed once through the injected embedder and cached for the
// catalog's lifetime. Concurrent readers need no coordination.
package catalog

import (
	"context"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// ErrLoad marks a missing, malformed or empty intent corpus.
// Surfaced at startup only; there is no runtime reload.
var ErrLoad = errors.New("intent corpus load failed")

// FallbackIntentID is the sentinel returned when no candidate clears
// the confidence threshold.
const FallbackIntentID = "__fallback_uncertain__"

// RequiredContext describes the contextual requirements an intent declares.
// A declared location is hard-stop-enforced only when LocationRequired is
// set; otherwise it contributes boost/penalty through scoring only. The
// same split applies to Profile/ProfileRequired.
type RequiredContext struct {
	Location          string   `json:"location,omitempty"`
	LocationRequired  bool     `json:"location_required,omitempty"`
	Profile           string   `json:"profile,omitempty"`
	ProfileRequired   bool     `json:"profile_required,omitempty"`
	Purpose           string   `json:"purpose,omitempty"`
	AssociatedIntents []string `json:"associated_intents,omitempty"`
}

// Intent is an immutable catalog entry.
type Intent struct {
	ID            string          `json:"id"`
	CanonicalText string          `json:"canonical_text"`
	Description   string          `json:"description"`
	Keywords      []string        `json:"keywords,omitempty"`
	Register      string          `json:"register,omitempty"`
	Required      RequiredContext `json:"required_context,omitempty"`
	Examples      []string        `json:"examples,omitempty"`

	// Embedding is the unit vector of CanonicalText, computed at load time.
	Embedding []float32 `json:"-"`

	// Ordinal is the insertion position in the corpus file. Used as the
	// final deterministic tie-breaker during winner selection.
	Ordinal int `json:"-"`
}

// Embedder is the subset of the embedding service the catalog needs.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Catalog is the loaded, immutable intent set.
type Catalog struct {
	intents []*Intent
	byID    map[string]*Intent
}

type corpusFile struct {
	Intents []*Intent `json:"intents"`
}

// Load reads the corpus file at path and computes embeddings for every
// canonical text. It fails fast (wrapping ErrLoad) on a missing file,
// malformed JSON, missing required fields, duplicate ids or an empty corpus.
func Load(ctx context.Context, path string, embedder Embedder) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(ErrLoad, "read %s: %v", path, err)
	}
	return Parse(ctx, raw, embedder)
}

// Parse builds a catalog from raw corpus JSON. Split out of Load so tests
// and embedded corpora can bypass the filesystem.
func Parse(ctx context.Context, raw []byte, embedder Embedder) (*Catalog, error) {
	var file corpusFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, errors.Wrapf(ErrLoad, "malformed corpus: %v", err)
	}
	if len(file.Intents) == 0 {
		return nil, errors.Wrap(ErrLoad, "corpus contains no intents")
	}

	c := &Catalog{
		intents: make([]*Intent, 0, len(file.Intents)),
		byID:    make(map[string]*Intent, len(file.Intents)),
	}
	texts := make([]string, 0, len(file.Intents))
	for i, intent := range file.Intents {
		if intent.ID == "" {
			return nil, errors.Wrapf(ErrLoad, "intent at position %d has no id", i)
		}
		if intent.ID == FallbackIntentID {
			return nil, errors.Wrapf(ErrLoad, "intent id %q is reserved", intent.ID)
		}
		if intent.CanonicalText == "" {
			return nil, errors.Wrapf(ErrLoad, "intent %q has no canonical_text", intent.ID)
		}
		if intent.Description == "" {
			return nil, errors.Wrapf(ErrLoad, "intent %q has no description", intent.ID)
		}
		if _, ok := c.byID[intent.ID]; ok {
			return nil, errors.Wrapf(ErrLoad, "duplicate intent id %q", intent.ID)
		}
		intent.Ordinal = i
		c.intents = append(c.intents, intent)
		c.byID[intent.ID] = intent
		texts = append(texts, intent.CanonicalText)
	}

	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, errors.Wrapf(ErrLoad, "embed canonical texts: %v", err)
	}
	if len(vectors) != len(c.intents) {
		return nil, errors.Wrapf(ErrLoad, "embedder returned %d vectors for %d intents", len(vectors), len(c.intents))
	}
	for i, intent := range c.intents {
		if len(vectors[i]) == 0 {
			return nil, errors.Wrapf(ErrLoad, "empty embedding for intent %q", intent.ID)
		}
		intent.Embedding = vectors[i]
	}

	return c, nil
}

// GetByID returns the intent with the given id, or nil when absent.
func (c *Catalog) GetByID(id string) *Intent {
	return c.byID[id]
}

// All returns the intents in corpus order. The slice is a defensive copy;
// the Intent values themselves are shared and must not be mutated.
func (c *Catalog) All() []*Intent {
	out := make([]*Intent, len(c.intents))
	copy(out, c.intents)
	return out
}

// Count returns the number of loaded intents.
func (c *Catalog) Count() int {
	return len(c.intents)
}

// Dimensions returns the embedding dimension of the corpus, 0 when empty.
func (c *Catalog) Dimensions() int {
	if len(c.intents) == 0 {
		return 0
	}
	return len(c.intents[0].Embedding)
}

// UncertainIntent returns the sentinel intent used for fallback results.
// It is not part of the corpus and carries no embedding.
func UncertainIntent() *Intent {
	return &Intent{
		ID:            FallbackIntentID,
		CanonicalText: "I am not sure what you meant",
		Description:   "Sentinel returned when no candidate clears the confidence threshold.",
		Ordinal:       -1,
	}
}
