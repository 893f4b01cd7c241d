package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder returns a distinct constant vector per input.
type fakeEmbedder struct {
	failBatch   bool
	dropVectors int
	emptyVector bool
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if f.failBatch {
		return nil, assert.AnError
	}
	out := make([][]float32, 0, len(texts))
	for i := range texts {
		if f.emptyVector {
			out = append(out, nil)
			continue
		}
		out = append(out, []float32{float32(i + 1), 0, 0})
	}
	if f.dropVectors > 0 && len(out) >= f.dropVectors {
		out = out[:len(out)-f.dropVectors]
	}
	return out, nil
}

const validCorpus = `{
	"intents": [
		{
			"id": "set_timer",
			"canonical_text": "set a timer",
			"description": "Start a countdown timer",
			"keywords": ["timer", "set"]
		},
		{
			"id": "preheat_oven",
			"canonical_text": "preheat the oven",
			"description": "Turn on the oven",
			"required_context": {"location": "kitchen", "location_required": true}
		}
	]
}`

func TestParseValidCorpus(t *testing.T) {
	cat, err := Parse(context.Background(), []byte(validCorpus), &fakeEmbedder{})
	require.NoError(t, err)

	assert.Equal(t, 2, cat.Count())
	assert.Equal(t, 3, cat.Dimensions())

	timer := cat.GetByID("set_timer")
	require.NotNil(t, timer)
	assert.Equal(t, 0, timer.Ordinal)
	assert.Equal(t, []float32{1, 0, 0}, timer.Embedding)

	oven := cat.GetByID("preheat_oven")
	require.NotNil(t, oven)
	assert.Equal(t, 1, oven.Ordinal)
	assert.True(t, oven.Required.LocationRequired)
	assert.Equal(t, "kitchen", oven.Required.Location)

	assert.Nil(t, cat.GetByID("nope"))
}

func TestParseRejectsMalformedJSON(t *testing.T) {
	_, err := Parse(context.Background(), []byte(`{`), &fakeEmbedder{})
	assert.ErrorIs(t, err, ErrLoad)
}

func TestParseRejectsEmptyCorpus(t *testing.T) {
	_, err := Parse(context.Background(), []byte(`{"intents": []}`), &fakeEmbedder{})
	assert.ErrorIs(t, err, ErrLoad)
}

func TestParseRejectsMissingFields(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"no id", `{"intents":[{"canonical_text":"x","description":"y"}]}`},
		{"no canonical_text", `{"intents":[{"id":"a","description":"y"}]}`},
		{"no description", `{"intents":[{"id":"a","canonical_text":"x"}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(context.Background(), []byte(tc.raw), &fakeEmbedder{})
			assert.ErrorIs(t, err, ErrLoad)
		})
	}
}

func TestParseRejectsDuplicateID(t *testing.T) {
	raw := `{"intents":[
		{"id":"a","canonical_text":"x","description":"y"},
		{"id":"a","canonical_text":"x2","description":"y2"}
	]}`
	_, err := Parse(context.Background(), []byte(raw), &fakeEmbedder{})
	assert.ErrorIs(t, err, ErrLoad)
}

func TestParseRejectsReservedID(t *testing.T) {
	raw := `{"intents":[{"id":"` + FallbackIntentID + `","canonical_text":"x","description":"y"}]}`
	_, err := Parse(context.Background(), []byte(raw), &fakeEmbedder{})
	assert.ErrorIs(t, err, ErrLoad)
}

func TestParseFailsWhenEmbedderFails(t *testing.T) {
	_, err := Parse(context.Background(), []byte(validCorpus), &fakeEmbedder{failBatch: true})
	assert.ErrorIs(t, err, ErrLoad)
}

func TestParseRejectsVectorCountMismatch(t *testing.T) {
	_, err := Parse(context.Background(), []byte(validCorpus), &fakeEmbedder{dropVectors: 1})
	assert.ErrorIs(t, err, ErrLoad)
}

func TestParseRejectsEmptyVector(t *testing.T) {
	_, err := Parse(context.Background(), []byte(validCorpus), &fakeEmbedder{emptyVector: true})
	assert.ErrorIs(t, err, ErrLoad)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(context.Background(), "/nonexistent/intents.json", &fakeEmbedder{})
	assert.ErrorIs(t, err, ErrLoad)
}

func TestAllReturnsDefensiveCopy(t *testing.T) {
	cat, err := Parse(context.Background(), []byte(validCorpus), &fakeEmbedder{})
	require.NoError(t, err)

	all := cat.All()
	all[0] = nil
	assert.NotNil(t, cat.All()[0])
}

func TestUncertainIntent(t *testing.T) {
	sentinel := UncertainIntent()
	assert.Equal(t, FallbackIntentID, sentinel.ID)
	assert.Empty(t, sentinel.Embedding)
}
