package apiv1

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intentd/intentd/engine"
	"github.com/intentd/intentd/engine/catalog"
	"github.com/intentd/intentd/engine/crm"
	"github.com/intentd/intentd/engine/feedback"
	"github.com/intentd/intentd/store"
)

type stubEmbedder struct{}

func (stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1}
	}
	return out, nil
}

// fakeService returns canned engine responses and records what it was
// called with.
type fakeService struct {
	catalog *catalog.Catalog

	resolution *engine.Resolution
	resolveErr error

	ack       *feedback.Ack
	signal    feedback.Signal
	items     []*store.ReviewQueueItem
	reviewed  *store.ReviewQueueItem
	reviewErr error
	stats     *store.FeedbackStats

	lastStatus string
	lastLimit  int
}

func (f *fakeService) Resolve(_ context.Context, text string, _ crm.ContextSnapshot) (*engine.Resolution, error) {
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	return f.resolution, nil
}

func (f *fakeService) Explain(ctx context.Context, text string, snap crm.ContextSnapshot) (*engine.Explanation, error) {
	resolution, err := f.Resolve(ctx, text, snap)
	if err != nil {
		return nil, err
	}
	return &engine.Explanation{Resolution: *resolution, Weights: crm.DefaultWeights()}, nil
}

func (f *fakeService) SubmitFeedback(_ context.Context, signal feedback.Signal) (*feedback.Ack, error) {
	f.signal = signal
	return f.ack, nil
}

func (f *fakeService) ReviewQueue(_ context.Context, status string, limit int) ([]*store.ReviewQueueItem, error) {
	f.lastStatus = status
	f.lastLimit = limit
	return f.items, nil
}

func (f *fakeService) MarkReviewed(_ context.Context, id, resolvedIntentID string) (*store.ReviewQueueItem, error) {
	if f.reviewErr != nil {
		return nil, f.reviewErr
	}
	return f.reviewed, nil
}

func (f *fakeService) Stats(context.Context) (*store.FeedbackStats, error) {
	return f.stats, nil
}

func (f *fakeService) Catalog() *catalog.Catalog {
	return f.catalog
}

func newTestServer(t *testing.T) (*echo.Echo, *fakeService) {
	t.Helper()
	cat, err := catalog.Parse(context.Background(), []byte(
		`{"intents": [{"id": "set_timer", "canonical_text": "set a timer", "description": "d"}]}`,
	), stubEmbedder{})
	require.NoError(t, err)

	service := &fakeService{
		catalog: cat,
		resolution: &engine.Resolution{
			IntentID:   "set_timer",
			Score:      0.9,
			Confidence: 0.7,
		},
		ack:   &feedback.Ack{Action: feedback.ActionSavedToMemory, MemoryID: "m-1"},
		stats: &store.FeedbackStats{TotalEvents: 3, CorrectCount: 2, Accuracy: 2.0 / 3.0},
	}

	e := echo.New()
	NewAPIV1Service(service, 4).RegisterRoutes(e.Group("/api/v1"))
	return e, service
}

func doRequest(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandleResolve(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doRequest(e, http.MethodPost, "/api/v1/resolve", `{"text": "set a timer"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got engine.Resolution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "set_timer", got.IntentID)
	assert.InDelta(t, 0.9, got.Score, 1e-9)
}

func TestHandleResolveValidation(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doRequest(e, http.MethodPost, "/api/v1/resolve", `{"text": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(e, http.MethodPost, "/api/v1/resolve", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleResolveMapsEmbeddingOutage(t *testing.T) {
	e, service := newTestServer(t)
	service.resolveErr = engine.ErrEmbeddingUnavailable

	rec := doRequest(e, http.MethodPost, "/api/v1/resolve", `{"text": "set a timer"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleExplain(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doRequest(e, http.MethodPost, "/api/v1/explain", `{"text": "set a timer", "context": {"location_context": "kitchen"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got engine.Explanation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "set_timer", got.IntentID)
	assert.Len(t, got.Weights, len(crm.FactorOrder))
}

func TestHandleFeedback(t *testing.T) {
	e, service := newTestServer(t)

	body := `{"text": "set a timer", "predicted_intent_id": "set_timer", "correct": true, "confidence": 0.9}`
	rec := doRequest(e, http.MethodPost, "/api/v1/feedback", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var ack feedback.Ack
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.Equal(t, feedback.ActionSavedToMemory, ack.Action)
	assert.Equal(t, "m-1", ack.MemoryID)

	assert.Equal(t, "set a timer", service.signal.UserText)
	assert.True(t, service.signal.Correct)
	assert.InDelta(t, 0.9, service.signal.Confidence, 1e-9)
}

func TestHandleFeedbackValidation(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doRequest(e, http.MethodPost, "/api/v1/feedback", `{"predicted_intent_id": "set_timer"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(e, http.MethodPost, "/api/v1/feedback", `{"text": "set a timer"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleListReviewQueue(t *testing.T) {
	e, service := newTestServer(t)
	service.items = []*store.ReviewQueueItem{{ID: "rev-1", Status: store.ReviewStatusPending}}

	rec := doRequest(e, http.MethodGet, "/api/v1/review-queue?status=pending&limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, store.ReviewStatusPending, service.lastStatus)
	assert.Equal(t, 10, service.lastLimit)

	var got struct {
		Items []*store.ReviewQueueItem `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Items, 1)
	assert.Equal(t, "rev-1", got.Items[0].ID)
}

func TestHandleListReviewQueueValidation(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doRequest(e, http.MethodGet, "/api/v1/review-queue?status=bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(e, http.MethodGet, "/api/v1/review-queue?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleResolveReviewItem(t *testing.T) {
	e, service := newTestServer(t)
	service.reviewed = &store.ReviewQueueItem{
		ID:               "rev-1",
		Status:           store.ReviewStatusResolved,
		ResolvedIntentID: "set_timer",
	}

	rec := doRequest(e, http.MethodPost, "/api/v1/review-queue/rev-1/resolve", `{"intent_id": "set_timer"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got store.ReviewQueueItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, store.ReviewStatusResolved, got.Status)
}

func TestHandleResolveReviewItemErrors(t *testing.T) {
	e, service := newTestServer(t)

	rec := doRequest(e, http.MethodPost, "/api/v1/review-queue/rev-1/resolve", `{"intent_id": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(e, http.MethodPost, "/api/v1/review-queue/rev-1/resolve", `{"intent_id": "unknown_intent"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	service.reviewErr = sql.ErrNoRows
	rec = doRequest(e, http.MethodPost, "/api/v1/review-queue/rev-1/resolve", `{"intent_id": "set_timer"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleStats(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doRequest(e, http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got store.FeedbackStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.EqualValues(t, 3, got.TotalEvents)
	assert.InDelta(t, 2.0/3.0, got.Accuracy, 1e-9)
}

func TestHandleListIntents(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doRequest(e, http.MethodGet, "/api/v1/intents", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Count   int               `json:"count"`
		Intents []*catalog.Intent `json:"intents"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 1, got.Count)
	require.Len(t, got.Intents, 1)
	assert.Equal(t, "set_timer", got.Intents[0].ID)
}
