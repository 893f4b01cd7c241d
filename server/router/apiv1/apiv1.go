// Package apiv1 exposes the resolution engine as a JSON API.
package apiv1

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/semaphore"

	"github.com/intentd/intentd/engine"
	"github.com/intentd/intentd/engine/catalog"
	"github.com/intentd/intentd/engine/crm"
	"github.com/intentd/intentd/engine/feedback"
	"github.com/intentd/intentd/store"
)

// Service is the engine surface the API needs. *engine.Resolver satisfies
// it; tests substitute a fake.
type Service interface {
	Resolve(ctx context.Context, text string, snap crm.ContextSnapshot) (*engine.Resolution, error)
	Explain(ctx context.Context, text string, snap crm.ContextSnapshot) (*engine.Explanation, error)
	SubmitFeedback(ctx context.Context, signal feedback.Signal) (*feedback.Ack, error)
	ReviewQueue(ctx context.Context, status string, limit int) ([]*store.ReviewQueueItem, error)
	MarkReviewed(ctx context.Context, id, resolvedIntentID string) (*store.ReviewQueueItem, error)
	Stats(ctx context.Context) (*store.FeedbackStats, error)
	Catalog() *catalog.Catalog
}

// APIV1Service registers and serves the /api/v1 routes.
type APIV1Service struct {
	service Service

	// resolveSemaphore bounds concurrent resolutions: each one costs an
	// embedding round trip.
	resolveSemaphore *semaphore.Weighted
}

// NewAPIV1Service creates the API service. maxConcurrent <= 0 disables
// the resolve concurrency limit.
func NewAPIV1Service(service Service, maxConcurrent int64) *APIV1Service {
	s := &APIV1Service{service: service}
	if maxConcurrent > 0 {
		s.resolveSemaphore = semaphore.NewWeighted(maxConcurrent)
	}
	return s
}

// RegisterRoutes mounts all v1 routes on the given group.
func (s *APIV1Service) RegisterRoutes(g *echo.Group) {
	g.POST("/resolve", s.HandleResolve)
	g.POST("/explain", s.HandleExplain)
	g.POST("/feedback", s.HandleFeedback)
	g.GET("/review-queue", s.HandleListReviewQueue)
	g.POST("/review-queue/:id/resolve", s.HandleResolveReviewItem)
	g.GET("/stats", s.HandleStats)
	g.GET("/intents", s.HandleListIntents)
}

// ResolveRequest is the body of POST /resolve and POST /explain.
type ResolveRequest struct {
	Text    string              `json:"text"`
	Context crm.ContextSnapshot `json:"context"`
}

// FeedbackRequest is the body of POST /feedback.
type FeedbackRequest struct {
	Text              string  `json:"text"`
	PredictedIntentID string  `json:"predicted_intent_id"`
	Correct           bool    `json:"correct"`
	CorrectIntentID   string  `json:"correct_intent_id,omitempty"`
	Confidence        float64 `json:"confidence,omitempty"`
}

// ReviewResolveRequest is the body of POST /review-queue/:id/resolve.
type ReviewResolveRequest struct {
	IntentID string `json:"intent_id"`
}

func (s *APIV1Service) HandleResolve(c echo.Context) error {
	req, err := bindResolveRequest(c)
	if err != nil {
		return err
	}
	if err := s.acquire(c); err != nil {
		return err
	}
	defer s.release()

	resolution, err := s.service.Resolve(c.Request().Context(), req.Text, req.Context)
	if err != nil {
		return mapEngineError(err)
	}
	return c.JSON(http.StatusOK, resolution)
}

func (s *APIV1Service) HandleExplain(c echo.Context) error {
	req, err := bindResolveRequest(c)
	if err != nil {
		return err
	}
	if err := s.acquire(c); err != nil {
		return err
	}
	defer s.release()

	explanation, err := s.service.Explain(c.Request().Context(), req.Text, req.Context)
	if err != nil {
		return mapEngineError(err)
	}
	return c.JSON(http.StatusOK, explanation)
}

func (s *APIV1Service) HandleFeedback(c echo.Context) error {
	var req FeedbackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}
	if req.PredictedIntentID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "predicted_intent_id is required")
	}

	ack, err := s.service.SubmitFeedback(c.Request().Context(), feedback.Signal{
		UserText:          req.Text,
		PredictedIntentID: req.PredictedIntentID,
		Correct:           req.Correct,
		CorrectIntentID:   req.CorrectIntentID,
		Confidence:        req.Confidence,
	})
	if err != nil {
		return mapEngineError(err)
	}
	return c.JSON(http.StatusOK, ack)
}

func (s *APIV1Service) HandleListReviewQueue(c echo.Context) error {
	status := c.QueryParam("status")
	if status != "" && status != store.ReviewStatusPending && status != store.ReviewStatusResolved {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown review status")
	}

	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = parsed
	}

	items, err := s.service.ReviewQueue(c.Request().Context(), status, limit)
	if err != nil {
		return mapEngineError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

func (s *APIV1Service) HandleResolveReviewItem(c echo.Context) error {
	var req ReviewResolveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.IntentID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "intent_id is required")
	}
	if s.service.Catalog().GetByID(req.IntentID) == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown intent_id")
	}

	item, err := s.service.MarkReviewed(c.Request().Context(), c.Param("id"), req.IntentID)
	if errors.Is(err, sql.ErrNoRows) {
		return echo.NewHTTPError(http.StatusNotFound, "review item not found or already resolved")
	}
	if err != nil {
		return mapEngineError(err)
	}
	return c.JSON(http.StatusOK, item)
}

func (s *APIV1Service) HandleStats(c echo.Context) error {
	stats, err := s.service.Stats(c.Request().Context())
	if err != nil {
		return mapEngineError(err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *APIV1Service) HandleListIntents(c echo.Context) error {
	intents := s.service.Catalog().All()
	return c.JSON(http.StatusOK, map[string]any{
		"count":   len(intents),
		"intents": intents,
	})
}

func bindResolveRequest(c echo.Context) (*ResolveRequest, error) {
	var req ResolveRequest
	if err := c.Bind(&req); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.Text == "" {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}
	return &req, nil
}

func (s *APIV1Service) acquire(c echo.Context) error {
	if s.resolveSemaphore == nil {
		return nil
	}
	if err := s.resolveSemaphore.Acquire(c.Request().Context(), 1); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "server busy")
	}
	return nil
}

func (s *APIV1Service) release() {
	if s.resolveSemaphore != nil {
		s.resolveSemaphore.Release(1)
	}
}

// mapEngineError translates engine failures to HTTP statuses: a degraded
// embedding provider is 503, everything else is 500.
func mapEngineError(err error) error {
	if errors.Is(err, engine.ErrEmbeddingUnavailable) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "embedding service unavailable")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
