package engine

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
	"github.com/pkg/errors"
)

// ErrEmbeddingUnavailable wraps any failure of the embedding provider so
// callers can map it to a transport-level "service degraded" response
// instead of a generic internal error.
var ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

// EmbeddingService produces dense vectors for input text. Implementations
// must be safe for concurrent use.
type EmbeddingService interface {
	// Embed generates a vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates vectors for multiple texts in one round trip.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector dimension.
	Dimensions() int
}

// EmbeddingConfig configures an OpenAI-compatible embedding provider.
// This covers openai, siliconflow, ollama and any other endpoint that
// speaks the /v1/embeddings protocol.
type EmbeddingConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
}

type embeddingService struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewEmbeddingService creates an EmbeddingService against an
// OpenAI-compatible API.
func NewEmbeddingService(cfg EmbeddingConfig) EmbeddingService {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &embeddingService{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

func (s *embeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errors.Wrap(ErrEmbeddingUnavailable, "empty embedding result")
	}
	return vectors[0], nil
}

func (s *embeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.New("no texts provided for embedding")
	}

	req := openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(s.model),
		Dimensions: s.dimensions,
	}

	resp, err := s.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, errors.Wrap(ErrEmbeddingUnavailable, err.Error())
	}
	if len(resp.Data) == 0 {
		return nil, errors.Wrap(ErrEmbeddingUnavailable, "empty embedding response")
	}

	vectors := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		vectors[i] = data.Embedding
	}
	return vectors, nil
}

func (s *embeddingService) Dimensions() int {
	return s.dimensions
}
