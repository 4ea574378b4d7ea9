package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/googleai"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/filedex/internal/domain"
	"github.com/kailas-cloud/filedex/internal/metrics"
)

// Ensure the interface is implemented.
var _ domain.Embedder = (*googleEmbedder)(nil)

// googleEmbedder serves the Google provider through the langchaingo client.
// Gemini embedding responses carry no token usage, so usage stays zero.
type googleEmbedder struct {
	embedder   embeddings.Embedder
	model      string
	dimensions int
	maxBatch   int
	limiter    *rate.Limiter
}

func newGoogleEmbedder(
	ctx context.Context, apiKey, model string, dimensions, maxBatch int, limiter *rate.Limiter,
) (*googleEmbedder, error) {
	client, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultEmbeddingModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create google client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("wrap google embedder: %w", err)
	}

	return &googleEmbedder{
		embedder:   embedder,
		model:      model,
		dimensions: dimensions,
		maxBatch:   maxBatch,
		limiter:    limiter,
	}, nil
}

func (e *googleEmbedder) Dimensionality() int { return e.dimensions }
func (e *googleEmbedder) MaxBatchSize() int   { return e.maxBatch }

func (e *googleEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	batch, err := e.BatchEmbed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{Vector: batch.Vectors[0]}, nil
}

func (e *googleEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	if len(texts) > e.maxBatch {
		return domain.BatchEmbeddingResult{}, fmt.Errorf(
			"batch of %d exceeds provider limit %d: %w", len(texts), e.maxBatch, domain.ErrInvalidRequest)
	}

	if err := waitLimiter(ctx, e.limiter); err != nil {
		return domain.BatchEmbeddingResult{}, err
	}

	start := time.Now()
	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues("google", e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues("google", e.model, "api_error").Inc()
		return domain.BatchEmbeddingResult{}, classifyGoogleError(err)
	}

	if len(vectors) != len(texts) {
		metrics.EmbeddingRequestsTotal.WithLabelValues("google", e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues("google", e.model, "short_response").Inc()
		return domain.BatchEmbeddingResult{}, fmt.Errorf(
			"embedding response has %d vectors for %d inputs: %w",
			len(vectors), len(texts), domain.ErrProviderUnavailable)
	}

	for _, v := range vectors {
		if err := checkDimensions(v, e.dimensions); err != nil {
			metrics.EmbeddingErrorsTotal.WithLabelValues("google", e.model, "dimension_mismatch").Inc()
			return domain.BatchEmbeddingResult{}, err
		}
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues("google", e.model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues("google", e.model).Observe(duration.Seconds())

	return domain.BatchEmbeddingResult{Vectors: vectors}, nil
}
