// Package provider builds embedding clients for the configured providers and
// classifies their failures into the pipeline error taxonomy.
package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/filedex/internal/config"
	"github.com/kailas-cloud/filedex/internal/domain"
)

// Decorator wraps an embedder built for a collection. scope identifies the
// provider, model and dimensionality the embedder is bound to.
type Decorator func(e domain.Embedder, scope string) domain.Embedder

// Gateway hands out embedders for collections. Rate limiters are shared per
// provider so every collection on the same credentials draws from one quota.
type Gateway struct {
	providers map[string]config.ProviderConfig
	limiters  map[string]*rate.Limiter
	decorator Decorator
	logger    *zap.Logger

	mu     sync.Mutex
	google map[string]*googleEmbedder // keyed by model/dim, the client is expensive to build
}

// NewGateway creates a gateway over the configured providers. Providers
// without an API key are skipped.
func NewGateway(cfg config.EmbeddingConfig, logger *zap.Logger) *Gateway {
	g := &Gateway{
		providers: make(map[string]config.ProviderConfig),
		limiters:  make(map[string]*rate.Limiter),
		logger:    logger,
		google:    make(map[string]*googleEmbedder),
	}

	for name, p := range cfg.Providers {
		if p.APIKey == "" {
			continue
		}
		g.providers[name] = p
		if p.RateLimitRPS > 0 {
			g.limiters[name] = rate.NewLimiter(rate.Limit(p.RateLimitRPS), p.RateBurst)
		}
		logger.Info("embedding provider configured",
			zap.String("provider", name),
			zap.String("default_model", p.Model),
			zap.Float64("rate_limit_rps", p.RateLimitRPS))
	}

	return g
}

// WithDecorator installs a wrapper applied to every embedder the gateway
// hands out (e.g. an embedding cache).
func (g *Gateway) WithDecorator(d Decorator) *Gateway {
	g.decorator = d
	return g
}

// Has reports whether the named provider is configured.
func (g *Gateway) Has(name string) bool {
	_, ok := g.providers[name]
	return ok
}

// Names returns the sorted configured provider names.
func (g *Gateway) Names() []string {
	names := make([]string, 0, len(g.providers))
	for name := range g.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ForCollection returns an embedder bound to the collection's provider,
// model and dimensionality.
func (g *Gateway) ForCollection(ctx context.Context, col *domain.Collection) (domain.Embedder, error) {
	cfg, ok := g.providers[col.Provider]
	if !ok {
		return nil, fmt.Errorf("provider %q is not configured (have %v): %w",
			col.Provider, g.Names(), domain.ErrInvalidRequest)
	}

	model := col.Model
	if model == "" {
		model = cfg.Model
	}
	if model == "" {
		return nil, fmt.Errorf("provider %q has no model configured: %w", col.Provider, domain.ErrInvalidRequest)
	}

	var e domain.Embedder
	switch col.Provider {
	case "openai":
		clientCfg := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
		e = g.newOpenAI(clientCfg, col, model, cfg)

	case "azure":
		clientCfg := openai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
		e = g.newOpenAI(clientCfg, col, model, cfg)

	case "google":
		var err error
		e, err = g.googleFor(ctx, col, model, cfg)
		if err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("unknown provider %q: %w", col.Provider, domain.ErrInvalidRequest)
	}

	if g.decorator != nil {
		scope := fmt.Sprintf("%s:%s:%d", col.Provider, model, col.Dim)
		e = g.decorator(e, scope)
	}
	return e, nil
}

func (g *Gateway) newOpenAI(
	clientCfg openai.ClientConfig, col *domain.Collection, model string, cfg config.ProviderConfig,
) *openAIEmbedder {
	return &openAIEmbedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(model),
		dimensions: col.Dim,
		provider:   col.Provider,
		maxBatch:   cfg.MaxBatchSize,
		limiter:    g.limiters[col.Provider],
	}
}

func (g *Gateway) googleFor(
	ctx context.Context, col *domain.Collection, model string, cfg config.ProviderConfig,
) (domain.Embedder, error) {
	key := fmt.Sprintf("%s/%d", model, col.Dim)

	g.mu.Lock()
	defer g.mu.Unlock()

	if e, ok := g.google[key]; ok {
		return e, nil
	}

	e, err := newGoogleEmbedder(ctx, cfg.APIKey, model, col.Dim, cfg.MaxBatchSize, g.limiters["google"])
	if err != nil {
		return nil, err
	}
	g.google[key] = e
	return e, nil
}
