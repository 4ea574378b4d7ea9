package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/filedex/internal/config"
	"github.com/kailas-cloud/filedex/internal/domain"
)

func TestClassifyOpenAIError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, domain.ErrProviderAuth},
		{"forbidden", http.StatusForbidden, domain.ErrProviderAuth},
		{"rate limited", http.StatusTooManyRequests, domain.ErrRateLimited},
		{"server error", http.StatusInternalServerError, domain.ErrProviderUnavailable},
		{"bad gateway", http.StatusBadGateway, domain.ErrProviderUnavailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			apiErr := &openai.APIError{HTTPStatusCode: tc.status, Message: "boom"}
			got := classifyOpenAIError(apiErr)
			if !errors.Is(got, tc.want) {
				t.Errorf("classifyOpenAIError(%d) = %v, want %v", tc.status, got, tc.want)
			}
		})
	}
}

func TestClassifyOpenAIError_ContextErrorsPassThrough(t *testing.T) {
	if got := classifyOpenAIError(context.DeadlineExceeded); !errors.Is(got, context.DeadlineExceeded) {
		t.Errorf("deadline = %v", got)
	}
	if got := classifyOpenAIError(context.Canceled); !errors.Is(got, context.Canceled) {
		t.Errorf("canceled = %v", got)
	}
}

func TestClassifyOpenAIError_UnknownIsUnavailable(t *testing.T) {
	got := classifyOpenAIError(errors.New("connection refused"))
	if !errors.Is(got, domain.ErrProviderUnavailable) {
		t.Errorf("got %v, want ErrProviderUnavailable", got)
	}
}

func TestClassifyGoogleError(t *testing.T) {
	tests := []struct {
		msg  string
		want error
	}{
		{"API key not valid", domain.ErrProviderAuth},
		{"rpc error: code = Unauthenticated", domain.ErrProviderAuth},
		{"quota exceeded for metric", domain.ErrRateLimited},
		{"googleapi: Error 429", domain.ErrRateLimited},
		{"deadline exceeded dialing", domain.ErrProviderUnavailable},
	}

	for _, tc := range tests {
		got := classifyGoogleError(errors.New(tc.msg))
		if !errors.Is(got, tc.want) {
			t.Errorf("classifyGoogleError(%q) = %v, want %v", tc.msg, got, tc.want)
		}
	}
}

func TestCheckDimensions(t *testing.T) {
	if err := checkDimensions([]float32{1, 2, 3}, 3); err != nil {
		t.Errorf("matching dims: %v", err)
	}
	if err := checkDimensions([]float32{1, 2, 3}, 0); err != nil {
		t.Errorf("zero declared dims must skip the check: %v", err)
	}
	err := checkDimensions([]float32{1, 2, 3}, 4)
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("got %v, want ErrDimensionMismatch", err)
	}
}

func testGateway(t *testing.T) *Gateway {
	t.Helper()
	return NewGateway(config.EmbeddingConfig{Providers: map[string]config.ProviderConfig{
		"openai": {APIKey: "sk-test", Model: "text-embedding-3-small", MaxBatchSize: 100},
		"azure":  {APIKey: "az-test", BaseURL: "https://example.openai.azure.com", Model: "embed", MaxBatchSize: 16},
	}}, zap.NewNop())
}

func TestGateway_Names(t *testing.T) {
	g := testGateway(t)
	names := g.Names()
	if len(names) != 2 || names[0] != "azure" || names[1] != "openai" {
		t.Errorf("names = %v", names)
	}
	if !g.Has("openai") || g.Has("google") {
		t.Error("Has() disagrees with configuration")
	}
}

func TestGateway_SkipsKeylessProviders(t *testing.T) {
	g := NewGateway(config.EmbeddingConfig{Providers: map[string]config.ProviderConfig{
		"openai": {Model: "text-embedding-3-small"},
	}}, zap.NewNop())
	if g.Has("openai") {
		t.Error("keyless provider must not be configured")
	}
}

func TestGateway_ForCollection_UnconfiguredProvider(t *testing.T) {
	g := testGateway(t)
	col := &domain.Collection{Name: "docs", Dim: 768, Provider: "google", Model: "gemini-embedding-001"}
	_, err := g.ForCollection(context.Background(), col)
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("got %v, want ErrInvalidRequest", err)
	}
}

func TestGateway_ForCollection_ModelFallsBackToProviderDefault(t *testing.T) {
	g := testGateway(t)
	col := &domain.Collection{Name: "docs", Dim: 1536, Provider: "openai"}
	e, err := g.ForCollection(context.Background(), col)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	oe, ok := e.(*openAIEmbedder)
	if !ok {
		t.Fatalf("embedder type = %T", e)
	}
	if string(oe.model) != "text-embedding-3-small" {
		t.Errorf("model = %q, want provider default", oe.model)
	}
	if oe.Dimensionality() != 1536 || oe.MaxBatchSize() != 100 {
		t.Errorf("dim/batch = %d/%d", oe.Dimensionality(), oe.MaxBatchSize())
	}
}

func TestGateway_ForCollection_NoModelAnywhere(t *testing.T) {
	g := NewGateway(config.EmbeddingConfig{Providers: map[string]config.ProviderConfig{
		"openai": {APIKey: "sk-test", MaxBatchSize: 100},
	}}, zap.NewNop())
	col := &domain.Collection{Name: "docs", Dim: 8, Provider: "openai"}
	if _, err := g.ForCollection(context.Background(), col); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("got %v, want ErrInvalidRequest", err)
	}
}

func TestOpenAIEmbedder_BatchTooLarge(t *testing.T) {
	e := &openAIEmbedder{maxBatch: 2}
	_, err := e.BatchEmbed(context.Background(), []string{"a", "b", "c"})
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("got %v, want ErrInvalidRequest", err)
	}
}

func TestOpenAIEmbedder_BatchEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// Out-of-order data exercises the index sort.
		_, _ = w.Write([]byte(`{
			"object": "list",
			"data": [
				{"object": "embedding", "index": 1, "embedding": [0.5, 0.6]},
				{"object": "embedding", "index": 0, "embedding": [0.1, 0.2]}
			],
			"model": "text-embedding-3-small",
			"usage": {"prompt_tokens": 4, "total_tokens": 4}
		}`))
	}))
	defer srv.Close()

	clientCfg := openai.DefaultConfig("sk-test")
	clientCfg.BaseURL = srv.URL + "/v1"

	e := &openAIEmbedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      "text-embedding-3-small",
		dimensions: 2,
		provider:   "openai",
		maxBatch:   100,
	}

	res, err := e.BatchEmbed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Vectors) != 2 {
		t.Fatalf("vectors = %d, want 2", len(res.Vectors))
	}
	if res.Vectors[0][0] != 0.1 || res.Vectors[1][0] != 0.5 {
		t.Errorf("order not restored by index: %v", res.Vectors)
	}
	if res.TotalTokens != 4 {
		t.Errorf("total tokens = %d, want 4", res.TotalTokens)
	}
}

func TestOpenAIEmbedder_DimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"object": "list",
			"data": [{"object": "embedding", "index": 0, "embedding": [0.1, 0.2, 0.3]}],
			"model": "text-embedding-3-small",
			"usage": {"prompt_tokens": 1, "total_tokens": 1}
		}`))
	}))
	defer srv.Close()

	clientCfg := openai.DefaultConfig("sk-test")
	clientCfg.BaseURL = srv.URL + "/v1"

	e := &openAIEmbedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      "text-embedding-3-small",
		dimensions: 8,
		provider:   "openai",
		maxBatch:   100,
	}

	_, err := e.BatchEmbed(context.Background(), []string{"text"})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("got %v, want ErrDimensionMismatch", err)
	}
}
